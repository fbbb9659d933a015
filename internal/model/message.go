package model

import "time"

// RouteStatus is the routing lifecycle of an ingested message.
// New is the only non-terminal status; the routing worker moves a message
// to exactly one of Routed, Triage or Failed and never revisits it.
type RouteStatus string

const (
	StatusNew    RouteStatus = "new"
	StatusRouted RouteStatus = "routed"
	StatusTriage RouteStatus = "triage"
	StatusFailed RouteStatus = "failed"
)

// Terminal reports whether the status is final for the routing worker.
func (s RouteStatus) Terminal() bool {
	return s == StatusRouted || s == StatusTriage || s == StatusFailed
}

// Message represents one ingested email with its routing state.
// (MailboxID, ExternalMessageID) is unique so re-fetching the same provider
// message is idempotent.
type Message struct {
	ID                uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID          uint        `json:"tenant_id" gorm:"not null;index"`
	MailboxID         uint        `json:"mailbox_id" gorm:"not null;uniqueIndex:idx_mailbox_external"`
	ExternalMessageID string      `json:"external_message_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_mailbox_external"`
	ThreadID          string      `json:"thread_id" gorm:"type:varchar(255)"`
	From              string      `json:"from" gorm:"column:from_addr;type:varchar(512)"`
	To                string      `json:"to" gorm:"column:to_addr;type:varchar(1024)"`
	Subject           string      `json:"subject" gorm:"type:varchar(1024)"`
	Snippet           string      `json:"snippet" gorm:"type:text"`
	BodyText          string      `json:"body_text" gorm:"type:longtext"`
	ReceivedAt        time.Time   `json:"received_at" gorm:"index"`
	RouteStatus       RouteStatus `json:"route_status" gorm:"type:varchar(20);not null;default:new;index"`
	PredictedLabel    *string     `json:"predicted_label" gorm:"type:varchar(100)"`
	Confidence        *float64    `json:"confidence"`
	RoutedDeptID      *uint       `json:"routed_department_id"`
	RoutedEmail       *string     `json:"routed_email" gorm:"type:varchar(255)"`
	ErrorMessage      *string     `json:"error_message" gorm:"type:text"`
	CreatedAt         time.Time   `json:"created_at"`

	Mailbox    *Mailbox    `json:"mailbox,omitempty" gorm:"foreignKey:MailboxID"`
	RoutedDept *Department `json:"routed_department,omitempty" gorm:"foreignKey:RoutedDeptID"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "messages"
}
