package model

import "time"

// Routing attempt actions and outcomes recorded in the audit trail.
const (
	ActionRouteToDepartment = "route_to_department"
	ActionSendToTriage      = "send_to_triage"

	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
)

// RouteEvent is one append-only audit row per routing attempt outcome.
type RouteEvent struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID    uint      `json:"message_id" gorm:"not null;index"`
	DepartmentID *uint     `json:"department_id"`
	Action       string    `json:"action" gorm:"type:varchar(50);not null"`
	Outcome      string    `json:"outcome" gorm:"type:varchar(20);not null"`
	Notes        string    `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`

	Message *Message `json:"message,omitempty" gorm:"foreignKey:MessageID"`
}

// TableName specifies the table name for RouteEvent
func (RouteEvent) TableName() string {
	return "route_events"
}
