package model

import "time"

// Tenant represents an organization whose mailboxes are polled and routed
type Tenant struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	DomainsCsv string    `json:"domains_csv" gorm:"type:varchar(1024)"`
	IsActive   bool      `json:"is_active" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`

	Departments []Department `json:"departments,omitempty" gorm:"foreignKey:TenantID"`
	Mailboxes   []Mailbox    `json:"mailboxes,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName specifies the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}
