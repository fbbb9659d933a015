package model

import "time"

// Department is a tenant-scoped routing target. RoutingEmail may be empty,
// in which case messages predicted for it are triaged instead of forwarded.
type Department struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID     uint      `json:"tenant_id" gorm:"not null;uniqueIndex:idx_tenant_name"`
	Name         string    `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_tenant_name"`
	RoutingEmail string    `json:"routing_email" gorm:"type:varchar(255)"`
	Enabled      bool      `json:"enabled" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`

	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName specifies the table name for Department
func (Department) TableName() string {
	return "departments"
}
