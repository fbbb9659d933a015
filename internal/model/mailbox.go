package model

import "time"

// Poll interval bounds in seconds. Administrative writes clamp into this range.
const (
	MinPollIntervalSec = 15
	MaxPollIntervalSec = 3600
)

// Mailbox represents one polled provider mailbox and its incremental sync state.
// Cursor is opaque and provider-specific (Gmail history id, IMAP uidvalidity:uid);
// it stays empty until the first successful fetch primes it.
type Mailbox struct {
	ID              uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID        uint       `json:"tenant_id" gorm:"not null;index;uniqueIndex:idx_tenant_address"`
	Provider        string     `json:"provider" gorm:"type:varchar(50);not null;default:gmail"`
	Address         string     `json:"address" gorm:"type:varchar(255);not null;uniqueIndex:idx_tenant_address"`
	IsActive        bool       `json:"is_active" gorm:"default:true"`
	PollIntervalSec int        `json:"poll_interval_sec" gorm:"not null;default:60"`
	LastSyncAt      *time.Time `json:"last_sync_at"`
	Cursor          string     `json:"cursor" gorm:"type:varchar(255)"`
	CredentialRef   string     `json:"credential_ref" gorm:"type:varchar(512)"`
	CreatedAt       time.Time  `json:"created_at"`

	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName specifies the table name for Mailbox
func (Mailbox) TableName() string {
	return "mailboxes"
}

// DueAt reports whether the mailbox is due for polling at the given instant.
func (m *Mailbox) DueAt(now time.Time) bool {
	if m.LastSyncAt == nil {
		return true
	}
	return now.Sub(*m.LastSyncAt) >= time.Duration(m.PollIntervalSec)*time.Second
}

// ClampPollInterval clamps a requested poll interval into the allowed range.
func ClampPollInterval(secs int) int {
	if secs < MinPollIntervalSec {
		return MinPollIntervalSec
	}
	if secs > MaxPollIntervalSec {
		return MaxPollIntervalSec
	}
	return secs
}
