package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"inteliroute/internal/model"
)

// MailboxRepository owns Mailbox rows: polling configuration and cursor state.
type MailboxRepository struct {
	db *gorm.DB
}

func NewMailboxRepository(db *gorm.DB) *MailboxRepository {
	return &MailboxRepository{db: db}
}

// ListDueForPolling returns active mailboxes that have never synced or whose
// poll interval has elapsed, ordered by id for deterministic scans.
func (r *MailboxRepository) ListDueForPolling(ctx context.Context, now time.Time) ([]model.Mailbox, error) {
	var active []model.Mailbox
	result := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id").
		Find(&active)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active mailboxes: %w", result.Error)
	}

	// "due" is computed here rather than in SQL so the interval arithmetic
	// stays portable across MySQL and the sqlite used in tests.
	due := make([]model.Mailbox, 0, len(active))
	for _, m := range active {
		if m.DueAt(now) {
			due = append(due, m)
		}
	}
	return due, nil
}

// AdvanceCursor persists a new cursor value and sync timestamp for a mailbox.
// Safe to call with an unchanged cursor (priming and empty fetch cycles).
func (r *MailboxRepository) AdvanceCursor(ctx context.Context, mailboxID uint, cursor string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Mailbox{}).
		Where("id = ?", mailboxID).
		Updates(map[string]interface{}{
			"cursor":       cursor,
			"last_sync_at": syncedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to advance cursor for mailbox %d: %w", mailboxID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mailbox %d not found", mailboxID)
	}
	return nil
}

// GetByID returns a mailbox or (nil, nil) when absent.
func (r *MailboxRepository) GetByID(ctx context.Context, id uint) (*model.Mailbox, error) {
	var m model.Mailbox
	result := r.db.WithContext(ctx).First(&m, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get mailbox %d: %w", id, result.Error)
	}
	return &m, nil
}

// ListByTenant returns all of a tenant's mailboxes ordered by address.
func (r *MailboxRepository) ListByTenant(ctx context.Context, tenantID uint) ([]model.Mailbox, error) {
	var boxes []model.Mailbox
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("address").
		Find(&boxes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list mailboxes for tenant %d: %w", tenantID, result.Error)
	}
	return boxes, nil
}

// UpsertByAddress creates a mailbox for (tenant, address) or reactivates the
// existing one. New mailboxes start with an empty cursor so the first fetch
// cycle only primes them.
func (r *MailboxRepository) UpsertByAddress(ctx context.Context, tenantID uint, address string) (*model.Mailbox, error) {
	address = strings.TrimSpace(address)

	var m model.Mailbox
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND address = ?", tenantID, address).
		First(&m)
	if result.Error == gorm.ErrRecordNotFound {
		m = model.Mailbox{
			TenantID:        tenantID,
			Provider:        "gmail",
			Address:         address,
			IsActive:        true,
			PollIntervalSec: 60,
		}
		if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
			return nil, fmt.Errorf("failed to create mailbox: %w", err)
		}
		return &m, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to look up mailbox: %w", result.Error)
	}

	m.IsActive = true
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to reactivate mailbox: %w", err)
	}
	return &m, nil
}

// SetActive flips the active flag for one mailbox.
func (r *MailboxRepository) SetActive(ctx context.Context, tenantID, mailboxID uint, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Mailbox{}).
		Where("tenant_id = ? AND id = ?", tenantID, mailboxID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to set mailbox active flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetActiveExclusive activates one mailbox and deactivates every other
// mailbox of the tenant in a single transaction, so there is no window with
// zero or multiple active mailboxes.
func (r *MailboxRepository) SetActiveExclusive(ctx context.Context, tenantID, mailboxID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Mailbox{}).
			Where("tenant_id = ? AND id = ?", tenantID, mailboxID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up mailbox: %w", err)
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Model(&model.Mailbox{}).
			Where("tenant_id = ? AND id <> ?", tenantID, mailboxID).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate mailboxes: %w", err)
		}
		if err := tx.Model(&model.Mailbox{}).
			Where("tenant_id = ? AND id = ?", tenantID, mailboxID).
			Update("is_active", true).Error; err != nil {
			return fmt.Errorf("failed to activate mailbox: %w", err)
		}
		return nil
	})
}

// SetPollInterval updates a mailbox's poll interval, clamped to the allowed range.
func (r *MailboxRepository) SetPollInterval(ctx context.Context, tenantID, mailboxID uint, secs int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Mailbox{}).
		Where("tenant_id = ? AND id = ?", tenantID, mailboxID).
		Update("poll_interval_sec", model.ClampPollInterval(secs))
	if result.Error != nil {
		return fmt.Errorf("failed to set poll interval: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
