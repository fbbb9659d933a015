package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"inteliroute/internal/model"
)

// RouteEventRepository appends routing audit rows. Events are never mutated.
type RouteEventRepository struct {
	db *gorm.DB
}

func NewRouteEventRepository(db *gorm.DB) *RouteEventRepository {
	return &RouteEventRepository{db: db}
}

// Append records one routing attempt outcome.
func (r *RouteEventRepository) Append(ctx context.Context, ev *model.RouteEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to append route event: %w", err)
	}
	return nil
}

// ListByMessage returns the audit trail for one message, oldest first.
func (r *RouteEventRepository) ListByMessage(ctx context.Context, messageID uint) ([]model.RouteEvent, error) {
	var events []model.RouteEvent
	result := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id").
		Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list route events for message %d: %w", messageID, result.Error)
	}
	return events, nil
}
