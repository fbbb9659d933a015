package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"inteliroute/internal/model"
)

// MessageRepository owns Message rows: idempotent ingestion and routing state.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Exists reports whether a message with the given provider id was already
// ingested for the mailbox.
func (r *MessageRepository) Exists(ctx context.Context, mailboxID uint, externalID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("mailbox_id = ? AND external_message_id = ?", mailboxID, externalID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check message existence: %w", result.Error)
	}
	return count > 0, nil
}

// CreateBatch inserts newly fetched messages in one statement.
func (r *MessageRepository) CreateBatch(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&msgs).Error; err != nil {
		return fmt.Errorf("failed to insert message batch: %w", err)
	}
	return nil
}

// ListPending returns up to limit messages still in status New, oldest first.
// Terminal messages are never selected again.
func (r *MessageRepository) ListPending(ctx context.Context, limit int) ([]model.Message, error) {
	var msgs []model.Message
	result := r.db.WithContext(ctx).
		Where("route_status = ?", model.StatusNew).
		Order("id").
		Limit(limit).
		Find(&msgs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", result.Error)
	}
	return msgs, nil
}

// Update persists the message's routing outcome.
func (r *MessageRepository) Update(ctx context.Context, msg *model.Message) error {
	// Save with explicit Select so cleared (nil) routing fields are written too.
	result := r.db.WithContext(ctx).
		Model(msg).
		Select("route_status", "predicted_label", "confidence",
			"routed_dept_id", "routed_email", "error_message").
		Updates(msg)
	if result.Error != nil {
		return fmt.Errorf("failed to update message %d: %w", msg.ID, result.Error)
	}
	return nil
}

// GetByID returns a message or (nil, nil) when absent.
func (r *MessageRepository) GetByID(ctx context.Context, id uint) (*model.Message, error) {
	var msg model.Message
	result := r.db.WithContext(ctx).First(&msg, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get message %d: %w", id, result.Error)
	}
	return &msg, nil
}

// ListByStatus returns a page of messages filtered by status, newest first.
// An empty status returns all messages.
func (r *MessageRepository) ListByStatus(ctx context.Context, status model.RouteStatus, limit, offset int) ([]model.Message, error) {
	q := r.db.WithContext(ctx).Model(&model.Message{})
	if status != "" {
		q = q.Where("route_status = ?", status)
	}
	var msgs []model.Message
	result := q.Order("id desc").Limit(limit).Offset(offset).Find(&msgs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages: %w", result.Error)
	}
	return msgs, nil
}

// Requeue resets a terminal message back to New so the routing worker picks
// it up again. Routing fields are cleared; ingestion data is untouched.
func (r *MessageRepository) Requeue(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND route_status <> ?", id, model.StatusNew).
		Updates(map[string]interface{}{
			"route_status":    model.StatusNew,
			"predicted_label": nil,
			"confidence":      nil,
			"routed_dept_id":  nil,
			"routed_email":    nil,
			"error_message":   nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to requeue message %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByStatus returns the number of messages in a given status.
func (r *MessageRepository) CountByStatus(ctx context.Context, status model.RouteStatus) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("route_status = ?", status).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count messages: %w", result.Error)
	}
	return count, nil
}
