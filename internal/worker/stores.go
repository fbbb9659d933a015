package worker

import (
	"context"
	"time"

	"inteliroute/internal/model"
)

// MailboxStore is the registry surface the fetch worker needs.
type MailboxStore interface {
	ListDueForPolling(ctx context.Context, now time.Time) ([]model.Mailbox, error)
	AdvanceCursor(ctx context.Context, mailboxID uint, cursor string, syncedAt time.Time) error
}

// MessageStore is the message table surface shared by both workers. The
// fetch worker produces New rows; the routing worker consumes them.
type MessageStore interface {
	Exists(ctx context.Context, mailboxID uint, externalID string) (bool, error)
	CreateBatch(ctx context.Context, msgs []model.Message) error
	ListPending(ctx context.Context, limit int) ([]model.Message, error)
	Update(ctx context.Context, msg *model.Message) error
}

// DepartmentStore resolves a tenant's routing targets.
type DepartmentStore interface {
	ListByTenant(ctx context.Context, tenantID uint) ([]model.Department, error)
}

// RouteEventStore appends audit rows for routing attempts.
type RouteEventStore interface {
	Append(ctx context.Context, ev *model.RouteEvent) error
}
