package mailsource

import (
	"context"
	"errors"
	"time"

	"inteliroute/internal/model"
)

// ErrCursorExpired is returned by ListSince when the provider no longer has
// history for the stored cursor. The fetch worker treats it as a normal
// branch and re-primes the mailbox instead of failing.
var ErrCursorExpired = errors.New("mail source cursor expired")

// Placeholder bodies stored when a message carries no readable text part or
// decoding fails. Ingestion never fails on a single unparseable body.
const (
	BodyUnreadable  = "(No readable body found)"
	BodyDecodeError = "(Error decoding body)"
)

// InboundMessage is one normalized provider message ready for staging.
type InboundMessage struct {
	ExternalID string
	ThreadID   string
	From       string
	To         string
	Subject    string
	Snippet    string
	BodyText   string
	ReceivedAt time.Time
}

// Source pulls new messages from a provider mailbox using an opaque,
// monotonically increasing cursor.
type Source interface {
	// BaselineCursor returns the provider's current cursor without listing
	// any mail. Used for priming and for recovery after ErrCursorExpired.
	BaselineCursor(ctx context.Context, mb model.Mailbox) (string, error)

	// ListSince returns messages added after the cursor plus the new cursor
	// value. Implementations return ErrCursorExpired when the provider has
	// discarded history for the given cursor.
	ListSince(ctx context.Context, mb model.Mailbox, cursor string) ([]InboundMessage, string, error)
}
