package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inteliroute/internal/classifier"
	"inteliroute/internal/mailsource"
	"inteliroute/internal/metrics"
	"inteliroute/internal/model"
)

// Prometheus collectors register globally, so the test binary shares one set.
var testMetrics = metrics.NewMetrics()

type fakeMailboxStore struct {
	mu    sync.Mutex
	boxes map[uint]*model.Mailbox
}

func newFakeMailboxStore(boxes ...model.Mailbox) *fakeMailboxStore {
	s := &fakeMailboxStore{boxes: make(map[uint]*model.Mailbox)}
	for i := range boxes {
		b := boxes[i]
		s.boxes[b.ID] = &b
	}
	return s
}

func (s *fakeMailboxStore) ListDueForPolling(ctx context.Context, now time.Time) ([]model.Mailbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []model.Mailbox
	for _, b := range s.boxes {
		if b.IsActive && b.DueAt(now) {
			due = append(due, *b)
		}
	}
	return due, nil
}

func (s *fakeMailboxStore) AdvanceCursor(ctx context.Context, mailboxID uint, cursor string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boxes[mailboxID]
	if !ok {
		return fmt.Errorf("mailbox %d not found", mailboxID)
	}
	b.Cursor = cursor
	t := syncedAt
	b.LastSyncAt = &t
	return nil
}

func (s *fakeMailboxStore) get(id uint) model.Mailbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.boxes[id]
}

type fakeMessageStore struct {
	mu     sync.Mutex
	nextID uint
	rows   []*model.Message
}

func newFakeMessageStore(rows ...model.Message) *fakeMessageStore {
	s := &fakeMessageStore{nextID: 1}
	for i := range rows {
		r := rows[i]
		if r.ID == 0 {
			r.ID = s.nextID
		}
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
		s.rows = append(s.rows, &r)
	}
	return s
}

func (s *fakeMessageStore) Exists(ctx context.Context, mailboxID uint, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.MailboxID == mailboxID && r.ExternalMessageID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeMessageStore) CreateBatch(ctx context.Context, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range msgs {
		for _, r := range s.rows {
			if r.MailboxID == msgs[i].MailboxID && r.ExternalMessageID == msgs[i].ExternalMessageID {
				return fmt.Errorf("duplicate key (%d, %s)", r.MailboxID, r.ExternalMessageID)
			}
		}
		m := msgs[i]
		m.ID = s.nextID
		s.nextID++
		s.rows = append(s.rows, &m)
	}
	return nil
}

func (s *fakeMessageStore) ListPending(ctx context.Context, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, r := range s.rows {
		if r.RouteStatus == model.StatusNew {
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeMessageStore) Update(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.ID == msg.ID {
			m := *msg
			s.rows[i] = &m
			return nil
		}
	}
	return fmt.Errorf("message %d not found", msg.ID)
}

func (s *fakeMessageStore) get(id uint) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			return *r
		}
	}
	return model.Message{}
}

func (s *fakeMessageStore) all() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, *r)
	}
	return out
}

type fakeDeptStore struct {
	rows []model.Department
	err  error
}

func (s *fakeDeptStore) ListByTenant(ctx context.Context, tenantID uint) ([]model.Department, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Department
	for _, d := range s.rows {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []model.RouteEvent
}

func (s *fakeEventStore) Append(ctx context.Context, ev *model.RouteEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

type fakeClassifier struct {
	mu      sync.Mutex
	predict func(subject, body string, allowed []string) (*classifier.Prediction, error)
	allowed [][]string
}

func (c *fakeClassifier) Predict(ctx context.Context, subject, body string, allowed []string, useRules bool, minConfidence float64) (*classifier.Prediction, error) {
	c.mu.Lock()
	c.allowed = append(c.allowed, allowed)
	c.mu.Unlock()
	return c.predict(subject, body, allowed)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeForwarder struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeForwarder) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type fakeSource struct {
	baseline  func(mb model.Mailbox) (string, error)
	listSince func(mb model.Mailbox, cursor string) ([]mailsource.InboundMessage, string, error)
}

func (s *fakeSource) BaselineCursor(ctx context.Context, mb model.Mailbox) (string, error) {
	return s.baseline(mb)
}

func (s *fakeSource) ListSince(ctx context.Context, mb model.Mailbox, cursor string) ([]mailsource.InboundMessage, string, error) {
	return s.listSince(mb, cursor)
}

func floatPtr(v float64) *float64 { return &v }
