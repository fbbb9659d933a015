package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inteliroute/internal/config"
	"inteliroute/internal/mailsource"
	"inteliroute/internal/metrics"
	"inteliroute/internal/model"
)

// FetchWorker is the mailbox polling loop: it scans due mailboxes on a short
// fixed interval, pulls new messages from the mail source, stores them
// idempotently and advances each mailbox's cursor. Per-mailbox failures are
// logged and isolated; they never abort the scan.
type FetchWorker struct {
	cfg       config.FetchConfig
	mailboxes MailboxStore
	messages  MessageStore
	source    mailsource.Source
	metrics   *metrics.Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	lastRun   time.Time
}

func NewFetchWorker(cfg config.FetchConfig, mailboxes MailboxStore, messages MessageStore, source mailsource.Source, m *metrics.Metrics) *FetchWorker {
	return &FetchWorker{
		cfg:       cfg,
		mailboxes: mailboxes,
		messages:  messages,
		source:    source,
		metrics:   m,
	}
}

// Start launches the polling loop.
func (w *FetchWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("fetch worker is already running")
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.isRunning = true

	w.wg.Add(1)
	go w.run()

	logrus.Infof("Fetch worker started with sleep interval: %ds", w.cfg.SleepSeconds)
	return nil
}

// Stop signals the loop to exit. In-flight mailbox work finishes cleanly.
func (w *FetchWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}

	w.cancel()
	w.isRunning = false
	return nil
}

// Wait blocks until the loop goroutine has exited.
func (w *FetchWorker) Wait() {
	w.wg.Wait()
}

// IsRunning returns whether the worker is running
func (w *FetchWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// LastRun returns the start time of the most recent scan.
func (w *FetchWorker) LastRun() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRun
}

func (w *FetchWorker) run() {
	defer w.wg.Done()

	logrus.Info("Fetch worker loop started")

	sleep := time.Duration(w.cfg.SleepSeconds) * time.Second
	for {
		w.ScanOnce(w.ctx)

		select {
		case <-w.ctx.Done():
			logrus.Info("Fetch worker loop stopped")
			return
		case <-time.After(sleep):
		}
	}
}

// ScanOnce runs one scan over all due mailboxes. Exported for the manual
// trigger endpoint and tests.
func (w *FetchWorker) ScanOnce(ctx context.Context) {
	w.mu.Lock()
	w.lastRun = time.Now()
	w.mu.Unlock()

	w.metrics.FetchCycles.Inc()

	now := time.Now().UTC()
	due, err := w.mailboxes.ListDueForPolling(ctx, now)
	if err != nil {
		// Store unreachable is a loop-level error: log and let the normal
		// sleep-and-retry cadence handle it.
		logrus.Errorf("Failed to list due mailboxes: %v", err)
		return
	}

	for _, mb := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log := logrus.WithFields(logrus.Fields{
			"mailbox_id": mb.ID,
			"tenant_id":  mb.TenantID,
			"address":    mb.Address,
		})

		count, err := w.fetchMailbox(ctx, mb, log)
		if err != nil {
			w.metrics.FetchFailures.Inc()
			log.Errorf("Fetch failed: %v", err)
			continue
		}
		log.Infof("Fetched %d new messages", count)
	}
}

// fetchMailbox runs the per-mailbox state machine: prime if the cursor is
// empty, otherwise list since the cursor, dedup, stage, commit, advance.
func (w *FetchWorker) fetchMailbox(ctx context.Context, mb model.Mailbox, log *logrus.Entry) (int, error) {
	if mb.Cursor == "" {
		return 0, w.prime(ctx, mb, log)
	}

	inbound, newCursor, err := w.source.ListSince(ctx, mb, mb.Cursor)
	if errors.Is(err, mailsource.ErrCursorExpired) {
		w.metrics.CursorResets.Inc()
		log.Warnf("Cursor expired, re-priming: %v", err)
		return 0, w.prime(ctx, mb, log)
	}
	if err != nil {
		return 0, err
	}

	staged := make([]model.Message, 0, len(inbound))
	for _, im := range inbound {
		exists, err := w.messages.Exists(ctx, mb.ID, im.ExternalID)
		if err != nil {
			return 0, fmt.Errorf("dedup check failed for %s: %w", im.ExternalID, err)
		}
		if exists {
			log.Debugf("Message %s already ingested, skipping", im.ExternalID)
			continue
		}
		staged = append(staged, stageMessage(mb, im))
	}

	// Insert before advancing the cursor: a crash in between re-fetches the
	// same messages next cycle and the unique constraint dedups them.
	if err := w.messages.CreateBatch(ctx, staged); err != nil {
		return 0, err
	}
	w.metrics.MessagesIngested.Add(float64(len(staged)))

	if newCursor == "" {
		newCursor = mb.Cursor
	}
	if err := w.mailboxes.AdvanceCursor(ctx, mb.ID, newCursor, time.Now().UTC()); err != nil {
		return len(staged), err
	}

	return len(staged), nil
}

// prime establishes a baseline cursor without ingesting any historical mail.
func (w *FetchWorker) prime(ctx context.Context, mb model.Mailbox, log *logrus.Entry) error {
	cursor, err := w.source.BaselineCursor(ctx, mb)
	if err != nil {
		return fmt.Errorf("baseline cursor failed: %w", err)
	}
	if err := w.mailboxes.AdvanceCursor(ctx, mb.ID, cursor, time.Now().UTC()); err != nil {
		return err
	}
	w.metrics.MailboxesPrimed.Inc()
	log.Infof("Primed cursor to %s", cursor)
	return nil
}

func stageMessage(mb model.Mailbox, im mailsource.InboundMessage) model.Message {
	received := im.ReceivedAt
	if received.IsZero() {
		received = time.Now().UTC()
	}
	return model.Message{
		TenantID:          mb.TenantID,
		MailboxID:         mb.ID,
		ExternalMessageID: im.ExternalID,
		ThreadID:          im.ThreadID,
		From:              im.From,
		To:                im.To,
		Subject:           im.Subject,
		Snippet:           im.Snippet,
		BodyText:          im.BodyText,
		ReceivedAt:        received,
		RouteStatus:       model.StatusNew,
	}
}
