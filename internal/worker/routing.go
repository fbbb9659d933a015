package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inteliroute/internal/classifier"
	"inteliroute/internal/config"
	"inteliroute/internal/forwarder"
	"inteliroute/internal/metrics"
	"inteliroute/internal/model"
)

// triageNoTarget takes precedence over the below-confidence reason when both hold.
const triageNoTarget = "Target department disabled or missing routing email."

// RoutingWorker is the classification/dispatch loop: it pulls bounded
// batches of pending messages, predicts a department for each, applies the
// fallback policy and either forwards the message or flags it for triage.
// One message's failure never aborts the batch.
type RoutingWorker struct {
	cfg        config.RoutingConfig
	clsCfg     config.ClassifierConfig
	messages   MessageStore
	deps       DepartmentStore
	events     RouteEventStore
	classifier classifier.Classifier
	forwarder  forwarder.Forwarder
	metrics    *metrics.Metrics

	// canonical is the configured allow-list of valid routing-target names,
	// keyed by normalized (lowercase, trimmed) name.
	canonical map[string]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	lastRun   time.Time
}

func NewRoutingWorker(
	cfg config.RoutingConfig,
	clsCfg config.ClassifierConfig,
	messages MessageStore,
	deps DepartmentStore,
	events RouteEventStore,
	cls classifier.Classifier,
	fwd forwarder.Forwarder,
	m *metrics.Metrics,
) *RoutingWorker {
	canonical := make(map[string]struct{}, len(cfg.CanonicalDepartments))
	for _, name := range cfg.CanonicalDepartments {
		canonical[normalizeName(name)] = struct{}{}
	}

	return &RoutingWorker{
		cfg:        cfg,
		clsCfg:     clsCfg,
		messages:   messages,
		deps:       deps,
		events:     events,
		classifier: cls,
		forwarder:  fwd,
		metrics:    m,
		canonical:  canonical,
	}
}

// Start launches the routing loop.
func (w *RoutingWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("routing worker is already running")
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.isRunning = true

	w.wg.Add(1)
	go w.run()

	logrus.Infof("Routing worker started with batch size %d, sleep interval %ds",
		w.cfg.BatchSize, w.cfg.SleepSeconds)
	return nil
}

// Stop signals the loop to exit. The in-flight message is allowed to finish.
func (w *RoutingWorker) Stop() error {
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
func (w *RoutingWorker) Wait() {
	w.wg.Wait()
}

// IsRunning returns whether the worker is running
func (w *RoutingWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// LastRun returns the start time of the most recent batch.
func (w *RoutingWorker) LastRun() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRun
}

func (w *RoutingWorker) run() {
	defer w.wg.Done()

	logrus.Info("Routing worker loop started")

	sleep := time.Duration(w.cfg.SleepSeconds) * time.Second
	for {
		w.ProcessBatch(w.ctx)

		select {
		case <-w.ctx.Done():
			logrus.Info("Routing worker loop stopped")
			return
		case <-time.After(sleep):
		}
	}
}

// ProcessBatch routes one bounded batch of pending messages. Exported for
// the manual trigger endpoint and tests.
func (w *RoutingWorker) ProcessBatch(ctx context.Context) {
	w.mu.Lock()
	w.lastRun = time.Now()
	w.mu.Unlock()

	batch, err := w.messages.ListPending(ctx, w.cfg.BatchSize)
	if err != nil {
		logrus.Errorf("Failed to list pending messages: %v", err)
		return
	}
	if len(batch) == 0 {
		logrus.Debug("No messages pending routing")
		return
	}

	logrus.Infof("Routing batch size: %d", len(batch))

	for i := range batch {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.routeMessage(ctx, &batch[i])
	}
}

// routeMessage processes one message to a terminal status. Errors and panics
// mark the message Failed; they never propagate.
func (w *RoutingWorker) routeMessage(ctx context.Context, msg *model.Message) {
	log := logrus.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"tenant_id":  msg.TenantID,
		"mailbox_id": msg.MailboxID,
	})

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while routing: %v", r)
			}
		}()
		return w.routeOne(ctx, msg, log)
	}()

	if err != nil {
		errText := err.Error()
		msg.RouteStatus = model.StatusFailed
		msg.ErrorMessage = &errText

		if uerr := w.messages.Update(ctx, msg); uerr != nil {
			log.Errorf("Failed to persist failure state: %v", uerr)
		}
		w.appendEvent(ctx, msg, nil, model.ActionSendToTriage, model.OutcomeFailed, errText, log)
		w.metrics.MessagesFailed.Inc()
		log.Errorf("Routing failed: %v", err)
	}
}

// routeOne implements the decision algorithm for a single message.
func (w *RoutingWorker) routeOne(ctx context.Context, msg *model.Message, log *logrus.Entry) error {
	// 1) tenant's enabled departments, clamped to the canonical set, with a
	// synthetic "Other" always considered present for the classifier.
	rows, err := w.deps.ListByTenant(ctx, msg.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load departments: %w", err)
	}

	allowed := w.allowedNames(rows)

	log.WithFields(logrus.Fields{
		"enabled":        strings.Join(allowed, ", "),
		"min_confidence": w.clsCfg.MinConfidence,
		"use_rules":      w.clsCfg.UseRules,
	}).Debug("Calling classifier")

	// 2) classify, preferring the body and falling back to the snippet.
	bodyText := msg.BodyText
	if bodyText == "" {
		bodyText = msg.Snippet
	}

	start := time.Now()
	pred, err := w.classifier.Predict(ctx, msg.Subject, bodyText, allowed, w.clsCfg.UseRules, w.clsCfg.MinConfidence)
	w.metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("classifier call failed: %w", err)
	}

	label := strings.TrimSpace(pred.Department)
	if label == "" {
		label = "Other"
	}
	prob := 0.0
	if pred.Prob != nil {
		prob = *pred.Prob
	}

	log.Infof("Prediction: %s (prob=%.2f)", label, prob)

	// 3) resolve label to an enabled department, case-insensitive.
	target := findEnabled(rows, label)

	// 4a) fall back to "Other" when the predicted department isn't enabled.
	if target == nil {
		if other := findEnabled(rows, "Other"); other != nil {
			log.Warnf("Fallback to Other (label %q not enabled)", label)
			label = "Other"
			target = other
		}
	}

	// 4b) single-department fallback: exactly one enabled non-Other
	// department with a routing address takes everything unresolved.
	if target == nil {
		if single := singleRealDepartment(rows); single != nil {
			target = single
			label = single.Name
			log.Infof("Single-department fallback: routing to %s", label)
		}
	}

	// 5) routing is permitted only with a resolved target, a non-empty
	// address and sufficient confidence. The stored label reflects the
	// post-fallback decision; the stored confidence is the raw prediction.
	canRoute := target != nil &&
		strings.TrimSpace(target.RoutingEmail) != "" &&
		prob >= w.clsCfg.MinConfidence

	msg.PredictedLabel = &label
	msg.Confidence = pred.Prob

	if canRoute {
		return w.forward(ctx, msg, target, bodyText, log)
	}
	return w.triage(ctx, msg, target, prob, log)
}

// forward sends the message to the resolved department and marks it Routed.
func (w *RoutingWorker) forward(ctx context.Context, msg *model.Message, target *model.Department, bodyText string, log *logrus.Entry) error {
	subject := fmt.Sprintf("%s %s", w.cfg.SubjectPrefix, msg.Subject)
	body := fmt.Sprintf("From: %s\nTo: %s\nReceived: %s\n\n%s",
		msg.From, msg.To, msg.ReceivedAt.UTC().Format("2006-01-02 15:04:05Z"), bodyText)

	log.Infof("Routing to %s (department_id=%d)", target.RoutingEmail, target.ID)

	if err := w.forwarder.Send(ctx, target.RoutingEmail, subject, body); err != nil {
		return fmt.Errorf("forward to %s failed: %w", target.RoutingEmail, err)
	}

	msg.RouteStatus = model.StatusRouted
	msg.RoutedDeptID = &target.ID
	routedEmail := target.RoutingEmail
	msg.RoutedEmail = &routedEmail
	msg.ErrorMessage = nil

	if err := w.messages.Update(ctx, msg); err != nil {
		return err
	}

	w.appendEvent(ctx, msg, &target.ID, model.ActionRouteToDepartment, model.OutcomeApplied, target.RoutingEmail, log)
	w.metrics.MessagesRouted.Inc()
	log.Info("Routing succeeded")
	return nil
}

// triage marks the message for manual attention with a reason. Routing
// fields are cleared so no half-resolved destination is ever shown.
func (w *RoutingWorker) triage(ctx context.Context, msg *model.Message, target *model.Department, prob float64, log *logrus.Entry) error {
	msg.RouteStatus = model.StatusTriage
	msg.RoutedDeptID = nil
	msg.RoutedEmail = nil

	var reason string
	switch {
	case target == nil || strings.TrimSpace(target.RoutingEmail) == "":
		reason = triageNoTarget
		log.Warnf("Triaged: target disabled or missing routing email (label=%s)", deref(msg.PredictedLabel))
	case prob < w.clsCfg.MinConfidence:
		reason = fmt.Sprintf("Below confidence threshold (%.2f < %.2f).", prob, w.clsCfg.MinConfidence)
		log.Warnf("Triaged: below confidence threshold (%.2f < %.2f)", prob, w.clsCfg.MinConfidence)
	default:
		log.Warn("Triaged: unspecified condition")
	}
	if reason != "" {
		msg.ErrorMessage = &reason
	}

	if err := w.messages.Update(ctx, msg); err != nil {
		return err
	}

	w.appendEvent(ctx, msg, nil, model.ActionSendToTriage, model.OutcomeApplied, reason, log)
	w.metrics.MessagesTriaged.Inc()
	return nil
}

// appendEvent records the attempt outcome; audit failures are logged only.
func (w *RoutingWorker) appendEvent(ctx context.Context, msg *model.Message, deptID *uint, action, outcome, notes string, log *logrus.Entry) {
	ev := &model.RouteEvent{
		MessageID:    msg.ID,
		DepartmentID: deptID,
		Action:       action,
		Outcome:      outcome,
		Notes:        notes,
	}
	if err := w.events.Append(ctx, ev); err != nil {
		log.Errorf("Failed to append route event: %v", err)
	}
}

// allowedNames builds the classifier's allow-list from the tenant's enabled
// departments: trimmed, "Other" guaranteed present, clamped to the canonical
// set, deduplicated case-insensitively.
func (w *RoutingWorker) allowedNames(rows []model.Department) []string {
	names := make([]string, 0, len(rows)+1)
	for _, d := range rows {
		if d.Enabled {
			names = append(names, strings.TrimSpace(d.Name))
		}
	}

	hasOther := false
	for _, n := range names {
		if strings.EqualFold(n, "Other") {
			hasOther = true
			break
		}
	}
	if !hasOther {
		names = append(names, "Other")
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := normalizeName(n)
		if _, canonical := w.canonical[key]; !canonical {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// findEnabled returns the first enabled department matching the name
// case-insensitively, or nil.
func findEnabled(rows []model.Department, name string) *model.Department {
	for i := range rows {
		if rows[i].Enabled && strings.EqualFold(strings.TrimSpace(rows[i].Name), strings.TrimSpace(name)) {
			return &rows[i]
		}
	}
	return nil
}

// singleRealDepartment returns the tenant's only enabled non-Other
// department with a routing address, or nil if there is not exactly one.
func singleRealDepartment(rows []model.Department) *model.Department {
	var found *model.Department
	for i := range rows {
		d := &rows[i]
		if !d.Enabled || strings.EqualFold(d.Name, "Other") || strings.TrimSpace(d.RoutingEmail) == "" {
			continue
		}
		if found != nil {
			return nil
		}
		found = d
	}
	return found
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
