// internal/app/coordinator.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"
	"cobrancazap/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// RuleProvider is the registry view the coordinator needs.
type RuleProvider interface {
	ListEnabledRules(ctx context.Context) ([]notification.Rule, error)
	Get(ctx context.Context, id string) (*notification.Rule, error)
	Settings() notification.ThrottleSettings
}

// BusyPolicy decides what happens when a run is requested while another is in flight.
type BusyPolicy int

const (
	BusyDefault BusyPolicy = iota // use the coordinator's configured policy
	BusyReject                    // fail fast with ErrBusy
	BusyWait                      // block until the running pass finishes or ctx ends
)

// ParseBusyPolicy accepts "reject" or "wait".
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch s {
	case "reject", "":
		return BusyReject, nil
	case "wait", "queue":
		return BusyWait, nil
	}
	return BusyDefault, fmt.Errorf("unknown busy policy %q", s)
}

type CoordinatorConfig struct {
	Concurrency   int // parallel sends within one run
	RatePerSecond int // send rate limit, <= 0 disables it
	Busy          BusyPolicy
}

// RunRequest selects what a run evaluates. Empty RuleIDs means every enabled
// rule; empty ChargeIDs means the whole ledger.
type RunRequest struct {
	Now           time.Time
	Trigger       notification.Trigger
	RuleIDs       []string
	ChargeIDs     []string // an event run only concerns the charges it names
	ImmediateOnly bool     // restrict to rules fired by external events
	Busy          BusyPolicy
}

// Coordinator runs evaluation, throttling, sending and recording as one pass.
// At most one pass runs at a time across the process.
type Coordinator struct {
	rules     RuleProvider
	charges   billing.ChargeSource
	evaluator *TriggerEvaluator
	history   notification.HistoryStore
	renderer  notification.Renderer
	sender    notification.Sender
	logger    *logrus.Entry

	limiter     *rate.Limiter
	concurrency int
	busy        BusyPolicy
	slot        chan struct{}
	newID       func() string

	mu      sync.Mutex
	paused  bool
	running bool
	lastRun *notification.Run
}

func NewCoordinator(
	rules RuleProvider,
	charges billing.ChargeSource,
	evaluator *TriggerEvaluator,
	history notification.HistoryStore,
	renderer notification.Renderer,
	sender notification.Sender,
	logger *logrus.Entry,
	cfg CoordinatorConfig,
) *Coordinator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond)
	}
	busy := cfg.Busy
	if busy == BusyDefault {
		busy = BusyReject
	}
	return &Coordinator{
		rules:       rules,
		charges:     charges,
		evaluator:   evaluator,
		history:     history,
		renderer:    renderer,
		sender:      sender,
		logger:      logger,
		limiter:     limiter,
		concurrency: concurrency,
		busy:        busy,
		slot:        make(chan struct{}, 1),
		newID:       uuid.NewString,
	}
}

// RunOnce evaluates every enabled rule.
func (c *Coordinator) RunOnce(ctx context.Context, now time.Time, trigger notification.Trigger) (notification.Run, error) {
	return c.Run(ctx, RunRequest{Now: now, Trigger: trigger})
}

// RunRule is the manual "run now" for a single rule.
func (c *Coordinator) RunRule(ctx context.Context, ruleID string, now time.Time, trigger notification.Trigger) (notification.Run, error) {
	if _, err := c.rules.Get(ctx, ruleID); err != nil {
		return notification.Run{}, err
	}
	return c.Run(ctx, RunRequest{Now: now, Trigger: trigger, RuleIDs: []string{ruleID}})
}

// Run executes one pass. Sender failures are counted in the returned run;
// the error is only set when the pass could not start or aborted on storage.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) (notification.Run, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	if req.Trigger == "" {
		req.Trigger = notification.TriggerManual
	}
	logCtx := c.logger.WithFields(logrus.Fields{"trigger": req.Trigger, "rule_ids": req.RuleIDs})
	if len(req.ChargeIDs) > 0 {
		logCtx = logCtx.WithField("charge_ids", req.ChargeIDs)
	}

	if req.Trigger != notification.TriggerManual && c.isPaused() {
		metrics.RunsTotal.WithLabelValues(string(req.Trigger), "paused").Inc()
		return notification.Run{}, ErrPaused
	}

	policy := req.Busy
	if policy == BusyDefault {
		policy = c.busy
	}
	if err := c.acquire(ctx, policy); err != nil {
		logCtx.WithError(err).Warn("Run not started")
		metrics.RunsTotal.WithLabelValues(string(req.Trigger), "busy").Inc()
		return notification.Run{}, err
	}
	defer c.release()

	// A waiting automatic run may have been queued before a pause.
	if req.Trigger != notification.TriggerManual && c.isPaused() {
		metrics.RunsTotal.WithLabelValues(string(req.Trigger), "paused").Inc()
		return notification.Run{}, ErrPaused
	}

	c.setRunning(true)
	defer c.setRunning(false)

	wallStart := time.Now()
	run := notification.Run{
		ID:        c.newID(),
		Trigger:   req.Trigger,
		RuleIDs:   req.RuleIDs,
		StartedAt: req.Now,
	}
	logCtx = logCtx.WithField("run_id", run.ID)
	logCtx.Info("Run started")

	err := c.execute(ctx, req, &run)
	elapsed := time.Since(wallStart)
	run.FinishedAt = req.Now.Add(elapsed)
	if err != nil {
		run.Error = err.Error()
	}

	if saveErr := c.history.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
		logCtx.WithError(saveErr).Error("Failed to persist run record")
		if err == nil {
			err = fmt.Errorf("%w: save run %s: %v", ErrStorage, run.ID, saveErr)
			run.Error = err.Error()
		}
	}

	c.mu.Lock()
	last := run
	c.lastRun = &last
	c.mu.Unlock()

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RunsTotal.WithLabelValues(string(req.Trigger), result).Inc()
	metrics.RunDuration.WithLabelValues(string(req.Trigger)).Observe(elapsed.Seconds())

	fields := logrus.Fields{
		"attempted":  run.Attempted,
		"sent":       run.Sent,
		"failed":     run.Failed,
		"suppressed": run.Suppressed,
		"duration":   elapsed.String(),
	}
	if err != nil {
		logCtx.WithFields(fields).WithError(err).Error("Run aborted")
	} else {
		logCtx.WithFields(fields).Info("Run finished")
	}
	return run, err
}

func (c *Coordinator) execute(ctx context.Context, req RunRequest, run *notification.Run) error {
	rules, err := c.rules.ListEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	rules = selectRules(rules, req)
	if len(rules) == 0 {
		return nil
	}

	charges, err := c.charges.ListCharges(ctx)
	if err != nil {
		return fmt.Errorf("failed to list charges: %w", err)
	}
	charges = selectCharges(charges, req.ChargeIDs)

	candidates := c.evaluator.Evaluate(rules, charges, req.Now)
	run.Attempted = len(candidates)
	if len(candidates) == 0 {
		return nil
	}
	settings := c.rules.Settings()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, cand := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := c.dispatch(gctx, run.ID, cand, settings, req.Now)
			if err != nil {
				return err
			}
			mu.Lock()
			switch outcome {
			case notification.OutcomeSent:
				run.Sent++
			case notification.OutcomeFailed:
				run.Failed++
			case notification.OutcomeSuppressed:
				run.Suppressed++
			}
			mu.Unlock()
			metrics.NotificationsTotal.WithLabelValues(cand.Rule.ID, string(outcome)).Inc()
			return nil
		})
	}
	return g.Wait()
}

// dispatch handles one candidate pair and appends exactly one record for it.
// A returned error aborts the run.
func (c *Coordinator) dispatch(ctx context.Context, runID string, cand Candidate, settings notification.ThrottleSettings, now time.Time) (notification.Outcome, error) {
	logCtx := c.logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"charge_id": cand.Charge.ID,
		"rule_id":   cand.Rule.ID,
	})

	allowed, err := IsAllowed(ctx, cand.Charge, cand.Rule, c.history, settings, now)
	if err != nil {
		return "", err
	}
	rec := notification.Record{
		ID:       c.newID(),
		RunID:    runID,
		ChargeID: cand.Charge.ID,
		RuleID:   cand.Rule.ID,
		SentAt:   now,
	}

	if !allowed {
		rec.Outcome = notification.OutcomeSuppressed
		logCtx.Debug("Suppressed by anti-spam cooldown")
	} else {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		rec.Outcome = c.deliver(ctx, cand, &rec, now)
		if rec.Outcome == notification.OutcomeFailed {
			logCtx.WithField("error", rec.Error).Warn("Notification failed")
		} else {
			logCtx.Debug("Notification sent")
		}
	}

	// Once the sender has answered the record must land even if a sibling
	// pair has already cancelled the run.
	if err := c.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		return "", fmt.Errorf("%w: append record for charge %s rule %s: %v", ErrStorage, rec.ChargeID, rec.RuleID, err)
	}
	return rec.Outcome, nil
}

func (c *Coordinator) deliver(ctx context.Context, cand Candidate, rec *notification.Record, now time.Time) notification.Outcome {
	msg, err := c.renderer.Render(ctx, TemplateIDFor(cand.Rule), cand.Charge, now)
	if err != nil {
		rec.Error = "render: " + err.Error()
		return notification.OutcomeFailed
	}
	if err := c.sender.Send(ctx, cand.Charge, cand.Rule, msg); err != nil {
		rec.Error = err.Error()
		return notification.OutcomeFailed
	}
	return notification.OutcomeSent
}

func selectRules(rules []notification.Rule, req RunRequest) []notification.Rule {
	if len(req.RuleIDs) == 0 && !req.ImmediateOnly {
		return rules
	}
	wanted := make(map[string]bool, len(req.RuleIDs))
	for _, id := range req.RuleIDs {
		wanted[id] = true
	}
	out := make([]notification.Rule, 0, len(rules))
	for _, r := range rules {
		if len(wanted) > 0 && !wanted[r.ID] {
			continue
		}
		if req.ImmediateOnly && !r.ScheduleTime.Immediate {
			continue
		}
		out = append(out, r)
	}
	return out
}

func selectCharges(charges []billing.Charge, ids []string) []billing.Charge {
	if len(ids) == 0 {
		return charges
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]billing.Charge, 0, len(ids))
	for _, ch := range charges {
		if wanted[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}

func (c *Coordinator) acquire(ctx context.Context, policy BusyPolicy) error {
	if policy != BusyWait {
		select {
		case c.slot <- struct{}{}:
			return nil
		default:
			return ErrBusy
		}
	}
	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (c *Coordinator) release() {
	<-c.slot
}

func (c *Coordinator) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

func (c *Coordinator) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Pause stops scheduled and event-driven runs from starting. A run already in
// progress finishes normally.
func (c *Coordinator) Pause() notification.EngineState {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.logger.Info("Scheduler paused")
	return c.State()
}

func (c *Coordinator) Resume() notification.EngineState {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.logger.Info("Scheduler resumed")
	return c.State()
}

// State reports Running while a pass is in flight, otherwise Paused or Idle.
func (c *Coordinator) State() notification.EngineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.running:
		return notification.StateRunning
	case c.paused:
		return notification.StatePaused
	default:
		return notification.StateIdle
	}
}

// Paused reports whether automatic runs are blocked, independent of whether
// a pass is currently running.
func (c *Coordinator) Paused() bool {
	return c.isPaused()
}

// LastRun returns the most recent finished run of this process, if any.
func (c *Coordinator) LastRun() (notification.Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRun == nil {
		return notification.Run{}, false
	}
	return *c.lastRun, true
}

// IsBusy is a convenience for transports translating errors.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
