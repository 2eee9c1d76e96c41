package scheduler

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"cobrancazap/internal/app"
	"cobrancazap/internal/domain/notification"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner is the part of the coordinator the scheduler drives.
type Runner interface {
	Run(ctx context.Context, req app.RunRequest) (notification.Run, error)
}

// RuleLister lists rules regardless of their enabled flag.
type RuleLister interface {
	List(ctx context.Context) ([]notification.Rule, error)
}

// NotificationScheduler fires one cron job per daily time slot. Rules that
// share a slot run together in a single pass so they never compete for the
// coordinator's run slot. Disabled rules keep their slot; the evaluator skips them.
// Slots are rebuilt from the rule store every refresh interval.
type NotificationScheduler struct {
	cronEngine *cron.Cron
	runner     Runner
	rules      RuleLister
	logger     *logrus.Entry
	location   *time.Location
	runTimeout time.Duration
	refresh    string
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]slotEntry // by cron spec
}

type slotEntry struct {
	id      cron.EntryID
	ruleIDs []string
}

const defaultRefresh = "@every 5m"

func NewNotificationScheduler(runner Runner, rules RuleLister, logger *logrus.Entry, location *time.Location, runTimeout time.Duration) *NotificationScheduler {
	if location == nil {
		location = time.Local
	}
	return &NotificationScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.Recover(cronLogger{logger})),
			cron.WithLogger(cronLogger{logger}),
		),
		runner:     runner,
		rules:      rules,
		logger:     logger,
		location:   location,
		runTimeout: runTimeout,
		refresh:    defaultRefresh,
		now:        time.Now,
		entries:    make(map[string]slotEntry),
	}
}

// slots groups batch rule ids by cron expression. Immediate rules are absent.
func slots(rules []notification.Rule) map[string][]string {
	out := make(map[string][]string)
	for _, r := range rules {
		spec, ok := r.ScheduleTime.CronSpec()
		if !ok {
			continue
		}
		out[spec] = append(out[spec], r.ID)
	}
	for spec := range out {
		sort.Strings(out[spec])
	}
	return out
}

func (s *NotificationScheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting notification scheduler...")

	if err := s.Reload(ctx); err != nil {
		return err
	}
	if _, err := s.cronEngine.AddFunc(s.refresh, s.refreshSlots); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Notification scheduler started with jobs.")
	return nil
}

// Reload rebuilds the slot jobs from the current rules. Slots whose rule set
// is unchanged keep their entry.
func (s *NotificationScheduler) Reload(ctx context.Context) error {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return err
	}
	want := slots(rules)

	s.mu.Lock()
	defer s.mu.Unlock()

	for spec, e := range s.entries {
		if ids, ok := want[spec]; ok && slices.Equal(ids, e.ruleIDs) {
			continue
		}
		s.cronEngine.Remove(e.id)
		delete(s.entries, spec)
		s.logger.WithFields(logrus.Fields{"cron": spec, "rule_ids": e.ruleIDs}).Info("Removed rule slot")
	}
	for spec, ruleIDs := range want {
		if _, ok := s.entries[spec]; ok {
			continue
		}
		id, err := s.cronEngine.AddFunc(spec, func() { s.tick(ruleIDs) })
		if err != nil {
			return err
		}
		s.entries[spec] = slotEntry{id: id, ruleIDs: ruleIDs}
		s.logger.WithFields(logrus.Fields{"cron": spec, "rule_ids": ruleIDs}).Info("Scheduled rule slot")
	}
	return nil
}

func (s *NotificationScheduler) refreshSlots() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.Reload(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to reload rule slots.")
	}
}

func (s *NotificationScheduler) tick(ruleIDs []string) {
	logCtx := s.logger.WithField("rule_ids", ruleIDs)
	logCtx.Info("Cron job triggered.")

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	_, err := s.runner.Run(ctx, app.RunRequest{
		Now:     s.now().In(s.location),
		Trigger: notification.TriggerScheduled,
		RuleIDs: ruleIDs,
	})
	switch {
	case err == nil:
	case errors.Is(err, app.ErrPaused):
		logCtx.Info("Scheduler paused, tick skipped.")
	case errors.Is(err, app.ErrBusy):
		logCtx.Warn("Another run is in progress, tick skipped.")
	default:
		logCtx.WithError(err).Error("Scheduled run failed.")
	}
}

// Stop prevents new ticks and waits for a running job to return.
func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Notification scheduler gracefully stopped.")
}

// NextRun reports the next slot tick, if any slot is registered.
func (s *NotificationScheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for _, se := range s.entries {
		e := s.cronEngine.Entry(se.id)
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next, !next.IsZero()
}

// slotCount reports how many rule slots are registered.
func (s *NotificationScheduler) slotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}
