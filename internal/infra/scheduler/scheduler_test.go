package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"cobrancazap/internal/app"
	"cobrancazap/internal/domain/notification"
	"cobrancazap/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu   sync.Mutex
	reqs []app.RunRequest
	err  error
}

func (r *recordingRunner) Run(_ context.Context, req app.RunRequest) (notification.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return notification.Run{}, r.err
}

type staticRules []notification.Rule

func (s staticRules) List(context.Context) ([]notification.Rule, error) { return s, nil }

func TestSlotsGroupsRulesByTime(t *testing.T) {
	got := slots(app.DefaultRules(3))

	assert.Equal(t, map[string][]string{
		"0 8 * * *": {"aviso_previo", "vence_hoje"},
		"0 9 * * *": {"vencidas"},
	}, got)
}

func TestTickRunsSlotAsScheduledTrigger(t *testing.T) {
	runner := &recordingRunner{}
	loc := time.FixedZone("BRT", -3*3600)
	s := NewNotificationScheduler(runner, staticRules(nil), logger.Discard(), loc, time.Minute)
	fixed := time.Date(2025, 12, 5, 11, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.tick([]string{"vence_hoje", "aviso_previo"})

	require.Len(t, runner.reqs, 1)
	req := runner.reqs[0]
	assert.Equal(t, notification.TriggerScheduled, req.Trigger)
	assert.Equal(t, []string{"vence_hoje", "aviso_previo"}, req.RuleIDs)
	assert.Equal(t, loc, req.Now.Location())
	assert.True(t, req.Now.Equal(fixed))
}

func TestTickToleratesBusyAndPaused(t *testing.T) {
	for _, err := range []error{app.ErrBusy, app.ErrPaused} {
		runner := &recordingRunner{err: err}
		s := NewNotificationScheduler(runner, staticRules(nil), logger.Discard(), time.UTC, time.Minute)
		assert.NotPanics(t, func() { s.tick([]string{"vencidas"}) })
	}
}

func TestStartRegistersOneEntryPerSlot(t *testing.T) {
	s := NewNotificationScheduler(&recordingRunner{}, staticRules(app.DefaultRules(3)), logger.Discard(), time.UTC, time.Minute)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 2, s.slotCount())
	assert.Len(t, s.cronEngine.Entries(), 3, "two slots plus the refresh job")
	_, ok := s.NextRun()
	assert.True(t, ok)
}

type mutableRules struct {
	mu    sync.Mutex
	rules []notification.Rule
}

func (m *mutableRules) List(context.Context) ([]notification.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Rule(nil), m.rules...), nil
}

func (m *mutableRules) set(rules ...notification.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}

func TestReloadFollowsRuleScheduleChanges(t *testing.T) {
	rules := &mutableRules{}
	rules.set(app.DefaultRules(3)...)
	s := NewNotificationScheduler(&recordingRunner{}, rules, logger.Discard(), time.UTC, time.Minute)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.Equal(t, 2, s.slotCount())
	before := s.entries["0 8 * * *"].id

	moved := app.DefaultRules(3)
	for i := range moved {
		if moved[i].ID == "vencidas" {
			moved[i].ScheduleTime = notification.DailyAt(14, 30)
		}
	}
	rules.set(moved...)
	require.NoError(t, s.Reload(context.Background()))

	assert.Equal(t, 2, s.slotCount())
	assert.Contains(t, s.entries, "30 14 * * *")
	assert.NotContains(t, s.entries, "0 9 * * *")
	assert.Equal(t, before, s.entries["0 8 * * *"].id, "unchanged slot keeps its entry")
	assert.Len(t, s.cronEngine.Entries(), 3)

	rules.set(moved[2])
	require.NoError(t, s.Reload(context.Background()))
	assert.Zero(t, s.slotCount())
	_, ok := s.NextRun()
	assert.False(t, ok)
}
