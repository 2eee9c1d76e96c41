package app

import (
	"context"
	"fmt"
	"time"

	"cobrancazap/internal/domain/notification"
)

// Status is the snapshot shown on the admin surfaces.
type Status struct {
	State    notification.EngineState
	Paused   bool
	Settings notification.ThrottleSettings
	LastRun  *notification.Run
}

// AdminService is the administrator surface over the registry, the
// coordinator and the run history. Transports authenticate callers before
// using it; Authorize covers the Telegram admin id check.
type AdminService struct {
	registry        *RuleRegistry
	coordinator     *Coordinator
	history         notification.HistoryStore
	adminTelegramID int64
	now             func() time.Time
}

func NewAdminService(registry *RuleRegistry, coordinator *Coordinator, history notification.HistoryStore, adminID int64) *AdminService {
	return &AdminService{
		registry:        registry,
		coordinator:     coordinator,
		history:         history,
		adminTelegramID: adminID,
		now:             time.Now,
	}
}

func (s *AdminService) Authorize(performingAdminID int64) error {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

func (s *AdminService) ListRules(ctx context.Context) ([]notification.Rule, error) {
	return s.registry.List(ctx)
}

func (s *AdminService) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (*notification.Rule, error) {
	return s.registry.SetEnabled(ctx, ruleID, enabled)
}

func (s *AdminService) SetLeadDays(ctx context.Context, ruleID string, days int) (*notification.Rule, error) {
	return s.registry.SetLeadDays(ctx, ruleID, days)
}

func (s *AdminService) SetAntiSpam(enabled bool) notification.ThrottleSettings {
	return s.registry.SetAntiSpam(enabled)
}

func (s *AdminService) SetCooldownDays(days int) (notification.ThrottleSettings, error) {
	return s.registry.SetCooldownDays(days)
}

// RunNow starts a manual run, for one rule when ruleID is set.
func (s *AdminService) RunNow(ctx context.Context, ruleID string) (notification.Run, error) {
	if ruleID == "" {
		return s.coordinator.RunOnce(ctx, s.now(), notification.TriggerManual)
	}
	return s.coordinator.RunRule(ctx, ruleID, s.now(), notification.TriggerManual)
}

func (s *AdminService) Pause() notification.EngineState {
	return s.coordinator.Pause()
}

func (s *AdminService) Resume() notification.EngineState {
	return s.coordinator.Resume()
}

func (s *AdminService) Status() Status {
	st := Status{
		State:    s.coordinator.State(),
		Paused:   s.coordinator.Paused(),
		Settings: s.registry.Settings(),
	}
	if run, ok := s.coordinator.LastRun(); ok {
		st.LastRun = &run
	}
	return st
}

func (s *AdminService) RecentRuns(ctx context.Context, limit int) ([]notification.Run, error) {
	runs, err := s.history.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// History drains a filtered history query. Limit defaults to 100.
func (s *AdminService) History(ctx context.Context, filter notification.HistoryFilter) ([]notification.Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	out := make([]notification.Record, 0, filter.Limit)
	for rec, err := range s.history.Query(ctx, filter) {
		if err != nil {
			return nil, fmt.Errorf("failed to query history: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
