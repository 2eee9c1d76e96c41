// internal/app/rule_registry.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cobrancazap/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

const (
	maxLeadDays     = 30
	maxCooldownDays = 30
)

// DefaultRules are the product's built-in rules, seeded when missing.
func DefaultRules(preDueLeadDays int) []notification.Rule {
	return []notification.Rule{
		{ID: "vence_hoje", Name: "Cobranças que vencem hoje", Kind: notification.KindDueToday, Enabled: true, ScheduleTime: notification.DailyAt(8, 0)},
		{ID: "vencidas", Name: "Cobranças vencidas", Kind: notification.KindOverdue, Enabled: true, ScheduleTime: notification.DailyAt(9, 0)},
		{ID: "agradecimento", Name: "Agradecimento por pagamento", Kind: notification.KindPaymentThanks, Enabled: true, ScheduleTime: notification.Immediate},
		{ID: "aviso_previo", Name: "Aviso prévio de vencimento", Kind: notification.KindPreDueReminder, Enabled: true, ScheduleTime: notification.DailyAt(8, 0), LeadDays: preDueLeadDays},
	}
}

// RuleRegistry owns rule configuration and the global anti-spam settings.
type RuleRegistry struct {
	repo   notification.RuleRepository
	logger *logrus.Entry
	now    func() time.Time

	mu       sync.RWMutex
	settings notification.ThrottleSettings
}

func NewRuleRegistry(repo notification.RuleRepository, settings notification.ThrottleSettings, logger *logrus.Entry) *RuleRegistry {
	return &RuleRegistry{
		repo:     repo,
		logger:   logger,
		now:      time.Now,
		settings: settings,
	}
}

// EnsureDefaults stores any default rule that is not present yet. Existing
// rules are left untouched so admin edits survive restarts.
func (r *RuleRegistry) EnsureDefaults(ctx context.Context, defaults []notification.Rule) error {
	for _, rule := range defaults {
		existing, err := r.repo.Get(ctx, rule.ID)
		if err != nil {
			return fmt.Errorf("failed to look up rule %s: %w", rule.ID, err)
		}
		if existing != nil {
			continue
		}
		rule.UpdatedAt = r.now()
		if err := r.repo.Save(ctx, &rule); err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
		}
		r.logger.WithField("rule_id", rule.ID).Info("Seeded default rule")
	}
	return nil
}

func (r *RuleRegistry) List(ctx context.Context) ([]notification.Rule, error) {
	rules, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

// ListEnabledRules returns only the rules the evaluator should consider.
func (r *RuleRegistry) ListEnabledRules(ctx context.Context) ([]notification.Rule, error) {
	rules, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	enabled := rules[:0]
	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return enabled, nil
}

func (r *RuleRegistry) Get(ctx context.Context, id string) (*notification.Rule, error) {
	rule, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule %s: %w", id, err)
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}
	return rule, nil
}

// SetEnabled toggles a rule. Past history is unaffected; only future
// evaluations change.
func (r *RuleRegistry) SetEnabled(ctx context.Context, id string, enabled bool) (*notification.Rule, error) {
	rule, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rule.Enabled = enabled
	rule.UpdatedAt = r.now()
	if err := r.repo.Save(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save rule %s: %w", id, err)
	}
	r.logger.WithFields(logrus.Fields{"rule_id": id, "enabled": enabled}).Info("Rule toggled")
	return rule, nil
}

func (r *RuleRegistry) SetLeadDays(ctx context.Context, id string, days int) (*notification.Rule, error) {
	if days < 1 || days > maxLeadDays {
		return nil, ErrInvalidLeadDays
	}
	rule, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Kind != notification.KindPreDueReminder {
		return nil, ErrNotLeadDayRule
	}
	rule.LeadDays = days
	rule.UpdatedAt = r.now()
	if err := r.repo.Save(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save rule %s: %w", id, err)
	}
	r.logger.WithFields(logrus.Fields{"rule_id": id, "lead_days": days}).Info("Lead days updated")
	return rule, nil
}

func (r *RuleRegistry) Settings() notification.ThrottleSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

func (r *RuleRegistry) SetAntiSpam(enabled bool) notification.ThrottleSettings {
	r.mu.Lock()
	r.settings.AntiSpamEnabled = enabled
	s := r.settings
	r.mu.Unlock()
	r.logger.WithField("anti_spam", enabled).Info("Anti-spam toggled")
	return s
}

func (r *RuleRegistry) SetCooldownDays(days int) (notification.ThrottleSettings, error) {
	if days < 1 || days > maxCooldownDays {
		return r.Settings(), ErrInvalidCooldown
	}
	r.mu.Lock()
	r.settings.CooldownDays = days
	s := r.settings
	r.mu.Unlock()
	r.logger.WithField("cooldown_days", days).Info("Anti-spam cooldown updated")
	return s, nil
}
