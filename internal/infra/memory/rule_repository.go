// Package memory holds mutex-guarded in-memory implementations of the
// repositories, used when no DATABASE_URL is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"cobrancazap/internal/domain/notification"
)

type RuleRepository struct {
	mu    sync.RWMutex
	rules map[string]notification.Rule
}

func NewRuleRepository(rules ...notification.Rule) *RuleRepository {
	r := &RuleRepository{rules: make(map[string]notification.Rule, len(rules))}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *RuleRepository) List(_ context.Context) ([]notification.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]notification.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns nil, nil when the rule does not exist.
func (r *RuleRepository) Get(_ context.Context, id string) (*notification.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (r *RuleRepository) Save(_ context.Context, rule *notification.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = *rule
	return nil
}
