// internal/app/evaluator.go
package app

import (
	"sync"
	"time"

	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// Candidate is a (charge, rule) pair whose trigger condition holds now.
type Candidate struct {
	Charge billing.Charge
	Rule   notification.Rule
}

// Predicate decides whether a Custom rule matches a charge.
type Predicate func(charge billing.Charge, now time.Time) bool

// TriggerEvaluator matches charges against rules. Output order is not part
// of its contract.
type TriggerEvaluator struct {
	logger *logrus.Entry

	mu         sync.RWMutex
	predicates map[string]Predicate // keyed by rule ID
}

func NewTriggerEvaluator(logger *logrus.Entry) *TriggerEvaluator {
	return &TriggerEvaluator{
		logger:     logger,
		predicates: make(map[string]Predicate),
	}
}

// RegisterPredicate installs the matcher for a Custom rule.
func (e *TriggerEvaluator) RegisterPredicate(ruleID string, p Predicate) {
	e.mu.Lock()
	e.predicates[ruleID] = p
	e.mu.Unlock()
}

func (e *TriggerEvaluator) Evaluate(rules []notification.Rule, charges []billing.Charge, now time.Time) []Candidate {
	consistent := make([]billing.Charge, 0, len(charges))
	for _, c := range charges {
		if !c.Consistent(now) {
			e.logger.WithFields(logrus.Fields{"charge_id": c.ID, "status": c.Status}).Warn("Skipping charge with inconsistent ledger state")
			continue
		}
		consistent = append(consistent, c)
	}

	var out []Candidate
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		match := e.matcher(rule)
		if match == nil {
			continue
		}
		for _, c := range consistent {
			if match(c, now) {
				out = append(out, Candidate{Charge: c, Rule: rule})
			}
		}
	}
	return out
}

// matcher returns the matching policy for the rule's kind, or nil when the
// rule can never match.
func (e *TriggerEvaluator) matcher(rule notification.Rule) Predicate {
	switch rule.Kind {
	case notification.KindDueToday:
		return func(c billing.Charge, now time.Time) bool {
			return c.Status == billing.StatusOpen && billing.Day(c.DueDate).Equal(billing.Day(now))
		}
	case notification.KindOverdue:
		// Recurrence is left to the throttle.
		return func(c billing.Charge, _ time.Time) bool {
			return c.Status == billing.StatusOverdue
		}
	case notification.KindPreDueReminder:
		lead := rule.LeadDays
		return func(c billing.Charge, now time.Time) bool {
			return c.Status == billing.StatusOpen && billing.Day(c.DueDate).Equal(billing.Day(now).AddDate(0, 0, lead))
		}
	case notification.KindPaymentThanks:
		return func(c billing.Charge, now time.Time) bool {
			return c.Status == billing.StatusPaidOnTime && c.PaymentDate != nil && billing.Day(*c.PaymentDate).Equal(billing.Day(now))
		}
	case notification.KindCustom:
		e.mu.RLock()
		p := e.predicates[rule.ID]
		e.mu.RUnlock()
		if p == nil {
			e.logger.WithField("rule_id", rule.ID).Debug("Custom rule has no predicate registered")
		}
		return p
	default:
		e.logger.WithFields(logrus.Fields{"rule_id": rule.ID, "kind": rule.Kind}).Warn("Unknown rule kind")
		return nil
	}
}
