package notification

import "time"

// Record is one append-only entry of the run history: a single dispatch
// attempt for a (charge, rule) pair.
type Record struct {
	ID       string
	RunID    string
	ChargeID string
	RuleID   string
	SentAt   time.Time
	Outcome  Outcome
	Error    string // sender or render failure, empty otherwise
}

// HistoryFilter narrows a history query. Zero values match everything.
type HistoryFilter struct {
	ChargeID string
	RuleID   string
	Outcome  Outcome
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Match reports whether r satisfies the filter (Limit is not considered).
func (f HistoryFilter) Match(r Record) bool {
	if f.ChargeID != "" && r.ChargeID != f.ChargeID {
		return false
	}
	if f.RuleID != "" && r.RuleID != f.RuleID {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && r.SentAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.SentAt.Before(f.Until) {
		return false
	}
	return true
}
