// internal/domain/notification/repository.go
package notification

import (
	"context"
	"iter"
	"time"

	"cobrancazap/internal/domain/billing"
)

// RuleRepository persists notification rules.
type RuleRepository interface {
	List(ctx context.Context) ([]Rule, error)
	Get(ctx context.Context, id string) (*Rule, error)
	Save(ctx context.Context, rule *Rule) error // insert or update by ID
}

// HistoryStore is the append-only run history shared by the throttle,
// the coordinator and reporting.
type HistoryStore interface {
	Append(ctx context.Context, rec Record) error
	// LastSentFor returns the most recent Sent record for the pair, or nil.
	LastSentFor(ctx context.Context, chargeID, ruleID string) (*Record, error)
	// Query yields matching records, newest first. Ranging over the returned
	// sequence again re-runs the query.
	Query(ctx context.Context, filter HistoryFilter) iter.Seq2[Record, error]

	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Sender delivers a rendered message for a charge. A nil error means the
// transport confirmed delivery.
type Sender interface {
	Send(ctx context.Context, charge billing.Charge, rule Rule, message string) error
}

// Renderer produces the message body for a charge from a template.
type Renderer interface {
	Render(ctx context.Context, templateID string, charge billing.Charge, now time.Time) (string, error)
}
