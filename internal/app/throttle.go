package app

import (
	"context"
	"fmt"
	"time"

	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"
)

// SentLookup is the slice of the history store the throttle reads.
type SentLookup interface {
	LastSentFor(ctx context.Context, chargeID, ruleID string) (*notification.Record, error)
}

// IsAllowed applies the anti-spam policy to one candidate pair. Only Overdue
// rules are throttled; everything else is always allowed.
func IsAllowed(ctx context.Context, charge billing.Charge, rule notification.Rule, history SentLookup, settings notification.ThrottleSettings, now time.Time) (bool, error) {
	if !settings.AntiSpamEnabled || !rule.Kind.Throttled() {
		return true, nil
	}
	last, err := history.LastSentFor(ctx, charge.ID, rule.ID)
	if err != nil {
		return false, fmt.Errorf("%w: last sent lookup for charge %s rule %s: %v", ErrStorage, charge.ID, rule.ID, err)
	}
	return allowedSince(last, settings, now), nil
}

// allowedSince is the cooldown check on its own. Elapsed time is counted in
// calendar days in now's location; exactly CooldownDays elapsed is allowed.
func allowedSince(last *notification.Record, settings notification.ThrottleSettings, now time.Time) bool {
	if last == nil {
		return true
	}
	elapsed := billing.DaysBetween(last.SentAt.In(now.Location()), now)
	return elapsed >= settings.CooldownDays
}
