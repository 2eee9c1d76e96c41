package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"cobrancazap/internal/domain/notification"
	"cobrancazap/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedSince(t *testing.T) {
	settings := notification.ThrottleSettings{AntiSpamEnabled: true, CooldownDays: 3}
	last := &notification.Record{SentAt: at(2025, time.December, 5), Outcome: notification.OutcomeSent}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"same day", at(2025, time.December, 5).Add(6 * time.Hour), false},
		{"one day later", at(2025, time.December, 6), false},
		{"two days later", at(2025, time.December, 7), false},
		{"exactly cooldown", at(2025, time.December, 8), true},
		{"early morning on cooldown day", time.Date(2025, time.December, 8, 0, 5, 0, 0, brt), true},
		{"well past cooldown", at(2025, time.December, 20), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, allowedSince(last, settings, tt.now))
		})
	}

	assert.True(t, allowedSince(nil, settings, at(2025, time.December, 5)), "no previous send")
}

func TestAllowedSinceCountsDaysInEvaluationLocation(t *testing.T) {
	settings := notification.ThrottleSettings{AntiSpamEnabled: true, CooldownDays: 1}
	// 23:30 BRT on the 5th is already the 6th in UTC.
	last := &notification.Record{SentAt: time.Date(2025, time.December, 6, 2, 30, 0, 0, time.UTC)}

	assert.True(t, allowedSince(last, settings, at(2025, time.December, 6)))
	assert.False(t, allowedSince(last, settings, time.Date(2025, time.December, 5, 23, 50, 0, 0, brt)))
}

func TestIsAllowed(t *testing.T) {
	ctx := context.Background()
	charge := overdueCharge("c1", date(2025, time.December, 1))
	history := memory.NewHistoryStore()
	require.NoError(t, history.Append(ctx, notification.Record{ID: "r1", ChargeID: "c1", RuleID: "vencidas", SentAt: at(2025, time.December, 5), Outcome: notification.OutcomeSent}))
	now := at(2025, time.December, 6)
	on := notification.ThrottleSettings{AntiSpamEnabled: true, CooldownDays: 3}

	t.Run("overdue within cooldown is suppressed", func(t *testing.T) {
		ok, err := IsAllowed(ctx, charge, overdueRule(), history, on, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("anti-spam disabled allows", func(t *testing.T) {
		ok, err := IsAllowed(ctx, charge, overdueRule(), history, notification.ThrottleSettings{CooldownDays: 3}, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("other kinds bypass the cooldown", func(t *testing.T) {
		rule := notification.Rule{ID: "vencidas", Kind: notification.KindDueToday, Enabled: true}
		ok, err := IsAllowed(ctx, charge, rule, history, on, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("failed attempts do not count as sends", func(t *testing.T) {
		other := overdueCharge("c2", date(2025, time.December, 1))
		require.NoError(t, history.Append(ctx, notification.Record{ID: "r2", ChargeID: "c2", RuleID: "vencidas", SentAt: at(2025, time.December, 5), Outcome: notification.OutcomeFailed}))
		ok, err := IsAllowed(ctx, other, overdueRule(), history, on, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("lookup failure is a storage error", func(t *testing.T) {
		_, err := IsAllowed(ctx, charge, overdueRule(), brokenLookup{}, on, now)
		assert.ErrorIs(t, err, ErrStorage)
	})
}

type brokenLookup struct{}

func (brokenLookup) LastSentFor(context.Context, string, string) (*notification.Record, error) {
	return nil, errors.New("connection reset")
}

