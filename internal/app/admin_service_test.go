package app

import (
	"context"
	"testing"
	"time"

	"cobrancazap/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdmin(f *fixture) *AdminService {
	s := NewAdminService(f.registry, f.coord, f.history, 1001)
	s.now = func() time.Time { return at(2025, time.December, 5) }
	return s
}

func TestAuthorize(t *testing.T) {
	s := newAdmin(newFixture(&fakeSender{}, nil))
	assert.NoError(t, s.Authorize(1001))
	assert.ErrorIs(t, s.Authorize(7), ErrAdminNotAuthorized)

	open := NewAdminService(nil, nil, nil, 0)
	assert.ErrorIs(t, open.Authorize(0), ErrAdminNotAuthorized, "no admin configured means nobody")
}

func TestRunNowAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeSender{}, nil, overdueRule())
	for _, id := range []string{"c1", "c2", "c3"} {
		f.ledger.PutCharge(overdueCharge(id, date(2025, time.December, 1)))
	}
	s := newAdmin(f)

	run, err := s.RunNow(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, notification.TriggerManual, run.Trigger)
	assert.Equal(t, 3, run.Sent)

	_, err = s.RunNow(ctx, "nope")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	records, err := s.History(ctx, notification.HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = s.History(ctx, notification.HistoryFilter{ChargeID: "c2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, run.ID, records[0].RunID)

	runs, err := s.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeSender{}, nil, overdueRule())
	s := newAdmin(f)

	st := s.Status()
	assert.Equal(t, notification.StateIdle, st.State)
	assert.Nil(t, st.LastRun)
	assert.Equal(t, 3, st.Settings.CooldownDays)

	s.Pause()
	_, err := s.RunNow(ctx, "vencidas")
	require.NoError(t, err)

	st = s.Status()
	assert.Equal(t, notification.StatePaused, st.State)
	assert.True(t, st.Paused)
	require.NotNil(t, st.LastRun)

	s.Resume()
	assert.Equal(t, notification.StateIdle, s.Status().State)
}
