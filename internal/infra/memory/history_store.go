package memory

import (
	"context"
	"iter"
	"sync"

	"cobrancazap/internal/domain/notification"
)

// HistoryStore keeps records and runs in append order.
type HistoryStore struct {
	mu      sync.RWMutex
	records []notification.Record
	runs    []notification.Run
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) Append(_ context.Context, rec notification.Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *HistoryStore) LastSentFor(_ context.Context, chargeID, ruleID string) (*notification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *notification.Record
	for i := range s.records {
		rec := s.records[i]
		if rec.Outcome != notification.OutcomeSent || rec.ChargeID != chargeID || rec.RuleID != ruleID {
			continue
		}
		if last == nil || !rec.SentAt.Before(last.SentAt) {
			last = &rec
		}
	}
	return last, nil
}

// Query walks a snapshot taken when iteration starts, newest first.
func (s *HistoryStore) Query(ctx context.Context, filter notification.HistoryFilter) iter.Seq2[notification.Record, error] {
	return func(yield func(notification.Record, error) bool) {
		s.mu.RLock()
		snapshot := make([]notification.Record, len(s.records))
		copy(snapshot, s.records)
		s.mu.RUnlock()

		yielded := 0
		for i := len(snapshot) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				yield(notification.Record{}, err)
				return
			}
			if !filter.Match(snapshot[i]) {
				continue
			}
			if !yield(snapshot[i], nil) {
				return
			}
			yielded++
			if filter.Limit > 0 && yielded >= filter.Limit {
				return
			}
		}
	}
}

func (s *HistoryStore) SaveRun(_ context.Context, run notification.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = run
			return nil
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

// ListRuns returns the most recent runs first.
func (s *HistoryStore) ListRuns(_ context.Context, limit int) ([]notification.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]notification.Run, 0, n)
	for i := len(s.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
