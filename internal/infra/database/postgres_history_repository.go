package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"cobrancazap/internal/domain/notification"

	"github.com/lib/pq" // For pq.Array
)

type PostgresHistoryRepository struct {
	db *sql.DB
}

func NewPostgresHistoryRepository(db *sql.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

func (r *PostgresHistoryRepository) Append(ctx context.Context, rec notification.Record) error {
	query := `INSERT INTO notification_records (id, run_id, charge_id, rule_id, sent_at, outcome, error)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.RunID, rec.ChargeID, rec.RuleID, rec.SentAt, rec.Outcome, rec.Error)
	if err != nil {
		return fmt.Errorf("error appending notification record: %w", err)
	}
	return nil
}

const recordColumns = `id, run_id, charge_id, rule_id, sent_at, outcome, error`

func scanRecord(row rowScanner) (notification.Record, error) {
	var rec notification.Record
	err := row.Scan(&rec.ID, &rec.RunID, &rec.ChargeID, &rec.RuleID, &rec.SentAt, &rec.Outcome, &rec.Error)
	return rec, err
}

func (r *PostgresHistoryRepository) LastSentFor(ctx context.Context, chargeID, ruleID string) (*notification.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM notification_records
               WHERE charge_id = $1 AND rule_id = $2 AND outcome = $3
               ORDER BY sent_at DESC, seq DESC LIMIT 1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, chargeID, ruleID, notification.OutcomeSent))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting last sent record: %w", err)
	}
	return &rec, nil
}

// buildHistoryQuery turns a filter into a parameterised SELECT, newest first.
func buildHistoryQuery(f notification.HistoryFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ChargeID != "" {
		add("charge_id = $%d", f.ChargeID)
	}
	if f.RuleID != "" {
		add("rule_id = $%d", f.RuleID)
	}
	if f.Outcome != "" {
		add("outcome = $%d", f.Outcome)
	}
	if !f.Since.IsZero() {
		add("sent_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("sent_at < $%d", f.Until)
	}

	var b strings.Builder
	b.WriteString("SELECT " + recordColumns + " FROM notification_records")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY seq DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

// Query streams rows as the caller ranges; each range opens a new cursor.
func (r *PostgresHistoryRepository) Query(ctx context.Context, filter notification.HistoryFilter) iter.Seq2[notification.Record, error] {
	return func(yield func(notification.Record, error) bool) {
		query, args := buildHistoryQuery(filter)
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(notification.Record{}, fmt.Errorf("error querying notification records: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(notification.Record{}, fmt.Errorf("error scanning notification record: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(notification.Record{}, fmt.Errorf("error iterating notification records: %w", err))
		}
	}
}

func (r *PostgresHistoryRepository) SaveRun(ctx context.Context, run notification.Run) error {
	query := `INSERT INTO notification_runs (id, run_trigger, rule_ids, started_at, finished_at, attempted, sent, failed, suppressed, error)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               ON CONFLICT (id) DO UPDATE
               SET finished_at = EXCLUDED.finished_at, attempted = EXCLUDED.attempted, sent = EXCLUDED.sent,
                   failed = EXCLUDED.failed, suppressed = EXCLUDED.suppressed, error = EXCLUDED.error`
	ruleIDs := run.RuleIDs
	if ruleIDs == nil {
		ruleIDs = []string{}
	}
	_, err := r.db.ExecContext(ctx, query, run.ID, run.Trigger, pq.Array(ruleIDs), run.StartedAt, run.FinishedAt,
		run.Attempted, run.Sent, run.Failed, run.Suppressed, run.Error)
	if err != nil {
		return fmt.Errorf("error saving run %s: %w", run.ID, err)
	}
	return nil
}

func (r *PostgresHistoryRepository) ListRuns(ctx context.Context, limit int) ([]notification.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, run_trigger, rule_ids, started_at, finished_at, attempted, sent, failed, suppressed, error
               FROM notification_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]notification.Run, 0)
	for rows.Next() {
		var run notification.Run
		if err := rows.Scan(&run.ID, &run.Trigger, pq.Array(&run.RuleIDs), &run.StartedAt, &run.FinishedAt,
			&run.Attempted, &run.Sent, &run.Failed, &run.Suppressed, &run.Error); err != nil {
			return nil, fmt.Errorf("error scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}
