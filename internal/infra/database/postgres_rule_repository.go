package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cobrancazap/internal/domain/notification"
)

type PostgresRuleRepository struct {
	db *sql.DB
}

func NewPostgresRuleRepository(db *sql.DB) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db}
}

const ruleColumns = `id, name, kind, enabled, schedule_time, lead_days, template_id, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*notification.Rule, error) {
	var (
		rule     notification.Rule
		kind     string
		schedule string
	)
	if err := row.Scan(&rule.ID, &rule.Name, &kind, &rule.Enabled, &schedule, &rule.LeadDays, &rule.TemplateID, &rule.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if rule.Kind, err = notification.ParseKind(kind); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	if rule.ScheduleTime, err = notification.ParseScheduleTime(schedule); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}

func (r *PostgresRuleRepository) List(ctx context.Context) ([]notification.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM notification_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing rules: %w", err)
	}
	defer rows.Close()

	rules := make([]notification.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning rule row: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule rows: %w", err)
	}
	return rules, nil
}

// Get returns nil, nil when no rule has the id.
func (r *PostgresRuleRepository) Get(ctx context.Context, id string) (*notification.Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM notification_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting rule by ID: %w", err)
	}
	return rule, nil
}

func (r *PostgresRuleRepository) Save(ctx context.Context, rule *notification.Rule) error {
	query := `INSERT INTO notification_rules (id, name, kind, enabled, schedule_time, lead_days, template_id, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               ON CONFLICT (id) DO UPDATE
               SET name = EXCLUDED.name, kind = EXCLUDED.kind, enabled = EXCLUDED.enabled,
                   schedule_time = EXCLUDED.schedule_time, lead_days = EXCLUDED.lead_days,
                   template_id = EXCLUDED.template_id, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, rule.ID, rule.Name, rule.Kind, rule.Enabled,
		rule.ScheduleTime.String(), rule.LeadDays, rule.TemplateID, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving rule %s: %w", rule.ID, err)
	}
	return nil
}
