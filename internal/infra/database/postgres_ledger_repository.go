package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cobrancazap/internal/domain/billing"
)

// PostgresLedgerRepository reads the charges and customers kept in sync with
// the payment provider. The engine never writes to these tables.
type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func (r *PostgresLedgerRepository) ListCharges(ctx context.Context) ([]billing.Charge, error) {
	query := `SELECT id, customer_id, amount_cents, due_date, payment_date, status, payment_link
               FROM charges WHERE status <> $1 ORDER BY due_date, id`
	rows, err := r.db.QueryContext(ctx, query, billing.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("error listing charges: %w", err)
	}
	defer rows.Close()

	charges := make([]billing.Charge, 0)
	for rows.Next() {
		var (
			c           billing.Charge
			paymentDate sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.AmountCents, &c.DueDate, &paymentDate, &c.Status, &c.PaymentLink); err != nil {
			return nil, fmt.Errorf("error scanning charge row: %w", err)
		}
		if paymentDate.Valid {
			pd := paymentDate.Time
			c.PaymentDate = &pd
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating charge rows: %w", err)
	}
	return charges, nil
}

// GetByID returns nil, nil for unknown customers.
func (r *PostgresLedgerRepository) GetByID(ctx context.Context, id string) (*billing.Customer, error) {
	query := `SELECT id, name, phone, telegram_chat_id FROM customers WHERE id = $1`
	c := &billing.Customer{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Phone, &c.TelegramChatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting customer by ID: %w", err)
	}
	return c, nil
}
