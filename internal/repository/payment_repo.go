package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashnotes-backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// ApplyEvent records ev keyed by invoice id. A COMPLETE invoice is final:
// later events for it, and repeats of the current state, change nothing and
// report changed=false. When ev moves an invoice to COMPLETE the owner is
// promoted to premium in the same transaction.
func (r *PaymentRepo) ApplyEvent(ctx context.Context, ev models.PaymentEvent) (changed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin payment transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	currency := ev.Currency
	if currency == "" {
		currency = "USD"
	}

	query := `INSERT INTO payments (invoice_id, user_id, state, amount, currency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (invoice_id) DO UPDATE
			SET state = EXCLUDED.state,
				amount = EXCLUDED.amount,
				currency = EXCLUDED.currency,
				updated_at = NOW()
			WHERE payments.state <> 'COMPLETE' AND payments.state <> EXCLUDED.state
		RETURNING state`

	var state string
	err = tx.QueryRow(ctx, query, ev.InvoiceID, ev.UserID, ev.State, ev.Amount, currency).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record payment %s: %w", ev.InvoiceID, err)
	}

	if state == models.PaymentStateComplete {
		tag, err := tx.Exec(ctx, "UPDATE users SET tier = $1 WHERE id = $2", models.TierPremium, ev.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to promote user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, pgx.ErrNoRows
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT invoice_id, user_id, state, amount, currency, created_at, updated_at
		FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.InvoiceID, &p.UserID, &p.State, &p.Amount, &p.Currency, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
