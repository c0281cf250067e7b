package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresTransactionStore implements TransactionStore over database/sql.
type PostgresTransactionStore struct {
	db *sql.DB
}

// NewPostgresTransactionStore builds a PostgresTransactionStore.
func NewPostgresTransactionStore(db *sql.DB) *PostgresTransactionStore {
	return &PostgresTransactionStore{db: db}
}

// SelectFeeTaxCandidates pages through transactions eligible for fee/tax
// backfill: completed, within the window, with a payment intent, and either
// missing fee data or forceUpdate set. Paging uses a keyset cursor on id
// rather than OFFSET: without forceUpdate, a reconciled row drops out of
// the WHERE clause mid-run, which would make OFFSET skip over rows that
// were never actually processed on subsequent pages. lastID is the id of
// the last row returned by the previous page, or "" for the first page.
func (s *PostgresTransactionStore) SelectFeeTaxCandidates(ctx context.Context, tenantID, eventID string, start, end time.Time, forceUpdate bool, batchSize int, lastID string) ([]Transaction, error) {
	query := `
		SELECT id, tenant_id, status, purchase_date,
			stripe_payment_intent_id,
			COALESCE(stripe_checkout_session_id, ''),
			final_amount, stripe_fee_amount, stripe_amount_tax, net_payout_amount
		FROM event_ticket_transactions
		WHERE status = 'COMPLETED'
			AND stripe_payment_intent_id IS NOT NULL
			AND purchase_date BETWEEN $1 AND $2
			AND ($3 = '' OR tenant_id = $3)
			AND ($4 = '' OR event_id = $4)
			AND ($5 OR stripe_fee_amount IS NULL OR stripe_fee_amount = 0)
			AND id > $6
		ORDER BY id
		LIMIT $7`

	rows, err := s.db.QueryContext(ctx, query, start, end, tenantID, eventID, forceUpdate, lastID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select fee tax candidates: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.Status, &t.PurchaseDate,
			&t.StripePaymentIntentID, &t.StripeCheckoutSessionID,
			&t.FinalAmount, &t.StripeFeeAmount, &t.StripeAmountTax, &t.NetPayoutAmount,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReloadTransaction re-reads the row by id immediately before writing, to
// avoid overwriting a concurrently-updated row with stale data.
func (s *PostgresTransactionStore) ReloadTransaction(ctx context.Context, id string) (*Transaction, error) {
	var t Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, status, purchase_date,
			stripe_payment_intent_id,
			COALESCE(stripe_checkout_session_id, ''),
			final_amount, stripe_fee_amount, stripe_amount_tax, net_payout_amount
		FROM event_ticket_transactions
		WHERE id = $1`,
		id,
	).Scan(
		&t.ID, &t.TenantID, &t.Status, &t.PurchaseDate,
		&t.StripePaymentIntentID, &t.StripeCheckoutSessionID,
		&t.FinalAmount, &t.StripeFeeAmount, &t.StripeAmountTax, &t.NetPayoutAmount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload transaction %s: %w", id, err)
	}
	return &t, nil
}

// AggregateFeesTax sums already-reconciled fee/tax/net figures over a
// tenant's completed transactions in a window, for the read-only manual
// payment summary report. It never mutates a row.
func (s *PostgresTransactionStore) AggregateFeesTax(ctx context.Context, tenantID string, start, end time.Time) (gross, fees, tax, net float64, count int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(final_amount), 0),
			COALESCE(SUM(stripe_fee_amount), 0),
			COALESCE(SUM(stripe_amount_tax), 0),
			COALESCE(SUM(net_payout_amount), 0),
			COUNT(*)
		FROM event_ticket_transactions
		WHERE status = 'COMPLETED'
			AND purchase_date BETWEEN $1 AND $2
			AND ($3 = '' OR tenant_id = $3)`,
		start, end, tenantID,
	).Scan(&gross, &fees, &tax, &net, &count)
	if err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("aggregate fees tax: %w", err)
	}
	return gross, fees, tax, net, count, nil
}

// UpdateTransactionFeesTax persists the three reconciled columns. taxIsNull
// distinguishes "tax reconciled to zero" from "tax unavailable".
func (s *PostgresTransactionStore) UpdateTransactionFeesTax(ctx context.Context, id string, fee, tax, net float64, taxIsNull bool) error {
	var taxArg interface{}
	if !taxIsNull {
		taxArg = tax
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE event_ticket_transactions SET
			stripe_fee_amount = $2,
			stripe_amount_tax = $3,
			net_payout_amount = $4
		WHERE id = $1`,
		id, fee, taxArg, net,
	)
	if err != nil {
		return fmt.Errorf("update transaction fees/tax %s: %w", id, err)
	}
	return nil
}
