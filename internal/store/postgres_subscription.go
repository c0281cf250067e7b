package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/eventforge/batchjobs/internal/joberrors"
)

// PostgresSubscriptionStore implements SubscriptionStore over database/sql.
type PostgresSubscriptionStore struct {
	db *sql.DB
}

// NewPostgresSubscriptionStore builds a PostgresSubscriptionStore.
func NewPostgresSubscriptionStore(db *sql.DB) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{db: db}
}

// SelectRenewalCandidates returns subscriptions due for reconciliation: the
// ordinary renewal window, widened to extendedThreshold for rows that still
// carry a stripeSubscriptionId, since Stripe may have already rolled the
// period locally.
func (s *PostgresSubscriptionStore) SelectRenewalCandidates(ctx context.Context, tenantID string, renewalThreshold, extendedThreshold time.Time) ([]Subscription, error) {
	query := `
		SELECT id, tenant_id, user_profile_id, plan_id, status,
			current_period_start, current_period_end, cancel_at_period_end,
			COALESCE(stripe_subscription_id, ''),
			last_reconciliation_at,
			COALESCE(reconciliation_status, 'PENDING'),
			COALESCE(reconciliation_error, '')
		FROM membership_subscriptions
		WHERE status IN ('ACTIVE', 'TRIAL')
			AND cancel_at_period_end = false
			AND (
				current_period_end <= $1
				OR (current_period_end <= $2 AND stripe_subscription_id IS NOT NULL)
			)
			AND ($3 = '' OR tenant_id = $3)
		ORDER BY tenant_id, id`

	rows, err := s.db.QueryContext(ctx, query, renewalThreshold, extendedThreshold, tenantID)
	if err != nil {
		return nil, fmt.Errorf("select renewal candidates: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(
			&sub.ID, &sub.TenantID, &sub.UserProfileID, &sub.PlanID, &sub.Status,
			&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
			&sub.StripeSubscriptionID, &sub.LastReconciliationAt,
			&sub.ReconciliationStatus, &sub.ReconciliationError,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GetSubscriptionByStripeID supports single-subscription invocation. A
// stripeSubscriptionId is expected to resolve to at most one row per tenant;
// if it resolves to more than one, the data is inconsistent and the caller
// gets a DataInconsistent error rather than an arbitrarily-picked row.
func (s *PostgresSubscriptionStore) GetSubscriptionByStripeID(ctx context.Context, tenantID, stripeSubscriptionID string) (*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_profile_id, plan_id, status,
			current_period_start, current_period_end, cancel_at_period_end,
			COALESCE(stripe_subscription_id, ''),
			last_reconciliation_at,
			COALESCE(reconciliation_status, 'PENDING'),
			COALESCE(reconciliation_error, '')
		FROM membership_subscriptions
		WHERE tenant_id = $1 AND stripe_subscription_id = $2`,
		tenantID, stripeSubscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	defer rows.Close()

	var matches []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(
			&sub.ID, &sub.TenantID, &sub.UserProfileID, &sub.PlanID, &sub.Status,
			&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
			&sub.StripeSubscriptionID, &sub.LastReconciliationAt,
			&sub.ReconciliationStatus, &sub.ReconciliationError,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		matches = append(matches, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, joberrors.NewDataInconsistent(fmt.Sprintf(
			"stripeSubscriptionId %s resolved to %d rows for tenant %s, expected at most one",
			stripeSubscriptionID, len(matches), tenantID))
	}
}

// UpdateSubscription persists the reconciled status/period/reconciliation
// columns and stamps lastReconciliationAt.
func (s *PostgresSubscriptionStore) UpdateSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE membership_subscriptions SET
			status = $2,
			current_period_start = $3,
			current_period_end = $4,
			cancel_at_period_end = $5,
			last_reconciliation_at = now(),
			reconciliation_status = $6,
			reconciliation_error = $7
		WHERE id = $1`,
		sub.ID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.ReconciliationStatus, nullIfEmpty(sub.ReconciliationError),
	)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	return nil
}

// MarkReconciliationFailed records a per-item failure without touching the
// subscription's status/period columns.
func (s *PostgresSubscriptionStore) MarkReconciliationFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE membership_subscriptions SET
			reconciliation_status = 'FAILED',
			reconciliation_error = $2,
			last_reconciliation_at = now()
		WHERE id = $1`,
		id, errMsg,
	)
	if err != nil {
		return fmt.Errorf("mark reconciliation failed %s: %w", id, err)
	}
	return nil
}

// AppendReconciliationLog writes an append-only before/after description row.
func (s *PostgresSubscriptionStore) AppendReconciliationLog(ctx context.Context, subscriptionID, tenantID, before, after string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscription_reconciliation_log (
			subscription_id, tenant_id, before_state, after_state, logged_at
		) VALUES ($1, $2, $3, $4, now())`,
		subscriptionID, tenantID, before, after,
	)
	if err != nil {
		return fmt.Errorf("append reconciliation log: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
