package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSelectRenewalCandidates_ScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	cols := []string{
		"id", "tenant_id", "user_profile_id", "plan_id", "status",
		"current_period_start", "current_period_end", "cancel_at_period_end",
		"stripe_subscription_id", "last_reconciliation_at",
		"reconciliation_status", "reconciliation_error",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("sub-1", "tenant-1", "user-1", "plan-1", "ACTIVE", now, now, false, "sub_stripe_1", nil, "PENDING", "")

	mock.ExpectQuery("SELECT (.|\n)*FROM membership_subscriptions").WillReturnRows(rows)

	s := NewPostgresSubscriptionStore(db)
	subs, err := s.SelectRenewalCandidates(context.Background(), "", now, now)
	if err != nil {
		t.Fatalf("SelectRenewalCandidates: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "sub-1" {
		t.Errorf("got %+v", subs)
	}
}

func TestGetSubscriptionByStripeID_NoRowsReturnsNilNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cols := []string{
		"id", "tenant_id", "user_profile_id", "plan_id", "status",
		"current_period_start", "current_period_end", "cancel_at_period_end",
		"stripe_subscription_id", "last_reconciliation_at",
		"reconciliation_status", "reconciliation_error",
	}
	mock.ExpectQuery("SELECT (.|\n)*FROM membership_subscriptions").WillReturnRows(sqlmock.NewRows(cols))

	s := NewPostgresSubscriptionStore(db)
	sub, err := s.GetSubscriptionByStripeID(context.Background(), "tenant-1", "sub_missing")
	if err != nil {
		t.Fatalf("expected no error when no row matches, got %v", err)
	}
	if sub != nil {
		t.Errorf("expected nil subscription, got %+v", sub)
	}
}

func TestUpdateSubscription_NullsEmptyReconciliationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE membership_subscriptions SET").
		WithArgs("sub-1", "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg(), false, "SUCCESS", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPostgresSubscriptionStore(db)
	err = s.UpdateSubscription(context.Background(), Subscription{
		ID: "sub-1", Status: "ACTIVE", CancelAtPeriodEnd: false, ReconciliationStatus: "SUCCESS",
	})
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
