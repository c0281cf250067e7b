package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSelectFeeTaxCandidates_Paginates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	cols := []string{
		"id", "tenant_id", "status", "purchase_date", "stripe_payment_intent_id",
		"stripe_checkout_session_id", "final_amount", "stripe_fee_amount",
		"stripe_amount_tax", "net_payout_amount",
	}
	rows := sqlmock.NewRows(cols).AddRow("tx-1", "tenant-1", "COMPLETED", now, "pi_1", "cs_1", 100.0, nil, nil, nil)

	mock.ExpectQuery("SELECT (.|\n)*FROM event_ticket_transactions").WillReturnRows(rows)

	s := NewPostgresTransactionStore(db)
	txs, err := s.SelectFeeTaxCandidates(context.Background(), "", "", now, now, false, 100, "")
	if err != nil {
		t.Fatalf("SelectFeeTaxCandidates: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "tx-1" {
		t.Errorf("got %+v", txs)
	}
	if txs[0].StripeFeeAmount != nil {
		t.Error("expected a nil fee amount to remain nil, not zero-valued")
	}
}

func TestUpdateTransactionFeesTax_NullsTaxWhenUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE event_ticket_transactions SET").
		WithArgs("tx-1", 2.50, nil, 97.50).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPostgresTransactionStore(db)
	if err := s.UpdateTransactionFeesTax(context.Background(), "tx-1", 2.50, 0, 97.50, true); err != nil {
		t.Fatalf("UpdateTransactionFeesTax: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateTransactionFeesTax_PersistsTaxWhenKnown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE event_ticket_transactions SET").
		WithArgs("tx-1", 2.50, 1.20, 96.30).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPostgresTransactionStore(db)
	if err := s.UpdateTransactionFeesTax(context.Background(), "tx-1", 2.50, 1.20, 96.30, false); err != nil {
		t.Fatalf("UpdateTransactionFeesTax: %v", err)
	}
}

func TestAggregateFeesTax_SumsWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"sum", "sum", "sum", "sum", "count"}).
		AddRow(1000.0, 35.0, 80.0, 885.0, 12)
	mock.ExpectQuery("SELECT(.|\n)*FROM event_ticket_transactions").WillReturnRows(rows)

	s := NewPostgresTransactionStore(db)
	gross, fees, tax, net, count, err := s.AggregateFeesTax(context.Background(), "tenant-1", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("AggregateFeesTax: %v", err)
	}
	if gross != 1000.0 || fees != 35.0 || tax != 80.0 || net != 885.0 || count != 12 {
		t.Errorf("got (%v, %v, %v, %v, %v)", gross, fees, tax, net, count)
	}
}
