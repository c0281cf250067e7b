package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/eventforge/batchjobs/internal/joberrors"
	"github.com/eventforge/batchjobs/internal/orchestrator"
	"github.com/eventforge/batchjobs/internal/rategovernor"
	"github.com/eventforge/batchjobs/internal/store"
)

type fakeSubscriptionStore struct {
	candidates   []store.Subscription
	byStripeID   map[string]*store.Subscription
	selectErr    error
	lookupErr    error
	updated      []store.Subscription
	failedIDs    []string
	logsAppended int
}

func (f *fakeSubscriptionStore) SelectRenewalCandidates(ctx context.Context, tenantID string, renewalThreshold, extendedThreshold time.Time) ([]store.Subscription, error) {
	return f.candidates, f.selectErr
}

func (f *fakeSubscriptionStore) GetSubscriptionByStripeID(ctx context.Context, tenantID, stripeSubscriptionID string) (*store.Subscription, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.byStripeID[stripeSubscriptionID], nil
}

func (f *fakeSubscriptionStore) UpdateSubscription(ctx context.Context, s store.Subscription) error {
	f.updated = append(f.updated, s)
	return nil
}

func (f *fakeSubscriptionStore) MarkReconciliationFailed(ctx context.Context, id, errMsg string) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

func (f *fakeSubscriptionStore) AppendReconciliationLog(ctx context.Context, subscriptionID, tenantID, before, after string) error {
	f.logsAppended++
	return nil
}

type fakeVault struct {
	configured bool
}

func (v *fakeVault) GetProviderSecret(ctx context.Context, tenantID, providerName string) (string, bool) {
	return "", v.configured
}

type fakeStripeClient struct {
	sub *stripe.Subscription
	err error
}

func (c *fakeStripeClient) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*stripe.Subscription, error) {
	return c.sub, c.err
}

func factoryFor(c StripeClient) StripeClientFactory {
	return func(secret string) StripeClient { return c }
}

func newTestGovernor() *rategovernor.Governor {
	return rategovernor.New("STRIPE", 1000, nil)
}

func TestRun_NoCandidatesReturnsZeroCounts(t *testing.T) {
	subs := &fakeSubscriptionStore{}
	rc := New(subs, &fakeVault{}, factoryFor(&fakeStripeClient{}), newTestGovernor(), 7*24*time.Hour, 30*24*time.Hour, 0)

	processed, success, failed, skipped, err := rc.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobSubscriptionRenewal})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 0 || success != 0 || failed != 0 || skipped != 0 {
		t.Errorf("got (%d, %d, %d, %d)", processed, success, failed, skipped)
	}
}

func TestRun_CredentialNotConfiguredMarksFailed(t *testing.T) {
	subs := &fakeSubscriptionStore{
		candidates: []store.Subscription{{ID: "sub-1", TenantID: "tenant-1", StripeSubscriptionID: "sub_stripe_1"}},
	}
	rc := New(subs, &fakeVault{configured: false}, factoryFor(&fakeStripeClient{}), newTestGovernor(), 7*24*time.Hour, 30*24*time.Hour, 0)

	processed, success, failed, skipped, err := rc.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobSubscriptionRenewal})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 1 || success != 0 || failed != 1 || skipped != 0 {
		t.Errorf("got (%d, %d, %d, %d)", processed, success, failed, skipped)
	}
	if len(subs.failedIDs) != 1 || subs.failedIDs[0] != "sub-1" {
		t.Errorf("expected sub-1 marked failed, got %+v", subs.failedIDs)
	}
}

func TestRun_SelectErrorReturnsConfigurationError(t *testing.T) {
	subs := &fakeSubscriptionStore{selectErr: errors.New("db down")}
	rc := New(subs, &fakeVault{}, factoryFor(&fakeStripeClient{}), newTestGovernor(), time.Hour, time.Hour, 0)

	_, _, _, _, err := rc.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobSubscriptionRenewal})
	if kind, ok := joberrors.KindOf(err); !ok || kind != joberrors.KindConfiguration {
		t.Errorf("got %v, want CONFIGURATION", err)
	}
}

func TestRun_StripeSubscriptionIDNotFound(t *testing.T) {
	subs := &fakeSubscriptionStore{byStripeID: map[string]*store.Subscription{}}
	rc := New(subs, &fakeVault{}, factoryFor(&fakeStripeClient{}), newTestGovernor(), time.Hour, time.Hour, 0)

	_, _, failed, _, err := rc.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobSubscriptionRenewal, StripeSubscriptionID: "sub_missing",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestRun_StripeSubscriptionIDDataInconsistentCountsAsFailed(t *testing.T) {
	subs := &fakeSubscriptionStore{lookupErr: joberrors.NewDataInconsistent("resolved to 2 rows")}
	rc := New(subs, &fakeVault{}, factoryFor(&fakeStripeClient{}), newTestGovernor(), time.Hour, time.Hour, 0)

	processed, success, failed, _, err := rc.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobSubscriptionRenewal, StripeSubscriptionID: "sub_dup",
	})
	if kind, ok := joberrors.KindOf(err); !ok || kind != joberrors.KindDataInconsistent {
		t.Errorf("got %v, want DATA_INCONSISTENT", err)
	}
	if processed != 1 || success != 0 || failed != 1 {
		t.Errorf("got (%d, %d, %d), want (1, 0, 1)", processed, success, failed)
	}
}

func TestRun_RespectsMaxSubscriptionsLimit(t *testing.T) {
	subs := &fakeSubscriptionStore{candidates: []store.Subscription{
		{ID: "sub-1", TenantID: "t1"},
		{ID: "sub-2", TenantID: "t1"},
		{ID: "sub-3", TenantID: "t1"},
	}}
	rc := New(subs, &fakeVault{configured: false}, factoryFor(&fakeStripeClient{}), newTestGovernor(), time.Hour, time.Hour, 0)

	processed, _, _, _, err := rc.Run(context.Background(), orchestrator.TriggerRequest{
		JobType: orchestrator.JobSubscriptionRenewal, MaxSubscriptions: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 2 {
		t.Errorf("processed = %d, want 2", processed)
	}
}

func TestRun_CancelledContextReturnsCancelledError(t *testing.T) {
	subs := &fakeSubscriptionStore{candidates: []store.Subscription{
		{ID: "sub-1", TenantID: "t1"},
	}}
	rc := New(subs, &fakeVault{configured: false}, factoryFor(&fakeStripeClient{}), newTestGovernor(), time.Hour, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, _, err := rc.Run(ctx, orchestrator.TriggerRequest{JobType: orchestrator.JobSubscriptionRenewal})
	if kind, ok := joberrors.KindOf(err); !ok || kind != joberrors.KindCancelled {
		t.Errorf("got %v, want CANCELLED", err)
	}
}

func TestRun_StripeRetrieveFailureMarksFailedAndRecordsError(t *testing.T) {
	subs := &fakeSubscriptionStore{candidates: []store.Subscription{
		{ID: "sub-1", TenantID: "t1", StripeSubscriptionID: "sub_stripe_1"},
	}}
	rc := New(subs, &fakeVault{configured: true}, factoryFor(&fakeStripeClient{err: errors.New("stripe unavailable")}), newTestGovernor(), time.Hour, time.Hour, 0)

	processed, success, failed, _, err := rc.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobSubscriptionRenewal})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 1 || success != 0 || failed != 1 {
		t.Errorf("got (%d, %d, %d), want (1, 0, 1)", processed, success, failed)
	}
	if len(subs.failedIDs) != 1 || subs.failedIDs[0] != "sub-1" {
		t.Errorf("expected sub-1 marked failed, got %+v", subs.failedIDs)
	}
}

func TestRun_StripeRolloverSucceedsAndLogsChange(t *testing.T) {
	now := time.Now().Unix()
	subs := &fakeSubscriptionStore{candidates: []store.Subscription{
		{
			ID: "sub-1", TenantID: "t1", StripeSubscriptionID: "sub_stripe_1",
			Status:             "ACTIVE",
			CurrentPeriodStart: time.Unix(now-1000, 0).UTC(),
			CurrentPeriodEnd:   time.Unix(now, 0).UTC(),
		},
	}}
	stripeSub := &stripe.Subscription{
		Status:             stripe.SubscriptionStatusActive,
		CurrentPeriodStart: now + 100,
		CurrentPeriodEnd:   now + 2592000,
	}
	rc := New(subs, &fakeVault{configured: true}, factoryFor(&fakeStripeClient{sub: stripeSub}), newTestGovernor(), time.Hour, time.Hour, 0)

	processed, success, failed, _, err := rc.Run(context.Background(), orchestrator.TriggerRequest{JobType: orchestrator.JobSubscriptionRenewal})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 1 || success != 1 || failed != 0 {
		t.Errorf("got (%d, %d, %d), want (1, 1, 0)", processed, success, failed)
	}
	if len(subs.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(subs.updated))
	}
	if subs.updated[0].ReconciliationStatus != "SUCCESS" {
		t.Errorf("ReconciliationStatus = %q, want SUCCESS", subs.updated[0].ReconciliationStatus)
	}
	if subs.logsAppended != 1 {
		t.Errorf("logsAppended = %d, want 1 (period rolled over)", subs.logsAppended)
	}
}

func TestMapStatus_KnownAndUnknownValues(t *testing.T) {
	cases := map[string]string{
		"active":             "ACTIVE",
		"trialing":           "TRIAL",
		"past_due":           "PAST_DUE",
		"canceled":           "CANCELLED",
		"unpaid":             "SUSPENDED",
		"incomplete":         "EXPIRED",
		"incomplete_expired": "EXPIRED",
		"something_unseen":   "ACTIVE",
	}
	for in, want := range cases {
		if got := mapStatus(stripe.SubscriptionStatus(in)); got != want {
			t.Errorf("mapStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
