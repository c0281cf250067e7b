// Package subscription implements the Subscription Reconciler: selects
// candidate subscriptions past (or near) renewal, reconciles each against
// Stripe's canonical state, and records a before/after reconciliation log
// row for each subscription whose reconciled fields changed. No log row is
// written for an unchanged subscription or a failed attempt.
package subscription

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/eventforge/batchjobs/internal/joberrors"
	"github.com/eventforge/batchjobs/internal/logger"
	"github.com/eventforge/batchjobs/internal/metrics"
	"github.com/eventforge/batchjobs/internal/orchestrator"
	"github.com/eventforge/batchjobs/internal/rategovernor"
	"github.com/eventforge/batchjobs/internal/store"
)

const jobType = "SUBSCRIPTION_RENEWAL"

// Vault resolves per-tenant Stripe secrets.
type Vault interface {
	GetProviderSecret(ctx context.Context, tenantID, providerName string) (string, bool)
}

// StripeClient is the capability set the reconciler needs from a
// tenant-scoped Stripe client. Tests substitute an in-memory implementation.
type StripeClient interface {
	GetSubscription(ctx context.Context, stripeSubscriptionID string) (*stripe.Subscription, error)
}

// StripeClientFactory builds a StripeClient scoped to one tenant's secret
// key. A new client is needed per tenant since each tenant reconciles
// against its own Stripe account.
type StripeClientFactory func(secretKey string) StripeClient

// Reconciler implements orchestrator.Workflow for SUBSCRIPTION_RENEWAL.
type Reconciler struct {
	subscriptions store.SubscriptionStore
	vault         Vault
	clientFactory StripeClientFactory
	governor      *rategovernor.Governor

	renewalWindow     time.Duration
	extendedThreshold time.Duration
	stripeCallDelay   time.Duration
}

// New builds a Reconciler.
func New(subscriptions store.SubscriptionStore, v Vault, clientFactory StripeClientFactory, governor *rategovernor.Governor, renewalWindow, extendedThreshold, stripeCallDelay time.Duration) *Reconciler {
	return &Reconciler{
		subscriptions:     subscriptions,
		vault:             v,
		clientFactory:     clientFactory,
		governor:          governor,
		renewalWindow:     renewalWindow,
		extendedThreshold: extendedThreshold,
		stripeCallDelay:   stripeCallDelay,
	}
}

// Run implements orchestrator.Workflow.
func (rc *Reconciler) Run(ctx context.Context, req orchestrator.TriggerRequest) (processed, success, failed, skipped int, err error) {
	log := logger.FromContext(ctx)

	if req.StripeSubscriptionID != "" {
		sub, getErr := rc.subscriptions.GetSubscriptionByStripeID(ctx, req.TenantID, req.StripeSubscriptionID)
		if getErr != nil {
			if kind, ok := joberrors.KindOf(getErr); ok && kind == joberrors.KindDataInconsistent {
				log.Error("subscription lookup found inconsistent data", "stripe_subscription_id", req.StripeSubscriptionID, "tenant_id", req.TenantID, "error", getErr)
				return 1, 0, 1, 0, getErr
			}
			return 0, 0, 0, 0, joberrors.NewDataNotFound("subscription lookup failed: " + getErr.Error())
		}
		if sub == nil {
			log.Warn("no subscription found for stripe subscription id", "stripe_subscription_id", req.StripeSubscriptionID, "tenant_id", req.TenantID)
			return 1, 0, 1, 0, nil
		}
		processed = 1
		if rc.reconcileOne(ctx, *sub) {
			success = 1
		} else {
			failed = 1
		}
		return processed, success, failed, 0, nil
	}

	now := time.Now()
	renewalThreshold := now.Add(rc.renewalWindow)
	extendedThreshold := now.Add(rc.extendedThreshold)

	candidates, selErr := rc.subscriptions.SelectRenewalCandidates(ctx, req.TenantID, renewalThreshold, extendedThreshold)
	if selErr != nil {
		return 0, 0, 0, 0, joberrors.NewConfigurationError("select renewal candidates: " + selErr.Error())
	}

	maxSubs := req.MaxSubscriptions
	for _, sub := range candidates {
		if ctx.Err() != nil {
			return processed, success, failed, 0, joberrors.NewCancelled("cancelled")
		}
		if maxSubs > 0 && processed >= maxSubs {
			break
		}

		processed++
		if rc.reconcileOne(ctx, sub) {
			success++
		} else {
			failed++
		}
		metrics.ItemsProcessed.WithLabelValues(jobType, "attempted").Inc()

		if rc.stripeCallDelay > 0 {
			select {
			case <-ctx.Done():
				return processed, success, failed, 0, joberrors.NewCancelled("cancelled")
			case <-time.After(rc.stripeCallDelay):
			}
		}
	}

	log.Info("subscription reconciliation complete", "processed", processed, "success", success, "failed", failed)
	return processed, success, failed, 0, nil
}

// reconcileOne runs the per-subscription algorithm and reports whether it
// succeeded. Failures are recorded on the row and counted, never aborting
// the batch.
func (rc *Reconciler) reconcileOne(ctx context.Context, sub store.Subscription) bool {
	log := logger.FromContext(ctx)

	secret, ok := rc.vault.GetProviderSecret(ctx, sub.TenantID, "STRIPE")
	if !ok {
		rc.markFailed(ctx, sub.ID, "stripe credential not configured for tenant")
		return false
	}

	client := rc.clientFactory(secret)

	var stripeSub *stripe.Subscription
	govErr := rc.governor.Run(ctx, func(ctx context.Context) error {
		s, err := client.GetSubscription(ctx, sub.StripeSubscriptionID)
		if err != nil {
			return joberrors.NewProviderTransient("stripe subscription retrieve failed", err)
		}
		stripeSub = s
		return nil
	})
	if govErr != nil {
		rc.markFailed(ctx, sub.ID, govErr.Error())
		return false
	}

	target := mapStripeSubscription(stripeSub)

	before, _ := json.Marshal(sub)

	changed := target.Status != sub.Status ||
		!target.CurrentPeriodStart.Equal(sub.CurrentPeriodStart) ||
		!target.CurrentPeriodEnd.Equal(sub.CurrentPeriodEnd) ||
		target.CancelAtPeriodEnd != sub.CancelAtPeriodEnd

	sub.Status = target.Status
	sub.CurrentPeriodStart = target.CurrentPeriodStart
	sub.CurrentPeriodEnd = target.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = target.CancelAtPeriodEnd
	sub.ReconciliationStatus = "SUCCESS"
	sub.ReconciliationError = ""

	if err := rc.subscriptions.UpdateSubscription(ctx, sub); err != nil {
		log.Error("failed to persist reconciled subscription", "subscription_id", sub.ID, "error", err)
		rc.markFailed(ctx, sub.ID, "persistence failed: "+err.Error())
		return false
	}

	if changed {
		after, _ := json.Marshal(sub)
		if err := rc.subscriptions.AppendReconciliationLog(ctx, sub.ID, sub.TenantID, string(before), string(after)); err != nil {
			log.Warn("failed to append reconciliation log", "subscription_id", sub.ID, "error", err)
		}
	}

	return true
}

func (rc *Reconciler) markFailed(ctx context.Context, subscriptionID, errMsg string) {
	if err := rc.subscriptions.MarkReconciliationFailed(ctx, subscriptionID, errMsg); err != nil {
		logger.FromContext(ctx).Error("failed to record reconciliation failure", "subscription_id", subscriptionID, "error", err)
	}
}

// mapStripeSubscription projects a Stripe subscription onto the local
// target fields, mapping Stripe's status vocabulary per the fixed table.
func mapStripeSubscription(sub *stripe.Subscription) store.Subscription {
	return store.Subscription{
		Status:             mapStatus(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC().Truncate(24 * time.Hour),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC().Truncate(24 * time.Hour),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
}

func mapStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return "ACTIVE"
	case stripe.SubscriptionStatusTrialing:
		return "TRIAL"
	case stripe.SubscriptionStatusPastDue:
		return "PAST_DUE"
	case stripe.SubscriptionStatusCanceled:
		return "CANCELLED"
	case stripe.SubscriptionStatusUnpaid:
		return "SUSPENDED"
	case stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusIncompleteExpired:
		return "EXPIRED"
	default:
		return "ACTIVE"
	}
}
