// Package feestax implements the Fee/Tax Backfiller: scans completed
// transactions in a settlement-delayed window, retrieves Stripe's
// authoritative fee/tax/net figures, and writes them back idempotently.
package feestax

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stripe/stripe-go/v76"

	"github.com/eventforge/batchjobs/internal/joberrors"
	"github.com/eventforge/batchjobs/internal/logger"
	"github.com/eventforge/batchjobs/internal/orchestrator"
	"github.com/eventforge/batchjobs/internal/rategovernor"
	"github.com/eventforge/batchjobs/internal/store"
)

const jobType = "FEES_TAX_BACKFILL"

var (
	sentinelStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	sentinelEnd   = time.Date(2099, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// Vault resolves per-tenant Stripe secrets.
type Vault interface {
	GetProviderSecret(ctx context.Context, tenantID, providerName string) (string, bool)
	Reset()
}

// StripeClient is the capability set the backfiller needs from a
// tenant-scoped Stripe client. Tests substitute an in-memory implementation.
type StripeClient interface {
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error)
	GetCharge(ctx context.Context, chargeID string) (*stripe.Charge, error)
	GetBalanceTransaction(ctx context.Context, balanceTransactionID string) (*stripe.BalanceTransaction, error)
	GetCheckoutSession(ctx context.Context, checkoutSessionID string) (*stripe.CheckoutSession, error)
}

// StripeClientFactory builds a StripeClient scoped to one tenant's secret
// key. A new client is needed per tenant since each tenant reconciles
// against its own Stripe account.
type StripeClientFactory func(secretKey string) StripeClient

// Backfiller implements orchestrator.Workflow for FEES_TAX_BACKFILL.
type Backfiller struct {
	transactions  store.TransactionStore
	summaries     store.ManualPaymentSummaryStore
	vault         Vault
	clientFactory StripeClientFactory
	governor      *rategovernor.Governor

	batchSize       int
	rateLimitDelay  time.Duration
	settlementDelay time.Duration
}

// New builds a Backfiller.
func New(transactions store.TransactionStore, summaries store.ManualPaymentSummaryStore, v Vault, clientFactory StripeClientFactory, governor *rategovernor.Governor, batchSize int, rateLimitDelay, settlementDelay time.Duration) *Backfiller {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Backfiller{
		transactions:    transactions,
		summaries:       summaries,
		vault:           v,
		clientFactory:   clientFactory,
		governor:        governor,
		batchSize:       batchSize,
		rateLimitDelay:  rateLimitDelay,
		settlementDelay: settlementDelay,
	}
}

// Run implements orchestrator.Workflow for both FEES_TAX_BACKFILL and the
// read-only MANUAL_PAYMENT_SUMMARY variant, which reuses the same
// per-tenant aggregation without touching any transaction row.
func (b *Backfiller) Run(ctx context.Context, req orchestrator.TriggerRequest) (processed, success, failed, skipped int, err error) {
	if req.JobType == orchestrator.JobManualPaymentSummary {
		return b.generateSummary(ctx, req)
	}

	log := logger.FromContext(ctx)
	b.vault.Reset()

	start, end := b.resolveWindow(req)

	var totalFees, totalTax decimal.Decimal

	lastID := ""
	for {
		if ctx.Err() != nil {
			return processed, success, failed, skipped, joberrors.NewCancelled("cancelled")
		}

		candidates, selErr := b.transactions.SelectFeeTaxCandidates(ctx, req.TenantID, req.EventID, start, end, req.ForceUpdate, b.batchSize, lastID)
		if selErr != nil {
			return processed, success, failed, skipped, joberrors.NewConfigurationError("select fee tax candidates: " + selErr.Error())
		}
		if len(candidates) == 0 {
			break
		}

		for _, tx := range candidates {
			if ctx.Err() != nil {
				return processed, success, failed, skipped, joberrors.NewCancelled("cancelled")
			}

			processed++
			lastID = tx.ID

			if !req.ForceUpdate && tx.StripeFeeAmount != nil && *tx.StripeFeeAmount > 0 {
				skipped++
				continue
			}

			fee, tax, net, taxIsNull, procErr := b.reconcileOne(ctx, tx)
			if procErr != nil {
				log.Warn("fee/tax reconcile failed", "transaction_id", tx.ID, "error", procErr)
				failed++
				continue
			}

			success++
			totalFees = totalFees.Add(fee)
			if !taxIsNull {
				totalTax = totalTax.Add(tax)
			}
			_ = net
		}

		if len(candidates) < b.batchSize {
			break
		}
	}

	failureRate := 0.0
	if processed > 0 {
		failureRate = float64(failed) / float64(processed)
	}
	if failureRate > 0.10 {
		log.Error("fee/tax backfill failure rate exceeded threshold", "failure_rate", failureRate, "processed", processed, "failed", failed)
	}

	log.Info("fee/tax backfill complete",
		"processed", processed, "success", success, "failed", failed, "skipped", skipped,
		"total_fees", totalFees.String(), "total_tax", totalTax.String())

	return processed, success, failed, skipped, nil
}

// generateSummary aggregates already-reconciled fee/tax/net figures for the
// requested tenant/period and records one manual payment summary row. It
// performs no Stripe calls and mutates nothing in event_ticket_transactions.
func (b *Backfiller) generateSummary(ctx context.Context, req orchestrator.TriggerRequest) (processed, success, failed, skipped int, err error) {
	log := logger.FromContext(ctx)
	start, end := b.resolveWindow(req)

	gross, fees, tax, net, count, aggErr := b.transactions.AggregateFeesTax(ctx, req.TenantID, start, end)
	if aggErr != nil {
		return 1, 0, 1, 0, joberrors.NewConfigurationError("aggregate fees tax: " + aggErr.Error())
	}

	if err := b.summaries.AppendManualPaymentSummary(ctx, req.TenantID, start, end, gross, fees, tax, net, count); err != nil {
		return 1, 0, 1, 0, joberrors.NewConfigurationError("persist manual payment summary: " + err.Error())
	}

	log.Info("manual payment summary generated",
		"tenant_id", req.TenantID, "transaction_count", count,
		"total_gross", gross, "total_fees", fees, "total_tax", tax, "total_net", net)

	return 1, 1, 0, 0, nil
}

// resolveWindow computes the scan window: the default month-to-date window
// with a 14-day settlement cushion, or the explicit window with sentinel
// substitution for absent bounds.
func (b *Backfiller) resolveWindow(req orchestrator.TriggerRequest) (time.Time, time.Time) {
	if req.UseDefaultDateRange {
		now := time.Now()
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end := now.Add(-b.settlementDelay)
		end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999999999, end.Location())
		return start, end
	}

	start := sentinelStart
	if req.StartDate != nil {
		start = *req.StartDate
	}
	end := sentinelEnd
	if req.EndDate != nil {
		end = *req.EndDate
	}
	return start, end
}

// reconcileOne implements the per-transaction algorithm: PaymentIntent →
// Charge → BalanceTransaction traversal for fee/net, then tax lookup via
// CheckoutSession or metadata, then reload-before-write to avoid
// stale-version overwrites.
func (b *Backfiller) reconcileOne(ctx context.Context, tx store.Transaction) (fee, tax, net decimal.Decimal, taxIsNull bool, err error) {
	secret, ok := b.vault.GetProviderSecret(ctx, tx.TenantID, "STRIPE")
	if !ok {
		return decimal.Zero, decimal.Zero, decimal.Zero, true, joberrors.NewTenantMisconfigured("stripe credential not configured", nil)
	}
	client := b.clientFactory(secret)

	var pi *stripe.PaymentIntent
	govErr := b.governor.Run(ctx, func(ctx context.Context) error {
		p, piErr := client.GetPaymentIntent(ctx, tx.StripePaymentIntentID)
		if piErr != nil {
			return joberrors.NewProviderTransient("payment intent retrieve failed", piErr)
		}
		pi = p
		return nil
	})
	if govErr != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, true, govErr
	}

	fee, net, err = b.fetchFeeAndNet(ctx, client, pi)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, true, err
	}

	tax, taxIsNull = b.fetchTax(ctx, client, tx, pi)

	if net.IsZero() {
		finalAmount := decimal.NewFromFloat(tx.FinalAmount)
		net = finalAmount.Sub(fee)
		if !taxIsNull {
			net = net.Sub(tax)
		}
	}

	fee = roundHalfUp2(fee)
	net = roundHalfUp2(net)
	if !taxIsNull {
		tax = roundHalfUp2(tax)
	}

	reloaded, reloadErr := b.transactions.ReloadTransaction(ctx, tx.ID)
	if reloadErr != nil || reloaded == nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, true, joberrors.NewDataNotFound("transaction vanished before write: " + tx.ID)
	}

	if err := b.transactions.UpdateTransactionFeesTax(ctx, tx.ID, fee.InexactFloat64(), tax.InexactFloat64(), net.InexactFloat64(), taxIsNull); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, true, joberrors.NewConfigurationError("persist fee/tax: " + err.Error())
	}

	time.Sleep(b.rateLimitDelay)

	return fee, tax, net, taxIsNull, nil
}

// fetchFeeAndNet retrieves the latest charge's balance transaction, the
// source of Stripe's authoritative fee and net figures. A charge settles
// its balance transaction asynchronously, so one may not exist yet for a
// charge that otherwise looks complete; when that happens this returns a
// ProviderTransient error rather than a fabricated zero fee, so the caller
// counts the item as failed and a later run (once Stripe has settled the
// charge) can pick it back up.
func (b *Backfiller) fetchFeeAndNet(ctx context.Context, client StripeClient, pi *stripe.PaymentIntent) (fee, net decimal.Decimal, err error) {
	if pi.LatestCharge == nil || pi.LatestCharge.ID == "" {
		return decimal.Zero, decimal.Zero, joberrors.NewDataNotFound("payment intent has no latest charge")
	}

	govErr := b.governor.Run(ctx, func(ctx context.Context) error {
		ch, chErr := client.GetCharge(ctx, pi.LatestCharge.ID)
		if chErr != nil {
			return joberrors.NewProviderTransient("charge retrieve failed", chErr)
		}
		if ch.BalanceTransaction == nil || ch.BalanceTransaction.ID == "" {
			return joberrors.NewProviderTransient("charge "+ch.ID+" has no settled balance transaction yet", nil)
		}

		bt, btErr := client.GetBalanceTransaction(ctx, ch.BalanceTransaction.ID)
		if btErr != nil {
			return joberrors.NewProviderTransient("balance transaction retrieve failed", btErr)
		}

		fee = centsToDollars(bt.Fee)
		net = centsToDollars(bt.Net)
		return nil
	})
	return fee, net, govErr
}

// fetchTax tries CheckoutSession's totalDetails.amountTax first, then
// PaymentIntent metadata's tax_amount, then gives up with taxIsNull=true.
func (b *Backfiller) fetchTax(ctx context.Context, client StripeClient, tx store.Transaction, pi *stripe.PaymentIntent) (decimal.Decimal, bool) {
	if tx.StripeCheckoutSessionID != "" {
		var amountTax int64
		var found bool
		govErr := b.governor.Run(ctx, func(ctx context.Context) error {
			sess, err := client.GetCheckoutSession(ctx, tx.StripeCheckoutSessionID)
			if err != nil {
				return joberrors.NewProviderTransient("checkout session retrieve failed", err)
			}
			if sess.TotalDetails != nil {
				amountTax = sess.TotalDetails.AmountTax
				found = true
			}
			return nil
		})
		if govErr == nil && found {
			return centsToDollars(amountTax), false
		}
	}

	if pi.Metadata != nil {
		return parseMetadataTax(pi.Metadata)
	}

	return decimal.Zero, true
}

// parseMetadataTax extracts tax_amount from a PaymentIntent metadata map,
// returning (value, false) on success or (zero, true) if absent/unparsable.
func parseMetadataTax(metadata map[string]string) (decimal.Decimal, bool) {
	raw, ok := metadata["tax_amount"]
	if !ok {
		return decimal.Zero, true
	}
	cents, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return decimal.Zero, true
	}
	return centsToDollars(cents), false
}

func centsToDollars(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

func roundHalfUp2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
