// Package stripeclient wraps the Stripe SDK with per-tenant secret key
// scoping: every call the batch workflows make is issued against one
// tenant's own Stripe account, never a shared platform key.
package stripeclient

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Client issues Stripe calls scoped to one tenant's secret key.
type Client struct {
	api *client.API
}

// New builds a tenant-scoped Stripe client from a decrypted secret key.
func New(secretKey string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api}
}

// GetSubscription retrieves the canonical subscription state from Stripe.
func (c *Client) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*stripe.Subscription, error) {
	return c.api.Subscriptions.Get(stripeSubscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
}

// GetPaymentIntent retrieves a payment intent with its latest charge expanded.
func (c *Client) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}
	params.AddExpand("latest_charge")
	return c.api.PaymentIntents.Get(paymentIntentID, params)
}

// GetCharge retrieves a charge with its balance transaction expanded.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*stripe.Charge, error) {
	params := &stripe.ChargeParams{
		Params: stripe.Params{Context: ctx},
	}
	params.AddExpand("balance_transaction")
	return c.api.Charges.Get(chargeID, params)
}

// GetBalanceTransaction retrieves the balance transaction carrying the
// authoritative fee and net amounts for a charge.
func (c *Client) GetBalanceTransaction(ctx context.Context, balanceTransactionID string) (*stripe.BalanceTransaction, error) {
	return c.api.BalanceTransactions.Get(balanceTransactionID, &stripe.BalanceTransactionParams{
		Params: stripe.Params{Context: ctx},
	})
}

// GetCheckoutSession retrieves a checkout session with total tax details.
func (c *Client) GetCheckoutSession(ctx context.Context, checkoutSessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	}
	params.AddExpand("total_details")
	return c.api.CheckoutSessions.Get(checkoutSessionID, params)
}
