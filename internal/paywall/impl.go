package paywall

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeClient implements Client with a per-instance stripe-go API so the
// package-level stripe.Key is never touched.
type stripeClient struct {
	api *client.API
}

// NewClient returns a Client for the given STRIPE_SECRET_KEY.
func NewClient(secretKey string) Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeClient{api: api}
}

// CreatePaymentIntent creates a card-or-wallet PaymentIntent. When an email
// is given Stripe sends its own receipt to it on success and the webhook
// queues ours.
func (c *stripeClient) CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{},
	}
	for k, v := range p.Metadata {
		params.Metadata[k] = v
	}
	if p.Email != "" {
		params.ReceiptEmail = stripe.String(p.Email)
	}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("paywall: create payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

// GetPaymentIntent retrieves an existing PaymentIntent.
func (c *stripeClient) GetPaymentIntent(ctx context.Context, id string) (PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("paywall: get payment intent %s: %w", id, err)
	}
	return fromStripe(pi), nil
}

// VerifyWebhook checks the Stripe-Signature header against secret within the
// SDK's default tolerance window.
func (c *stripeClient) VerifyWebhook(payload []byte, sigHeader, secret string) (Event, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return Event{}, fmt.Errorf("paywall: verify webhook: %w", err)
	}
	return Event{ID: ev.ID, Type: string(ev.Type), DataRaw: ev.Data.Raw}, nil
}

func fromStripe(pi *stripe.PaymentIntent) PaymentIntent {
	out := PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		ReceiptEmail: pi.ReceiptEmail,
		Metadata:     pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	return out
}
