package paywall

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotPaid means no succeeded PaymentIntent covers the request.
	ErrNotPaid = errors.New("paywall: payment not completed")
	// ErrMismatch means the PaymentIntent was bought for a different package.
	ErrMismatch = errors.New("paywall: payment does not cover this package")
)

// StatusSucceeded is Stripe's terminal success status.
const StatusSucceeded = "succeeded"

// CheckoutParams is what a buyer selects.
type CheckoutParams struct {
	Package      string
	AddonInsight bool
	Email        string
	DeliverTo    string
}

// Checkout is the client-side handle for a created PaymentIntent.
type Checkout struct {
	PaymentIntentID string `json:"payment_intent"`
	ClientSecret    string `json:"client_secret"`
	AmountCents     int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// Paywall creates and checks payments through a Client.
type Paywall struct {
	client Client
}

// New returns a Paywall backed by client.
func New(client Client) *Paywall {
	return &Paywall{client: client}
}

// Checkout prices the selection and creates a PaymentIntent for it.
func (p *Paywall) Checkout(ctx context.Context, cp CheckoutParams) (Checkout, error) {
	amount, err := Price(cp.Package, cp.AddonInsight)
	if err != nil {
		return Checkout{}, err
	}
	meta := map[string]string{
		MetaPackage:      cp.Package,
		MetaAddonInsight: strconv.FormatBool(cp.AddonInsight),
	}
	if cp.DeliverTo != "" {
		meta[MetaDeliverTo] = cp.DeliverTo
	}

	pi, err := p.client.CreatePaymentIntent(ctx, CreatePaymentIntentParams{
		AmountCents: amount,
		Currency:    Currency,
		Email:       cp.Email,
		Metadata:    meta,
	})
	if err != nil {
		return Checkout{}, err
	}
	return Checkout{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		AmountCents:     amount,
		Currency:        Currency,
	}, nil
}

// Verify checks that paymentIntentID has succeeded and was bought for pkg
// (and the insight add-on, when requested).
func (p *Paywall) Verify(ctx context.Context, paymentIntentID, pkg string, insight bool) (PaymentIntent, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return PaymentIntent{}, fmt.Errorf("%w: no payment intent supplied", ErrNotPaid)
	}
	pi, err := p.client.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return PaymentIntent{}, err
	}
	if pi.Status != StatusSucceeded {
		return pi, fmt.Errorf("%w: status %s", ErrNotPaid, pi.Status)
	}

	want, err := Price(pkg, insight)
	if err != nil {
		return pi, err
	}
	if pi.AmountCents < want {
		return pi, fmt.Errorf("%w: paid %d, need %d", ErrMismatch, pi.AmountCents, want)
	}
	if got := pi.Metadata[MetaPackage]; got != "" && got != pkg {
		return pi, fmt.Errorf("%w: bought %q, requested %q", ErrMismatch, got, pkg)
	}
	if insight && pi.Metadata[MetaAddonInsight] == "false" {
		return pi, fmt.Errorf("%w: insight add-on not purchased", ErrMismatch)
	}
	return pi, nil
}

// VerifyWebhook checks a webhook signature and returns the parsed event.
func (p *Paywall) VerifyWebhook(payload []byte, sigHeader, secret string) (Event, error) {
	return p.client.VerifyWebhook(payload, sigHeader, secret)
}
