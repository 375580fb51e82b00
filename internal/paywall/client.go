// Package paywall prices the draft packages, creates Stripe PaymentIntents
// for checkout, and verifies that a generation request has been paid for.
package paywall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ─── PRICES ───────────────────────────────────────────────────────────────────

// Currency is the only currency charged.
const Currency = "usd"

// Prices in cents.
const (
	PriceMessage      int64 = 199
	PriceEmail        int64 = 299
	PriceBundle       int64 = 399
	PriceAddonInsight int64 = 199
)

var packagePrices = map[string]int64{
	"message": PriceMessage,
	"email":   PriceEmail,
	"bundle":  PriceBundle,
}

// ErrUnknownPackage is returned by Price for a package with no price.
var ErrUnknownPackage = errors.New("paywall: unknown package")

// Price returns the total in cents for pkg, plus the insight add-on if asked.
func Price(pkg string, insight bool) (int64, error) {
	p, ok := packagePrices[pkg]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPackage, pkg)
	}
	if insight {
		p += PriceAddonInsight
	}
	return p, nil
}

// Metadata keys stamped on every PaymentIntent.
const (
	MetaPackage      = "package"
	MetaAddonInsight = "addon_insight"
	MetaDeliverTo    = "deliver_to"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// CreatePaymentIntentParams holds the inputs for creating a Stripe PI.
type CreatePaymentIntentParams struct {
	AmountCents int64
	Currency    string
	Email       string
	Metadata    map[string]string
}

// PaymentIntent is the subset of a Stripe PaymentIntent that callers need.
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	CustomerID   string            `json:"customer"` // may be empty if no Customer was created
	Status       string            `json:"status"`
	AmountCents  int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ReceiptEmail string            `json:"receipt_email"`
	Metadata     map[string]string `json:"metadata"`
}

// Event is a parsed Stripe webhook event. DataRaw contains the raw JSON of the
// event's data.object so handlers can unmarshal only what they need.
type Event struct {
	ID      string
	Type    string
	DataRaw json.RawMessage
}

// ─── CLIENT INTERFACE ─────────────────────────────────────────────────────────

// Client is the interface the api package uses for all Stripe calls.
// The concrete implementation wraps the official stripe-go SDK.
// Tests inject a stub.
type Client interface {
	// CreatePaymentIntent creates a new PI and returns its client_secret.
	CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (PaymentIntent, error)

	// GetPaymentIntent retrieves an existing PI by ID.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (PaymentIntent, error)

	// VerifyWebhook validates the Stripe-Signature header and returns the
	// parsed event. Returns an error if the signature is invalid or expired.
	VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error)
}

// ExtractPaymentIntent decodes the PaymentIntent carried by a
// payment_intent.* event.
func ExtractPaymentIntent(event Event) (PaymentIntent, error) {
	var pi PaymentIntent
	if err := json.Unmarshal(event.DataRaw, &pi); err != nil {
		return PaymentIntent{}, fmt.Errorf("paywall: unmarshal payment intent: %w", err)
	}
	if pi.ID == "" {
		return PaymentIntent{}, fmt.Errorf("paywall: payment intent id is empty in event %s", event.ID)
	}
	return pi, nil
}
