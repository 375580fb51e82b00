// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation.
package email

import "context"

// DraftParams holds a generated draft to deliver to the buyer.
type DraftParams struct {
	To          string // recipient email address
	RequestID   string // generation request id, shown in the footer
	Package     string // message | email | bundle
	MessageText string // may be empty
	Subject     string // may be empty
	EmailText   string // may be empty
	Insight     *InsightBlock
}

// InsightBlock is the insight add-on in renderable form.
type InsightBlock struct {
	Title      string
	Sections   []InsightSection
	Disclaimer string
}

// InsightSection is one titled list of bullets.
type InsightSection struct {
	Title   string
	Bullets []string
}

// ReceiptParams holds the data for the post-payment receipt email.
type ReceiptParams struct {
	To          string
	Package     string
	AmountCents int64  // e.g. 199 for $1.99
	Currency    string // e.g. "usd"
}

// Sender is the interface the worker uses to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	// SendDraft sends the generated draft. Called by the delivery worker
	// after a paid generation succeeds.
	SendDraft(ctx context.Context, p DraftParams) error

	// SendReceipt sends the payment receipt. Called after the Stripe webhook
	// confirms payment.
	SendReceipt(ctx context.Context, p ReceiptParams) error
}
