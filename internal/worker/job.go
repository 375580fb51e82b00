package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/useclearbound-netizen/clearbound-v2/internal/email"
)

// Kind names what a Delivery carries.
type Kind string

const (
	KindDraft   Kind = "draft"
	KindReceipt Kind = "receipt"
)

// Delivery is one unit of work for the Runner. Exactly one of Draft or
// Receipt is set, matching Kind.
type Delivery struct {
	ID      uuid.UUID
	Kind    Kind
	Draft   *email.DraftParams
	Receipt *email.ReceiptParams
}

// NewDraftDelivery wraps a generated draft for the queue.
func NewDraftDelivery(p email.DraftParams) Delivery {
	return Delivery{ID: uuid.New(), Kind: KindDraft, Draft: &p}
}

// NewReceiptDelivery wraps a payment receipt for the queue.
func NewReceiptDelivery(p email.ReceiptParams) Delivery {
	return Delivery{ID: uuid.New(), Kind: KindReceipt, Receipt: &p}
}

// ErrInvalidDelivery is returned for deliveries that can never succeed.
// The Runner does not retry them.
var ErrInvalidDelivery = errors.New("worker: invalid delivery")

// Job sends one delivery through the mailer.
type Job struct {
	mailer email.Sender
	logger *slog.Logger
}

// NewJob constructs a Job with all required dependencies.
func NewJob(mailer email.Sender, logger *slog.Logger) *Job {
	return &Job{mailer: mailer, logger: logger}
}

// Run executes a single delivery:
//
//  1. Check the delivery is well formed.
//  2. Hand it to the mailer.
//
// A mailer error is returned to the Runner, which retries up to MaxRetries
// times.
func (j *Job) Run(ctx context.Context, d Delivery) error {
	log := j.logger.With("delivery_id", d.ID, "kind", d.Kind)

	// ── 1. Validate ───────────────────────────────────────────────────────────
	to, err := recipient(d)
	if err != nil {
		return err
	}

	// ── 2. Send ───────────────────────────────────────────────────────────────
	switch d.Kind {
	case KindDraft:
		err = j.mailer.SendDraft(ctx, *d.Draft)
	case KindReceipt:
		err = j.mailer.SendReceipt(ctx, *d.Receipt)
	}
	if err != nil {
		return fmt.Errorf("job: send %s: %w", d.Kind, err)
	}

	log.Info("job: delivered", "to", to)
	return nil
}

func recipient(d Delivery) (string, error) {
	var to string
	switch d.Kind {
	case KindDraft:
		if d.Draft == nil {
			return "", fmt.Errorf("%w: draft payload missing", ErrInvalidDelivery)
		}
		to = d.Draft.To
	case KindReceipt:
		if d.Receipt == nil {
			return "", fmt.Errorf("%w: receipt payload missing", ErrInvalidDelivery)
		}
		to = d.Receipt.To
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidDelivery, d.Kind)
	}
	if to == "" {
		return "", fmt.Errorf("%w: no recipient", ErrInvalidDelivery)
	}
	return to, nil
}
