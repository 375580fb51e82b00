package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/useclearbound-netizen/clearbound-v2/internal/email"
	"github.com/useclearbound-netizen/clearbound-v2/internal/paywall"
	"github.com/useclearbound-netizen/clearbound-v2/internal/worker"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
//
// Stripe delivers events at-least-once and retries on non-2xx responses. The
// only event we act on is payment_intent.succeeded, which queues a receipt
// email. Everything else is acknowledged and ignored.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// ── 1. Read and size-limit the body ───────────────────────────────────────
	// The signature check runs against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErrMsg(w, http.StatusBadRequest, "BAD_REQUEST", "could not read request body")
		return
	}

	// ── 2. Verify the Stripe-Signature header ─────────────────────────────────
	event, err := s.pay.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"), s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Warn("webhook: invalid signature", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "INVALID_SIGNATURE")
		return
	}

	// ── 3. Dispatch by event type ─────────────────────────────────────────────
	switch event.Type {
	case "payment_intent.succeeded":
		if err := s.onPaymentSucceeded(r, event); err != nil {
			s.logger.Error("webhook: handler error",
				"event_id", event.ID,
				"type", event.Type,
				"error", err,
				logField(r),
			)
			// 500 so Stripe retries delivery.
			respondErr(w, http.StatusInternalServerError, "WEBHOOK_HANDLER_FAILED")
			return
		}
	default:
		s.logger.Debug("webhook: unhandled event type", "type", event.Type, logField(r))
	}

	w.WriteHeader(http.StatusOK)
}

// ─── EVENT HANDLERS ───────────────────────────────────────────────────────────

func (s *Server) onPaymentSucceeded(r *http.Request, event paywall.Event) error {
	pi, err := paywall.ExtractPaymentIntent(event)
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: %w", err)
	}

	s.logger.Info("webhook: payment succeeded",
		"pi", pi.ID,
		"amount", pi.AmountCents,
		"package", pi.Metadata[paywall.MetaPackage],
		logField(r),
	)

	if pi.ReceiptEmail == "" || s.worker == nil {
		return nil
	}

	d := worker.NewReceiptDelivery(email.ReceiptParams{
		To:          pi.ReceiptEmail,
		Package:     pi.Metadata[paywall.MetaPackage],
		AmountCents: pi.AmountCents,
		Currency:    pi.Currency,
	})
	if err := s.worker.Enqueue(r.Context(), d); err != nil {
		return fmt.Errorf("onPaymentSucceeded: enqueue receipt: %w", err)
	}
	return nil
}
