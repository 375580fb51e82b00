package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/useclearbound-netizen/clearbound-v2/internal/paywall"
)

// ─── POST /api/checkout ───────────────────────────────────────────────────────

type createCheckoutRequest struct {
	Package      string `json:"package"`
	AddonInsight bool   `json:"addon_insight"`
	Email        string `json:"email"`
	DeliverTo    string `json:"deliver_to"`
}

type createCheckoutResponse struct {
	OK bool `json:"ok"`
	paywall.Checkout
}

// handleCreateCheckout prices the selection and creates a Stripe
// PaymentIntent. The browser passes client_secret to Stripe.js to confirm
// the charge, then sends payment_intent with the generate request.
func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if !decode(w, r, &req) {
		return
	}

	co, err := s.pay.Checkout(r.Context(), paywall.CheckoutParams{
		Package:      req.Package,
		AddonInsight: req.AddonInsight,
		Email:        req.Email,
		DeliverTo:    req.DeliverTo,
	})
	if errors.Is(err, paywall.ErrUnknownPackage) {
		respondErr(w, http.StatusBadRequest, "UNKNOWN_PACKAGE")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create checkout: %w", err))
		return
	}

	s.logger.Info("checkout: payment intent created",
		"pi", co.PaymentIntentID,
		"package", req.Package,
		"amount", co.AmountCents,
		logField(r),
	)
	respond(w, http.StatusOK, createCheckoutResponse{OK: true, Checkout: co})
}
