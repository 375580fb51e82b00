package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/useclearbound-netizen/clearbound-v2/internal/email"
	"github.com/useclearbound-netizen/clearbound-v2/internal/generate"
	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
	"github.com/useclearbound-netizen/clearbound-v2/internal/paywall"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
	"github.com/useclearbound-netizen/clearbound-v2/internal/worker"
)

// ─── POST /api/generate ───────────────────────────────────────────────────────

type generateResponse struct {
	OK           bool                `json:"ok"`
	Data         generate.Output     `json:"data"`
	Engine       *scoring.Parameters `json:"engine,omitempty"`
	InsightError string              `json:"insight_error,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
	Delivery     string              `json:"delivery,omitempty"` // queued | failed
}

// generateStatus maps orchestration error codes onto HTTP statuses.
var generateStatus = map[string]int{
	generate.CodeMissingFields:     http.StatusBadRequest,
	generate.CodeUnknownPackage:    http.StatusBadRequest,
	generate.CodePromptLoadFailed:  http.StatusInternalServerError,
	generate.CodeGenerationTimeout: http.StatusBadGateway,
	generate.CodeGenerationFailed:  http.StatusBadGateway,
	generate.CodeNonJSON:           http.StatusBadGateway,
	generate.CodeQCFailed:          http.StatusBadGateway,
	generate.CodeInternal:          http.StatusInternalServerError,
}

// handleGenerate runs the full pipeline for one request body:
//
//  1. Require a JSON content type and a readable, size-limited body.
//  2. Normalize the state (flat, wrapped or string-encoded).
//  3. Reject missing fields before any payment or model call.
//  4. Verify payment when the deployment requires it.
//  5. Generate, validate and (at most once) repair.
//  6. Queue email delivery when deliver_to is set.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	// ── 1. Content type and body ──────────────────────────────────────────────
	if !isJSONRequest(r) {
		respondErr(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondErr(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE")
			return
		}
		respondErrMsg(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid body")
		return
	}
	if !isObjectBody(raw) {
		respondErrMsg(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}

	// ── 2. Normalize ──────────────────────────────────────────────────────────
	state := normalize.Decode(raw)

	// ── 3. Required fields ────────────────────────────────────────────────────
	if err := generate.Preflight(state); err != nil {
		s.respondGenerateErr(w, r, err)
		return
	}

	// ── 4. Payment ────────────────────────────────────────────────────────────
	if s.cfg.RequirePayment && s.pay != nil {
		_, err := s.pay.Verify(r.Context(), string(state.Paywall.PaymentIntent),
			string(state.Paywall.Package), state.WantsInsight())
		switch {
		case errors.Is(err, paywall.ErrNotPaid):
			respondErrMsg(w, http.StatusPaymentRequired, "PAYMENT_REQUIRED", err.Error())
			return
		case errors.Is(err, paywall.ErrMismatch):
			respondErrMsg(w, http.StatusPaymentRequired, "PAYMENT_MISMATCH", err.Error())
			return
		case err != nil:
			s.logger.Error("generate: payment check failed", "error", err, logField(r))
			respondErr(w, http.StatusBadGateway, "PAYMENT_CHECK_FAILED")
			return
		}
	}

	// ── 5. Generate ───────────────────────────────────────────────────────────
	res, err := s.gen.Generate(r.Context(), state)
	if err != nil {
		s.respondGenerateErr(w, r, err)
		return
	}

	resp := generateResponse{
		OK:           true,
		Data:         res.Data,
		InsightError: res.InsightError,
		Warnings:     res.Warnings,
	}
	if s.cfg.ReturnEngine {
		params := res.Parameters
		resp.Engine = &params
	}

	// ── 6. Delivery ───────────────────────────────────────────────────────────
	if to := string(state.Paywall.DeliverTo); to != "" && s.worker != nil {
		d := worker.NewDraftDelivery(draftParams(to, string(state.Paywall.Package), res))
		if err := s.worker.Enqueue(r.Context(), d); err != nil {
			s.logger.Warn("generate: enqueue delivery failed", "error", err, logField(r))
			resp.Delivery = "failed"
		} else {
			resp.Delivery = "queued"
		}
	}

	respond(w, http.StatusOK, resp)
}

// respondGenerateErr writes the error envelope for an orchestration failure.
func (s *Server) respondGenerateErr(w http.ResponseWriter, r *http.Request, err error) {
	var ge *generate.Error
	if !errors.As(err, &ge) {
		s.respondInternalErr(w, r, err)
		return
	}
	status, ok := generateStatus[ge.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		s.logger.Warn("generate: failed", "code", ge.Code, "error", err, logField(r))
	}
	respond(w, status, errorBody{
		Error:   ge.Code,
		Message: ge.Message,
		Missing: ge.Missing,
		Issues:  ge.Issues,
		Raw:     ge.Raw,
	})
}

// isJSONRequest accepts application/json with any parameters.
func isJSONRequest(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// isObjectBody reports whether raw is a JSON object or a JSON string (which
// the normalizer will decode a second time).
func isObjectBody(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '"') {
		return false
	}
	return json.Valid(raw)
}

// draftParams converts a result into the delivery email payload.
func draftParams(to, pkg string, res *generate.Result) email.DraftParams {
	p := email.DraftParams{
		To:        to,
		RequestID: res.RequestID,
		Package:   pkg,
		Insight:   insightBlock(res.Data.Insight),
	}
	if res.Data.MessageText != nil {
		p.MessageText = *res.Data.MessageText
	}
	if res.Data.EmailText != nil {
		p.EmailText = *res.Data.EmailText
	}
	if res.Data.Subject != nil {
		p.Subject = *res.Data.Subject
	}
	return p
}

// insightBlock reshapes the insight, which is either a parsed model object
// or the fallback, into its email form. Nil when absent or unreadable.
func insightBlock(v any) *email.InsightBlock {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var in generate.Insight
	if err := json.Unmarshal(b, &in); err != nil || in.Title == "" {
		return nil
	}
	out := &email.InsightBlock{Title: in.Title, Disclaimer: in.Disclaimer}
	for _, sec := range in.Sections {
		out.Sections = append(out.Sections, email.InsightSection{Title: sec.Title, Bullets: sec.Bullets})
	}
	return out
}
