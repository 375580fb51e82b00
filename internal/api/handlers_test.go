package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/useclearbound-netizen/clearbound-v2/internal/api"
	"github.com/useclearbound-netizen/clearbound-v2/internal/generate"
	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
	"github.com/useclearbound-netizen/clearbound-v2/internal/paywall"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
	"github.com/useclearbound-netizen/clearbound-v2/internal/simulate"
	"github.com/useclearbound-netizen/clearbound-v2/internal/worker"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubGenerator returns a fixed result or error and records what it saw.
type stubGenerator struct {
	mu     sync.Mutex
	res    *generate.Result
	err    error
	states []normalize.State
}

func (g *stubGenerator) Generate(_ context.Context, s normalize.State) (*generate.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states = append(g.states, s)
	return g.res, g.err
}

// stubPayments is a controllable paywall.Client.
type stubPayments struct {
	pi          paywall.PaymentIntent
	getErr      error
	verifyEvent paywall.Event
	verifyErr   error
}

func (s *stubPayments) CreatePaymentIntent(_ context.Context, p paywall.CreatePaymentIntentParams) (paywall.PaymentIntent, error) {
	return paywall.PaymentIntent{ID: "pi_test", ClientSecret: "cs_test", AmountCents: p.AmountCents}, nil
}

func (s *stubPayments) GetPaymentIntent(_ context.Context, id string) (paywall.PaymentIntent, error) {
	pi := s.pi
	pi.ID = id
	return pi, s.getErr
}

func (s *stubPayments) VerifyWebhook(_ []byte, _ string, _ string) (paywall.Event, error) {
	return s.verifyEvent, s.verifyErr
}

// stubWorker records enqueued deliveries.
type stubWorker struct {
	enqueued []worker.Delivery
	err      error
}

func (w *stubWorker) Enqueue(_ context.Context, d worker.Delivery) error {
	w.enqueued = append(w.enqueued, d)
	return w.err
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

type testDeps struct {
	gen      *stubGenerator
	payments *stubPayments
	worker   *stubWorker
	handler  http.Handler
}

func ptr(s string) *string { return &s }

func okResult() *generate.Result {
	return &generate.Result{
		RequestID: "req-1",
		Data:      generate.Output{MessageText: ptr("Hello.\n\nMiddle.\n\nBye.")},
		Parameters: scoring.Parameters{
			Model:       scoring.ModelAggregate,
			OverallTier: scoring.TierMedium,
		},
	}
}

func newTestServer(t *testing.T, cfgOverrides ...func(*api.Config)) *testDeps {
	t.Helper()

	matrix, err := simulate.Load()
	if err != nil {
		t.Fatalf("load matrix: %v", err)
	}

	deps := &testDeps{
		gen:      &stubGenerator{res: okResult()},
		payments: &stubPayments{},
		worker:   &stubWorker{},
	}

	cfg := api.Config{
		Env:                 "development",
		AllowOrigins:        []string{"*"},
		MaxBodyBytes:        220_000,
		StripeWebhookSecret: "whsec_test",
	}
	for _, fn := range cfgOverrides {
		fn(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps.handler = api.NewServer(deps.gen, paywall.New(deps.payments), deps.worker, matrix, cfg, logger)
	return deps
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (raw: %s)", err, rr.Body.String())
	}
}

// validState is a request that passes the required-field gate.
func validState(pkg string) map[string]any {
	return map[string]any{
		"target":       map[string]any{"recipient_type": "peer", "power_balance": "equal", "formality": "neutral"},
		"relationship": map[string]any{"importance": "medium", "continuity": "short_term"},
		"facts":        map[string]any{"what_happened": "Two deadlines moved this week and nobody confirmed which one comes first."},
		"strategy":     map[string]any{"direction": "reset", "action_objective": "clarify_priority", "tone": "calm", "detail": "standard"},
		"paywall":      map[string]any{"package": pkg},
	}
}

type errResp struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing"`
	Issues  []string `json:"issues"`
	Raw     string   `json:"raw"`
}

// ─── GET /healthz ─────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("security headers missing: %v", rr.Header())
	}
}

// ─── POST /api/generate ───────────────────────────────────────────────────────

func TestGenerate_Success(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", validState("message"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["ok"] != true {
		t.Errorf("ok = %v", resp["ok"])
	}
	data := resp["data"].(map[string]any)
	if data["message_text"] != "Hello.\n\nMiddle.\n\nBye." || data["email_text"] != nil {
		t.Errorf("data = %v", data)
	}
	if _, ok := resp["engine"]; ok {
		t.Error("engine should only be echoed when enabled")
	}
	if _, ok := resp["delivery"]; ok {
		t.Error("no delivery without deliver_to")
	}
}

func TestGenerate_ReturnEngine(t *testing.T) {
	deps := newTestServer(t, func(c *api.Config) { c.ReturnEngine = true })
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", validState("message"), nil)

	var resp struct {
		Engine *scoring.Parameters `json:"engine"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Engine == nil || resp.Engine.OverallTier != scoring.TierMedium {
		t.Errorf("engine = %+v", resp.Engine)
	}
}

func TestGenerate_RequestErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		maxBytes    int64
		wantStatus  int
		wantError   string
	}{
		{"not json content type", "text/plain", `{}`, 0, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
		{"too large", "application/json", `{"facts":{"what_happened":"` + strings.Repeat("x", 200) + `"}}`, 64, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"},
		{"malformed", "application/json", `{bad json`, 0, http.StatusBadRequest, "BAD_REQUEST"},
		{"array", "application/json", `[1,2]`, 0, http.StatusBadRequest, "BAD_REQUEST"},
		{"empty object", "application/json; charset=utf-8", `{}`, 0, http.StatusBadRequest, generate.CodeMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestServer(t, func(c *api.Config) {
				if tt.maxBytes > 0 {
					c.MaxBodyBytes = tt.maxBytes
				}
			})
			req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()
			deps.handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			var resp errResp
			decodeJSON(t, rr, &resp)
			if resp.OK || resp.Error != tt.wantError {
				t.Errorf("body = %+v", resp)
			}
			if len(deps.gen.states) != 0 {
				t.Error("generator must not be called for a rejected request")
			}
		})
	}
}

func TestGenerate_MissingFieldsListed(t *testing.T) {
	deps := newTestServer(t)
	state := validState("email")
	delete(state, "strategy")

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", state, nil)
	var resp errResp
	decodeJSON(t, rr, &resp)

	want := []string{"MISSING_DIRECTION", "MISSING_ACTION_OBJECTIVE", "MISSING_TONE", "MISSING_DETAIL"}
	if diff := cmp.Diff(want, resp.Missing); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}
}

func TestGenerate_AcceptsWrappedAndEncodedState(t *testing.T) {
	inner, _ := json.Marshal(validState("bundle"))
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", map[string]any{"state": string(inner)}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := deps.gen.states[0].Paywall.Package; got != "bundle" {
		t.Errorf("package = %q", got)
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{&generate.Error{Code: generate.CodePromptLoadFailed, Message: "fetch failed"}, http.StatusInternalServerError},
		{&generate.Error{Code: generate.CodeGenerationTimeout}, http.StatusBadGateway},
		{&generate.Error{Code: generate.CodeGenerationFailed}, http.StatusBadGateway},
		{&generate.Error{Code: generate.CodeNonJSON, Raw: "not json"}, http.StatusBadGateway},
		{&generate.Error{Code: generate.CodeQCFailed, Issues: []string{"message_paragraphs_must_be_3"}}, http.StatusBadGateway},
		{&generate.Error{Code: generate.CodeInternal}, http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code := generate.CodeOf(tt.err)
		t.Run(code, func(t *testing.T) {
			deps := newTestServer(t)
			deps.gen.res, deps.gen.err = nil, tt.err

			rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", validState("message"), nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var resp errResp
			decodeJSON(t, rr, &resp)
			if resp.Error != code {
				t.Errorf("error = %q, want %q", resp.Error, code)
			}
			var ge *generate.Error
			if errors.As(tt.err, &ge) {
				if diff := cmp.Diff(ge.Issues, resp.Issues); diff != "" {
					t.Errorf("issues (-want +got):\n%s", diff)
				}
				if resp.Raw != ge.Raw {
					t.Errorf("raw = %q", resp.Raw)
				}
			}
		})
	}
}

func TestGenerate_Payment(t *testing.T) {
	tests := []struct {
		name       string
		intent     string
		pi         paywall.PaymentIntent
		getErr     error
		wantStatus int
		wantError  string
	}{
		{"no intent", "", paywall.PaymentIntent{}, nil, http.StatusPaymentRequired, "PAYMENT_REQUIRED"},
		{"processing", "pi_1", paywall.PaymentIntent{Status: "processing", AmountCents: 199}, nil, http.StatusPaymentRequired, "PAYMENT_REQUIRED"},
		{"wrong package", "pi_1", paywall.PaymentIntent{Status: "succeeded", AmountCents: 399, Metadata: map[string]string{"package": "bundle"}}, nil, http.StatusPaymentRequired, "PAYMENT_MISMATCH"},
		{"stripe down", "pi_1", paywall.PaymentIntent{}, errors.New("timeout"), http.StatusBadGateway, "PAYMENT_CHECK_FAILED"},
		{"paid", "pi_1", paywall.PaymentIntent{Status: "succeeded", AmountCents: 199, Metadata: map[string]string{"package": "message"}}, nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestServer(t, func(c *api.Config) { c.RequirePayment = true })
			deps.payments.pi, deps.payments.getErr = tt.pi, tt.getErr

			state := validState("message")
			state["paywall"] = map[string]any{"package": "message", "payment_intent": tt.intent}
			rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", state, nil)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantError != "" {
				var resp errResp
				decodeJSON(t, rr, &resp)
				if resp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
				}
				if len(deps.gen.states) != 0 {
					t.Error("generator must not run before payment is verified")
				}
			}
		})
	}
}

func TestGenerate_QueuesDelivery(t *testing.T) {
	deps := newTestServer(t)
	deps.gen.res.Data.Insight = generate.FallbackInsight()

	state := validState("message")
	state["paywall"] = map[string]any{"package": "message", "addon_insight": true, "deliver_to": "buyer@example.com"}
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", state, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Delivery string `json:"delivery"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Delivery != "queued" {
		t.Errorf("delivery = %q", resp.Delivery)
	}

	if len(deps.worker.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(deps.worker.enqueued))
	}
	d := deps.worker.enqueued[0]
	if d.Kind != worker.KindDraft || d.Draft.To != "buyer@example.com" || d.Draft.RequestID != "req-1" {
		t.Errorf("delivery = %+v", d)
	}
	if d.Draft.MessageText == "" {
		t.Error("draft should carry the message text")
	}
	if d.Draft.Insight == nil || d.Draft.Insight.Title != generate.FallbackInsight().Title || len(d.Draft.Insight.Sections) == 0 {
		t.Errorf("insight = %+v", d.Draft.Insight)
	}
}

func TestGenerate_DeliveryQueueFullStillSucceeds(t *testing.T) {
	deps := newTestServer(t)
	deps.worker.err = worker.ErrQueueFull

	state := validState("message")
	state["paywall"] = map[string]any{"package": "message", "deliver_to": "buyer@example.com"}
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/generate", state, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Delivery string `json:"delivery"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Delivery != "failed" {
		t.Errorf("delivery = %q", resp.Delivery)
	}
}

func TestGenerate_WrongMethod(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/generate", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	var resp errResp
	decodeJSON(t, rr, &resp)
	if resp.Error != "METHOD_NOT_ALLOWED" {
		t.Errorf("error = %q", resp.Error)
	}
}

// ─── GET /api/sim/v1/run ──────────────────────────────────────────────────────

func TestSimRun(t *testing.T) {
	deps := newTestServer(t, func(c *api.Config) { c.SimKey = "s3cret" })

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/sim/v1/run", nil, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("without key: expected 403, got %d", rr.Code)
	}

	rr = doRequest(t, deps.handler, http.MethodGet, "/api/sim/v1/run", nil, map[string]string{"X-Sim-Key": "s3cret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("with key: expected 200, got %d", rr.Code)
	}
	var sum simulate.Summary
	decodeJSON(t, rr, &sum)
	if !sum.OK || sum.Count != 10 || sum.Results != nil {
		t.Errorf("summary = %+v", sum)
	}

	rr = doRequest(t, deps.handler, http.MethodGet, "/api/sim/v1/run?full=1", nil, map[string]string{"X-Sim-Key": "s3cret"})
	var full simulate.Summary
	decodeJSON(t, rr, &full)
	if len(full.Results) != 10 {
		t.Errorf("full results = %d", len(full.Results))
	}
}

// ─── POST /api/checkout ───────────────────────────────────────────────────────

func TestCheckout(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/checkout",
		map[string]any{"package": "bundle", "addon_insight": true, "email": "a@example.com"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		OK           bool   `json:"ok"`
		ClientSecret string `json:"client_secret"`
		Amount       int64  `json:"amount"`
		Currency     string `json:"currency"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.OK || resp.ClientSecret != "cs_test" || resp.Amount != 598 || resp.Currency != "usd" {
		t.Errorf("resp = %+v", resp)
	}

	rr = doRequest(t, deps.handler, http.MethodPost, "/api/checkout", map[string]any{"package": "fax"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown package: expected 400, got %d", rr.Code)
	}

	rr = doRequest(t, deps.handler, http.MethodPost, "/api/checkout", map[string]any{"package": "email", "coupon": "FREE"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", rr.Code)
	}
}

func TestCheckout_NotMountedWithoutStripe(t *testing.T) {
	matrix, _ := simulate.Load()
	handler := api.NewServer(&stubGenerator{res: okResult()}, nil, nil, matrix, api.Config{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := doRequest(t, handler, http.MethodPost, "/api/checkout", map[string]any{"package": "message"}, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

func TestWebhook_InvalidSignature(t *testing.T) {
	deps := newTestServer(t)
	deps.payments.verifyErr = errors.New("bad sig")

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWebhook_PaymentSucceededQueuesReceipt(t *testing.T) {
	deps := newTestServer(t)
	raw, _ := json.Marshal(map[string]any{
		"id":            "pi_1",
		"status":        "succeeded",
		"amount":        398,
		"currency":      "usd",
		"receipt_email": "buyer@example.com",
		"metadata":      map[string]string{"package": "message", "addon_insight": "true"},
	})
	deps.payments.verifyEvent = paywall.Event{ID: "evt_1", Type: "payment_intent.succeeded", DataRaw: raw}

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(deps.worker.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(deps.worker.enqueued))
	}
	r := deps.worker.enqueued[0].Receipt
	if r == nil || r.To != "buyer@example.com" || r.AmountCents != 398 || r.Package != "message" {
		t.Errorf("receipt = %+v", r)
	}
}

func TestWebhook_OtherEventsAcked(t *testing.T) {
	deps := newTestServer(t)
	deps.payments.verifyEvent = paywall.Event{ID: "evt_2", Type: "charge.refunded"}

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(deps.worker.enqueued) != 0 {
		t.Error("nothing should be enqueued")
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allow      []string
		origin     string
		method     string
		wantStatus int
		wantHeader string
	}{
		{"wildcard", []string{"*"}, "https://any.example", http.MethodGet, http.StatusOK, "*"},
		{"listed origin echoed", []string{"https://app.clearbound.app"}, "https://app.clearbound.app", http.MethodGet, http.StatusOK, "https://app.clearbound.app"},
		{"unlisted origin rejected", []string{"https://app.clearbound.app"}, "https://evil.example", http.MethodGet, http.StatusForbidden, ""},
		{"preflight", []string{"*"}, "http://localhost:3000", http.MethodOptions, http.StatusNoContent, "*"},
		{"no origin", []string{"https://app.clearbound.app"}, "", http.MethodGet, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestServer(t, func(c *api.Config) { c.AllowOrigins = tt.allow })
			req := httptest.NewRequest(tt.method, "/healthz", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			deps.handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
			if tt.wantStatus == http.StatusForbidden {
				var resp errResp
				decodeJSON(t, rr, &resp)
				if resp.Error != "ORIGIN_NOT_ALLOWED" {
					t.Errorf("error = %q", resp.Error)
				}
			}
		})
	}
}
