// Package api implements the HTTP layer for ClearBound. Handlers are methods
// on *Server. Each handler file is responsible for one route group and only
// imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/useclearbound-netizen/clearbound-v2/internal/generate"
	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
	"github.com/useclearbound-netizen/clearbound-v2/internal/paywall"
	"github.com/useclearbound-netizen/clearbound-v2/internal/simulate"
	"github.com/useclearbound-netizen/clearbound-v2/internal/worker"
)

// requestTimeout bounds a whole request: main, repair and insight calls
// plus template loading.
const requestTimeout = 75 * time.Second

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// AllowOrigins is the CORS allow-list. ["*"] allows every origin.
	AllowOrigins []string

	// MaxBodyBytes caps the /api/generate request body.
	MaxBodyBytes int64

	// SimKey, when set, must match the X-Sim-Key header on /api/sim.
	SimKey string

	// ReturnEngine echoes the computed parameters in generate responses.
	ReturnEngine bool

	// RequirePayment makes /api/generate verify paywall.payment_intent.
	RequirePayment bool

	// StripeWebhookSecret is the signing secret from the Stripe dashboard.
	StripeWebhookSecret string
}

// Generator runs the generation pipeline. *generate.Orchestrator satisfies it.
type Generator interface {
	Generate(ctx context.Context, s normalize.State) (*generate.Result, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// gen turns a normalized request into a validated artifact.
	gen Generator

	// pay creates and verifies payments. Nil when Stripe is not configured;
	// the checkout and webhook routes are then not mounted.
	pay *paywall.Paywall

	// worker enqueues email deliveries. Nil disables delivery.
	worker worker.Enqueuer

	// matrix is the simulation matrix served by /api/sim/v1/run.
	matrix simulate.Matrix

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Server.
func NewServer(
	gen Generator,
	pay *paywall.Paywall,
	enqueuer worker.Enqueuer,
	matrix simulate.Matrix,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 220_000
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	s := &Server{
		gen:    gen,
		pay:    pay,
		worker: enqueuer,
		matrix: matrix,
		cfg:    cfg,
		logger: logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondErr(w, http.StatusNotFound, "NOT_FOUND")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondErr(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	})

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)

		// Simulation: optional shared-key gate inside the handler.
		r.Get("/sim/v1/run", s.handleSimRun)

		if s.pay != nil {
			r.Post("/checkout", s.handleCreateCheckout)

			// Stripe webhook: no auth (signature verification inside handler).
			r.Post("/webhooks/stripe", s.handleStripeWebhook)
		}
	})

	return r
}
