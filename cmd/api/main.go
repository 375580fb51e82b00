package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/useclearbound-netizen/clearbound-v2/internal/api"
	"github.com/useclearbound-netizen/clearbound-v2/internal/config"
	"github.com/useclearbound-netizen/clearbound-v2/internal/email"
	"github.com/useclearbound-netizen/clearbound-v2/internal/generate"
	"github.com/useclearbound-netizen/clearbound-v2/internal/llm"
	"github.com/useclearbound-netizen/clearbound-v2/internal/paywall"
	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
	"github.com/useclearbound-netizen/clearbound-v2/internal/simulate"
	"github.com/useclearbound-netizen/clearbound-v2/internal/store"
	"github.com/useclearbound-netizen/clearbound-v2/internal/templates"
	"github.com/useclearbound-netizen/clearbound-v2/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "risk_model", cfg.RiskModel, "qc_policy", cfg.QCPolicy)

	// Root context cancelled by OS signal. Worker and HTTP server both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Scoring + QC ──────────────────────────────────────────────────────────
	model, err := scoring.New(cfg.RiskModel)
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	policy, err := qc.ParsePolicy(cfg.QCPolicy)
	if err != nil {
		return fmt.Errorf("qc: %w", err)
	}

	// ── Text generation ───────────────────────────────────────────────────────
	gen, err := buildGenerator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	// ── Prompt templates ──────────────────────────────────────────────────────
	// GitHub (when configured) → Postgres (when configured) → embedded.
	var sources templates.Chain
	if cfg.PromptsRepo != "" {
		gh, err := templates.NewGitHubSource(cfg.PromptsRepo, cfg.PromptsRef)
		if err != nil {
			return fmt.Errorf("templates: %w", err)
		}
		sources = append(sources, gh)
		logger.Info("templates: github source", "repo", cfg.PromptsRepo, "ref", cfg.PromptsRef)
	}
	if cfg.PromptsDatabaseURL != "" {
		st, err := store.Open(ctx, cfg.PromptsDatabaseURL, cfg.PromptsTable)
		if err != nil {
			return fmt.Errorf("templates: %w", err)
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("templates: %w", err)
		}
		sources = append(sources, templates.NewPostgresSource(st))
		logger.Info("templates: postgres source", "table", cfg.PromptsTable)
	}
	sources = append(sources, templates.NewEmbeddedSource())

	loader := templates.NewLoader(sources, templates.NewCache(cfg.PromptCacheEntries, cfg.PromptCacheTTL), logger)

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch := generate.New(model, gen, loader, qc.New(policy), generate.Config{
		GenerationTimeout: cfg.GenerationTimeout,
		RepairTimeout:     cfg.RepairTimeout,
		InsightTimeout:    cfg.InsightTimeout,
	}, logger)

	// ── Stripe ────────────────────────────────────────────────────────────────
	var pay *paywall.Paywall
	if cfg.StripeSecretKey != "" {
		pay = paywall.New(paywall.NewClient(cfg.StripeSecretKey))
		logger.Info("paywall: stripe enabled", "require_payment", cfg.RequirePayment)
	}

	// ── Email (Resend) + worker ───────────────────────────────────────────────
	var (
		enqueuer worker.Enqueuer
		runner   *worker.Runner
	)
	if cfg.ResendAPIKey != "" {
		mailer := email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFromAddr, cfg.EmailFromName)
		runner = worker.NewRunner(worker.NewJob(mailer, logger), worker.RunnerConfig{
			Workers:    cfg.WorkerCount,
			JobTimeout: cfg.JobTimeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)
		enqueuer = runner
	} else {
		logger.Info("email: RESEND_API_KEY not set, delivery disabled")
	}

	// ── Simulation matrix ─────────────────────────────────────────────────────
	matrix, err := simulate.Load()
	if err != nil {
		return err
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		orch,
		pay,
		enqueuer,
		matrix,
		api.Config{
			Env:                 cfg.Env,
			AllowOrigins:        cfg.AllowOrigins,
			MaxBodyBytes:        cfg.MaxBodyBytes,
			SimKey:              cfg.SimKey,
			ReturnEngine:        cfg.ReturnEngine,
			RequirePayment:      cfg.RequirePayment,
			StripeWebhookSecret: cfg.StripeWebhookSecret,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // main + repair + insight calls
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	workerDone := make(chan struct{})
	if runner != nil {
		go func() {
			runner.Start(ctx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	<-workerDone
	logger.Info("shutdown complete")
	return nil
}

// providerOrder is the fallback preference after the configured primary.
var providerOrder = []string{"openai", "anthropic", "deepseek", "gemini"}

// buildGenerator returns the LLM_PROVIDER client, wrapped with a fallback to
// the first other provider that has a key. Set two keys for resilience.
func buildGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Generator, error) {
	primary, err := newProvider(ctx, cfg, cfg.LLMProvider)
	if err != nil {
		return nil, err
	}

	for _, name := range providerOrder {
		if name == cfg.LLMProvider || !hasKey(cfg, name) {
			continue
		}
		secondary, err := newProvider(ctx, cfg, name)
		if err != nil {
			logger.Warn("llm: fallback provider unavailable", "provider", name, "error", err)
			continue
		}
		logger.Info("llm: provider selected", "primary", cfg.LLMProvider, "fallback", name)
		return llm.NewFallback(primary, secondary, logger), nil
	}

	logger.Info("llm: provider selected", "primary", cfg.LLMProvider)
	return primary, nil
}

func hasKey(cfg *config.Config, name string) bool {
	switch name {
	case "openai":
		return cfg.OpenAIAPIKey != ""
	case "anthropic":
		return cfg.AnthropicAPIKey != ""
	case "deepseek":
		return cfg.DeepSeekAPIKey != ""
	case "gemini":
		return cfg.GeminiAPIKey != ""
	}
	return false
}

func newProvider(ctx context.Context, cfg *config.Config, name string) (llm.Generator, error) {
	switch name {
	case "openai":
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, llm.Models{
			Default:  cfg.ModelDefault,
			HighRisk: cfg.ModelHighRisk,
			Insight:  cfg.ModelInsight,
		}), nil
	case "anthropic":
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey, llm.Models{Default: cfg.AnthropicModel}), nil
	case "deepseek":
		return llm.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel), nil
	case "gemini":
		c, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, llm.Models{Default: cfg.GeminiModel})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}
