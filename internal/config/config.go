// Package config loads and validates all environment variables at startup.
// Every other package receives typed values; nothing reads os.Getenv directly.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port         string   // default "8080"
	Env          string   // "development" | "staging" | "production"
	AllowOrigins []string // ALLOW_ORIGIN: "*" or comma-separated origins
	MaxBodyBytes int64    // default 220000
	SimKey       string   // optional; when set, /api/sim requires X-Sim-Key

	// ── Engine ────────────────────────────────────────────────────────────────
	RiskModel    string // "aggregate" | "strategy_map"
	QCPolicy     string // "relaxed" | "strict"
	ReturnEngine bool   // echo engine parameters in responses

	// ── Text generation ───────────────────────────────────────────────────────
	// LLMProvider picks the primary provider. When a second provider has a
	// key it is used as the fallback on upstream failure.
	LLMProvider string // "openai" | "anthropic" | "deepseek" | "gemini"

	OpenAIAPIKey  string
	ModelDefault  string // default "gpt-4.1-mini"
	ModelHighRisk string // default "gpt-4.1"
	ModelInsight  string // default "gpt-4.1"

	AnthropicAPIKey string
	AnthropicModel  string // default "claude-sonnet-4-5"

	DeepSeekAPIKey string
	DeepSeekModel  string // default "deepseek-chat"

	GeminiAPIKey string
	GeminiModel  string // default "gemini-2.5-flash"

	GenerationTimeout time.Duration // default 22s
	RepairTimeout     time.Duration // default 22s
	InsightTimeout    time.Duration // default 16s

	// ── Prompt templates ──────────────────────────────────────────────────────
	PromptsRepo        string        // owner/name on GitHub; empty disables remote fetch
	PromptsRef         string        // default "main"
	PromptsDatabaseURL string        // optional Postgres template store
	PromptsTable       string        // default "prompt_templates"
	PromptCacheTTL     time.Duration // default 5m
	PromptCacheEntries int           // default 80

	// ── Stripe ────────────────────────────────────────────────────────────────
	StripeSecretKey     string // optional; enables checkout and paywall checks
	StripeWebhookSecret string // required for the webhook route when Stripe is on
	RequirePayment      bool   // when true, /api/generate verifies the PaymentIntent

	// ── Resend ────────────────────────────────────────────────────────────────
	ResendAPIKey  string // optional; enables draft delivery by email
	EmailFromAddr string
	EmailFromName string

	// ── Worker ────────────────────────────────────────────────────────────────
	WorkerCount int           // default 2
	JobTimeout  time.Duration // default 30s
	MaxRetries  int           // default 3
}

// Load reads all environment variables and returns a validated Config.
// It automatically loads a .env file from the working directory when present,
// so plain `go run ./cmd/api` works in development without any wrapper.
// Real environment variables always take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv(".env")

	c := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		AllowOrigins: getEnvAsList("ALLOW_ORIGIN", []string{"*"}),
		MaxBodyBytes: int64(getEnvAsInt("MAX_BODY_BYTES", 220000)),
		SimKey:       os.Getenv("SIM_KEY"),

		RiskModel:    getEnv("RISK_MODEL", "aggregate"),
		QCPolicy:     getEnv("QC_POLICY", "relaxed"),
		ReturnEngine: getEnvAsBool("RETURN_ENGINE", false),

		LLMProvider:     getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		ModelDefault:    getEnv("MODEL_DEFAULT", "gpt-4.1-mini"),
		ModelHighRisk:   getEnv("MODEL_HIGH_RISK", "gpt-4.1"),
		ModelInsight:    getEnv("MODEL_INSIGHT", "gpt-4.1"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 22*time.Second),
		RepairTimeout:     getEnvAsDuration("REPAIR_TIMEOUT", 22*time.Second),
		InsightTimeout:    getEnvAsDuration("INSIGHT_TIMEOUT", 16*time.Second),

		PromptsRepo:        os.Getenv("PROMPTS_REPO"),
		PromptsRef:         getEnv("PROMPTS_REF", "main"),
		PromptsDatabaseURL: os.Getenv("PROMPTS_DATABASE_URL"),
		PromptsTable:       getEnv("PROMPTS_TABLE", "prompt_templates"),
		PromptCacheTTL:     getEnvAsDuration("PROMPT_CACHE_TTL", 5*time.Minute),
		PromptCacheEntries: getEnvAsInt("PROMPT_CACHE_ENTRIES", 80),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		RequirePayment:      getEnvAsBool("REQUIRE_PAYMENT", false),

		ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
		EmailFromAddr: getEnv("EMAIL_FROM_ADDR", "drafts@clearbound.app"),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "ClearBound"),

		WorkerCount: getEnvAsInt("WORKER_COUNT", 2),
		JobTimeout:  getEnvAsDuration("JOB_TIMEOUT", 30*time.Second),
		MaxRetries:  getEnvAsInt("MAX_RETRIES", 3),
	}

	return c, c.validate()
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func (c *Config) validate() error {
	var errs []error

	keys := map[string]string{
		"openai":    c.OpenAIAPIKey,
		"anthropic": c.AnthropicAPIKey,
		"deepseek":  c.DeepSeekAPIKey,
		"gemini":    c.GeminiAPIKey,
	}
	key, known := keys[c.LLMProvider]
	switch {
	case !known:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	case key == "":
		errs = append(errs, fmt.Errorf("LLM_PROVIDER is %q but its API key is not set", c.LLMProvider))
	}

	switch c.RiskModel {
	case "aggregate", "strategy_map":
	default:
		errs = append(errs, fmt.Errorf("unknown RISK_MODEL %q", c.RiskModel))
	}
	switch c.QCPolicy {
	case "relaxed", "strict":
	default:
		errs = append(errs, fmt.Errorf("unknown QC_POLICY %q", c.QCPolicy))
	}

	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if c.PromptCacheEntries <= 0 {
		errs = append(errs, errors.New("PROMPT_CACHE_ENTRIES must be positive"))
	}
	if c.RequirePayment && c.StripeSecretKey == "" {
		errs = append(errs, errors.New("REQUIRE_PAYMENT needs STRIPE_SECRET_KEY"))
	}
	if c.ResendAPIKey != "" && c.EmailFromAddr == "" {
		errs = append(errs, errors.New("EMAIL_FROM_ADDR is required when RESEND_API_KEY is set"))
	}

	return errors.Join(errs...)
}

// ─── DOT-ENV LOADER ──────────────────────────────────────────────────────────

// loadDotEnv reads key=value pairs from path and sets them in the environment,
// but only for keys that are not already set, so real env vars always win.
// Missing file, blank lines, and #-comments are all silently ignored.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = unquote(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// unquote strips one pair of matching surrounding quotes.
func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration syntax ("4500ms", "5m") or a bare
// integer, which is read as milliseconds when the key ends in _MS and as
// seconds otherwise.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		if strings.HasSuffix(key, "_MS") {
			return time.Duration(value) * time.Millisecond
		}
		return time.Duration(value) * time.Second
	}
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}

// getEnvAsBool also accepts "1"/"0", which strconv.ParseBool already covers.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
