// Package generate is the GenerationOrchestrator: it turns a normalized
// request into a validated artifact with at most one primary and one repair
// call to the text-generation collaborator.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/useclearbound-netizen/clearbound-v2/internal/llm"
	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
)

// ─── COLLABORATORS ────────────────────────────────────────────────────────────

// Prompts supplies templates by name. *templates.Loader satisfies it.
type Prompts interface {
	LoadNamed(ctx context.Context, name string) (string, error)
}

// Config holds per-call tuning. Zero fields get the defaults.
type Config struct {
	Temperature       float64       // main call; the repair call always uses 0
	GenerationTimeout time.Duration // default 22s
	RepairTimeout     time.Duration // default 22s
	InsightTimeout    time.Duration // default 16s
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Temperature:       0.2,
		GenerationTimeout: 22 * time.Second,
		RepairTimeout:     22 * time.Second,
		InsightTimeout:    16 * time.Second,
	}
}

// ─── RESULT ───────────────────────────────────────────────────────────────────

// Output is the artifact in response shape. Absent fields serialize as null.
type Output struct {
	MessageText *string `json:"message_text"`
	EmailText   *string `json:"email_text"`
	Subject     *string `json:"subject"`
	Insight     any     `json:"insight"`
}

// Attempt records one generation call. It lives only as long as the Result.
type Attempt struct {
	Number      int
	Instruction string
	Raw         string
	Parsed      map[string]any // as the model returned it; resent on repair
	Coerced     map[string]any
	Validation  qc.Result
}

// Result is a successful orchestration.
type Result struct {
	RequestID    string
	Data         Output
	Parameters   scoring.Parameters
	Warnings     []string
	InsightError string
	Attempts     []Attempt
}

// ─── ORCHESTRATOR ─────────────────────────────────────────────────────────────

// Orchestrator holds the collaborators for the generation pipeline. It keeps
// no per-request state and is safe for concurrent use.
type Orchestrator struct {
	model   scoring.Model
	gen     llm.Generator
	prompts Prompts
	qc      *qc.Validator
	cfg     Config
	logger  *slog.Logger
}

// New constructs an Orchestrator with all required dependencies.
func New(
	model scoring.Model,
	gen llm.Generator,
	prompts Prompts,
	validator *qc.Validator,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	def := DefaultConfig()
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if cfg.RepairTimeout <= 0 {
		cfg.RepairTimeout = def.RepairTimeout
	}
	if cfg.InsightTimeout <= 0 {
		cfg.InsightTimeout = def.InsightTimeout
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	return &Orchestrator{
		model:   model,
		gen:     gen,
		prompts: prompts,
		qc:      validator,
		cfg:     cfg,
		logger:  logger,
	}
}

// Compute runs the configured risk model only.
func (o *Orchestrator) Compute(s normalize.State) scoring.Parameters {
	return o.model.Compute(s)
}

// Preflight reports input errors that must stop a request before any call.
func Preflight(s normalize.State) error {
	if missing := s.Missing(); len(missing) > 0 {
		return &Error{Code: CodeMissingFields, Missing: missing}
	}
	if !qc.Package(s.Paywall.Package).Known() {
		return &Error{Code: CodeUnknownPackage, Message: fmt.Sprintf("unknown package %q", s.Paywall.Package)}
	}
	return nil
}

// ResolveControls picks the controls the artifact is generated and checked
// against: the engine's final direction, the caller's tone and detail when
// given (else the engine's), and the caller's objective.
func ResolveControls(s normalize.State, e scoring.EngineParameters) qc.Controls {
	tone, detail := s.Strategy.Tone, s.Strategy.Detail
	if tone.IsZero() {
		tone = e.ToneRecommendation
	}
	if detail.IsZero() {
		detail = e.DetailRecommendation
	}
	return qc.Controls{
		Tone:      string(tone),
		Detail:    string(detail),
		Direction: string(e.DirectionFinal),
		Objective: string(s.Strategy.ActionObjective),
	}
}

// TierFor selects the model tier: insight requests use the insight model,
// high risk the high-risk model, anything else the default.
func TierFor(s normalize.State, e scoring.EngineParameters) llm.Tier {
	switch {
	case s.WantsInsight():
		return llm.TierInsight
	case e.RiskLevel == scoring.RiskHigh:
		return llm.TierHighRisk
	default:
		return llm.TierDefault
	}
}

// Generate runs the full pipeline for one request:
//
//  1. Preflight: required fields and package.
//  2. Score the request and resolve controls.
//  3. Load the package template and build the instruction.
//  4. Primary call → parse → coerce → validate.
//  5. On QC failure only, one repair call at temperature 0 → parse → coerce → validate.
//  6. Optional insight add-on, which never fails the request.
//
// Every error returned is a *Error. Panics are recovered as INTERNAL_ERROR.
func (o *Orchestrator) Generate(ctx context.Context, s normalize.State) (res *Result, err error) {
	requestID := uuid.NewString()
	log := o.logger.With("request_id", requestID)

	defer func() {
		if p := recover(); p != nil {
			log.Error("generate: panic recovered", "panic", p, "stack", string(debug.Stack()))
			res, err = nil, &Error{Code: CodeInternal, Message: fmt.Sprint(p)}
		}
	}()

	// ── 1. Preflight ──────────────────────────────────────────────────────────
	if err := Preflight(s); err != nil {
		return nil, err
	}
	pkg := qc.Package(s.Paywall.Package)

	// ── 2. Score and resolve controls ─────────────────────────────────────────
	params := o.model.Compute(s)
	controls := ResolveControls(s, params.Engine)
	tier := TierFor(s, params.Engine)

	log = log.With("package", pkg, "model", params.Model, "risk_level", params.Engine.RiskLevel)
	log.Debug("generate: scored", "overall_tier", params.OverallTier, "llm_tier", tier)

	// ── 3. Template and instruction ───────────────────────────────────────────
	tmpl, err := o.prompts.LoadNamed(ctx, string(pkg))
	if err != nil {
		return nil, &Error{Code: CodePromptLoadFailed, Message: err.Error(), Err: err}
	}
	payload, err := json.Marshal(newPayload(s, params, controls))
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: err.Error(), Err: err}
	}
	constraints := Constraints(qc.RulesFor(pkg, controls), controls)

	res = &Result{RequestID: requestID, Parameters: params}

	// ── 4. Primary attempt ────────────────────────────────────────────────────
	first, err := o.attempt(ctx, 1, pkg, controls, llm.Request{
		Tier:        tier,
		System:      SystemPreamble,
		User:        mainInstruction(tmpl, payload, constraints),
		Temperature: o.cfg.Temperature,
		Timeout:     o.cfg.GenerationTimeout,
		RequestID:   requestID,
	}, nil)
	if err != nil {
		return nil, err
	}
	res.Attempts = append(res.Attempts, first)
	final := first

	// ── 5. Single repair ──────────────────────────────────────────────────────
	if !first.Validation.OK {
		log.Info("generate: qc failed, repairing", "issues", first.Validation.Issues)

		user, err := repairInstruction(tmpl, payload, constraints, first.Validation.Issues, first.Parsed)
		if err != nil {
			return nil, &Error{Code: CodeInternal, Message: err.Error(), Err: err}
		}
		second, err := o.attempt(ctx, 2, pkg, controls, llm.Request{
			Tier:        tier,
			System:      SystemPreamble,
			User:        user,
			Temperature: 0,
			Timeout:     o.cfg.RepairTimeout,
			RequestID:   requestID + "-repair",
		}, first.Validation.Issues)
		if err != nil {
			return nil, err
		}
		res.Attempts = append(res.Attempts, second)
		if !second.Validation.OK {
			log.Warn("generate: repair failed qc", "issues", second.Validation.Issues)
			return nil, &Error{Code: CodeQCFailed, Issues: second.Validation.Issues}
		}
		final = second
	}

	res.Data = outputFor(pkg, final.Coerced)
	res.Warnings = final.Validation.Warnings

	// ── 6. Insight add-on ─────────────────────────────────────────────────────
	if s.WantsInsight() {
		res.Data.Insight, res.InsightError = o.runInsight(ctx, payload, requestID, log)
	}

	log.Info("generate: done", "attempts", len(res.Attempts), "warnings", len(res.Warnings), "insight_error", res.InsightError)
	return res, nil
}

// attempt makes one call and evaluates it. Invocation and parse failures are
// returned as terminal errors carrying priorIssues; QC failures are not errors.
func (o *Orchestrator) attempt(ctx context.Context, n int, pkg qc.Package, c qc.Controls, req llm.Request, priorIssues []string) (Attempt, error) {
	a := Attempt{Number: n, Instruction: req.User}

	text, err := o.gen.Generate(ctx, req)
	if err != nil {
		return a, invocationError(err, priorIssues)
	}
	a.Raw = text

	obj, ok := parseObject(text)
	if !ok {
		return a, &Error{
			Code:    CodeNonJSON,
			Message: "model output was not valid JSON",
			Raw:     truncate(text, maxRawEcho),
			Issues:  priorIssues,
		}
	}
	a.Parsed = obj
	a.Coerced = Coerce(pkg, obj)
	a.Validation = o.qc.Validate(pkg, a.Coerced, c)
	return a, nil
}

// outputFor maps a validated object onto the response shape.
func outputFor(pkg qc.Package, obj map[string]any) Output {
	field := func(key string) *string {
		s, _ := obj[key].(string)
		s = strings.TrimSpace(s)
		return &s
	}
	var out Output
	switch pkg {
	case qc.PackageMessage:
		out.MessageText = field(qc.KeyMessageText)
	case qc.PackageEmail:
		out.Subject = field(qc.KeySubject)
		out.EmailText = field(qc.KeyEmailText)
	case qc.PackageBundle:
		out.MessageText = field(qc.KeyBundleMessageText)
		out.Subject = field(qc.KeySubject)
		out.EmailText = field(qc.KeyEmailText)
	}
	return out
}

func joinIssues(issues []string) string { return strings.Join(issues, "; ") }
