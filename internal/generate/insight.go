package generate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/useclearbound-netizen/clearbound-v2/internal/llm"
	"github.com/useclearbound-netizen/clearbound-v2/internal/templates"
)

// Insight is the structured add-on artifact.
type Insight struct {
	Title      string           `json:"insight_title"`
	Sections   []InsightSection `json:"insight_sections"`
	Disclaimer string           `json:"disclaimer_line"`
}

// InsightSection is one titled group of bullets.
type InsightSection struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// FallbackInsight is returned whenever the insight call cannot produce a
// valid object. It always passes ValidateInsight.
func FallbackInsight() Insight {
	return Insight{
		Title: "Strategic Insight",
		Sections: []InsightSection{
			{Title: "Signals observed", Bullets: []string{
				"Signals were recorded for context only.",
				"No intent is assumed.",
				"No outcomes are implied.",
			}},
			{Title: "Positioning choice", Bullets: []string{
				"The structure stays procedural.",
				"The request is kept singular.",
				"Tone remains consistent.",
			}},
			{Title: "Structural effect", Bullets: []string{
				"It reduces ambiguity.",
				"It creates a stable reference point.",
				"It supports clear next steps.",
			}},
		},
		Disclaimer: "This insight reflects interaction signals and structure choices, not outcomes or advice.",
	}
}

// runInsight makes the single add-on call. It never returns an error: any
// failure yields the fallback insight and a non-empty failure code.
func (o *Orchestrator) runInsight(ctx context.Context, payload []byte, requestID string, log *slog.Logger) (any, string) {
	fallback := func(code string, err error) (any, string) {
		log.Warn("generate: insight degraded to fallback", "insight_error", code, "error", err)
		return FallbackInsight(), code
	}

	tmpl, err := o.prompts.LoadNamed(ctx, templates.Insight)
	if err != nil {
		return fallback(InsightFailed, err)
	}

	text, err := o.gen.Generate(ctx, llm.Request{
		Tier:        llm.TierInsight,
		System:      SystemPreamble,
		User:        insightInstruction(tmpl, payload),
		Temperature: o.cfg.Temperature,
		Timeout:     o.cfg.InsightTimeout,
		RequestID:   requestID + "-insight",
	})
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return fallback(InsightTimeout, err)
	case errors.Is(err, llm.ErrEmpty):
		return fallback(InsightQCFailed, err)
	case err != nil:
		return fallback(InsightFailed, err)
	}

	obj, ok := parseObject(text)
	if !ok {
		return fallback(InsightQCFailed, errors.New("insight was not a JSON object"))
	}
	if r := o.qc.ValidateInsight(obj); !r.OK {
		return fallback(InsightQCFailed, errors.New(joinIssues(r.Issues)))
	}
	return obj, ""
}

// parseObject strips code fences and decodes a single JSON object.
func parseObject(text string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(llm.StripFences(text)), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok && obj != nil
}
