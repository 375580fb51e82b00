package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
)

// ─── SYSTEM ───────────────────────────────────────────────────────────────────

// SystemPreamble is sent as the system instruction on every call.
const SystemPreamble = "You are ClearBound.\n" +
	"You generate structured communication drafts.\n" +
	"You do not provide advice, do not predict outcomes, do not use legal framing.\n" +
	"Return ONE JSON object only. No markdown. No extra text."

const sectionRule = "\n\n---\n\n"

// ─── PAYLOAD ──────────────────────────────────────────────────────────────────

// Payload is the PAYLOAD_JSON block: the normalized input with the resolved
// strategy, plus the subset of engine parameters the templates refer to.
type Payload struct {
	Package        qc.Package     `json:"package"`
	IncludeInsight bool           `json:"include_insight"`
	Input          PayloadInput   `json:"input"`
	Engine         PayloadEngine  `json:"engine"`
	RiskMap        PayloadRiskMap `json:"risk_map"`
}

// PayloadInput is the caller's context with strategy already resolved.
type PayloadInput struct {
	Target       normalize.Target       `json:"target"`
	Relationship normalize.Relationship `json:"relationship"`
	Signals      normalize.Signals      `json:"signals"`
	Facts        normalize.Facts        `json:"facts"`
	Strategy     qc.Controls            `json:"strategy"`
}

// PayloadEngine is the engine subset passed to the model.
type PayloadEngine struct {
	RiskLevel            scoring.RiskLevel   `json:"risk_level"`
	RecordSafeLevel      int                 `json:"record_safe_level"`
	PowerIndex           int                 `json:"power_index"`
	BoundaryStrength     int                 `json:"boundary_strength"`
	EscalationCeiling    int                 `json:"escalation_ceiling"`
	PostureProfile       string              `json:"posture_profile"`
	ToneRecommendation   normalize.Token     `json:"tone_recommendation"`
	DetailRecommendation normalize.Token     `json:"detail_recommendation"`
	DirectionSuggestion  normalize.Token     `json:"direction_suggestion"`
	InsightCandorLevel   scoring.RiskLevel   `json:"insight_candor_level"`
	Constraints          scoring.Constraints `json:"constraints"`
}

// PayloadRiskMap carries the overall tier and preset bundle.
type PayloadRiskMap struct {
	OverallTier scoring.Tier    `json:"overall_tier"`
	Presets     scoring.Presets `json:"presets"`
}

func newPayload(s normalize.State, p scoring.Parameters, c qc.Controls) Payload {
	e := p.Engine
	return Payload{
		Package:        qc.Package(s.Paywall.Package),
		IncludeInsight: s.WantsInsight(),
		Input: PayloadInput{
			Target:       s.Target,
			Relationship: s.Relationship,
			Signals:      s.Signals,
			Facts:        s.Facts,
			Strategy:     c,
		},
		Engine: PayloadEngine{
			RiskLevel:            e.RiskLevel,
			RecordSafeLevel:      e.RecordSafeLevel,
			PowerIndex:           e.PowerIndex,
			BoundaryStrength:     e.BoundaryStrength,
			EscalationCeiling:    e.EscalationCeiling,
			PostureProfile:       e.PostureProfile,
			ToneRecommendation:   e.ToneRecommendation,
			DetailRecommendation: e.DetailRecommendation,
			DirectionSuggestion:  e.DirectionSuggestion,
			InsightCandorLevel:   e.InsightCandorLevel,
			Constraints:          e.Constraints,
		},
		RiskMap: PayloadRiskMap{OverallTier: p.OverallTier, Presets: p.Presets},
	}
}

// ─── CONSTRAINTS ──────────────────────────────────────────────────────────────

// Constraints renders the CONSTRAINTS block from the same rules the
// QualityGate enforces.
func Constraints(r qc.Rules, c qc.Controls) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		b.WriteString("- ")
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	b.WriteString("CONSTRAINTS:\n")
	line("Return exactly these top-level keys: %s.", strings.Join(r.SchemaKeys, ", "))
	line("%s must echo tone=%q, detail=%q, direction=%q.", qc.KeyMeta, c.Tone, c.Detail, c.Direction)

	messageKey := qc.KeyMessageText
	if r.Package == qc.PackageBundle {
		messageKey = qc.KeyBundleMessageText
	}
	if r.Paragraphs > 0 {
		line("%s: exactly %d paragraphs separated by one blank line.", messageKey, r.Paragraphs)
		line("%s: %d to %d sentences in total.", messageKey, r.SentenceRange.Min, r.SentenceRange.Max)
		bands := make([]string, len(r.ParagraphBands))
		for i, band := range r.ParagraphBands {
			bands[i] = fmt.Sprintf("paragraph %d: %d-%d", i+1, band.Min, band.Max)
		}
		line("%s sentences per paragraph: %s.", messageKey, strings.Join(bands, "; "))
	}
	if r.Sections > 0 {
		line("%s: exactly %d sections separated by one blank line.", qc.KeyEmailText, r.Sections)
		line("%s: %d to %d characters, %d to %d words, no repeated punctuation.",
			qc.KeySubject, r.SubjectChars.Min, r.SubjectChars.Max, r.SubjectWords.Min, r.SubjectWords.Max)
	}
	line("Never use any of these phrases: %s.", quoteAll(r.Forbidden))
	line("Include at least one of: %s.", quoteAll(r.ObjectiveHints))
	return strings.TrimRight(b.String(), "\n")
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, ", ")
}

// ─── USER INSTRUCTIONS ────────────────────────────────────────────────────────

// mainInstruction is template + payload + constraints.
func mainInstruction(template string, payload []byte, constraints string) string {
	return template + sectionRule + "PAYLOAD_JSON:\n" + string(payload) + sectionRule + constraints
}

// repairNote lists the issue codes the previous attempt failed on.
func repairNote(issues []string) string {
	lines := []string{
		"Your previous JSON failed QC.",
		"You must return a corrected JSON object only.",
		"Fix ONLY what is needed to satisfy QC. Do not add new facts.",
		"QC_ISSUES:",
	}
	for _, issue := range issues {
		lines = append(lines, "- "+issue)
	}
	return strings.Join(lines, "\n")
}

// repairInstruction resends the template, payload and constraints together
// with the issue list and the failed object verbatim.
func repairInstruction(template string, payload []byte, constraints string, issues []string, previous map[string]any) (string, error) {
	prev, err := json.Marshal(previous)
	if err != nil {
		return "", fmt.Errorf("generate: marshal previous attempt: %w", err)
	}
	return template +
		sectionRule + "PAYLOAD_JSON:\n" + string(payload) +
		sectionRule + "REPAIR_INSTRUCTION:\n" + repairNote(issues) +
		sectionRule + "PREVIOUS_JSON:\n" + string(prev) +
		sectionRule + constraints, nil
}

// insightInstruction is template + payload. The insight shape is fixed by its
// template and needs no per-request constraints.
func insightInstruction(template string, payload []byte) string {
	return template + sectionRule + "PAYLOAD_JSON:\n" + string(payload)
}
