package qc

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ─── RESULT ───────────────────────────────────────────────────────────────────

// Result is the outcome of one validation. Issues block; warnings do not.
// Both slices are non-nil so they serialize as [].
type Result struct {
	OK       bool     `json:"ok"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

// severity classes a rule. Hard rules block under every policy; soft rules
// block only under PolicyStrict.
type severity int

const (
	hard severity = iota
	soft
)

type finding struct {
	code string
	sev  severity
}

// ─── VALIDATOR ────────────────────────────────────────────────────────────────

// Validator applies the rule set under one policy. It holds no mutable state
// and is safe for concurrent use.
type Validator struct {
	policy Policy
}

// New returns a validator for policy. An unrecognized policy is treated as strict.
func New(policy Policy) *Validator {
	if policy != PolicyRelaxed {
		policy = PolicyStrict
	}
	return &Validator{policy: policy}
}

// Policy returns the policy the validator applies.
func (v *Validator) Policy() Policy { return v.policy }

// Validate checks candidate as an artifact of package pkg. The candidate is
// read only; it is never modified.
func (v *Validator) Validate(pkg Package, candidate any, c Controls) Result {
	obj, ok := candidate.(map[string]any)
	if !ok || obj == nil {
		return v.result([]finding{{"output_not_object", hard}})
	}

	var fs []finding
	meta := obj[KeyMeta]

	switch pkg {
	case PackageMessage:
		fs = append(fs, checkMessage(str(obj[KeyMessageText]), KeyMessageText, c)...)
		fs = append(fs, checkMeta(meta, c)...)
	case PackageEmail:
		fs = append(fs, checkEmail(str(obj[KeySubject]), str(obj[KeyEmailText]), c)...)
		fs = append(fs, checkMeta(meta, c)...)
	case PackageBundle:
		msg := append(checkMessage(str(obj[KeyBundleMessageText]), KeyMessageText, c), checkMeta(meta, c)...)
		fs = append(fs, prefixed("bundle_message: ", msg)...)
		em := append(checkEmail(str(obj[KeySubject]), str(obj[KeyEmailText]), c), checkMeta(meta, c)...)
		fs = append(fs, prefixed("bundle_email: ", em)...)
	default:
		fs = append(fs, finding{fmt.Sprintf("unknown_package: %s", pkg), hard})
	}

	return v.result(fs)
}

// ValidateInsight checks the insight add-on. Its rules are structural only
// and block under every policy.
func (v *Validator) ValidateInsight(insight any) Result {
	obj, ok := insight.(map[string]any)
	if !ok || obj == nil {
		return v.result([]finding{{"insight_object_missing", hard}})
	}

	var fs []finding
	add := func(cond bool, code string) {
		if cond {
			fs = append(fs, finding{code, hard})
		}
	}

	sections, _ := obj[KeyInsightSections].([]any)

	add(str(obj[KeyInsightTitle]) == "", "insight_title_missing")
	add(len(sections) != InsightSections, "insight_sections_must_be_3")
	for i, raw := range sections {
		sec, _ := raw.(map[string]any)
		bullets, _ := sec["bullets"].([]any)
		add(str(sec["title"]) == "", fmt.Sprintf("insight_section_%d_title_missing", i+1))
		add(len(bullets) != InsightBullets, fmt.Sprintf("insight_section_%d_bullets_must_be_3", i+1))
	}
	add(str(obj[KeyDisclaimerLine]) == "", "insight_disclaimer_missing")

	serialized, err := json.Marshal(obj)
	add(err != nil || !strings.Contains(strings.ToLower(string(serialized)), InsightKeyword), "insight_must_include_word_signals")

	return v.result(fs)
}

// result sorts findings into issues and warnings under the policy.
func (v *Validator) result(fs []finding) Result {
	r := Result{Issues: []string{}, Warnings: []string{}}
	for _, f := range fs {
		if f.sev == hard || v.policy == PolicyStrict {
			r.Issues = append(r.Issues, f.code)
		} else {
			r.Warnings = append(r.Warnings, f.code)
		}
	}
	r.OK = len(r.Issues) == 0
	return r
}

// ─── ARTIFACT CHECKS ──────────────────────────────────────────────────────────

func checkMessage(text, field string, c Controls) []finding {
	if text == "" {
		return []finding{{field + " missing", hard}}
	}

	var fs []finding
	if bad := forbiddenIn(text); len(bad) > 0 {
		fs = append(fs, finding{"forbidden_language: " + strings.Join(bad, ", "), hard})
	}

	paras := SplitParagraphs(text)
	if len(paras) != MessageParagraphs {
		fs = append(fs, finding{"message_paragraphs_must_be_3", hard})
	}

	rng := SentenceRange(c.Detail)
	if total := CountSentences(text); !rng.Contains(total) {
		fs = append(fs, finding{fmt.Sprintf("message_sentence_count_out_of_range_%d_to_%d_got_%d", rng.Min, rng.Max, total), soft})
	}
	for i, band := range paragraphBands {
		if i >= len(paras) {
			break
		}
		if !band.Contains(CountSentences(paras[i])) {
			fs = append(fs, finding{fmt.Sprintf("message_p%d_sentence_count_suggest_%d_to_%d", i+1, band.Min, band.Max), soft})
		}
	}

	if c.Objective != "" && !hasObjectiveSignal(c.Objective, text) {
		fs = append(fs, finding{"message_missing_action_objective_signal", soft})
	}
	return fs
}

var repeatedPunct = regexp.MustCompile(`[!?.]{2,}`)

func checkEmail(subject, text string, c Controls) []finding {
	var fs []finding
	if subject == "" {
		fs = append(fs, finding{"subject missing", hard})
	}
	if text == "" {
		fs = append(fs, finding{"email_text missing", hard})
	}

	if subject != "" {
		if !subjectChars.Contains(len([]rune(subject))) {
			fs = append(fs, finding{"subject_length_suspicious", soft})
		}
		if !subjectWords.Contains(len(strings.Fields(subject))) {
			fs = append(fs, finding{"subject_word_count_suspicious", soft})
		}
		if repeatedPunct.MatchString(subject) {
			fs = append(fs, finding{"subject_excess_punctuation", soft})
		}
	}

	if text != "" {
		if bad := forbiddenIn(text); len(bad) > 0 {
			fs = append(fs, finding{"forbidden_language: " + strings.Join(bad, ", "), hard})
		}
		if len(SplitParagraphs(text)) != EmailSections {
			fs = append(fs, finding{"email_sections_must_be_4", hard})
		}
		if c.Objective != "" && !hasObjectiveSignal(c.Objective, text) {
			fs = append(fs, finding{"email_missing_action_objective_signal", soft})
		}
	}
	return fs
}

// checkMeta compares the model's echoed controls with the requested ones.
// Either side being empty skips the comparison.
func checkMeta(raw any, c Controls) []finding {
	meta, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	var fs []finding
	for _, pair := range []struct{ key, want string }{
		{"tone", c.Tone},
		{"detail", c.Detail},
		{"direction", c.Direction},
	} {
		got := str(meta[pair.key])
		if got != "" && pair.want != "" && got != pair.want {
			fs = append(fs, finding{"meta_" + pair.key + "_mismatch", soft})
		}
	}
	return fs
}

func prefixed(prefix string, fs []finding) []finding {
	out := make([]finding, len(fs))
	for i, f := range fs {
		out[i] = finding{prefix + f.code, f.sev}
	}
	return out
}

// ─── TEXT HELPERS ─────────────────────────────────────────────────────────────

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// SplitParagraphs splits on blank lines, dropping empty blocks.
func SplitParagraphs(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CountSentences normalizes whitespace and counts segments ending at
// sentence-terminal punctuation followed by whitespace or end of text.
// Trailing text without terminal punctuation counts as one sentence.
func CountSentences(text string) int {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return 0
	}
	n := 1
	for i := 0; i+1 < len(t); i++ {
		switch t[i] {
		case '.', '!', '?':
			if t[i+1] == ' ' {
				n++
			}
		}
	}
	return n
}

func forbiddenIn(text string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, w := range Forbidden {
		if strings.Contains(lower, w) {
			hits = append(hits, w)
		}
	}
	return hits
}

func hasObjectiveSignal(objective, text string) bool {
	lower := strings.ToLower(text)
	for _, h := range ObjectiveHints(objective) {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// str returns v trimmed when it is a string, else "".
func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
