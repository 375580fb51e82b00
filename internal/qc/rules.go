// Package qc is the QualityGate: a pure validator that checks a generated
// artifact's structure and content against the rules the instruction
// promised the model.
//
// One Validator serves both policies. Every rule carries a severity class;
// the Policy only decides whether soft rules block or merely warn.
package qc

import "fmt"

// ─── PACKAGES ─────────────────────────────────────────────────────────────────

// Package is the requested artifact type.
type Package string

const (
	PackageMessage Package = "message"
	PackageEmail   Package = "email"
	PackageBundle  Package = "bundle"
)

// Known reports whether p names a supported package.
func (p Package) Known() bool {
	switch p {
	case PackageMessage, PackageEmail, PackageBundle:
		return true
	}
	return false
}

// ─── POLICY ───────────────────────────────────────────────────────────────────

// Policy selects how soft rules are reported.
type Policy string

const (
	// PolicyStrict makes every violation blocking.
	PolicyStrict Policy = "strict"
	// PolicyRelaxed reports sentence-count, objective, subject-shape and meta
	// cross-checks as warnings.
	PolicyRelaxed Policy = "relaxed"
)

// ParsePolicy validates a policy name. Empty means relaxed.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyRelaxed:
		return PolicyRelaxed, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("qc: unknown policy %q", s)
	}
}

// ─── CONTROLS ─────────────────────────────────────────────────────────────────

// Controls are the resolved generation settings the artifact is checked against.
type Controls struct {
	Tone      string `json:"tone"`
	Detail    string `json:"detail"`
	Direction string `json:"direction"`
	Objective string `json:"action_objective"`
}

// Range is an inclusive integer interval.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether n lies within r.
func (r Range) Contains(n int) bool { return n >= r.Min && n <= r.Max }

// ─── RULE TABLES ──────────────────────────────────────────────────────────────

// Forbidden lists phrases that fail any artifact. Matching is a
// case-insensitive substring test.
var Forbidden = []string{
	// threats and ultimatums
	"or else", "otherwise i will", "you will regret", "final warning",
	// legal framing
	"lawyer", "illegal", "liability", "sue", "court", "police", "restraining order",
	// absolute blame
	"you always", "you never", "obviously", "you're lying", "you are lying",
}

// objectiveHints are the keywords that show an artifact pursues its objective.
var objectiveHints = map[string][]string{
	"clarify_priority":     {"clarify", "priority", "priorities", "order"},
	"confirm_expectations": {"confirm", "expectation", "expectations"},
	"request_adjustment":   {"adjust", "change", "update", "revise"},
	"set_boundary":         {"boundary", "moving forward", "not able to", "i can’t", "i cannot", "i'm not able", "i am not able"},
	"reduce_scope":         {"scope", "reduce", "limit", "narrow"},
	"close_loop":           {"close", "wrap up", "finalize", "end this"},
	"other":                {"please", "confirm", "clarify", "review"},
}

// ObjectiveHints returns the keyword list for an objective. Unknown
// objectives get the generic list.
func ObjectiveHints(objective string) []string {
	if h, ok := objectiveHints[objective]; ok {
		return h
	}
	return objectiveHints["other"]
}

// sentenceRanges are the canonical total sentence ranges by detail level.
// Unrecognized detail levels use the widest range.
var sentenceRanges = map[string]Range{
	"concise":  {6, 8},
	"standard": {7, 9},
	"detailed": {8, 11},
}

// SentenceRange returns the total sentence range for a detail level. Empty
// detail is treated as standard.
func SentenceRange(detail string) Range {
	if detail == "" {
		detail = "standard"
	}
	if r, ok := sentenceRanges[detail]; ok {
		return r
	}
	return sentenceRanges["detailed"]
}

// Structural constants.
const (
	MessageParagraphs = 3
	EmailSections     = 4
	InsightSections   = 3
	InsightBullets    = 3
	InsightKeyword    = "signals"
)

var (
	paragraphBands = []Range{{1, 4}, {2, 6}, {1, 4}}
	subjectChars   = Range{6, 120}
	subjectWords   = Range{2, 12}
)

// ─── RULES VIEW ───────────────────────────────────────────────────────────────

// Rules is the numeric and lexical view of what Validate enforces for one
// package and set of controls. The orchestrator renders it into the
// instruction so the model is told exactly what will be checked.
type Rules struct {
	Package        Package  `json:"package"`
	SchemaKeys     []string `json:"schema_keys"`
	MetaKeys       []string `json:"meta_keys"`
	Paragraphs     int      `json:"paragraphs,omitempty"`
	SentenceRange  Range    `json:"sentence_range"`
	ParagraphBands []Range  `json:"paragraph_bands,omitempty"`
	Sections       int      `json:"sections,omitempty"`
	SubjectChars   Range    `json:"subject_chars"`
	SubjectWords   Range    `json:"subject_words"`
	Forbidden      []string `json:"forbidden"`
	ObjectiveHints []string `json:"objective_hints"`
}

// RulesFor returns the rules Validate applies to pkg under c.
func RulesFor(pkg Package, c Controls) Rules {
	r := Rules{
		Package:        pkg,
		MetaKeys:       []string{"tone", "detail", "direction"},
		SentenceRange:  SentenceRange(c.Detail),
		SubjectChars:   subjectChars,
		SubjectWords:   subjectWords,
		Forbidden:      append([]string(nil), Forbidden...),
		ObjectiveHints: ObjectiveHints(c.Objective),
	}

	switch pkg {
	case PackageMessage:
		r.SchemaKeys = []string{KeyMessageText, KeyMeta}
	case PackageEmail:
		r.SchemaKeys = []string{KeySubject, KeyEmailText, KeyMeta}
	case PackageBundle:
		r.SchemaKeys = []string{KeyBundleMessageText, KeySubject, KeyEmailText, KeyMeta}
	}
	if pkg == PackageMessage || pkg == PackageBundle {
		r.Paragraphs = MessageParagraphs
		r.ParagraphBands = append([]Range(nil), paragraphBands...)
	}
	if pkg == PackageEmail || pkg == PackageBundle {
		r.Sections = EmailSections
	}
	return r
}

// Canonical candidate keys.
const (
	KeyMessageText       = "message_text"
	KeyBundleMessageText = "bundle_message_text"
	KeySubject           = "subject"
	KeyEmailText         = "email_text"
	KeyMeta              = "meta"

	KeyInsightTitle    = "insight_title"
	KeyInsightSections = "insight_sections"
	KeyDisclaimerLine  = "disclaimer_line"
)
