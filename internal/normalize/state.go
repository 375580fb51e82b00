// Package normalize coerces heterogeneous generate requests into the fixed
// canonical State the engine and orchestrator consume.
//
// Normalization never fails. Whatever cannot be read becomes an absent value,
// and every group of State is always present, so downstream code only ever
// branches on field absence, never on group absence.
package normalize

import (
	"encoding/json"
	"strings"
)

// ─── SCALAR TYPES ─────────────────────────────────────────────────────────────

// Token is a canonical categorical value: trimmed, lower-cased, with inner
// spaces and hyphens folded into underscores. The empty Token means "absent"
// and serializes as JSON null.
type Token string

// IsZero reports whether the token is absent.
func (t Token) IsZero() bool { return t == "" }

// String returns the raw token value.
func (t Token) String() string { return string(t) }

// MarshalJSON renders an absent token as null.
func (t Token) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

// Text is trimmed free text with its case preserved. Empty Text serializes as
// JSON null.
type Text string

// MarshalJSON renders empty text as null.
func (t Text) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

// ─── GROUPS ───────────────────────────────────────────────────────────────────

// Target describes who the artifact is addressed to.
type Target struct {
	RecipientType Token `json:"recipient_type"` // supervisor|client|peer|subordinate|family|other
	PowerBalance  Token `json:"power_balance"`  // they_above|equal|i_above|informal_influence
	Formality     Token `json:"formality"`      // formal|neutral|informal
}

// Relationship captures how much the relationship matters and how long it runs.
type Relationship struct {
	Importance Token `json:"importance"` // very_high|high|medium|low
	Continuity Token `json:"continuity"` // ongoing|short_term|one_time
}

// Signals holds the situational flags picked in the wizard. Both slices are
// capped at two entries and are never nil.
type Signals struct {
	FeelsOff       []Token `json:"feels_off"`
	ImpactSignals  []Token `json:"impact_signals"`
	HappenedBefore *bool   `json:"happened_before"`
}

// Facts is the free-text account of what happened.
type Facts struct {
	WhatHappened string `json:"what_happened"`
	KeyRefs      Text   `json:"key_refs"`
}

// Strategy is the caller's requested posture. Direction "unsure" asks the
// engine to decide.
type Strategy struct {
	Direction       Token `json:"direction"`        // maintain|reset|disengage|unsure
	ActionObjective Token `json:"action_objective"` // clarify_priority|confirm_expectations|...
	Tone            Token `json:"tone"`             // calm|neutral|firm|formal
	Detail          Token `json:"detail"`           // concise|standard|detailed
}

// Paywall selects the artifact package and optional add-ons.
type Paywall struct {
	Package       Token `json:"package"` // message|email|bundle
	AddonInsight  *bool `json:"addon_insight"`
	PaymentIntent Text  `json:"payment_intent"`
	DeliverTo     Text  `json:"deliver_to"`
}

// Situation carries optional explicit overrides for the five-mode strategy
// map. Anything left absent is derived from the rest of the state.
type Situation struct {
	EmotionalVolatility     Token `json:"emotional_volatility"` // low|medium|high
	Continuity              Token `json:"continuity"`           // low|medium|high
	PriorConflict           *bool `json:"prior_conflict"`
	UrgencyLevel            Token `json:"urgency_level"` // low|normal|high
	PowerAsymmetry          *bool `json:"power_asymmetry"`
	AudienceMultiparty      *bool `json:"audience_multiparty"`
	RelationshipAxis        Token `json:"relationship_axis"` // intimate|personal|professional|peripheral
	WrittenRecordExpected   *bool `json:"written_record_expected"`
	LegalOrLiabilityContext *bool `json:"legal_or_liability_context"`
}

// State is the canonical, fixed-shape request. It is a value type: callers
// receive a copy and nothing in this module mutates one after Decode returns.
type State struct {
	Target       Target       `json:"target"`
	Relationship Relationship `json:"relationship"`
	Signals      Signals      `json:"signals"`
	Facts        Facts        `json:"facts"`
	Strategy     Strategy     `json:"strategy"`
	Paywall      Paywall      `json:"paywall"`
	Situation    Situation    `json:"situation"`
}

// ─── DERIVED ACCESSORS ────────────────────────────────────────────────────────

// WantsInsight reports whether the insight add-on was explicitly requested.
// A null flag means no.
func (s State) WantsInsight() bool {
	return s.Paywall.AddonInsight != nil && *s.Paywall.AddonInsight
}

// HasImpact reports whether any of the given tokens is among the impact signals.
func (s State) HasImpact(keys ...Token) bool {
	return containsAny(s.Signals.ImpactSignals, keys)
}

// HasFeelsOff reports whether any of the given tokens is among the feels-off flags.
func (s State) HasFeelsOff(keys ...Token) bool {
	return containsAny(s.Signals.FeelsOff, keys)
}

// FactsLength returns the trimmed length of what_happened in bytes, which is
// what the 40-character minimum is measured against.
func (s State) FactsLength() int {
	return len(strings.TrimSpace(s.Facts.WhatHappened))
}

func containsAny(have []Token, want []Token) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
