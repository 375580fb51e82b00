package normalize

import (
	"encoding/json"
	"strings"
)

// maxWrapperLayers is how many single-key envelopes ({"state": ...}) are
// peeled off before the remaining object is taken as the state.
const maxWrapperLayers = 2

// maxListEntries caps feels_off and impact_signals.
const maxListEntries = 2

// groupKeys are the top-level keys that identify an object as a state rather
// than as an envelope around one.
var groupKeys = []string{"target", "relationship", "signals", "facts", "strategy", "paywall", "situation"}

// ─── ENTRY POINTS ─────────────────────────────────────────────────────────────

// Decode normalizes a raw request body. The body may be a JSON object, a JSON
// string that itself encodes an object, or an object wrapping the state under
// a single key (whose value may again be string-encoded). Anything unreadable
// yields an empty State.
func Decode(raw []byte) State {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return FromMap(nil)
	}
	return FromValue(v)
}

// FromValue normalizes an already-decoded JSON value with the same unwrapping
// as Decode: string encoding and up to two single-key envelopes are peeled.
func FromValue(v any) State {
	return FromMap(unwrap(v))
}

// FromMap normalizes an already-decoded object. A nil map is valid and
// produces a State with every group present and every field absent.
func FromMap(m map[string]any) State {
	target := group(m, "target")
	relationship := group(m, "relationship")
	signals := group(m, "signals")
	facts := group(m, "facts")
	strategy := group(m, "strategy")
	paywall := group(m, "paywall")
	situation := group(m, "situation")

	return State{
		Target: Target{
			RecipientType: token(target["recipient_type"]),
			PowerBalance:  token(target["power_balance"]),
			Formality:     token(target["formality"]),
		},
		Relationship: Relationship{
			Importance: token(relationship["importance"]),
			Continuity: token(relationship["continuity"]),
		},
		Signals: Signals{
			FeelsOff:       tokens(signals["feels_off"]),
			ImpactSignals:  tokens(signals["impact_signals"]),
			HappenedBefore: boolean(signals["happened_before"]),
		},
		Facts: Facts{
			WhatHappened: string(text(facts["what_happened"])),
			KeyRefs:      text(facts["key_refs"]),
		},
		Strategy: Strategy{
			Direction:       token(strategy["direction"]),
			ActionObjective: token(strategy["action_objective"]),
			Tone:            token(strategy["tone"]),
			Detail:          token(strategy["detail"]),
		},
		Paywall: Paywall{
			Package:       token(paywall["package"]),
			AddonInsight:  boolean(paywall["addon_insight"]),
			PaymentIntent: text(paywall["payment_intent"]),
			DeliverTo:     text(paywall["deliver_to"]),
		},
		Situation: Situation{
			EmotionalVolatility:     token(situation["emotional_volatility"]),
			Continuity:              token(situation["continuity"]),
			PriorConflict:           boolean(situation["prior_conflict"]),
			UrgencyLevel:            token(situation["urgency_level"]),
			PowerAsymmetry:          boolean(situation["power_asymmetry"]),
			AudienceMultiparty:      boolean(situation["audience_multiparty"]),
			RelationshipAxis:        token(situation["relationship_axis"]),
			WrittenRecordExpected:   boolean(situation["written_record_expected"]),
			LegalOrLiabilityContext: boolean(situation["legal_or_liability_context"]),
		},
	}
}

// ─── UNWRAPPING ───────────────────────────────────────────────────────────────

// unwrap peels string encoding and up to maxWrapperLayers single-key
// envelopes. It returns nil when the result is not an object.
func unwrap(v any) map[string]any {
	v = decodeString(v)
	for layer := 0; layer < maxWrapperLayers; layer++ {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		if isState(m) || len(m) != 1 {
			return m
		}
		for _, inner := range m {
			v = decodeString(inner)
		}
	}
	m, _ := v.(map[string]any)
	return m
}

// decodeString parses v as JSON when it is a string. Strings that are not
// valid JSON become nil.
func decodeString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func isState(m map[string]any) bool {
	for _, k := range groupKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// ─── FIELD COERCION ───────────────────────────────────────────────────────────

// group returns the named sub-object, or an empty map when it is missing or
// not an object.
func group(m map[string]any, key string) map[string]any {
	if g, ok := m[key].(map[string]any); ok {
		return g
	}
	return map[string]any{}
}

// token canonicalizes a categorical scalar. Non-strings and blank strings are
// absent; there is no coercion from numbers or booleans.
func token(v any) Token {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "-", " ")
	return Token(strings.Join(strings.Fields(s), "_"))
}

// tokens canonicalizes a list, dropping absent entries and keeping at most
// maxListEntries. The result is never nil.
func tokens(v any) []Token {
	out := make([]Token, 0, maxListEntries)
	arr, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range arr {
		if len(out) == maxListEntries {
			break
		}
		if t := token(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// boolean accepts only a JSON boolean. Strings like "true", numbers and
// objects are unknown, not truthy.
func boolean(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func text(v any) Text {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Text(strings.TrimSpace(s))
}
