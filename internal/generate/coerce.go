package generate

import (
	"strings"

	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
)

// aliases lists, per package and canonical key, the alternate names models
// drift to. The first non-empty alias wins.
var aliases = map[qc.Package]map[string][]string{
	qc.PackageMessage: {
		qc.KeyMessageText: {"message", "text", "output", "body", "content"},
	},
	qc.PackageEmail: {
		qc.KeySubject:   {"subject_line", "email_subject", "title"},
		qc.KeyEmailText: {"email", "email_body", "body", "text", "output"},
	},
	qc.PackageBundle: {
		qc.KeyBundleMessageText: {"message_text", "message", "short_message"},
		qc.KeySubject:           {"subject_line", "email_subject"},
		qc.KeyEmailText:         {"email", "email_body"},
	},
}

// envelopes are single keys some models wrap the whole answer in.
var envelopes = []string{"output", "result", "data", "response"}

// Coerce returns a copy of obj with alternate field names mapped to the
// canonical ones for pkg. A canonical key that already holds a non-empty
// string is left alone. obj is never modified.
func Coerce(pkg qc.Package, obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	obj = unwrapEnvelope(obj)

	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}

	for canonical, alts := range aliases[pkg] {
		if nonEmpty(out[canonical]) {
			continue
		}
		for _, alt := range alts {
			if nonEmpty(out[alt]) {
				out[canonical] = out[alt]
				break
			}
		}
	}
	return out
}

// unwrapEnvelope peels one {"output": {...}} layer when that is the only key.
func unwrapEnvelope(obj map[string]any) map[string]any {
	if len(obj) != 1 {
		return obj
	}
	for _, k := range envelopes {
		if inner, ok := obj[k].(map[string]any); ok {
			return inner
		}
	}
	return obj
}

func nonEmpty(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}
