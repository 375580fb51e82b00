package generate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/useclearbound-netizen/clearbound-v2/internal/llm"
)

// Error codes surfaced to callers.
const (
	CodeMissingFields     = "MISSING_FIELDS"
	CodeUnknownPackage    = "UNKNOWN_PACKAGE"
	CodePromptLoadFailed  = "PROMPT_LOAD_FAILED"
	CodeGenerationTimeout = "GENERATION_TIMEOUT"
	CodeGenerationFailed  = "GENERATION_FAILED"
	CodeNonJSON           = "MODEL_RETURNED_NON_JSON"
	CodeQCFailed          = "QC_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Insight add-on failure codes. They never fail the request; they are
// reported next to the fallback insight.
const (
	InsightTimeout  = "INSIGHT_TIMEOUT"
	InsightFailed   = "INSIGHT_FAILED"
	InsightQCFailed = "INSIGHT_QC_FAILED"
)

// maxRawEcho caps how much unparseable model output is echoed back.
const maxRawEcho = 1200

// Error is a terminal orchestration failure.
type Error struct {
	Code    string
	Message string
	Missing []string // MISSING_FIELDS only
	Issues  []string // QC_FAILED, and repair-call failures
	Raw     string   // MODEL_RETURNED_NON_JSON only
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("generate: ")
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing: %s)", strings.Join(e.Missing, ", "))
	}
	if len(e.Issues) > 0 {
		fmt.Fprintf(&b, " (issues: %s)", strings.Join(e.Issues, ", "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the Code of a *Error in err's chain, or CodeInternal.
func CodeOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// invocationError maps a collaborator failure onto a terminal error.
func invocationError(err error, issues []string) *Error {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return &Error{Code: CodeGenerationTimeout, Message: err.Error(), Issues: issues, Err: err}
	case errors.Is(err, llm.ErrEmpty):
		return &Error{Code: CodeNonJSON, Message: "model returned an empty response", Issues: issues, Err: err}
	default:
		return &Error{Code: CodeGenerationFailed, Message: err.Error(), Issues: issues, Err: err}
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
