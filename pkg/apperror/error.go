// Package apperror provides the typed error kinds the engine classifies
// every tick-phase failure into (spec §7): ConfigError, TemplateFailure,
// InvariantViolation, EnrichmentFailure, BudgetExceeded.
package apperror

import "fmt"

// Kind classifies an engine error per spec §7. Only ConfigError is fatal;
// every other kind is recorded and the tick loop continues.
type Kind string

const (
	KindConfig      Kind = "config_error"
	KindTemplate    Kind = "template_failure"
	KindInvariant   Kind = "invariant_violation"
	KindEnrichment  Kind = "enrichment_failure"
	KindBudget      Kind = "budget_exceeded"
	KindUnspecified Kind = "internal_error"
)

// Error is an application error carrying a classification, a stable code,
// a human message, an optional wrapped cause, and structured details.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Internal error
	Details  map[string]any
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error so errors.Is/As work through it.
func (e *Error) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy of the error with an internal cause attached.
func (e *Error) WithInternal(err error) *Error {
	cp := *e
	cp.Internal = err
	return &cp
}

// WithMessage returns a copy of the error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates an application error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Fatal reports whether an error must halt the run before tick 1.
// Per §7, only ConfigError is fatal; every other kind is recorded and the
// engine keeps running.
func Fatal(err error) bool {
	appErr, ok := err.(*Error)
	return ok && appErr.Kind == KindConfig
}

// Common error definitions, one per §7 kind plus frequently-raised variants.
var (
	ErrConfigMissing   = New(KindConfig, "config_missing", "required configuration is missing")
	ErrConfigInvalid   = New(KindConfig, "config_invalid", "configuration failed validation")
	ErrTemplateFailure = New(KindTemplate, "template_failure", "growth template raised during expand")
	ErrInvariant       = New(KindInvariant, "invariant_violation", "mutation would violate a graph invariant")
	ErrEnrichment      = New(KindEnrichment, "enrichment_failure", "enrichment dispatch failed or returned unparseable output")
	ErrBudgetExceeded  = New(KindBudget, "budget_exceeded", "relationship budget exceeded; culling triggered")
)

// NewConfig creates a ConfigError with a custom message.
func NewConfig(message string) *Error {
	return ErrConfigInvalid.WithMessage(message)
}

// NewTemplateFailure wraps a panic/error raised by a growth template's expand.
func NewTemplateFailure(templateID string, err error) *Error {
	return ErrTemplateFailure.WithInternal(err).WithDetails(map[string]any{"template": templateID})
}

// NewInvariantViolation describes which invariant failed and on what entity/relationship.
func NewInvariantViolation(invariant, subject string) *Error {
	return ErrInvariant.WithMessage(fmt.Sprintf("%s: %s", invariant, subject))
}

// NewEnrichmentFailure wraps an LLM worker failure for a given task fingerprint.
func NewEnrichmentFailure(fingerprint string, err error) *Error {
	return ErrEnrichment.WithInternal(err).WithDetails(map[string]any{"fingerprint": fingerprint})
}
