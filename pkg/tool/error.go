package tool

import (
	"fmt"
	"strings"
)

// ErrorKind tags a ToolError with one of the taxonomy kinds from spec.md §7.
type ErrorKind string

const (
	ErrValidation  ErrorKind = "validation"
	ErrAuth        ErrorKind = "auth"
	ErrRateLimit   ErrorKind = "rate_limit"
	ErrUnavailable ErrorKind = "unavailable"
	ErrConfig      ErrorKind = "config"
	ErrDependency  ErrorKind = "dependency"
	ErrServer      ErrorKind = "server"
)

// ToolError is the discriminated-union error type every classified failure
// takes. It implements error and Unwrap, and provides ToLegacyMap for the
// dual-format response required by spec.md §4.7/§7.
type ToolError struct {
	Kind      ErrorKind
	Message   string
	Details   map[string]any
	NextSteps []string
	Cause     error
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ToLegacyMap renders the structured error as the flat
// {"error": "<message>"} shape some callers still expect.
func (e *ToolError) ToLegacyMap() map[string]any {
	return map[string]any{"error": e.Message}
}

// ToDualFormat renders {"error": "...", "error_details": {...}} per
// spec.md §4.7's dual-format error response.
func (e *ToolError) ToDualFormat() map[string]any {
	details := map[string]any{
		"kind":    string(e.Kind),
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		details["details"] = e.Details
	}
	if len(e.NextSteps) > 0 {
		details["next_steps"] = e.NextSteps
	}
	return map[string]any{
		"error":         e.Message,
		"error_details": details,
	}
}

// NewError constructs a ToolError of the given kind.
func NewError(kind ErrorKind, message string) *ToolError {
	return &ToolError{Kind: kind, Message: message}
}

// WithDetails attaches a details map and returns the receiver for chaining.
func (e *ToolError) WithDetails(details map[string]any) *ToolError {
	e.Details = details
	return e
}

// WithNextSteps attaches next-step hints and returns the receiver for chaining.
func (e *ToolError) WithNextSteps(steps ...string) *ToolError {
	e.NextSteps = steps
	return e
}

// WithCause attaches the underlying error and returns the receiver.
func (e *ToolError) WithCause(cause error) *ToolError {
	e.Cause = cause
	return e
}

// ClassifyError is the default handle_error classifier from spec.md §4.6: it
// inspects message substrings case-insensitively. Tools MAY override this
// with a stricter classification by implementing their own HandleError.
func ClassifyError(err error) *ToolError {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "auth", "unauthorized", "401", "403"):
		return NewError(ErrAuth, msg).WithCause(err)
	case containsAny(lower, "rate", "429", "quota"):
		return NewError(ErrRateLimit, msg).WithCause(err)
	case containsAny(lower, "timeout", "connection", "unavailable", "404"):
		return NewError(ErrUnavailable, msg).WithCause(err)
	case containsAny(lower, "validation", "invalid", "schema"):
		return NewError(ErrValidation, msg).WithCause(err)
	case containsAny(lower, "config", "setup"):
		return NewError(ErrConfig, msg).WithCause(err)
	case containsAny(lower, "import", "module", "dependency"):
		return NewError(ErrDependency, msg).WithCause(err)
	default:
		return NewError(ErrServer, msg).WithCause(err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ValidationError is a convenience constructor used by ValidateParameters
// implementations.
func ValidationError(format string, args ...any) *ToolError {
	return NewError(ErrValidation, fmt.Sprintf(format, args...))
}

// UnavailableError is a convenience constructor for the engine's
// tool-not-found / instantiation-failure path.
func UnavailableError(message string, nextSteps ...string) *ToolError {
	return NewError(ErrUnavailable, message).WithNextSteps(nextSteps...)
}
