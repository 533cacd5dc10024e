package types

import "fmt"

// Kind classifies every error produced by the engine.
type Kind string

const (
	// KindInvalidInput marks a caller or action contract violation. Never retried.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindExecutionFailure is the default transient-failure bucket.
	KindExecutionFailure Kind = "EXECUTION_FAILURE"
	// KindTimeout covers execution, await and compensation timeouts.
	KindTimeout Kind = "TIMEOUT"
	// KindConfiguration marks bad engine or call setup. Never retried.
	KindConfiguration Kind = "CONFIGURATION"
	// KindInternal marks an engine-level unexpected fault.
	KindInternal Kind = "INTERNAL"
)

// Detail keys the engine itself writes into Error.Details.
const (
	// DetailRetry carries an explicit retryability hint set by the action.
	DetailRetry = "retry"
	// DetailReason preserves the raw value a failure was normalized from.
	DetailReason = "reason"
	// DetailUnexpectedShape flags a return-shape contract violation; such
	// errors are never retried regardless of any retry hint.
	DetailUnexpectedShape = "unexpected_shape"
	// DetailCompensated reports whether compensation ran to completion.
	DetailCompensated = "compensated"
	// DetailOriginalError preserves the root-cause error across compensation.
	DetailOriginalError = "original_error"
	// DetailCompensationError carries the error returned by a failed compensation.
	DetailCompensationError = "compensation_error"
	// DetailExitReason carries the termination reason of a crashed worker.
	DetailExitReason = "exit_reason"
	// DetailTimeout carries the timeout value that produced a Timeout error.
	DetailTimeout = "timeout"
	// DetailType subclassifies invalid-input errors (e.g. invalid_condition).
	DetailType = "type"
)

// Error represents a structured engine error with kind, message and metadata.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidInput creates an INVALID_INPUT error.
func NewInvalidInput(message string) *Error {
	return NewError(KindInvalidInput, message)
}

// NewExecutionFailure creates an EXECUTION_FAILURE error.
func NewExecutionFailure(message string) *Error {
	return NewError(KindExecutionFailure, message)
}

// NewTimeout creates a TIMEOUT error.
func NewTimeout(message string) *Error {
	return NewError(KindTimeout, message)
}

// NewConfiguration creates a CONFIGURATION error.
func NewConfiguration(message string) *Error {
	return NewError(KindConfiguration, message)
}

// NewInternal creates an INTERNAL error.
func NewInternal(message string) *Error {
	return NewError(KindInternal, message)
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 4)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges the given entries into the error details.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// Detail returns a detail entry by key.
func (e *Error) Detail(key string) (any, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// RetryHint returns the explicit retry hint carried in the details, if any.
// The second return reports whether a hint is present at all.
func (e *Error) RetryHint() (hint bool, ok bool) {
	if e == nil || e.Details == nil {
		return false, false
	}
	b, ok := e.Details[DetailRetry].(bool)
	return b, ok
}

// UnexpectedShape reports whether the error marks a return-shape violation.
func (e *Error) UnexpectedShape() bool {
	if e == nil || e.Details == nil {
		return false
	}
	b, _ := e.Details[DetailUnexpectedShape].(bool)
	return b
}

// Clone returns a shallow copy with its own details map, so that layering
// additional details does not mutate the original error.
func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	c := &Error{Kind: e.Kind, Message: e.Message, Cause: e.Cause}
	if e.Details != nil {
		c.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return c
}

// KindOf extracts the kind from an error, or "" for foreign errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// IsKind checks whether an error is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Normalize converts an arbitrary failure value into a structured Error.
// Engine errors pass through unchanged; Go errors become EXECUTION_FAILURE
// with the cause preserved; raw values (strings, maps, anything an action
// hands back through the dynamic boundary) become EXECUTION_FAILURE with the
// raw value preserved under Details["reason"] and a best-effort message
// extracted from nested structures. Extraction never panics.
func Normalize(v any) *Error {
	switch val := v.(type) {
	case nil:
		return NewExecutionFailure("action failed")
	case *Error:
		return val
	case error:
		return NewExecutionFailure(safeErrorString(val)).WithCause(val)
	case string:
		return NewExecutionFailure(val).WithDetail(DetailReason, val)
	default:
		msg := extractMessage(val, 0)
		if msg == "" {
			msg = "action failed"
		}
		return NewExecutionFailure(msg).WithDetail(DetailReason, val)
	}
}

// extractMessage digs a human-readable message out of a nested raw value.
// Depth is bounded so cyclic structures cannot recurse forever.
func extractMessage(v any, depth int) string {
	if depth > 3 {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case error:
		return safeErrorString(val)
	case fmt.Stringer:
		return safeString(val)
	case map[string]any:
		for _, key := range []string{"message", "error", "reason"} {
			if inner, ok := val[key]; ok {
				if msg := extractMessage(inner, depth+1); msg != "" {
					return msg
				}
			}
		}
		return ""
	case []any:
		if len(val) > 0 {
			return extractMessage(val[0], depth+1)
		}
		return ""
	default:
		return ""
	}
}

// safeErrorString calls err.Error() guarding against misbehaving implementations.
func safeErrorString(err error) (s string) {
	defer func() {
		if recover() != nil {
			s = "action failed"
		}
	}()
	return err.Error()
}

// safeString calls String() guarding against misbehaving implementations.
func safeString(v fmt.Stringer) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return v.String()
}
