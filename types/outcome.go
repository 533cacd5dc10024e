package types

// OutcomeKind discriminates the four accepted result shapes of an action run.
type OutcomeKind uint8

const (
	// OutcomeInvalid is the zero value. An Outcome that never went through a
	// constructor carries this kind and is rejected at the parse boundary.
	OutcomeInvalid OutcomeKind = iota
	// OutcomeOk is a plain success.
	OutcomeOk
	// OutcomeOkDirective is a success carrying a pass-through directive.
	OutcomeOkDirective
	// OutcomeErr is a plain failure.
	OutcomeErr
	// OutcomeErrDirective is a failure carrying a pass-through directive.
	OutcomeErrDirective
)

// Outcome is the tagged result of one execution attempt. Exactly four shapes
// exist: Ok, Ok with directive, Err, Err with directive. The directive is an
// opaque value the engine threads through the whole pipeline untouched.
// Construct outcomes only through Ok / OkWith / Fail / FailWith.
type Outcome struct {
	kind      OutcomeKind
	value     map[string]any
	directive any
	err       *Error
}

// Ok creates a success outcome.
func Ok(value map[string]any) Outcome {
	if value == nil {
		value = map[string]any{}
	}
	return Outcome{kind: OutcomeOk, value: value}
}

// OkWith creates a success outcome carrying a directive.
func OkWith(value map[string]any, directive any) Outcome {
	o := Ok(value)
	o.kind = OutcomeOkDirective
	o.directive = directive
	return o
}

// Fail creates a failure outcome.
func Fail(err *Error) Outcome {
	if err == nil {
		err = NewInternal("failure outcome constructed without an error")
	}
	return Outcome{kind: OutcomeErr, err: err}
}

// FailWith creates a failure outcome carrying a directive.
func FailWith(err *Error, directive any) Outcome {
	o := Fail(err)
	o.kind = OutcomeErrDirective
	o.directive = directive
	return o
}

// Kind returns the outcome discriminator.
func (o Outcome) Kind() OutcomeKind { return o.kind }

// IsOk reports whether the outcome is a success.
func (o Outcome) IsOk() bool {
	return o.kind == OutcomeOk || o.kind == OutcomeOkDirective
}

// IsErr reports whether the outcome is a failure.
func (o Outcome) IsErr() bool {
	return o.kind == OutcomeErr || o.kind == OutcomeErrDirective
}

// Value returns the success result map. Nil for failures.
func (o Outcome) Value() map[string]any { return o.value }

// Err returns the failure error. Nil for successes.
func (o Outcome) Err() *Error { return o.err }

// Directive returns the attached directive and whether one is present.
func (o Outcome) Directive() (any, bool) {
	switch o.kind {
	case OutcomeOkDirective, OutcomeErrDirective:
		return o.directive, true
	default:
		return nil, false
	}
}

// WithDirective returns a copy of the outcome carrying the given directive.
func (o Outcome) WithDirective(directive any) Outcome {
	switch o.kind {
	case OutcomeOk, OutcomeOkDirective:
		return OkWith(o.value, directive)
	case OutcomeErr, OutcomeErrDirective:
		return FailWith(o.err, directive)
	default:
		return o
	}
}

// ParseOutcome normalizes a dynamically-typed action return value into an
// Outcome. This is the single boundary where untyped results enter the
// engine; anything outside the accepted shapes becomes a non-retryable
// EXECUTION_FAILURE carrying the rendered value.
//
// Accepted: a constructed Outcome, a result map (success), nil (empty
// success), *Error or error (failure, normalized).
func ParseOutcome(v any) Outcome {
	switch val := v.(type) {
	case Outcome:
		if val.kind == OutcomeInvalid {
			return Fail(unexpectedShape(val))
		}
		return val
	case *Outcome:
		if val == nil || val.kind == OutcomeInvalid {
			return Fail(unexpectedShape(val))
		}
		return *val
	case nil:
		return Ok(nil)
	case map[string]any:
		return Ok(val)
	case *Error:
		return Fail(val)
	case error:
		return Fail(Normalize(val))
	default:
		return Fail(unexpectedShape(val))
	}
}

// unexpectedShape builds the contract-violation error for a value outside
// the four accepted shapes. Always non-retryable.
func unexpectedShape(v any) *Error {
	return NewErrorf(KindExecutionFailure, "Unexpected return shape: %#v", v).
		WithDetail(DetailUnexpectedShape, true).
		WithDetail(DetailReason, v)
}
