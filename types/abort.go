package types

import "fmt"

// abortSignal is the sentinel carried by panics raised through Abort.
type abortSignal struct {
	reason any
}

func (a abortSignal) String() string {
	return fmt.Sprintf("%v", a.reason)
}

// Abort stops the current action immediately with the given reason. The
// executor reports it as an explicit business-logic abort, distinct from a
// fault (panic) or an engine-forced kill.
func Abort(reason any) {
	panic(abortSignal{reason: reason})
}

// AbortReason reports whether a recovered panic value originated from Abort,
// returning the abort reason when it did.
func AbortReason(recovered any) (any, bool) {
	if sig, ok := recovered.(abortSignal); ok {
		return sig.reason, true
	}
	return nil, false
}
