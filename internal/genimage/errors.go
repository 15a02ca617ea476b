package genimage

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a generation failure for retry decisions and user messaging.
type Kind string

const (
	// KindTimeout means the attempt exceeded its wall-clock budget.
	KindTimeout Kind = "timeout"
	// KindEmptyResult means the provider responded without a usable image part.
	KindEmptyResult Kind = "empty_result"
	// KindTransport covers every other provider or network failure.
	KindTransport Kind = "transport"
)

// Failure is the typed outcome of a failed generation attempt.
// All retryable decisions key off Kind, never off the wrapped error.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("genimage: %s", f.Kind)
	}
	return fmt.Sprintf("genimage: %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf extracts the failure kind from an error chain.
// Plain context deadline errors map to timeout; anything else unclassified
// maps to transport.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

func failure(kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// contextKind classifies a context error: only an expired deadline counts as
// a timeout. Cancellation (shutdown) is a transport failure.
func contextKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}
