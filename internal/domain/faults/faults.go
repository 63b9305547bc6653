package faults

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error class handed back across the engine
// boundary. The UI layer switches on it; the Hint is what it shows the user.
type Kind string

const (
	KindConfiguration     Kind = "CONFIGURATION"
	KindTransientProvider Kind = "TRANSIENT_PROVIDER"
	KindProviderExhausted Kind = "PROVIDER_EXHAUSTED"
	KindUnknownModel      Kind = "UNKNOWN_MODEL"
	KindStoreConnectivity Kind = "STORE_CONNECTIVITY"
	KindIndexUnavailable  Kind = "INDEX_UNAVAILABLE"
	KindEmptyDocument     Kind = "EMPTY_DOCUMENT"
	KindTimeout           Kind = "TIMEOUT"
)

type Fault struct {
	Kind Kind
	Hint string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Kind, f.Hint)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Hint, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func New(kind Kind, hint string, err error) *Fault {
	return &Fault{Kind: kind, Hint: hint, Err: err}
}

func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Hint: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}

// KindOf extracts the kind of err, or empty string for plain errors.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// HintOf extracts the remediation hint of err, falling back to Error().
func HintOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Hint
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Retryable reports whether the gateway backoff loop should try again.
// Configuration and unknown-model failures never recover by retrying.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransientProvider, KindTimeout:
		return true
	default:
		return false
	}
}
