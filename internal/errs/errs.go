// Package errs defines the error taxonomy shared across the governance engine.
//
// Every component classifies its failures into one of the kinds below so that
// callers can branch with errors.Is/errors.As instead of parsing messages.
// The kinds mirror the propagation policy: Transient and RateLimit are
// retried by providers and never escape their boundary, NotReady and Config
// are fatal at startup, Validation is a decision (not a crash) for the
// governor and rebalancer to act on.
package errs

import "errors"

// Kind classifies an error for propagation/handling purposes.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindNotReady
	KindTransient
	KindRateLimit
	KindAuth
	KindValidation
	KindLLM
	KindFatalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNotReady:
		return "not_ready"
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindLLM:
		return "llm"
	case KindFatalInvariant:
		return "fatal_invariant"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind for classification.
type Error struct {
	Kind Kind
	Op   string // component/operation that raised it, e.g. "registry.GetMarketName"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for cases that don't need an operation-specific wrapper.
var (
	ErrRegistryNotReady = New(KindNotReady, "registry", errors.New("market registry not hydrated"))
	ErrUnknownMarket    = errors.New("unknown market")
)
