package types

import "fmt"

// ErrorKind classifies an error per the error-handling design: each kind
// carries its own propagation behavior at the router and RAG engine
// boundaries (validation/notFound surface immediately, backend/timeout
// drive the fallback cascade, cancelled short-circuits, internal is
// logged and never silently swallowed).
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindBackend    ErrorKind = "backend"
	KindTimeout    ErrorKind = "timeout"
	KindCancelled  ErrorKind = "cancelled"
	KindInternal   ErrorKind = "internal"
)

// CoreError is the uniform error type threaded through the RAG pipeline,
// the model router and the agent runtime. Callers should use errors.As
// to recover the Kind rather than string-matching messages.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// NewError builds a CoreError of the given kind.
func NewError(kind ErrorKind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// IsKind reports whether err is a CoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CoreError
	if ce2, ok := err.(*CoreError); ok {
		ce = ce2
	} else {
		return false
	}
	return ce.Kind == kind
}
