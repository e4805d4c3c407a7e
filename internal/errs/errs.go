// Package errs implements the single error sum type used across every
// subcog service (spec.md §7), so that callers can branch on a stable kind
// rather than parsing messages.
package errs

import "fmt"

// Kind enumerates the error sum type's variants.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindOperationFailed     Kind = "operation_failed"
	KindFeatureNotEnabled   Kind = "feature_not_enabled"
	KindNotImplemented      Kind = "not_implemented"
	KindSecretDetected      Kind = "secret_detected"
	KindEmbeddingMismatch   Kind = "embedding_mismatch"
	KindBackendUnavailable  Kind = "backend_unavailable"
)

// Error is the concrete type behind every Kind. Operation and Cause are
// populated for KindOperationFailed; Name is populated for
// KindFeatureNotEnabled, KindNotImplemented and KindBackendUnavailable;
// Expected/Actual are populated for KindEmbeddingMismatch.
type Error struct {
	Kind      Kind
	Operation string
	Name      string
	Expected  int
	Actual    int
	Cause     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindOperationFailed:
		if e.Cause != nil {
			return fmt.Sprintf("operation %q failed: %v", e.Operation, e.Cause)
		}
		return fmt.Sprintf("operation %q failed", e.Operation)
	case KindFeatureNotEnabled:
		return fmt.Sprintf("feature not enabled: %s", e.Name)
	case KindNotImplemented:
		return fmt.Sprintf("not implemented: %s", e.Name)
	case KindBackendUnavailable:
		return fmt.Sprintf("backend unavailable: %s", e.Name)
	case KindEmbeddingMismatch:
		return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	case KindSecretDetected:
		return "secret detected in content"
	case KindNotFound:
		return "not found"
	case KindInvalidInput:
		if e.Cause != nil {
			return fmt.Sprintf("invalid input: %v", e.Cause)
		}
		return "invalid input"
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, errs.NotFound) style comparisons by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound() error { return &Error{Kind: KindNotFound} }

func InvalidInput(cause error) error { return &Error{Kind: KindInvalidInput, Cause: cause} }

func InvalidInputf(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidInput, Cause: fmt.Errorf(format, args...)}
}

func OperationFailed(operation string, cause error) error {
	return &Error{Kind: KindOperationFailed, Operation: operation, Cause: cause}
}

func FeatureNotEnabled(name string) error { return &Error{Kind: KindFeatureNotEnabled, Name: name} }

func NotImplemented(name string) error { return &Error{Kind: KindNotImplemented, Name: name} }

func SecretDetected() error { return &Error{Kind: KindSecretDetected} }

func EmbeddingMismatch(expected, actual int) error {
	return &Error{Kind: KindEmbeddingMismatch, Expected: expected, Actual: actual}
}

func BackendUnavailable(name string) error { return &Error{Kind: KindBackendUnavailable, Name: name} }

// KindOf extracts the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
