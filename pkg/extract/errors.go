package extract

import "fmt"

// ErrorKind classifies extraction failures. Kinds map onto the platform
// error taxonomy: InvalidURL is an input error (never retried), the rest are
// per-submission failures.
type ErrorKind string

// Extraction error kinds.
const (
	KindInvalidURL       ErrorKind = "invalid_url"
	KindNotAccessible    ErrorKind = "not_accessible"
	KindCloneTimeout     ErrorKind = "clone_timeout"
	KindEmpty            ErrorKind = "empty"
	KindOversizeFallback ErrorKind = "oversize_fallback"
)

// Error is an extraction failure with a machine-readable kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the extraction kind of err, or "" when err is not an
// extraction error.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}
