// Package errkind classifies failures so callers can decide between retrying,
// failing permanently, or refusing to start.
package errkind

import (
	"errors"
	"fmt"
)

// Kind sentinels. Test with errors.Is(err, errkind.Transient).
var (
	// Content marks a permanent failure caused by the input itself, such as an
	// unreadable or empty document. Never retried.
	Content = errors.New("content error")

	// Transient marks an availability failure of an external service
	// (embedding provider, vector store, LLM). Retryable with backoff.
	Transient = errors.New("transient service error")

	// Configuration marks missing credentials or paths. Fatal at startup.
	Configuration = errors.New("configuration error")
)

// Error attaches a kind and an operation name to an underlying error.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E wraps err with the given kind. A nil err still produces an error of that
// kind so constructors can report e.g. a missing dependency.
func E(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Contentf builds a Content error from a format string.
func Contentf(format string, args ...any) error {
	return &Error{Kind: Content, Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	return errors.Is(err, Transient)
}

// IsContent reports whether err is a permanent content failure.
func IsContent(err error) bool {
	return errors.Is(err, Content)
}
