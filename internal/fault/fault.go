// internal/fault/fault.go
// Package fault classifies errors by kind so callers and the HTTP layer
// can react to what went wrong without matching on message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies the broad category of a failure.
type Kind int

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown Kind = iota
	// KindValidation marks malformed input: queries, filters, request bodies.
	KindValidation
	// KindUpstream marks failures of the hosted embedding or completion APIs.
	KindUpstream
	// KindStorage marks vector store failures, including dimension mismatches.
	KindStorage
	// KindIO marks file problems: document reads, archive moves, history files.
	KindIO
	// KindNotFound marks lookups of sessions or resources that do not exist.
	KindNotFound
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindStorage:
		return "storage"
	case KindIO:
		return "io"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error pairs an underlying error with a Kind. It participates in the
// standard errors.Is/As chain via Unwrap.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches a kind to err. A nil err returns nil. If err already
// carries the same kind it is returned unchanged.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == kind {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf walks the error chain and returns the first classification found,
// or KindUnknown when none exists.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
