// Package errs defines the failure kinds an ingestion run can end in.
//
// Every stage of the pipeline returns an *Error whose Kind tells the caller
// which stage failed. Sentinels match by kind:
//
//	if errors.Is(err, errs.ErrNoPages) { ... }
package errs

import (
	"errors"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	NoPages           Kind = "no_pages"
	ExtractionError   Kind = "extraction_error"
	ConversionError   Kind = "conversion_error"
	SplitFailure      Kind = "split_failure"
	UnknownStrategy   Kind = "unknown_strategy"
	StoreUnavailable  Kind = "store_unavailable"
	DimensionMismatch Kind = "dimension_mismatch"
	DistanceMismatch  Kind = "distance_mismatch"
	UpsertFailure     Kind = "upsert_failure"
	EmptyInput        Kind = "empty_input"
)

// Sentinels for errors.Is.
var (
	ErrNoPages           = &Error{Kind: NoPages}
	ErrExtraction        = &Error{Kind: ExtractionError}
	ErrConversion        = &Error{Kind: ConversionError}
	ErrSplitFailure      = &Error{Kind: SplitFailure}
	ErrUnknownStrategy   = &Error{Kind: UnknownStrategy}
	ErrStoreUnavailable  = &Error{Kind: StoreUnavailable}
	ErrDimensionMismatch = &Error{Kind: DimensionMismatch}
	ErrDistanceMismatch  = &Error{Kind: DistanceMismatch}
	ErrUpsertFailure     = &Error{Kind: UpsertFailure}
	ErrEmptyInput        = &Error{Kind: EmptyInput}
)

// Error is a typed pipeline failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "vector.EnsureCollection".
	Op  string
	Msg string
	Err error
}

// E builds an *Error wrapping err, which may be nil.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds an *Error with a message and no cause.
func Ef(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind. An unknown
// strategy is also a split failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil || t.Msg != "" {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == SplitFailure && e.Kind == UnknownStrategy
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
