package layout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownType           = errors.New("layout: unknown type")
	ErrOffsetMismatch        = errors.New("layout: offset mismatch")
	ErrSizeTooSmall          = errors.New("layout: declared size too small")
	ErrAmbiguousUnsizedField = errors.New("layout: cannot size field")
	ErrCyclicType            = errors.New("layout: cyclic type")
)

// UnknownTypeError reports a field whose size had to come from the registry
// but whose type was never registered.
type UnknownTypeError struct {
	Struct string
	Field  string
	Type   string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s.%s: couldn't find type %q", e.Struct, e.Field, e.Type)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// OffsetMismatchError reports a field whose declared offset disagrees with
// the running offset computed from the fields before it.
type OffsetMismatchError struct {
	Struct   string
	Field    string
	Expected int // the field's declared offset
	Actual   int // the computed offset
}

func (e *OffsetMismatchError) Error() string {
	return fmt.Sprintf("offset mismatch for %s.%s: expected %d (0x%x), actual %d (0x%x)",
		e.Struct, e.Field, e.Expected, e.Expected, e.Actual, e.Actual)
}

func (e *OffsetMismatchError) Unwrap() error { return ErrOffsetMismatch }

// SizeTooSmallError reports a struct whose fields do not fit its declared size.
type SizeTooSmallError struct {
	Struct   string
	Declared int
	Required int
}

func (e *SizeTooSmallError) Error() string {
	return fmt.Sprintf("%s: declared size %d but fields need %d bytes", e.Struct, e.Declared, e.Required)
}

func (e *SizeTooSmallError) Unwrap() error { return ErrSizeTooSmall }

// AmbiguousUnsizedFieldError reports a zero-size field that could not be
// given a size and could not be dropped.
type AmbiguousUnsizedFieldError struct {
	Struct string
	Field  string
}

func (e *AmbiguousUnsizedFieldError) Error() string {
	return fmt.Sprintf("%s.%s: field size resolved to 0", e.Struct, e.Field)
}

func (e *AmbiguousUnsizedFieldError) Unwrap() error { return ErrAmbiguousUnsizedField }

// CyclicTypeError reports a struct that contains itself by value.
type CyclicTypeError struct {
	Path []string
}

func (e *CyclicTypeError) Error() string {
	return "cyclic struct nesting: " + strings.Join(e.Path, " -> ")
}

func (e *CyclicTypeError) Unwrap() error { return ErrCyclicType }
