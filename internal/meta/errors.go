package meta

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStreamDecode = errors.New("meta: stream decode failed")
	ErrTruncated    = errors.New("meta: record truncated")
	ErrUnknownTag   = errors.New("meta: unknown discriminant")
	ErrMissingName  = errors.New("meta: record has no name")
	ErrBadString    = errors.New("meta: unreadable string pointer")
)

// StreamDecodeError reports a record the decoder could not read. It always
// aborts the run.
type StreamDecodeError struct {
	Offset int
	Tag    ItemType
	Reason string
	Cause  error
}

func (e *StreamDecodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "decode %s record (tag %d) at offset 0x%x", e.Tag, int32(e.Tag), e.Offset)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *StreamDecodeError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrStreamDecode, e.Cause}
	}
	return []error{ErrStreamDecode}
}

func decodeError(off int, tag ItemType, reason string, cause error) *StreamDecodeError {
	return &StreamDecodeError{Offset: off, Tag: tag, Reason: reason, Cause: cause}
}
