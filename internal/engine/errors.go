package engine

import (
	"errors"
	"fmt"

	"github.com/coffersTech/ftfcut/internal/ftf"
)

// ErrUnknownEvent is wrapped by FormatError when the unknown-event policy is
// PolicyFail and an event of a non-windowed type is met.
var ErrUnknownEvent = errors.New("event type has no timestamp filter")

// FormatError reports input that does not follow the record framing.
type FormatError struct {
	Offset  int64
	Type    ftf.RecordType
	HasType bool
	Err     error
}

func (e *FormatError) Error() string {
	if e.HasType {
		return fmt.Sprintf("format error at offset %d (%s record): %v", e.Offset, e.Type, e.Err)
	}
	return fmt.Sprintf("format error at offset %d: %v", e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// DanglingReferenceError reports a kept event that references a string index
// no earlier String record defined.
type DanglingReferenceError struct {
	Index       uint16
	EventOffset int64
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("event at offset %d references undefined string index %d", e.EventOffset, e.Index)
}

// IOError reports a failure of the underlying storage.
type IOError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
