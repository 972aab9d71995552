package leap

import (
	"errors"
	"fmt"
)

// ErrGoto matches every error reported by the compiler.
var ErrGoto = errors.New("goto error")

// LabelNotFoundError reports a goto whose label is not declared.
type LabelNotFoundError struct {
	Name string
}

func (e *LabelNotFoundError) Error() string {
	return fmt.Sprintf("label `%s` was not found", e.Name)
}

func (e *LabelNotFoundError) Is(target error) bool { return target == ErrGoto }

// DuplicateLabelError reports a label declared more than once.
type DuplicateLabelError struct {
	Name string
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("duplicate labels found: `%s`", e.Name)
}

func (e *DuplicateLabelError) Is(target error) bool { return target == ErrGoto }

// LabelLimitError reports more labels than the configured cap.
type LabelLimitError struct {
	Count int
	Max   int
}

func (e *LabelLimitError) Error() string {
	return fmt.Sprintf("too many labels in function, max allowed: %d", e.Max)
}

func (e *LabelLimitError) Is(target error) bool { return target == ErrGoto }

// GotoLimitError reports more gotos than the configured cap.
type GotoLimitError struct {
	Count int
	Max   int
}

func (e *GotoLimitError) Error() string {
	return fmt.Sprintf("too many gotos in function, max allowed: %d", e.Max)
}

func (e *GotoLimitError) Is(target error) bool { return target == ErrGoto }

// MalformedMarkerError reports a marker keyword load that is not followed
// by two more instructions.
type MalformedMarkerError struct {
	Keyword string
	Offset  int
}

func (e *MalformedMarkerError) Error() string {
	return fmt.Sprintf("truncated %s marker at offset %d", e.Keyword, e.Offset)
}

func (e *MalformedMarkerError) Is(target error) bool { return target == ErrGoto }

// NoLandingError reports a goto to a label with no instruction after it.
type NoLandingError struct {
	Name string
}

func (e *NoLandingError) Error() string {
	return fmt.Sprintf("label `%s` has no instruction to jump to", e.Name)
}

func (e *NoLandingError) Is(target error) bool { return target == ErrGoto }

// DisplacementError reports a jump argument that does not fit the
// instruction encoding.
type DisplacementError struct {
	Name  string
	Value int
	Max   int
}

func (e *DisplacementError) Error() string {
	return fmt.Sprintf("goto `%s`: displacement %d out of range 0..%d", e.Name, e.Value, e.Max)
}

func (e *DisplacementError) Is(target error) bool { return target == ErrGoto }
