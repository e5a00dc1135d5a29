package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("invalid entries")
	ErrCycle               = errors.New("entry graph contains a cycle")
	ErrNoAdjustableSliders = errors.New("no adjustable sliders")
	ErrAllocationNoOp      = errors.New("nothing to adjust")
	ErrUnknownSlider       = errors.New("unknown slider")
	ErrSliderLocked        = errors.New("slider is locked")
	ErrInvalidMonth        = errors.New("invalid month key")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Problem is a single reason an entry batch was rejected.
type Problem struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

func (p Problem) String() string {
	if p.Target == "" {
		return p.Reason
	}
	return fmt.Sprintf("%q: %s", p.Target, p.Reason)
}

// ValidationError blocks a whole batch. It matches ErrValidation.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "invalid entries: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CycleError halts graph construction. RawInput is an untouched copy of the
// submitted batch so callers can keep it while every aggregate is reset.
type CycleError struct {
	Path     []string
	RawInput []Entry
}

func (e *CycleError) Error() string {
	if len(e.Path) == 1 {
		return fmt.Sprintf("entry %q uses itself as source", e.Path[0])
	}
	return "entry graph contains a cycle: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// ReservedNameWarning does not block processing.
type ReservedNameWarning struct {
	Target string `json:"target"`
}

func (w ReservedNameWarning) String() string {
	return fmt.Sprintf("%q collides with a reserved name, consider renaming it", w.Target)
}
