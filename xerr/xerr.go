// Package xerr implements the error taxonomy from spec §7: kinds, not
// specific names, each with a defined propagation policy.
package xerr

import (
	"errors"
	"fmt"
)

// Kind is one of the six error categories named in spec §7.
type Kind string

const (
	// InvalidInput: bad magic bytes, oversized file, unsupported
	// format. Surfaced to the host; no retry.
	InvalidInput Kind = "invalid_input"
	// Cancelled: cooperative abort. Surfaced; no partial result.
	Cancelled Kind = "cancelled"
	// StageTransient: a stage failed for reasons another stage may
	// recover from. Logged, not surfaced; the cascade advances.
	StageTransient Kind = "stage_transient"
	// StageFatal: the stage itself is broken. Logged; the stage is
	// marked unavailable; the cascade advances.
	StageFatal Kind = "stage_fatal"
	// QualityRejected: no stage met any threshold. Surfaced with the
	// best partial result attached for debugging.
	QualityRejected Kind = "quality_rejected"
	// InternalInvariant: a violation of I1-I5 at finalization. Fatal;
	// indicates a bug, not a data condition.
	InternalInvariant Kind = "internal_invariant"
)

// Error is a typed error carrying its kind and the stage that
// produced it, per spec §7's "structured error containing the kind, a
// single-line human message, and the stage that produced it".
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Wrap attaches a kind and stage to an underlying error, the way
// Tangerg/lynx/ai's JSONConverter.Convert wraps decode failures.
func Wrap(kind Kind, stage string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Message: err.Error(), Err: err}
}

// Surfaces reports whether errors of this kind reach the host
// directly, per spec §7's propagation policy: only InvalidInput,
// Cancelled, QualityRejected, and InternalInvariant do.
func (k Kind) Surfaces() bool {
	switch k {
	case InvalidInput, Cancelled, QualityRejected, InternalInvariant:
		return true
	default:
		return false
	}
}

// As is a thin re-export of errors.As for callers that only import
// xerr, matching the teacher's preference for errors.As/errors.Is
// over string matching.
func As(err error, target any) bool { return errors.As(err, target) }

// KindOf extracts the Kind of err, if any, and whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
