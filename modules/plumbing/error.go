package plumbing

import (
	"errors"
	"fmt"
)

var (
	//ErrStop is used to stop a ForEach function in an Iter
	ErrStop = errors.New("stop iter")
)

// noSuchObject is an error type that occurs when no object with a given object
// ID is available.
type noSuchObject struct {
	oid Hash
}

// Error implements the error.Error() function.
func (e *noSuchObject) Error() string {
	return fmt.Sprintf("mediagit: no such object: %s", e.oid)
}

// NoSuchObject creates a new error representing a missing object with a given
// object ID.
func NoSuchObject(oid Hash) error {
	return &noSuchObject{oid: oid}
}

// IsNoSuchObject indicates whether an error is a noSuchObject and is non-nil.
func IsNoSuchObject(e error) bool {
	if e == nil {
		return false
	}
	err, ok := e.(*noSuchObject)
	return ok && err != nil
}

func ExtractNoSuchObject(e error) (Hash, bool) {
	if e == nil {
		return ZeroHash, false
	}
	err, ok := e.(*noSuchObject)
	if !ok {
		return ZeroHash, false
	}
	return err.oid, true
}

type ErrResourceLocked struct {
	name ReferenceName
	t    string
}

func (err *ErrResourceLocked) Error() string {
	return fmt.Sprintf("%s '%s' locked", err.t, err.name)
}

func IsErrResourceLocked(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrResourceLocked)
	return ok
}

func NewErrResourceLocked(t string, name ReferenceName) error {
	return &ErrResourceLocked{t: t, name: name}
}

type ErrRevNotFound struct {
	Reason string
}

func (e *ErrRevNotFound) Error() string { return e.Reason }

func NewErrRevNotFound(format string, a ...any) error {
	return &ErrRevNotFound{Reason: fmt.Sprintf(format, a...)}
}

func IsErrRevNotFound(e error) bool {
	if e == nil {
		return false
	}
	err, ok := e.(*ErrRevNotFound)
	return ok && err != nil
}

// Kind classifies an error independent of its presentation. Component
// boundaries preserve the Kind when wrapping with fmt.Errorf("...: %w", err);
// they never reclassify it.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindCorruption
	KindIoError
	KindInvalidInput
	KindConflict
	KindStateError
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindCorruption:
		return "corruption"
	case KindIoError:
		return "io-error"
	case KindInvalidInput:
		return "invalid-input"
	case KindConflict:
		return "conflict"
	case KindStateError:
		return "state-error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// KindError is a taxonomy-classified error wrapping an underlying cause with
// a short operation description used for user-facing remedy hints.
type KindError struct {
	K      Kind
	Op     string
	Remedy string
	Err    error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.K, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.K, e.Op, e.Err)
}

func (e *KindError) Unwrap() error { return e.Err }

// NewKindError constructs a taxonomy-classified error. remedy is an optional
// user-facing suggestion (e.g. "use --force to override"); pass "" when none
// applies.
func NewKindError(k Kind, op string, remedy string, err error) error {
	return &KindError{K: k, Op: op, Remedy: remedy, Err: err}
}

// KindOf extracts the Kind from err, walking wrapped errors. Returns
// (0, false) for errors outside the taxonomy (e.g. raw os.* errors that have
// not yet been classified by the layer that produced them).
func KindOf(err error) (Kind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.K, true
	}
	if IsNoSuchObject(err) || errors.Is(err, ErrReferenceNotFound) {
		return KindNotFound, true
	}
	if IsErrResourceLocked(err) {
		return KindConflict, true
	}
	return 0, false
}
