// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package mediagit holds error vocabulary shared by the object, backend and
// index sub-packages that doesn't fit the plumbing.Kind taxonomy's coarse
// classification but still needs a stable sentinel or type other packages
// can test for directly.
package mediagit

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportCompressMethod is returned when a compression Tier has no
	// registered encoder (modules/mediagit/backend/compress.go).
	ErrUnsupportCompressMethod = errors.New("unsupported compress method")
	// ErrMismatchedMagic is returned when an object's canonical bytes don't
	// begin with the magic its claimed ObjectType expects
	// (modules/mediagit/backend/typed.go).
	ErrMismatchedMagic = errors.New("mismatched magic")
	// ErrMismatchedVersion is returned when the staging index on disk
	// carries a version this build does not know how to read
	// (modules/mediagit/index/index.go).
	ErrMismatchedVersion = errors.New("mismatched version")
)

// ErrMismatchedObject reports that an oid decoded successfully but as a
// different object kind than the caller required — a commit pointer that
// actually resolves to a tree, say.
type ErrMismatchedObject struct {
	Want string
	Got  string
}

func (err *ErrMismatchedObject) Error() string {
	return fmt.Sprintf("mismatched object want '%s' got '%s'", err.Want, err.Got)
}

func IsErrMismatchedObject(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrMismatchedObject)
	return ok
}
