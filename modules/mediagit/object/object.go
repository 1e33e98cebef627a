// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/strengthen"
)

var (
	ErrUnsupportedObject = errors.New("unsupported object type")
)

// ObjectType tags the four object kinds the object database stores. Values are
// stable: they are written as the one-byte discriminator in front of each
// packfile record. The loose object database stores canonical bytes without
// this byte, so a reader of a loose object supplies the type it expects.
type ObjectType uint8

const (
	InvalidObject ObjectType = 0
	BlobObject    ObjectType = 1
	TreeObject    ObjectType = 2
	CommitObject  ObjectType = 3
	TagObject     ObjectType = 4
)

func (t ObjectType) String() string {
	switch t {
	case BlobObject:
		return "blob"
	case TreeObject:
		return "tree"
	case CommitObject:
		return "commit"
	case TagObject:
		return "tag"
	default:
		return "unknown"
	}
}

// ObjectTypeFromString converts from a given string to an ObjectType enumeration instance.
func ObjectTypeFromString(s string) ObjectType {
	switch strings.ToLower(s) {
	case "blob":
		return BlobObject
	case "tree":
		return TreeObject
	case "commit":
		return CommitObject
	case "tag":
		return TagObject
	default:
		return InvalidObject
	}
}

func (t ObjectType) MarshalJSON() ([]byte, error) {
	return strengthen.BufferCat("\"", t.String(), "\""), nil
}

func (t *ObjectType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ObjectTypeFromString(s)
	return nil
}

// Reader is the canonical-payload reader handed to a Decode method: it reports
// the OID and type the caller already knows (from the ODB envelope) alongside
// the raw canonical bytes to parse.
type Reader interface {
	io.Reader
	Hash() plumbing.Hash
	Type() ObjectType
}

type reader struct {
	io.Reader
	hash       plumbing.Hash
	objectType ObjectType
}

func (r *reader) Hash() plumbing.Hash { return r.hash }
func (r *reader) Type() ObjectType    { return r.objectType }

// NewReader wraps a plain io.Reader of canonical payload bytes with the type/oid
// metadata the ODB envelope already determined.
func NewReader(r io.Reader, oid plumbing.Hash, t ObjectType) Reader {
	return &reader{Reader: r, hash: oid, objectType: t}
}

// Encoder produces the canonical, hash-relevant byte encoding of an object.
type Encoder interface {
	Encode(io.Writer) error
}

// Hash computes the OID an Encoder's canonical bytes would receive.
func Hash(e Encoder) plumbing.Hash {
	h := plumbing.NewHasher()
	if err := e.Encode(h); err != nil {
		return plumbing.ZeroHash
	}
	return h.Sum()
}

// Decode parses canonical payload bytes of the given type into a typed object.
// Blob has no Decode step of its own: its canonical payload IS the object.
func Decode(r Reader, b Backend) (any, error) {
	switch r.Type() {
	case CommitObject:
		c := &Commit{b: b}
		if err := c.Decode(r); err != nil {
			return nil, err
		}
		return c, nil
	case TreeObject:
		t := &Tree{b: b}
		if err := t.Decode(r); err != nil {
			return nil, err
		}
		return t, nil
	case TagObject:
		t := &Tag{}
		if err := t.Decode(r); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("object: %w: %s", ErrUnsupportedObject, r.Type())
	}
}
