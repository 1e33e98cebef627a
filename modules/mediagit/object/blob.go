// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"io"

	"github.com/mediagit/mediagit/modules/plumbing"
)

// Blob is the in-memory view of a stored blob: its canonical encoding is
// exactly its content bytes, with no framing of any kind — blob payload is
// the raw file bytes, full stop. Compression and storage framing are handled
// one layer up, by the object database envelope, never here.
type Blob struct {
	Hash plumbing.Hash
	Size int64
}

// HashFrom computes the OID a blob's content would receive, streaming through
// a hasher rather than buffering the whole payload.
func HashFrom(r io.Reader) (plumbing.Hash, int64, error) {
	hasher := plumbing.NewHasher()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return plumbing.ZeroHash, 0, err
	}
	return hasher.Sum(), n, nil
}
