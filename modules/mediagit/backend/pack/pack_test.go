// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pack

import (
	"os"
	"testing"

	"github.com/mediagit/mediagit/modules/mediagit/backend"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/stretchr/testify/require"
)

func TestPackWriteReadFullObjects(t *testing.T) {
	w, err := NewWriter(backend.Balanced, t.TempDir())
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("blob one payload"),
		[]byte("blob two payload, a little longer this time"),
		[]byte("tree listing goes here"),
	}
	oids := make([]plumbing.Hash, len(payloads))
	for i, p := range payloads {
		oids[i] = plumbing.HashBytes(p)
		_, err := w.AddObject(oids[i], object.BlobObject, p)
		require.NoError(t, err)
	}

	packBytes, err := w.Finalize()
	require.NoError(t, err)

	r, err := NewReader(packBytes)
	require.NoError(t, err)
	require.EqualValues(t, len(payloads), r.ObjectCount())

	for i, oid := range oids {
		typ, got, err := r.GetObject(oid)
		require.NoError(t, err)
		require.Equal(t, object.BlobObject, typ)
		require.Equal(t, payloads[i], got)
	}

	list := r.ListObjects()
	require.Len(t, list, len(oids))
}

func TestPackWriteReadDeltaChain(t *testing.T) {
	w, err := NewWriter(backend.Balanced, t.TempDir())
	require.NoError(t, err)

	base := []byte("the quick brown fox jumps over the lazy dog, repeated for content: the quick brown fox jumps over the lazy dog")
	baseOid := plumbing.HashBytes(base)
	_, err = w.AddObject(baseOid, object.BlobObject, base)
	require.NoError(t, err)

	target := append([]byte("PREFIX: "), base...)
	targetOid := plumbing.HashBytes(target)
	delta := backend.EncodeDelta(base, target)
	_, err = w.AddDeltaObject(targetOid, baseOid, delta)
	require.NoError(t, err)

	packBytes, err := w.Finalize()
	require.NoError(t, err)

	r, err := NewReader(packBytes)
	require.NoError(t, err)

	typ, got, err := r.GetObject(targetOid)
	require.NoError(t, err)
	require.Equal(t, object.BlobObject, typ)
	require.Equal(t, target, got)
}

func TestPackReaderRejectsBadMagic(t *testing.T) {
	_, err := NewReader([]byte("not a pack at all, way too short"))
	require.Error(t, err)
}

func TestPackReaderRejectsTamperedTrailer(t *testing.T) {
	w, err := NewWriter(backend.Fast, t.TempDir())
	require.NoError(t, err)
	data := []byte("single object")
	oid := plumbing.HashBytes(data)
	_, err = w.AddObject(oid, object.BlobObject, data)
	require.NoError(t, err)
	packBytes, err := w.Finalize()
	require.NoError(t, err)

	packBytes[len(packBytes)-1] ^= 0xff // flip a trailer byte
	_, err = NewReader(packBytes)
	require.Error(t, err)
}

func TestPackDropRemovesIndexTempFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(backend.Balanced, dir)
	require.NoError(t, err)
	data := []byte("staged but never finalized")
	_, err = w.AddObject(plumbing.HashBytes(data), object.BlobObject, data)
	require.NoError(t, err)

	name := w.indexFile.Name()
	w.Drop()

	_, err = os.Stat(name)
	require.True(t, os.IsNotExist(err), "Drop must remove the index temp file")
}
