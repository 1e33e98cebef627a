package object

import (
	"bytes"
	"testing"

	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
	"github.com/stretchr/testify/require"
)

func TestTreeEncodeSortedByName(t *testing.T) {
	tr := NewTree([]*TreeEntry{
		{Name: "b.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("B"))},
		{Name: "a.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("A"))},
	})
	require.Equal(t, "a.txt", tr.Entries[0].Name)
	require.Equal(t, "b.txt", tr.Entries[1].Name)

	var buf bytes.Buffer
	require.NoError(t, tr.Encode(&buf))
	require.True(t, bytes.HasPrefix(buf.Bytes(), TREE_MAGIC[:]))
}

func TestTreeEncodeDecodeRoundtrip(t *testing.T) {
	tr := NewTree([]*TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("A"))},
		{Name: "dir", Mode: filemode.Subtree, Hash: plumbing.HashBytes([]byte("dir-contents"))},
	})

	var buf bytes.Buffer
	require.NoError(t, tr.Encode(&buf))

	oid := Hash(tr)
	body := buf.Bytes()[len(TREE_MAGIC):]

	var decoded Tree
	r := NewReader(bytes.NewReader(body), oid, TreeObject)
	require.NoError(t, decoded.Decode(r))
	require.True(t, tr.Equal(&decoded))
}

func TestTreeMergeReplacesAndAppends(t *testing.T) {
	base := NewTree([]*TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("A"))},
		{Name: "b.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("B"))},
	})

	merged := base.Merge(&TreeEntry{Name: "b.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("B2"))})
	entry, err := merged.Entry("b.txt")
	require.NoError(t, err)
	require.Equal(t, plumbing.HashBytes([]byte("B2")), entry.Hash)

	entry, err = merged.Entry("a.txt")
	require.NoError(t, err)
	require.Equal(t, plumbing.HashBytes([]byte("A")), entry.Hash)
}

func TestTreeRemove(t *testing.T) {
	base := NewTree([]*TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("A"))},
		{Name: "b.txt", Mode: filemode.Regular, Hash: plumbing.HashBytes([]byte("B"))},
	})
	after := base.Remove("a.txt")
	require.Len(t, after.Entries, 1)
	require.Equal(t, "b.txt", after.Entries[0].Name)
}
