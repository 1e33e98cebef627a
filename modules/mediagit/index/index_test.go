// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
	"github.com/stretchr/testify/require"
)

func entryFor(path string, content string) Entry {
	return Entry{
		Path: path,
		OID:  plumbing.HashBytes([]byte(content)),
		Mode: filemode.Regular,
		Size: int64(len(content)),
	}
}

func TestIndexAddContainsRemove(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "index"))
	idx.AddEntry(entryFor("a.txt", "A"))
	require.True(t, idx.Contains("a.txt"))
	require.Len(t, idx.Entries(), 1)

	idx.RemoveEntry("a.txt")
	require.False(t, idx.Contains("a.txt"))
}

func TestIndexMarkDeletedClearsStagedAndTombstones(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "index"))
	idx.AddEntry(entryFor("a.txt", "A"))
	idx.MarkDeleted("a.txt")

	require.False(t, idx.Contains("a.txt"))
	require.True(t, idx.IsDeleted("a.txt"))
	require.Equal(t, []string{"a.txt"}, idx.DeletedPaths())
}

func TestIndexAddClearsExistingTombstone(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "index"))
	idx.MarkDeleted("a.txt")
	idx.AddEntry(entryFor("a.txt", "A2"))

	require.True(t, idx.Contains("a.txt"))
	require.False(t, idx.IsDeleted("a.txt"))
}

func TestIndexWriteLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	idx := New(path)
	idx.AddEntry(entryFor("a.txt", "A"))
	idx.AddEntry(entryFor("dir/b.txt", "B"))
	idx.MarkDeleted("c.txt")
	require.NoError(t, idx.Write())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Entries(), 2)
	require.True(t, loaded.Contains("a.txt"))
	require.True(t, loaded.Contains("dir/b.txt"))
	require.True(t, loaded.IsDeleted("c.txt"))
}

func TestIndexLoadMissingFileReturnsEmpty(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "nonexistent-index"))
	require.NoError(t, err)
	require.Empty(t, idx.Entries())
	require.Empty(t, idx.DeletedPaths())
}

func TestIndexNormalizesBackslashPaths(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "index"))
	idx.AddEntry(entryFor(`dir\nested\file.txt`, "X"))
	require.True(t, idx.Contains("dir/nested/file.txt"))
}

func TestIndexClearRemovesEntriesAndTombstones(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "index"))
	idx.AddEntry(entryFor("a.txt", "A"))
	idx.MarkDeleted("b.txt")
	idx.Clear()

	require.Empty(t, idx.Entries())
	require.Empty(t, idx.DeletedPaths())
}

func TestIndexSnapshotRestore(t *testing.T) {
	idx := New(filepath.Join(t.TempDir(), "index"))
	idx.AddEntry(entryFor("a.txt", "A"))
	snap := idx.Snapshot()

	idx.Clear()
	require.Empty(t, idx.Entries())

	idx.Restore(snap)
	require.True(t, idx.Contains("a.txt"))
}

func TestIndexLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"entries":{},"deleted_entries":[]}`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	kind, ok := plumbing.KindOf(err)
	require.True(t, ok)
	require.Equal(t, plumbing.KindCorruption, kind)
}
