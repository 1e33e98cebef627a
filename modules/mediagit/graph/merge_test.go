// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"testing"

	"github.com/mediagit/mediagit/modules/mediagit/backend"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *backend.Database {
	t.Helper()
	store := backend.NewMemoryStorage()
	db, err := backend.NewDatabase(t.TempDir(), store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeBlob(t *testing.T, db *backend.Database, content string) plumbing.Hash {
	t.Helper()
	h, err := db.Write(context.Background(), object.BlobObject, []byte(content))
	require.NoError(t, err)
	return h
}

func TestMergeTreesTakesTheirsWhenOursUnchanged(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	baseOid := writeBlob(t, db, "base content\n")
	theirsOid := writeBlob(t, db, "their content\n")

	base := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: baseOid}})
	ours := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: baseOid}})
	theirs := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: theirsOid}})

	result, err := MergeTrees(ctx, db, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)
	entry, err := result.Tree.Entry("a.txt")
	require.NoError(t, err)
	require.Equal(t, theirsOid, entry.Hash)
}

func TestMergeTreesBothSidesIdenticalChangeTakesEither(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	baseOid := writeBlob(t, db, "base\n")
	changedOid := writeBlob(t, db, "changed\n")

	base := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: baseOid}})
	ours := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: changedOid}})
	theirs := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: changedOid}})

	result, err := MergeTrees(ctx, db, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)
	entry, err := result.Tree.Entry("a.txt")
	require.NoError(t, err)
	require.Equal(t, changedOid, entry.Hash)
}

func TestMergeTreesLineMergeResolvesNonOverlappingEdits(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	baseOid := writeBlob(t, db, "line1\nline2\nline3\n")
	oursOid := writeBlob(t, db, "line1-ours\nline2\nline3\n")
	theirsOid := writeBlob(t, db, "line1\nline2\nline3-theirs\n")

	base := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: baseOid}})
	ours := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: oursOid}})
	theirs := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: theirsOid}})

	result, err := MergeTrees(ctx, db, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)
	entry, err := result.Tree.Entry("a.txt")
	require.NoError(t, err)

	merged, err := db.Read(ctx, entry.Hash)
	require.NoError(t, err)
	require.Equal(t, "line1-ours\nline2\nline3-theirs\n", string(merged))
}

func TestMergeTreesOverlappingEditsConflict(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	baseOid := writeBlob(t, db, "line1\n")
	oursOid := writeBlob(t, db, "line1-ours\n")
	theirsOid := writeBlob(t, db, "line1-theirs\n")

	base := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: baseOid}})
	ours := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: oursOid}})
	theirs := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: theirsOid}})

	result, err := MergeTrees(ctx, db, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "a.txt", result.Conflicts[0].Path)
}

func TestMergeTreesBinaryConflict(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	baseOid := writeBlob(t, db, "\x00binary-base")
	oursOid := writeBlob(t, db, "\x00binary-ours")
	theirsOid := writeBlob(t, db, "\x00binary-theirs")

	base := object.NewTree([]*object.TreeEntry{{Name: "a.bin", Mode: filemode.Regular, Hash: baseOid}})
	ours := object.NewTree([]*object.TreeEntry{{Name: "a.bin", Mode: filemode.Regular, Hash: oursOid}})
	theirs := object.NewTree([]*object.TreeEntry{{Name: "a.bin", Mode: filemode.Regular, Hash: theirsOid}})

	result, err := MergeTrees(ctx, db, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "binary file conflict", result.Conflicts[0].Reason)
}

func TestMergeTreesModifyDeleteConflict(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	baseOid := writeBlob(t, db, "content\n")
	oursOid := writeBlob(t, db, "content-changed\n")

	base := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: baseOid}})
	ours := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: oursOid}})
	theirs := object.NewTree(nil) // theirs deleted the file

	result, err := MergeTrees(ctx, db, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "modify/delete conflict", result.Conflicts[0].Reason)
}
