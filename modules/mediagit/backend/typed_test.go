// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mediagit/mediagit/modules/mediagit"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, db *Database, tr *object.Tree) plumbing.Hash {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tr.Encode(&buf))
	oid, err := db.Write(context.Background(), object.TreeObject, buf.Bytes())
	require.NoError(t, err)
	return oid
}

func writeCommit(t *testing.T, db *Database, c *object.Commit) plumbing.Hash {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	oid, err := db.Write(context.Background(), object.CommitObject, buf.Bytes())
	require.NoError(t, err)
	return oid
}

func TestDatabaseTreeRoundtripStripsMagic(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	blobOid, err := db.Write(ctx, object.BlobObject, []byte("content"))
	require.NoError(t, err)

	tr := object.NewTree([]*object.TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobOid}})
	oid := writeTree(t, db, tr)

	got, err := db.Tree(ctx, oid)
	require.NoError(t, err)
	entry, err := got.Entry("a.txt")
	require.NoError(t, err)
	require.Equal(t, blobOid, entry.Hash)
}

func TestDatabaseCommitRoundtripStripsMagic(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	treeOid := writeTree(t, db, object.NewTree(nil))
	sig := object.Signature{Name: "a", Email: "a@example.com", When: time.Unix(1700000000, 0).UTC()}
	c := &object.Commit{Tree: treeOid, Author: sig, Committer: sig, Message: "msg"}
	oid := writeCommit(t, db, c)

	got, err := db.Commit(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, treeOid, got.Tree)
	require.Equal(t, "msg", got.Message)
}

func TestDatabaseTreeRejectsWrongMagic(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	oid, err := db.Write(ctx, object.TreeObject, []byte("not a tree at all"))
	require.NoError(t, err)

	_, err = db.Tree(ctx, oid)
	require.Error(t, err)
	require.ErrorIs(t, err, mediagit.ErrMismatchedMagic)
}

func TestDatabaseCommitRejectsWrongMagic(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	oid, err := db.Write(ctx, object.CommitObject, []byte("not a commit"))
	require.NoError(t, err)

	_, err = db.Commit(ctx, oid)
	require.Error(t, err)
	require.ErrorIs(t, err, mediagit.ErrMismatchedMagic)
}
