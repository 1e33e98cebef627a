// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mediagit/mediagit/modules/mediagit/index"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func stageFile(t *testing.T, repo *Repository, path, content string) {
	t.Helper()
	oid, err := repo.Objects.Write(context.Background(), object.BlobObject, []byte(content))
	require.NoError(t, err)
	repo.Index.AddEntry(index.Entry{Path: path, OID: oid, Mode: filemode.Regular, Size: int64(len(content))})
}

func testAuthor() object.Signature {
	return object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1700000000, 0).UTC()}
}

func TestInitCreatesSymbolicHEAD(t *testing.T) {
	repo := newTestRepo(t)
	head, err := repo.Refs.HEAD()
	require.NoError(t, err)
	require.Equal(t, plumbing.SymbolicReference, head.Type())
	require.Equal(t, plumbing.Mainline, head.Target())
}

func TestInitRefusesExistingRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := Init(dir)
	require.NoError(t, err)
	_, err = Init(dir)
	require.Error(t, err)
}

func TestCommitCreatesRootCommit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stageFile(t, repo, "a.txt", "hello\n")
	oid, err := repo.Commit(ctx, testAuthor(), "first commit")
	require.NoError(t, err)
	require.NotEqual(t, plumbing.ZeroHash, oid)

	commit, err := repo.Objects.Commit(ctx, oid)
	require.NoError(t, err)
	require.Empty(t, commit.Parents)
	require.Equal(t, "first commit", commit.Message)

	tree, err := repo.Objects.Tree(ctx, commit.Tree)
	require.NoError(t, err)
	entry, err := tree.Entry("a.txt")
	require.NoError(t, err)
	require.Equal(t, filemode.Regular, entry.Mode)

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, oid, head)
}

func TestCommitClearsStagingIndex(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stageFile(t, repo, "a.txt", "hello\n")
	_, err := repo.Commit(ctx, testAuthor(), "first commit")
	require.NoError(t, err)

	require.False(t, repo.Index.Contains("a.txt"))
	require.Empty(t, repo.Index.Entries())
}

func TestCommitSecondCommitCarriesParentTree(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stageFile(t, repo, "a.txt", "v1\n")
	first, err := repo.Commit(ctx, testAuthor(), "add a")
	require.NoError(t, err)

	stageFile(t, repo, "b.txt", "v1\n")
	second, err := repo.Commit(ctx, testAuthor(), "add b")
	require.NoError(t, err)

	commit, err := repo.Objects.Commit(ctx, second)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{first}, commit.Parents)

	tree, err := repo.Objects.Tree(ctx, commit.Tree)
	require.NoError(t, err)
	_, err = tree.Entry("a.txt")
	require.NoError(t, err, "parent's tree entries must carry forward")
	_, err = tree.Entry("b.txt")
	require.NoError(t, err)
}

func TestCommitHonorsDeletedPaths(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stageFile(t, repo, "a.txt", "v1\n")
	stageFile(t, repo, "b.txt", "v1\n")
	_, err := repo.Commit(ctx, testAuthor(), "add a and b")
	require.NoError(t, err)

	repo.Index.MarkDeleted("a.txt")
	second, err := repo.Commit(ctx, testAuthor(), "remove a")
	require.NoError(t, err)

	commit, err := repo.Objects.Commit(ctx, second)
	require.NoError(t, err)
	tree, err := repo.Objects.Tree(ctx, commit.Tree)
	require.NoError(t, err)

	_, err = tree.Entry("a.txt")
	require.Error(t, err)
	_, err = tree.Entry("b.txt")
	require.NoError(t, err)
}

func TestCommitAdvancesBranchRefWithPreconditionCheck(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stageFile(t, repo, "a.txt", "v1\n")
	first, err := repo.Commit(ctx, testAuthor(), "add a")
	require.NoError(t, err)

	ref, err := repo.Refs.Reference(plumbing.Mainline)
	require.NoError(t, err)
	require.Equal(t, first, ref.Hash())
}
