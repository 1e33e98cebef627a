// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-memory object.Backend over hand-built commits,
// enough to drive MergeBase without any ODB/storage machinery.
type fakeBackend struct {
	commits map[plumbing.Hash]*object.Commit
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{commits: make(map[plumbing.Hash]*object.Commit)}
}

// addCommit synthesizes a commit whose hash is derived from its label, so
// tests can refer to commits by short names without a real ODB.
func (f *fakeBackend) addCommit(label string, parents ...plumbing.Hash) plumbing.Hash {
	h := plumbing.HashBytes([]byte(label))
	f.commits[h] = &object.Commit{Hash: h, Parents: parents, Message: label}
	return h
}

func (f *fakeBackend) Commit(_ context.Context, oid plumbing.Hash) (*object.Commit, error) {
	c, ok := f.commits[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return c, nil
}

func (f *fakeBackend) Tree(context.Context, plumbing.Hash) (*object.Tree, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeBackend) Tag(context.Context, plumbing.Hash) (*object.Tag, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeBackend) Blob(context.Context, plumbing.Hash) (*object.Blob, error) {
	return nil, fmt.Errorf("not implemented")
}

var _ object.Backend = (*fakeBackend)(nil)

func TestMergeBaseLinearHistory(t *testing.T) {
	b := newFakeBackend()
	c0 := b.addCommit("C0")
	c1 := b.addCommit("C1", c0)
	c2 := b.addCommit("C2", c1)

	base, err := MergeBase(context.Background(), b, c1, c2)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{c1}, base)
}

func TestMergeBaseDiamond(t *testing.T) {
	b := newFakeBackend()
	c0 := b.addCommit("C0")
	a := b.addCommit("A", c0)
	bb := b.addCommit("B", c0)

	base, err := MergeBase(context.Background(), b, a, bb)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{c0}, base)
}

func TestMergeBaseSameCommit(t *testing.T) {
	b := newFakeBackend()
	c0 := b.addCommit("C0")

	base, err := MergeBase(context.Background(), b, c0, c0)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{c0}, base)
}

func TestMergeBaseDisjointHistoriesReturnsEmpty(t *testing.T) {
	b := newFakeBackend()
	a := b.addCommit("A")
	bb := b.addCommit("B")

	base, err := MergeBase(context.Background(), b, a, bb)
	require.NoError(t, err)
	require.Empty(t, base)
}

func TestMergeBaseCrissCrossReturnsMultiple(t *testing.T) {
	b := newFakeBackend()
	// Two independent roots r1, r2; two merges m1 = r1+r2, m2 = r1+r2.
	// merge-base(m1, m2) must contain both r1 and r2 as co-equal bases.
	r1 := b.addCommit("R1")
	r2 := b.addCommit("R2")
	m1 := b.addCommit("M1", r1, r2)
	m2 := b.addCommit("M2", r2, r1)

	base, err := MergeBase(context.Background(), b, m1, m2)
	require.NoError(t, err)
	require.ElementsMatch(t, []plumbing.Hash{r1, r2}, base)
}
