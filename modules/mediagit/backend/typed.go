// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mediagit/mediagit/modules/mediagit"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// Commit, Tree, Tag and Blob adapt Database.Read to object.Backend: the
// caller already knows which typed object it expects at a given oid (a
// tree pointer always names a tree, a commit's parent always names a
// commit, and so on), so these wrap the raw canonical bytes with the
// expected ObjectType and hand them to object.Decode rather than sniffing
// a type tag out of the stored bytes themselves.
var _ object.Backend = (*Database)(nil)

// stripMagic removes the 4-byte magic Encode prepends to a tree/commit/tag's
// canonical bytes: Decode methods parse starting at the body and expect the
// caller to have already verified and dropped the magic (mirrors how
// object.TestTreeEncodeDecodeRoundtrip drives Tree.Decode).
func stripMagic(raw []byte, magic [4]byte, want string) ([]byte, error) {
	if len(raw) < len(magic) || !bytes.Equal(raw[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("expected %s magic: %w", want, mediagit.ErrMismatchedMagic)
	}
	return raw[len(magic):], nil
}

func (d *Database) Commit(ctx context.Context, oid plumbing.Hash) (*object.Commit, error) {
	raw, err := d.Read(ctx, oid)
	if err != nil {
		return nil, err
	}
	body, err := stripMagic(raw, object.COMMIT_MAGIC, "commit")
	if err != nil {
		return nil, fmt.Errorf("mediagit: decode commit %s: %w", oid, err)
	}
	v, err := object.Decode(object.NewReader(bytes.NewReader(body), oid, object.CommitObject), d)
	if err != nil {
		return nil, fmt.Errorf("mediagit: decode commit %s: %w", oid, err)
	}
	c, ok := v.(*object.Commit)
	if !ok {
		return nil, &mediagit.ErrMismatchedObject{Want: "commit", Got: fmt.Sprintf("%T", v)}
	}
	return c, nil
}

func (d *Database) Tree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error) {
	raw, err := d.Read(ctx, oid)
	if err != nil {
		return nil, err
	}
	body, err := stripMagic(raw, object.TREE_MAGIC, "tree")
	if err != nil {
		return nil, fmt.Errorf("mediagit: decode tree %s: %w", oid, err)
	}
	v, err := object.Decode(object.NewReader(bytes.NewReader(body), oid, object.TreeObject), d)
	if err != nil {
		return nil, fmt.Errorf("mediagit: decode tree %s: %w", oid, err)
	}
	t, ok := v.(*object.Tree)
	if !ok {
		return nil, &mediagit.ErrMismatchedObject{Want: "tree", Got: fmt.Sprintf("%T", v)}
	}
	return t, nil
}

func (d *Database) Tag(ctx context.Context, oid plumbing.Hash) (*object.Tag, error) {
	raw, err := d.Read(ctx, oid)
	if err != nil {
		return nil, err
	}
	body, err := stripMagic(raw, object.TAG_MAGIC, "tag")
	if err != nil {
		return nil, fmt.Errorf("mediagit: decode tag %s: %w", oid, err)
	}
	v, err := object.Decode(object.NewReader(bytes.NewReader(body), oid, object.TagObject), d)
	if err != nil {
		return nil, fmt.Errorf("mediagit: decode tag %s: %w", oid, err)
	}
	t, ok := v.(*object.Tag)
	if !ok {
		return nil, &mediagit.ErrMismatchedObject{Want: "tag", Got: fmt.Sprintf("%T", v)}
	}
	return t, nil
}

// Blob returns metadata for the blob at oid; its content bytes are fetched
// separately through Database.Read (§4.8: blob payload is raw file bytes
// with no framing, so there is nothing for this layer to decode).
func (d *Database) Blob(ctx context.Context, oid plumbing.Hash) (*object.Blob, error) {
	raw, err := d.Read(ctx, oid)
	if err != nil {
		return nil, err
	}
	return &object.Blob{Hash: oid, Size: int64(len(raw))}, nil
}
