// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"

	"github.com/mediagit/mediagit/modules/plumbing"
)

// Backend is the typed-object lookup surface that Tree/Commit navigation
// methods need; it is implemented by the object database (backend.Database).
type Backend interface {
	Commit(ctx context.Context, oid plumbing.Hash) (*Commit, error)
	Tree(ctx context.Context, oid plumbing.Hash) (*Tree, error)
	Tag(ctx context.Context, oid plumbing.Hash) (*Tag, error)
	Blob(ctx context.Context, oid plumbing.Hash) (*Blob, error)
}
