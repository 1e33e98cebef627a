// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"bytes"
	"context"
	"sort"

	"github.com/mediagit/mediagit/modules/diferenco"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// binarySniffWindow is how far into a blob's content the null-byte heuristic
// looks before declaring it binary (§4.10: "heuristic: null byte in first 8KB").
const binarySniffWindow = 8192

// BlobStore is the subset of the object database the merge needs to read blob
// content and write merged results back; satisfied by *backend.Database.
type BlobStore interface {
	Read(ctx context.Context, oid plumbing.Hash) ([]byte, error)
	Write(ctx context.Context, typ object.ObjectType, payload []byte) (plumbing.Hash, error)
}

// FileConflict describes one path that could not be merged automatically.
type FileConflict struct {
	Path   string
	Reason string
}

// TreeMergeResult is the outcome of a three-way tree merge.
type TreeMergeResult struct {
	Tree      *object.Tree
	Conflicts []FileConflict
}

// MergeTrees implements §4.10's three-way merge over tree entries. Entries
// carry the full repository-relative path as their name (§3: "the full path
// from the repo root is the name"), so the merge operates directly over the
// union of paths across base/ours/theirs with no subtree recursion.
func MergeTrees(ctx context.Context, blobs BlobStore, base, ours, theirs *object.Tree) (*TreeMergeResult, error) {
	paths := unionPaths(base, ours, theirs)
	result := &TreeMergeResult{}
	merged := make([]*object.TreeEntry, 0, len(paths))

	for _, path := range paths {
		be := entryOrNil(base, path)
		oe := entryOrNil(ours, path)
		te := entryOrNil(theirs, path)

		switch {
		case entriesEqual(oe, te):
			// Both sides agree (including both-deleted); take ours.
			if oe != nil {
				merged = append(merged, oe.Clone())
			}
			continue
		case entriesEqual(be, oe):
			// Ours unchanged from base; take theirs (which may be a deletion).
			if te != nil {
				merged = append(merged, te.Clone())
			}
			continue
		case entriesEqual(be, te):
			// Theirs unchanged from base; take ours.
			if oe != nil {
				merged = append(merged, oe.Clone())
			}
			continue
		}

		// Both sides changed this path differently from base and from each
		// other: attempt a line-based blob merge; anything else conflicts.
		entry, conflict, err := mergeChangedEntry(ctx, blobs, path, be, oe, te)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			// A conflicted path still needs a placeholder so checkout has
			// something to materialize; prefer ours as the working copy.
			if oe != nil {
				merged = append(merged, oe.Clone())
			}
			continue
		}
		if entry != nil {
			merged = append(merged, entry)
		}
	}

	result.Tree = object.NewTree(merged)
	return result, nil
}

func mergeChangedEntry(ctx context.Context, blobs BlobStore, path string, base, ours, theirs *object.TreeEntry) (*object.TreeEntry, *FileConflict, error) {
	if ours == nil || theirs == nil {
		// One side deleted, the other modified: always a conflict per §4.10
		// ("both sides changed differently").
		return nil, &FileConflict{Path: path, Reason: "modify/delete conflict"}, nil
	}
	if ours.IsDir() || theirs.IsDir() || (base != nil && base.IsDir()) {
		return nil, &FileConflict{Path: path, Reason: "directory/file conflict"}, nil
	}

	var baseBytes []byte
	var err error
	if base != nil {
		baseBytes, err = blobs.Read(ctx, base.Hash)
		if err != nil {
			return nil, nil, err
		}
	}
	oursBytes, err := blobs.Read(ctx, ours.Hash)
	if err != nil {
		return nil, nil, err
	}
	theirsBytes, err := blobs.Read(ctx, theirs.Hash)
	if err != nil {
		return nil, nil, err
	}

	if looksBinary(baseBytes) || looksBinary(oursBytes) || looksBinary(theirsBytes) {
		return nil, &FileConflict{Path: path, Reason: "binary file conflict"}, nil
	}

	merged, hasConflict, err := diferenco.DefaultMerge(ctx, string(baseBytes), string(oursBytes), string(theirsBytes), "base", "ours", "theirs")
	if err != nil {
		return nil, nil, err
	}
	oid, err := blobs.Write(ctx, object.BlobObject, []byte(merged))
	if err != nil {
		return nil, nil, err
	}
	entry := &object.TreeEntry{Name: path, Mode: ours.Mode, Hash: oid}
	if hasConflict {
		return entry, &FileConflict{Path: path, Reason: "content conflict"}, nil
	}
	return entry, nil, nil
}

// looksBinary applies §4.10's heuristic: a null byte within the first 8KB
// marks content as binary, which is never line-merged.
func looksBinary(data []byte) bool {
	window := data
	if len(window) > binarySniffWindow {
		window = window[:binarySniffWindow]
	}
	return bytes.IndexByte(window, 0) != -1
}

// entryOrNil looks up path in tree, tolerating a nil tree (an absent base on
// a root-commit merge, or an empty ours/theirs tree).
func entryOrNil(tree *object.Tree, path string) *object.TreeEntry {
	if tree == nil {
		return nil
	}
	e, err := tree.Entry(path)
	if err != nil {
		return nil
	}
	return e
}

func entriesEqual(a, b *object.TreeEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}

func unionPaths(trees ...*object.Tree) []string {
	seen := make(map[string]struct{})
	for _, t := range trees {
		if t == nil {
			continue
		}
		for _, e := range t.Entries {
			seen[e.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
