// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// CheckoutOptions controls Checkout's dirty-file safety (§4.10 Checkout).
type CheckoutOptions struct {
	// Force overwrites/removes working-tree files even when their content
	// differs from what HEAD's tree recorded for that path.
	Force bool
}

// Checkout implements §4.10's checkout algorithm: walk target's tree,
// materialize each entry into the working directory, and remove
// working-tree paths tracked by the current HEAD's tree but absent from
// target. Refuses (unless Force) to touch any path whose on-disk content
// differs from HEAD's recorded version — the "dirty-file safety" invariant.
func (r *Repository) Checkout(ctx context.Context, target plumbing.Hash, opts CheckoutOptions) error {
	targetTree, err := r.commitTree(ctx, target)
	if err != nil {
		return err
	}
	headOid, err := r.Head(ctx)
	if err != nil {
		return err
	}
	headTree, err := r.commitTree(ctx, headOid)
	if err != nil {
		return err
	}

	targetByName := entriesByName(targetTree)
	headByName := entriesByName(headTree)

	if !opts.Force {
		if dirty, err := r.dirtyPaths(targetByName, headByName); err != nil {
			return err
		} else if len(dirty) > 0 {
			sort.Strings(dirty)
			return plumbing.NewKindError(plumbing.KindConflict, "checkout", "use --force to override",
				fmt.Errorf("local modifications would be overwritten in: %s", strings.Join(dirty, ", ")))
		}
	}

	for _, e := range targetTree.Entries {
		if e.IsDir() {
			continue
		}
		if err := r.materializeEntry(ctx, e); err != nil {
			return err
		}
	}

	for _, e := range headTree.Entries {
		if e.IsDir() {
			continue
		}
		if _, ok := targetByName[e.Name]; ok {
			continue
		}
		if err := r.removeWorkingPath(e.Name); err != nil {
			return err
		}
	}

	return nil
}

// CheckoutBranch resolves branch to a commit, checks it out, and repoints
// HEAD at branch.
func (r *Repository) CheckoutBranch(ctx context.Context, branch plumbing.ReferenceName, opts CheckoutOptions) error {
	ref, err := r.Refs.Reference(branch)
	if err != nil {
		return err
	}
	if err := r.Checkout(ctx, ref.Hash(), opts); err != nil {
		return err
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, branch)
	if err := r.Refs.ReferenceUpdate(head, nil); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, "update HEAD", "", err)
	}
	return nil
}

// commitTree resolves a commit OID down to its tree, treating ZeroHash (no
// commits yet) as an empty tree.
func (r *Repository) commitTree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error) {
	if oid.IsZero() {
		return object.NewTree(nil), nil
	}
	c, err := r.Objects.Commit(ctx, oid)
	if err != nil {
		return nil, err
	}
	return r.Objects.Tree(ctx, c.Tree)
}

func entriesByName(t *object.Tree) map[string]*object.TreeEntry {
	m := make(map[string]*object.TreeEntry, len(t.Entries))
	for _, e := range t.Entries {
		m[e.Name] = e
	}
	return m
}

// dirtyPaths reports every working-tree path that would be overwritten or
// removed by a checkout but whose on-disk content no longer matches what
// HEAD's tree last recorded for it (a locally modified or untracked-but-
// in-the-way file).
func (r *Repository) dirtyPaths(targetByName, headByName map[string]*object.TreeEntry) ([]string, error) {
	var dirty []string
	check := func(name string) error {
		diskHash, present, err := r.hashWorkingFile(name)
		if err != nil {
			return err
		}
		if !present {
			return nil
		}
		headEntry, tracked := headByName[name]
		if !tracked || headEntry.Hash != diskHash {
			dirty = append(dirty, name)
		}
		return nil
	}
	for name := range targetByName {
		if err := check(name); err != nil {
			return nil, err
		}
	}
	for name := range headByName {
		if _, stillWanted := targetByName[name]; stillWanted {
			continue
		}
		if err := check(name); err != nil {
			return nil, err
		}
	}
	return dirty, nil
}

// hashWorkingFile returns the content hash of the working-tree file at name,
// or present=false if it does not exist.
func (r *Repository) hashWorkingFile(name string) (hash plumbing.Hash, present bool, err error) {
	path := filepath.Join(r.WorkTree, filepath.FromSlash(name))
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("stat %s", name), "", err)
	}
	return plumbing.HashBytes(b), true, nil
}

// materializeEntry writes a single tree entry's blob content to its
// working-tree path, creating parent directories as needed.
func (r *Repository) materializeEntry(ctx context.Context, e *object.TreeEntry) error {
	path := filepath.Join(r.WorkTree, filepath.FromSlash(e.Name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("create directory for %s", e.Name), "", err)
	}
	content, err := r.Objects.Read(ctx, e.Hash)
	if err != nil {
		return err
	}
	if e.Mode.IsSymlink() {
		_ = os.Remove(path)
		if err := os.Symlink(string(content), path); err != nil {
			return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("write symlink %s", e.Name), "", err)
		}
		return nil
	}
	mode, err := e.Mode.ToOSFileMode()
	if err != nil {
		return plumbing.NewKindError(plumbing.KindInvalidInput, fmt.Sprintf("checkout %s", e.Name), "", err)
	}
	if err := os.WriteFile(path, content, mode.Perm()); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("write %s", e.Name), "", err)
	}
	return nil
}

// removeWorkingPath deletes a working-tree file no longer tracked by
// target's tree, and prunes now-empty parent directories up to the
// worktree root.
func (r *Repository) removeWorkingPath(name string) error {
	path := filepath.Join(r.WorkTree, filepath.FromSlash(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("remove %s", name), "", err)
	}
	dir := filepath.Dir(path)
	for dir != r.WorkTree && len(dir) > len(r.WorkTree) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
