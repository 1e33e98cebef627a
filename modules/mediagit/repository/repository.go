// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package repository wires the Object Database (§4.6), Reference Database
// (§4.9), Reflog (§4.9) and Staging Index (§4.11) into the single entry
// point a caller drives: open/init a repository on disk and commit staged
// changes onto it (§4.8, §7).
package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mediagit/mediagit/modules/mediagit/backend"
	"github.com/mediagit/mediagit/modules/mediagit/index"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/reflog"
	"github.com/mediagit/mediagit/modules/mediagit/refs"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// DotDir is the on-disk root of everything a repository owns, relative to
// the working tree, per §6's layout (objects/, refs/, HEAD, index, logs/).
const DotDir = ".mediagit"

// Repository ties the working tree to its on-disk state: object storage,
// reference storage, reflog and staging index.
type Repository struct {
	WorkTree string
	GitDir   string

	Objects *backend.Database
	Refs    refs.Backend
	Reflogs *reflog.DB
	Index   *index.Index
}

// Init lays out a new repository at workTree/.mediagit (§6) and returns it
// open. HEAD starts as a symbolic reference to the default branch even
// though that branch does not exist yet, matching how a fresh checkout has
// no commits but still knows what branch the first commit will create.
func Init(workTree string) (*Repository, error) {
	gitDir := filepath.Join(workTree, DotDir)
	if _, err := os.Stat(gitDir); err == nil {
		return nil, plumbing.NewKindError(plumbing.KindStateError, fmt.Sprintf("init %s", gitDir), "", fmt.Errorf("repository already exists"))
	}
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		return nil, plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("create %s", gitDir), "", err)
	}

	repo, err := open(workTree, gitDir)
	if err != nil {
		return nil, err
	}

	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.Mainline)
	if err := repo.Refs.ReferenceUpdate(head, nil); err != nil {
		return nil, plumbing.NewKindError(plumbing.KindIoError, "write HEAD", "", err)
	}
	return repo, nil
}

// Open loads an existing repository rooted at workTree/.mediagit.
func Open(workTree string) (*Repository, error) {
	gitDir := filepath.Join(workTree, DotDir)
	if _, err := os.Stat(gitDir); err != nil {
		return nil, plumbing.NewKindError(plumbing.KindNotFound, fmt.Sprintf("open %s", gitDir), "run init first", err)
	}
	return open(workTree, gitDir)
}

func open(workTree, gitDir string) (*Repository, error) {
	store, err := backend.NewFilesystemStorage(filepath.Join(gitDir, "objects"))
	if err != nil {
		return nil, plumbing.NewKindError(plumbing.KindIoError, "open object storage", "", err)
	}
	odb, err := backend.NewDatabase(gitDir, store)
	if err != nil {
		return nil, err
	}
	idx, err := index.Load(filepath.Join(gitDir, "index"))
	if err != nil {
		return nil, err
	}
	return &Repository{
		WorkTree: workTree,
		GitDir:   gitDir,
		Objects:  odb,
		Refs:     refs.NewBackend(gitDir),
		Reflogs:  reflog.NewDB(gitDir),
		Index:    idx,
	}, nil
}

// currentBranch resolves HEAD down to the branch reference it names,
// without following it to a commit (a fresh repository's branch has no
// commit yet, so the symbolic target itself is what callers need).
func (r *Repository) currentBranch() (plumbing.ReferenceName, error) {
	head, err := r.Refs.HEAD()
	if err != nil {
		return "", err
	}
	if head == nil {
		return plumbing.Mainline, nil
	}
	if head.Type() != plumbing.SymbolicReference {
		return head.Name(), nil
	}
	return head.Target(), nil
}

// Head returns the commit HEAD currently points at, or plumbing.ZeroHash if
// the repository has no commits yet.
func (r *Repository) Head(ctx context.Context) (plumbing.Hash, error) {
	branch, err := r.currentBranch()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	ref, err := r.Refs.Reference(branch)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// Commit implements §4.8's tree-from-index construction followed by §7's
// commit atomicity sequence:
//
//  1. build the new tree from the parent's tree, index deletions and index
//     staged entries, and write tree + commit objects;
//  2. clear the staging index;
//  3. advance the current branch ref, with the prior commit as an
//     optimistic-concurrency precondition;
//  4. on ref-update failure, restore the index snapshot taken before step 2
//     and surface the underlying error;
//  5. on success, push a reflog entry for the branch (and for HEAD).
func (r *Repository) Commit(ctx context.Context, author object.Signature, message string) (plumbing.Hash, error) {
	branch, err := r.currentBranch()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	oldRef, err := r.Refs.Reference(branch)
	if err != nil && err != plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash, err
	}
	var parents []plumbing.Hash
	var parentTree *object.Tree
	if oldRef != nil {
		parentCommit, err := r.Objects.Commit(ctx, oldRef.Hash())
		if err != nil {
			return plumbing.ZeroHash, err
		}
		parents = []plumbing.Hash{parentCommit.Hash}
		parentTree, err = r.Objects.Tree(ctx, parentCommit.Tree)
		if err != nil {
			return plumbing.ZeroHash, err
		}
	} else {
		parentTree = object.NewTree(nil)
	}

	treeOid, err := r.buildAndWriteTree(ctx, parentTree)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	commit := &object.Commit{
		Author:    author,
		Committer: author,
		Parents:   parents,
		Tree:      treeOid,
		Message:   message,
	}
	commitOid, err := writeObject(ctx, r.Objects, object.CommitObject, commit)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	snapshot := r.Index.Snapshot()
	r.Index.Clear()
	if err := r.Index.Write(); err != nil {
		r.Index.Restore(snapshot)
		return plumbing.ZeroHash, err
	}

	newRef := plumbing.NewHashReference(branch, commitOid)
	if err := r.Refs.ReferenceUpdate(newRef, oldRef); err != nil {
		r.Index.Restore(snapshot)
		_ = r.Index.Write()
		return plumbing.ZeroHash, plumbing.NewKindError(plumbing.KindConflict, fmt.Sprintf("update %s", branch), "pull and retry", err)
	}

	r.pushReflog(branch, commitOid, &author, message)
	return commitOid, nil
}

// buildAndWriteTree applies §4.8's algorithm: start from parent's tree,
// drop tombstoned paths, overlay staged entries, serialize and write.
func (r *Repository) buildAndWriteTree(ctx context.Context, parent *object.Tree) (plumbing.Hash, error) {
	tree := parent.Remove(r.Index.DeletedPaths()...)

	staged := r.Index.Entries()
	overlay := make([]*object.TreeEntry, len(staged))
	for i, e := range staged {
		overlay[i] = &object.TreeEntry{Name: e.Path, Mode: e.Mode, Hash: e.OID}
	}
	tree = tree.Merge(overlay...)

	return writeObject(ctx, r.Objects, object.TreeObject, tree)
}

// canonicalEncoder is satisfied by object.Tree and object.Commit, the two
// object kinds this package constructs and serializes before writing to the
// ODB.
type canonicalEncoder interface {
	Encode(w io.Writer) error
}

// writeObject serializes e's canonical bytes and writes them to the object
// database, returning the resulting oid.
func writeObject(ctx context.Context, odb *backend.Database, typ object.ObjectType, e canonicalEncoder) (plumbing.Hash, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return plumbing.ZeroHash, plumbing.NewKindError(plumbing.KindStateError, fmt.Sprintf("encode %s", typ), "", err)
	}
	return odb.Write(ctx, typ, buf.Bytes())
}

func (r *Repository) pushReflog(branch plumbing.ReferenceName, oid plumbing.Hash, committer *object.Signature, message string) {
	for _, name := range []plumbing.ReferenceName{plumbing.HEAD, branch} {
		log, err := r.Reflogs.Read(name)
		if err != nil {
			continue
		}
		log.Push(oid, committer, message)
		_ = r.Reflogs.Write(log)
	}
}

// Close releases the object database's resources.
func (r *Repository) Close() error {
	return r.Objects.Close()
}
