// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package index implements the staging area (§4.11): an in-memory
// path→entry map plus a tombstone set, persisted as a single JSON file by
// Index.Write. AddEntry, RemoveEntry, MarkDeleted and Clear change only the
// in-memory state; nothing reaches disk until Write is called.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mediagit/mediagit/modules/mediagit"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
)

// Version is the on-disk schema version (§6: "JSON object with version: 1").
const Version = 1

// Entry is (path, oid, mode, size) as named in §3.
type Entry struct {
	Path string            `json:"path"`
	OID  plumbing.Hash     `json:"oid_hex"`
	Mode filemode.FileMode `json:"mode"`
	Size int64             `json:"size"`
}

// document is the exact JSON shape §6 specifies for the staging file.
type document struct {
	Version        int              `json:"version"`
	Entries        map[string]Entry `json:"entries"`
	DeletedEntries []string         `json:"deleted_entries"`
}

// Index is the mutable staging area. Not safe for concurrent use across
// processes (§5: "Index and rebase state: single-writer per process is
// assumed"); in-process access is guarded by mu so a single process may
// still serialize callers safely.
type Index struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	deleted map[string]struct{}
}

// normalize turns any path separator into '/' for cross-platform
// comparability, as every operation in §4.11/§6 requires.
func normalize(path string) string {
	return filepath.ToSlash(path)
}

// New returns an empty index backed by the given on-disk path. Call Load to
// populate it from an existing file, or Write to create one.
func New(path string) *Index {
	return &Index{
		path:    path,
		entries: make(map[string]Entry),
		deleted: make(map[string]struct{}),
	}
}

// Load reads the staging file at path, or returns an empty Index if the file
// does not yet exist (a fresh repository has no staging file).
func Load(path string) (*Index, error) {
	idx := New(path)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("read index %s", path), "", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, fmt.Sprintf("parse index %s", path), "", err)
	}
	if doc.Version != Version {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, fmt.Sprintf("parse index %s", path), "",
			fmt.Errorf("index version %d: %w", doc.Version, mediagit.ErrMismatchedVersion))
	}
	for p, e := range doc.Entries {
		e.Path = normalize(p)
		idx.entries[e.Path] = e
	}
	for _, p := range doc.DeletedEntries {
		idx.deleted[normalize(p)] = struct{}{}
	}
	return idx, nil
}

// AddEntry stages a path, clearing any pending tombstone for it.
func (idx *Index) AddEntry(e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e.Path = normalize(e.Path)
	delete(idx.deleted, e.Path)
	idx.entries[e.Path] = e
}

// RemoveEntry drops a path from the staged set without tombstoning it (used
// when unstaging, as opposed to staging a deletion).
func (idx *Index) RemoveEntry(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, normalize(path))
}

// MarkDeleted tombstones a path for the next commit (`mediagit rm`):
// it is removed from the staged set and recorded as deleted.
func (idx *Index) MarkDeleted(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	path = normalize(path)
	delete(idx.entries, path)
	idx.deleted[path] = struct{}{}
}

// Contains reports whether path is currently staged (not whether it was ever
// staged in repository history).
func (idx *Index) Contains(path string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.entries[normalize(path)]
	return ok
}

// IsDeleted reports whether path is tombstoned for the next commit.
func (idx *Index) IsDeleted(path string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.deleted[normalize(path)]
	return ok
}

// Entries returns the staged entries, sorted by path for determinism.
func (idx *Index) Entries() []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// DeletedPaths returns the tombstoned paths, sorted.
func (idx *Index) DeletedPaths() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]string, 0, len(idx.deleted))
	for p := range idx.deleted {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// StagedFiles returns (path, oid) pairs for every staged entry, the shape
// §4.11 names directly (`staged_files() -> [(path, oid)]`).
func (idx *Index) StagedFiles() []struct {
	Path string
	OID  plumbing.Hash
} {
	entries := idx.Entries()
	out := make([]struct {
		Path string
		OID  plumbing.Hash
	}, len(entries))
	for i, e := range entries {
		out[i] = struct {
			Path string
			OID  plumbing.Hash
		}{Path: e.Path, OID: e.OID}
	}
	return out
}

// Clear empties the staging area entirely (both staged entries and
// tombstones) — used after a successful commit.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]Entry)
	idx.deleted = make(map[string]struct{})
}

// snapshot copies the current state for restoring after a failed commit
// (§7: "restore the prior index from an in-memory snapshot taken before
// step 2").
type snapshot struct {
	entries map[string]Entry
	deleted map[string]struct{}
}

// Snapshot captures the current staged/deleted state.
func (idx *Index) Snapshot() any {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	s := &snapshot{
		entries: make(map[string]Entry, len(idx.entries)),
		deleted: make(map[string]struct{}, len(idx.deleted)),
	}
	for k, v := range idx.entries {
		s.entries[k] = v
	}
	for k := range idx.deleted {
		s.deleted[k] = struct{}{}
	}
	return s
}

// Restore reverts the index to a previously captured Snapshot.
func (idx *Index) Restore(snap any) {
	s, ok := snap.(*snapshot)
	if !ok {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = s.entries
	idx.deleted = s.deleted
}

// Write persists the index to its on-disk path via temp-file-then-rename,
// matching the RefDB's atomic-write idiom.
func (idx *Index) Write() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.writeLocked()
}

func (idx *Index) writeLocked() error {
	doc := document{
		Version:        Version,
		Entries:        idx.entries,
		DeletedEntries: make([]string, 0, len(idx.deleted)),
	}
	for p := range idx.deleted {
		doc.DeletedEntries = append(doc.DeletedEntries, p)
	}
	sort.Strings(doc.DeletedEntries)

	b, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return plumbing.NewKindError(plumbing.KindStateError, fmt.Sprintf("encode index %s", idx.path), "", err)
	}

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("create index directory %s", dir), "", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("stage index write in %s", dir), "", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("write index %s", idx.path), "", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("write index %s", idx.path), "", err)
	}
	if err := os.Rename(tmpName, idx.path); err != nil {
		_ = os.Remove(tmpName)
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("commit index %s", idx.path), "", err)
	}
	return nil
}
