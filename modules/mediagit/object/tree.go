// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
	"github.com/mediagit/mediagit/modules/streamio"
)

// TREE_MAGIC distinguishes a tree's canonical bytes from a commit's or tag's
// when an object is read back without its type already known (see object.go).
var TREE_MAGIC = [4]byte{'Z', 'T', 0x00, 0x01}

type ErrDirectoryNotFound struct{ dir string }

func (e *ErrDirectoryNotFound) Error() string { return fmt.Sprintf("dir '%s' not found", e.dir) }

func IsErrDirectoryNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrDirectoryNotFound)
	return ok
}

type ErrEntryNotFound struct{ entry string }

func (e *ErrEntryNotFound) Error() string { return fmt.Sprintf("entry '%s' not found", e.entry) }

func IsErrEntryNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrEntryNotFound)
	return ok
}

// TreeEntry is (name, mode, target_oid) as described in §3 of the specification.
type TreeEntry struct {
	Name string            `json:"name"`
	Mode filemode.FileMode `json:"mode"`
	Hash plumbing.Hash     `json:"hash"`
}

func (e *TreeEntry) Clone() *TreeEntry {
	return &TreeEntry{Name: e.Name, Mode: e.Mode, Hash: e.Hash}
}

func (e *TreeEntry) Equal(other *TreeEntry) bool {
	if (e == nil) != (other == nil) {
		return false
	}
	if e != nil {
		return e.Name == other.Name && e.Hash == other.Hash && e.Mode == other.Mode
	}
	return true
}

func (e *TreeEntry) Type() ObjectType {
	if e.Mode.IsDir() {
		return TreeObject
	}
	return BlobObject
}

func (e *TreeEntry) IsDir() bool { return e.Mode.IsDir() }

// ByName sorts tree entries bytewise by name, per §6: "Order: entries sorted
// by name bytewise."
type ByName []*TreeEntry

func (s ByName) Len() int           { return len(s) }
func (s ByName) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s ByName) Less(i, j int) bool { return s[i].Name < s[j].Name }

// Tree is a directory-like object mapping names to (mode, OID).
type Tree struct {
	Hash    plumbing.Hash `json:"hash"`
	Entries []*TreeEntry  `json:"entries"`

	m map[string]*TreeEntry
	b Backend
}

// NewTree constructs a tree from entries, sorting them into canonical order.
func NewTree(entries []*TreeEntry) *Tree {
	sort.Sort(ByName(entries))
	return &Tree{Entries: entries}
}

// Merge replaces entries sharing a name with `others` and appends the rest,
// returning a new tree in canonical order. Used to overlay staged index
// entries onto a parent commit's tree (§4.8).
func (t *Tree) Merge(others ...*TreeEntry) *Tree {
	unseen := make(map[string]*TreeEntry, len(others))
	for _, other := range others {
		unseen[other.Name] = other
	}

	entries := make([]*TreeEntry, 0, len(t.Entries))
	for _, entry := range t.Entries {
		if other, ok := unseen[entry.Name]; ok {
			entries = append(entries, other)
			delete(unseen, entry.Name)
		} else {
			entries = append(entries, entry.Clone())
		}
	}
	for _, remaining := range unseen {
		entries = append(entries, remaining)
	}
	sort.Sort(ByName(entries))
	return &Tree{Entries: entries}
}

// Remove returns a copy of the tree with the named entries removed.
func (t *Tree) Remove(names ...string) *Tree {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	entries := make([]*TreeEntry, 0, len(t.Entries))
	for _, entry := range t.Entries {
		if !drop[entry.Name] {
			entries = append(entries, entry.Clone())
		}
	}
	return &Tree{Entries: entries}
}

func (t *Tree) Equal(other *Tree) bool {
	if (t == nil) != (other == nil) {
		return false
	}
	if t != nil {
		if len(t.Entries) != len(other.Entries) {
			return false
		}
		for i := range t.Entries {
			if !t.Entries[i].Equal(other.Entries[i]) {
				return false
			}
		}
	}
	return true
}

func (t *Tree) entry(baseName string) (*TreeEntry, error) {
	if t.m == nil {
		t.buildMap()
	}
	entry, ok := t.m[baseName]
	if !ok {
		return nil, &ErrEntryNotFound{entry: baseName}
	}
	return entry, nil
}

func (t *Tree) Entry(name string) (*TreeEntry, error) {
	return t.entry(name)
}

func (t *Tree) buildMap() {
	t.m = make(map[string]*TreeEntry, len(t.Entries))
	for i := range t.Entries {
		t.m[t.Entries[i].Name] = t.Entries[i]
	}
}

// Tree returns the subtree identified by path, relative to the receiver.
func (t *Tree) Tree(ctx context.Context, p string) (*Tree, error) {
	if len(p) == 0 {
		return t, nil
	}
	e, err := t.FindEntry(ctx, p)
	if err != nil {
		return nil, &ErrDirectoryNotFound{dir: p}
	}
	return resolveTree(ctx, t.b, e.Hash)
}

// FindEntry searches a TreeEntry in this tree or any subtree, by slash-joined path.
func (t *Tree) FindEntry(ctx context.Context, relativePath string) (*TreeEntry, error) {
	relativePath = filepath.ToSlash(relativePath)
	parts := strings.Split(relativePath, "/")

	tree := t
	for ; len(parts) > 1; parts = parts[1:] {
		entry, err := tree.entry(parts[0])
		if err != nil {
			return nil, &ErrDirectoryNotFound{dir: parts[0]}
		}
		if tree.b == nil {
			return nil, &ErrDirectoryNotFound{dir: parts[0]}
		}
		next, err := tree.b.Tree(ctx, entry.Hash)
		if err != nil {
			return nil, err
		}
		next.b = tree.b
		tree = next
	}
	return tree.entry(parts[0])
}

// Encode writes the tree's canonical bytes: magic then, per entry,
// "<mode_octal_ascii> SP <name_utf8> NUL <oid>", entries pre-sorted by name.
func (t *Tree) Encode(w io.Writer) error {
	if _, err := w.Write(TREE_MAGIC[:]); err != nil {
		return err
	}
	for _, entry := range t.Entries {
		if _, err := fmt.Fprintf(w, "%o %s", entry.Mode, entry.Name); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0x00}); err != nil {
			return err
		}
		if _, err := w.Write(entry.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) Decode(reader Reader) error {
	if reader.Type() != TreeObject {
		return ErrUnsupportedObject
	}
	t.Hash = reader.Hash()
	r := streamio.GetBufioReader(reader)
	defer streamio.PutBufioReader(r)

	t.Entries = nil
	for {
		str, err := r.ReadString(' ')
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		str = str[:len(str)-1]

		mode, err := filemode.New(str)
		if err != nil {
			return err
		}

		name, err := r.ReadString(0)
		if err != nil {
			return err
		}
		baseName := name[:len(name)-1]

		var hash plumbing.Hash
		if _, err = io.ReadFull(r, hash[:]); err != nil {
			return err
		}

		t.Entries = append(t.Entries, &TreeEntry{Name: baseName, Mode: mode, Hash: hash})
	}
	return nil
}

// resolveTree gets a tree from an object storer and decodes it.
func resolveTree(ctx context.Context, b Backend, h plumbing.Hash) (*Tree, error) {
	if b == nil {
		return nil, plumbing.NoSuchObject(h)
	}
	return b.Tree(ctx, h)
}
