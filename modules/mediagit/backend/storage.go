// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package backend implements the Storage Backend, LRU Cache, Compression,
// Object Database and Packfile components (§4.2-§4.7).
package backend

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mediagit/mediagit/modules/strengthen"
)

// Storage is the async key-value contract consumed by the ODB and RefDB
// (§4.2). Keys are always non-empty; an empty key is invalid input.
// Implementations MUST be thread-safe. Consistency: read-after-write holds
// for single-key operations; List is a hint, never authoritative membership.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// List returns the sorted set of keys beginning with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

var ErrEmptyKey = errors.New("mediagit: storage key must not be empty")

// NotFoundError reports a missing key; backends return it from Get (Delete of
// a missing key succeeds) so callers can match it with IsNotFound without
// depending on the backend.
type NotFoundError struct{ Key string }

func (e *NotFoundError) Error() string { return "mediagit: key not found: " + e.Key }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// fsStorage implements Storage over a flat directory: one file per key,
// named after the key itself (§6 On-disk layout: objects/<oid_hex>). Writes
// land in an `incoming` scratch directory first and are only linked into
// place once complete, so a crash mid-write never leaves a partial object
// visible under its final key.
type fsStorage struct {
	root     string
	incoming string
	mu       sync.Mutex
}

var _ Storage = (*fsStorage)(nil)

func NewFilesystemStorage(root string) (Storage, error) {
	incoming := filepath.Join(root, ".incoming")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return nil, err
	}
	return &fsStorage{root: root, incoming: incoming}, nil
}

func (s *fsStorage) path(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	return filepath.Join(s.root, key), nil
}

func (s *fsStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, err
	}
	return b, nil
}

func (s *fsStorage) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.incoming, "obj-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := strengthen.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *fsStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *fsStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *fsStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if len(rel) >= 1 && rel[0] == '.' {
			return nil // skip .incoming and other dotfiles
		}
		if prefix == "" || len(rel) >= len(prefix) && rel[:len(prefix)] == prefix {
			keys = append(keys, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fsStorage) Close() error { return nil }

// memStorage is an in-memory Storage used by tests and as the in-process
// backend option (§4.2: "in-memory (test) backends").
type memStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Storage = (*memStorage)(nil)

func NewMemoryStorage() Storage {
	return &memStorage{data: make(map[string][]byte)}
}

func (s *memStorage) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (s *memStorage) Put(_ context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cp
	return nil
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStorage) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStorage) Close() error { return nil }

// ReadAll is a convenience used by callers that already hold an io.Reader
// and want to Put it directly.
func ReadAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
