// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
	"golang.org/x/sync/singleflight"
)

// OdbMetrics is the snapshot returned by Database.Metrics (§4.6).
type OdbMetrics struct {
	CacheHits     uint64
	CacheMisses   uint64
	UniqueObjects uint64
	TotalWrites   uint64
	BytesStored   uint64
	BytesWritten  uint64
}

// Option configures a Database. Grounded on the teacher's prior
// functional-option constructor pattern for this type (WithSharingRoot,
// WithEnableLRU, WithAbstractBackend, WithCompressionALGO), generalized to
// the new Storage/Cache/Compression layering.
type Option func(*Database)

// WithCompressionTier sets the tier new objects are compressed under.
func WithCompressionTier(tier Tier) Option {
	return func(d *Database) { d.tier = tier }
}

// WithCacheBytes bounds the Database's object cache by total payload bytes.
func WithCacheBytes(maxBytes int64) Option {
	return func(d *Database) { d.cacheBytes = maxBytes }
}

const defaultCacheBytes = 256 << 20 // 256 MiB

// Database is the Object Database (§4.6): the central component layered
// over Storage (§4.2), Cache (§4.3) and Compression (§4.4).
type Database struct {
	root string

	backend Storage
	cache   *Cache
	tier    Tier

	cacheBytes int64

	sf singleflight.Group

	mu            sync.Mutex
	uniqueObjects uint64
	bytesStored   uint64

	totalWrites  uint64
	bytesWritten uint64
	cacheHits    uint64
	cacheMisses  uint64

	closed uint32
}

// NewDatabase opens the object database rooted at root, using backend for
// durable storage. root also hosts the transaction staging area
// (<root>/temp), independent of whichever Storage implementation backend
// happens to be (filesystem, S3, in-memory).
func NewDatabase(root string, backend Storage, opts ...Option) (*Database, error) {
	d := &Database{root: root, backend: backend, tier: Balanced, cacheBytes: defaultCacheBytes}
	for _, o := range opts {
		o(d)
	}
	cache, err := NewCache(d.cacheBytes)
	if err != nil {
		return nil, fmt.Errorf("mediagit: initialize object cache: %w", err)
	}
	d.cache = cache
	if err := os.MkdirAll(d.tempRoot(), 0o755); err != nil {
		return nil, fmt.Errorf("mediagit: initialize transaction staging area: %w", err)
	}
	if _, err := d.RecoverTransactions(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) tempRoot() string { return filepath.Join(d.root, "temp") }

func (d *Database) Root() string { return d.root }

// Write implements §4.6's write(type, payload) -> oid.
//
//  1. Compute oid = hash(payload).
//  2. If exists(oid) (cache then backend), record the write as a
//     deduplication hit and return oid without re-storing anything.
//  3. Else compress payload, write the ciphertext under oid.to_hex(),
//     cache the uncompressed bytes, and update metrics.
func (d *Database) Write(ctx context.Context, typ object.ObjectType, payload []byte) (plumbing.Hash, error) {
	oid := plumbing.HashBytes(payload)

	if ok, err := d.Exists(ctx, oid); err != nil {
		return plumbing.ZeroHash, err
	} else if ok {
		atomic.AddUint64(&d.totalWrites, 1)
		atomic.AddUint64(&d.bytesWritten, uint64(len(payload)))
		return oid, nil
	}

	ciphertext, err := Compress(d.tier, payload)
	if err != nil {
		return plumbing.ZeroHash, plumbing.NewKindError(plumbing.KindIoError, "compress object", "", err)
	}
	if err := d.backend.Put(ctx, oid.String(), ciphertext); err != nil {
		return plumbing.ZeroHash, plumbing.NewKindError(plumbing.KindIoError, "write object", "", err)
	}
	d.cache.Put(oid, payload)

	d.mu.Lock()
	d.uniqueObjects++
	d.bytesStored += uint64(len(ciphertext))
	d.mu.Unlock()
	atomic.AddUint64(&d.totalWrites, 1)
	atomic.AddUint64(&d.bytesWritten, uint64(len(payload)))

	return oid, nil
}

// Read implements §4.6's read(oid) -> (type, payload) | not_found:
// cache lookup, backend get, decompress, hash-verify, cache-admit. The
// caller supplies the expected type; this layer stores raw, already
// length-delimited payload bytes rather than type-tagged envelopes — type
// framing is the object package's concern (§4.8's canonical encodings).
func (d *Database) Read(ctx context.Context, oid plumbing.Hash) ([]byte, error) {
	if b, ok := d.cache.Get(oid); ok {
		atomic.AddUint64(&d.cacheHits, 1)
		return b, nil
	}
	atomic.AddUint64(&d.cacheMisses, 1)

	// Concurrent reads of the same cold oid are coalesced into a single
	// backend fetch (§5: single-flight coalesced reads).
	v, err, _ := d.sf.Do(oid.String(), func() (any, error) {
		framed, err := d.backend.Get(ctx, oid.String())
		if err != nil {
			if IsNotFound(err) {
				return nil, plumbing.NoSuchObject(oid)
			}
			return nil, plumbing.NewKindError(plumbing.KindIoError, "read object", "", err)
		}
		payload, err := Decompress(framed)
		if err != nil {
			return nil, plumbing.NewKindError(plumbing.KindCorruption, "decompress object", "", err)
		}
		if plumbing.HashBytes(payload) != oid {
			return nil, plumbing.NewKindError(plumbing.KindCorruption,
				fmt.Sprintf("verify object %s", oid), "object failed to re-hash; storage corruption", nil)
		}
		d.cache.Put(oid, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Exists implements §4.6's exists(oid): cache first, backend second.
func (d *Database) Exists(ctx context.Context, oid plumbing.Hash) (bool, error) {
	if _, ok := d.cache.Get(oid); ok {
		return true, nil
	}
	ok, err := d.backend.Exists(ctx, oid.String())
	if err != nil {
		return false, plumbing.NewKindError(plumbing.KindIoError, "probe object", "", err)
	}
	return ok, nil
}

// List enumerates the oids currently present in storage, hex-prefix
// filtered. Per §4.2, this is a hint for GC/FSCK candidate discovery, never
// an authoritative membership check.
func (d *Database) List(ctx context.Context, prefix string) ([]plumbing.Hash, error) {
	keys, err := d.backend.List(ctx, prefix)
	if err != nil {
		return nil, plumbing.NewKindError(plumbing.KindIoError, "list objects", "", err)
	}
	out := make([]plumbing.Hash, 0, len(keys))
	for _, k := range keys {
		out = append(out, plumbing.NewHash(k))
	}
	return out, nil
}

// Delete implements §4.6's delete(oid): remove from cache and backend,
// decrementing unique_objects/bytes_stored if the object was previously
// present.
func (d *Database) Delete(ctx context.Context, oid plumbing.Hash) error {
	framed, err := d.backend.Get(ctx, oid.String())
	existed := err == nil
	d.cache.Delete(oid)
	if err := d.backend.Delete(ctx, oid.String()); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, "delete object", "", err)
	}
	if existed {
		d.mu.Lock()
		if d.uniqueObjects > 0 {
			d.uniqueObjects--
		}
		if n := uint64(len(framed)); n <= d.bytesStored {
			d.bytesStored -= n
		}
		d.mu.Unlock()
	}
	return nil
}

// Metrics returns a point-in-time OdbMetrics snapshot.
func (d *Database) Metrics() OdbMetrics {
	d.mu.Lock()
	unique, stored := d.uniqueObjects, d.bytesStored
	d.mu.Unlock()
	return OdbMetrics{
		CacheHits:     atomic.LoadUint64(&d.cacheHits),
		CacheMisses:   atomic.LoadUint64(&d.cacheMisses),
		UniqueObjects: unique,
		TotalWrites:   atomic.LoadUint64(&d.totalWrites),
		BytesStored:   stored,
		BytesWritten:  atomic.LoadUint64(&d.bytesWritten),
	}
}

// Close closes the *Database. Calling Close more than once is a no-op.
func (d *Database) Close() error {
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return nil
	}
	d.cache.Close()
	return d.backend.Close()
}

// transactionMarker names the file that flags a tx_<uuid> directory as a
// live, uncommitted transaction (§4.6 Transactions).
const transactionMarker = ".transaction_marker"

// PackTransaction stages objects in a temp directory before they become
// visible to readers, so ingesting a received pack is all-or-nothing
// (§4.6 Transactions).
type PackTransaction struct {
	db  *Database
	dir string

	mu     sync.Mutex
	staged map[plumbing.Hash]string // oid -> staged file path
	done   bool
}

// Begin creates a unique tx_<uuid>/ staging directory under <root>/temp,
// marked with a .transaction_marker file.
func (d *Database) Begin() (*PackTransaction, error) {
	dir := filepath.Join(d.tempRoot(), "tx_"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, plumbing.NewKindError(plumbing.KindIoError, "begin transaction", "", err)
	}
	if err := os.WriteFile(filepath.Join(dir, transactionMarker), nil, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, plumbing.NewKindError(plumbing.KindIoError, "begin transaction", "", err)
	}
	return &PackTransaction{db: d, dir: dir, staged: make(map[plumbing.Hash]string)}, nil
}

// AddObject writes bytes to tx_<uuid>/<oid_hex> and verifies the readback
// equals the source, defending against storage truncation.
func (tx *PackTransaction) AddObject(oid plumbing.Hash, _ object.ObjectType, data []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return plumbing.NewKindError(plumbing.KindStateError, "add object to transaction", "", fmt.Errorf("transaction already finished"))
	}
	p := filepath.Join(tx.dir, oid.String())
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, "stage object", "", err)
	}
	readback, err := os.ReadFile(p)
	if err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, "verify staged object", "", err)
	}
	if len(readback) != len(data) || plumbing.HashBytes(readback) != plumbing.HashBytes(data) {
		return plumbing.NewKindError(plumbing.KindCorruption, "verify staged object", "storage truncated the staged write", nil)
	}
	tx.staged[oid] = p
	return nil
}

// Commit puts every staged object into the backend under its final key via
// Database.Write, then removes the staging directory.
func (tx *PackTransaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil
	}
	for oid, p := range tx.staged {
		data, err := os.ReadFile(p)
		if err != nil {
			return plumbing.NewKindError(plumbing.KindIoError, "commit transaction", "", err)
		}
		if _, err := tx.db.Write(ctx, object.InvalidObject, data); err != nil {
			return fmt.Errorf("commit transaction: stage %s: %w", oid, err)
		}
	}
	tx.done = true
	return os.RemoveAll(tx.dir)
}

// Rollback discards the transaction without committing any staged object.
func (tx *PackTransaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil
	}
	tx.done = true
	return os.RemoveAll(tx.dir)
}

// RecoveryReport summarizes a crash-recovery scan (§4.6 "Crash recovery").
type RecoveryReport struct {
	RolledBack int
	Errors     map[string]error
}

// RecoverTransactions scans <root>/temp for subdirectories carrying a
// .transaction_marker and removes each one, rolling back any transaction
// left incomplete by a prior crash. Called once at Database startup.
func (d *Database) RecoverTransactions() (RecoveryReport, error) {
	report := RecoveryReport{Errors: make(map[string]error)}
	entries, err := os.ReadDir(d.tempRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, plumbing.NewKindError(plumbing.KindIoError, "scan transaction staging area", "", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(d.tempRoot(), e.Name())
		marker := filepath.Join(dir, transactionMarker)
		if _, err := os.Stat(marker); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			report.Errors[dir] = err
			continue
		}
		report.RolledBack++
	}
	return report, nil
}
