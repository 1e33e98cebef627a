// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pack

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/mediagit/mediagit/modules/mediagit/backend"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// indexFlushThreshold bounds the in-memory index buffer so writing a pack
// of 10^7 objects stays O(1) heap for the index (§4.7 "Streaming Index").
const indexFlushThreshold = 10_000

// Writer builds a pack incrementally: add_object/add_delta_object append
// object records to an in-memory body buffer while accumulating 44-byte
// index entries, periodically flushed to a temp file so the resident index
// buffer never grows past indexFlushThreshold entries.
type Writer struct {
	tier backend.Tier

	body        bytes.Buffer
	objectCount uint32

	indexFile    *os.File
	indexBuf     []byte
	bufferedRows int

	finalized bool
}

// NewWriter opens a Writer whose streaming index spills to a temp file
// created via os.CreateTemp under dir (empty dir uses the OS default).
func NewWriter(tier backend.Tier, dir string) (*Writer, error) {
	f, err := os.CreateTemp(dir, "pack-index-")
	if err != nil {
		return nil, fmt.Errorf("mediagit: create pack index temp file: %w", err)
	}
	return &Writer{tier: tier, indexFile: f}, nil
}

// bodyOffset returns the absolute offset (counting the fixed-size header)
// the next record would land at.
func (w *Writer) bodyOffset() uint64 { return headerSize + uint64(w.body.Len()) }

func (w *Writer) appendIndexEntry(oid plumbing.Hash, offset uint64, size uint32) error {
	entry := make([]byte, 0, indexEntrySize)
	entry = append(entry, oid[:]...)
	off := make([]byte, 8)
	putUint64(off, offset)
	entry = append(entry, off...)
	sz := make([]byte, 4)
	putUint32(sz, size)
	entry = append(entry, sz...)

	w.indexBuf = append(w.indexBuf, entry...)
	w.bufferedRows++
	if w.bufferedRows >= indexFlushThreshold {
		if _, err := w.indexFile.Write(w.indexBuf); err != nil {
			return fmt.Errorf("mediagit: flush pack index: %w", err)
		}
		w.indexBuf = w.indexBuf[:0]
		w.bufferedRows = 0
	}
	return nil
}

func (w *Writer) writeRecord(kind uint8, payload []byte) (offset uint64, err error) {
	offset = w.bodyOffset()
	if err := w.body.WriteByte(kind); err != nil {
		return 0, err
	}
	lenBuf := make([]byte, 4)
	putUint32(lenBuf, uint32(len(payload)))
	if _, err := w.body.Write(lenBuf); err != nil {
		return 0, err
	}
	if _, err := w.body.Write(payload); err != nil {
		return 0, err
	}
	return offset, nil
}

// AddObject appends a full object record: the payload is `type byte` +
// compressed(bytes), per §6's "first byte of payload re-encodes type".
func (w *Writer) AddObject(oid plumbing.Hash, typ object.ObjectType, data []byte) (uint64, error) {
	if w.finalized {
		return 0, fmt.Errorf("mediagit: pack writer already finalized")
	}
	ciphertext, err := backend.Compress(w.tier, data)
	if err != nil {
		return 0, fmt.Errorf("mediagit: compress object %s: %w", oid, err)
	}
	payload := make([]byte, 0, 1+len(ciphertext))
	payload = append(payload, byte(typ))
	payload = append(payload, ciphertext...)

	offset, err := w.writeRecord(recordFull, payload)
	if err != nil {
		return 0, err
	}
	if err := w.appendIndexEntry(oid, offset, uint32(len(payload))); err != nil {
		return 0, err
	}
	w.objectCount++
	return offset, nil
}

// AddDeltaObject appends a delta record: payload is the 32-byte base OID
// followed by compressed(delta_bytes). baseOid MUST already be earlier in
// the pack (§4.7).
func (w *Writer) AddDeltaObject(oid, baseOid plumbing.Hash, deltaBytes []byte) (uint64, error) {
	if w.finalized {
		return 0, fmt.Errorf("mediagit: pack writer already finalized")
	}
	ciphertext, err := backend.Compress(w.tier, deltaBytes)
	if err != nil {
		return 0, fmt.Errorf("mediagit: compress delta for %s: %w", oid, err)
	}
	payload := make([]byte, 0, 32+len(ciphertext))
	payload = append(payload, baseOid[:]...)
	payload = append(payload, ciphertext...)

	offset, err := w.writeRecord(recordDelta, payload)
	if err != nil {
		return 0, err
	}
	if err := w.appendIndexEntry(oid, offset, uint32(len(payload))); err != nil {
		return 0, err
	}
	w.objectCount++
	return offset, nil
}

// Finalize emits header + body + index + trailer and releases the index
// temp file. The Writer must not be used afterward.
func (w *Writer) Finalize() ([]byte, error) {
	if w.finalized {
		return nil, fmt.Errorf("mediagit: pack writer already finalized")
	}
	w.finalized = true
	defer func() {
		_ = w.indexFile.Close()
		_ = os.Remove(w.indexFile.Name())
	}()

	if len(w.indexBuf) > 0 {
		if _, err := w.indexFile.Write(w.indexBuf); err != nil {
			return nil, fmt.Errorf("mediagit: flush pack index: %w", err)
		}
		w.indexBuf = nil
	}

	var out bytes.Buffer
	out.Write(Magic[:])
	versionBuf := make([]byte, 4)
	putUint32(versionBuf, Version)
	out.Write(versionBuf)
	countBuf := make([]byte, 4)
	putUint32(countBuf, w.objectCount)
	out.Write(countBuf)

	out.Write(w.body.Bytes())

	entryCountBuf := make([]byte, 4)
	putUint32(entryCountBuf, w.objectCount)
	out.Write(entryCountBuf)

	if _, err := w.indexFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("mediagit: rewind pack index: %w", err)
	}
	if _, err := io.Copy(&out, w.indexFile); err != nil {
		return nil, fmt.Errorf("mediagit: read back pack index: %w", err)
	}

	sum := sha256.Sum256(out.Bytes())
	out.Write(sum[:])

	return out.Bytes(), nil
}

// Drop discards the writer without finalizing, best-effort removing the
// index temp file (§4.7 "Drop of an unfinalized index removes the temp
// file best-effort").
func (w *Writer) Drop() {
	if w.finalized {
		return
	}
	w.finalized = true
	_ = w.indexFile.Close()
	_ = os.Remove(w.indexFile.Name())
}
