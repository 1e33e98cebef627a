// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pack

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/mediagit/mediagit/modules/mediagit/backend"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
)

type indexEntry struct {
	offset uint64
	size   uint32
}

// Reader parses a finalized pack's header, trailer and trailing index,
// then resolves individual objects on demand (§4.7 Reader).
type Reader struct {
	data        []byte
	objectCount uint32
	bodyEnd     uint64
	index       map[plumbing.Hash]indexEntry
	order       []plumbing.Hash // insertion order, for List
}

// NewReader verifies magic, version and trailer checksum, then parses the
// trailing index into memory. Returns an error rather than a partially
// usable Reader on any mismatch (§4.7 step 1: "Verify magic and version;
// fail otherwise").
func NewReader(data []byte) (*Reader, error) {
	if len(data) < headerSize+4+trailerSize {
		return nil, fmt.Errorf("mediagit: pack too small to contain a header, index and trailer")
	}
	if !bytes.Equal(data[:4], Magic[:]) {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, "parse pack", "not a mediagit pack (bad magic)", nil)
	}
	version := getUint32(data[4:8])
	if version != Version {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, "parse pack",
			fmt.Sprintf("unsupported pack version %d", version), nil)
	}
	objectCount := getUint32(data[8:12])

	trailerStart := len(data) - trailerSize
	want := data[trailerStart:]
	got := sha256.Sum256(data[:trailerStart])
	if !bytes.Equal(want, got[:]) {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, "parse pack", "trailer checksum mismatch", nil)
	}

	indexLen := 4 + uint64(objectCount)*indexEntrySize
	if uint64(trailerStart) < headerSize+indexLen {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, "parse pack", "truncated index region", nil)
	}
	indexStart := uint64(trailerStart) - indexLen
	bodyEnd := indexStart

	entryCount := getUint32(data[indexStart : indexStart+4])
	if entryCount != objectCount {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, "parse pack",
			"index entry count does not match header object count", nil)
	}

	r := &Reader{data: data, objectCount: objectCount, bodyEnd: bodyEnd, index: make(map[plumbing.Hash]indexEntry, objectCount)}
	cursor := indexStart + 4
	for i := uint32(0); i < objectCount; i++ {
		var oid plumbing.Hash
		copy(oid[:], data[cursor:cursor+32])
		offset := getUint64(data[cursor+32 : cursor+40])
		size := getUint32(data[cursor+40 : cursor+44])
		r.index[oid] = indexEntry{offset: offset, size: size}
		r.order = append(r.order, oid)
		cursor += indexEntrySize
	}
	return r, nil
}

// ObjectCount is the number of objects the header declares.
func (r *Reader) ObjectCount() uint32 { return r.objectCount }

// ListObjects returns every OID present in the pack, in the order they
// were written (§4.7 step 4: "list_objects() -> iterator<oid>").
func (r *Reader) ListObjects() []plumbing.Hash {
	out := make([]plumbing.Hash, len(r.order))
	copy(out, r.order)
	return out
}

// GetObject resolves oid to its (type, payload), walking the delta chain
// if necessary (§4.7 step 3).
func (r *Reader) GetObject(oid plumbing.Hash) (object.ObjectType, []byte, error) {
	return r.resolve(oid, 0)
}

func (r *Reader) resolve(oid plumbing.Hash, depth int) (object.ObjectType, []byte, error) {
	if depth > maxDeltaDepth {
		return object.InvalidObject, nil, plumbing.NewKindError(plumbing.KindCorruption,
			fmt.Sprintf("resolve object %s", oid), "delta chain exceeds maximum depth", nil)
	}
	entry, ok := r.index[oid]
	if !ok {
		return object.InvalidObject, nil, plumbing.NoSuchObject(oid)
	}
	kind, payload, err := r.readRecord(entry)
	if err != nil {
		return object.InvalidObject, nil, err
	}
	switch kind {
	case recordFull:
		if len(payload) < 1 {
			return object.InvalidObject, nil, plumbing.NewKindError(plumbing.KindCorruption,
				fmt.Sprintf("parse object %s", oid), "empty full-object payload", nil)
		}
		typ := object.ObjectType(payload[0])
		raw, err := backend.Decompress(payload[1:])
		if err != nil {
			return object.InvalidObject, nil, plumbing.NewKindError(plumbing.KindCorruption,
				fmt.Sprintf("decompress object %s", oid), "", err)
		}
		return typ, raw, nil
	case recordDelta:
		if len(payload) < 32 {
			return object.InvalidObject, nil, plumbing.NewKindError(plumbing.KindCorruption,
				fmt.Sprintf("parse delta %s", oid), "truncated delta record", nil)
		}
		var baseOid plumbing.Hash
		copy(baseOid[:], payload[:32])
		deltaCiphertext := payload[32:]
		deltaBytes, err := backend.Decompress(deltaCiphertext)
		if err != nil {
			return object.InvalidObject, nil, plumbing.NewKindError(plumbing.KindCorruption,
				fmt.Sprintf("decompress delta %s", oid), "", err)
		}
		baseType, basePayload, err := r.resolve(baseOid, depth+1)
		if err != nil {
			return object.InvalidObject, nil, err
		}
		target, err := backend.ApplyDelta(basePayload, deltaBytes)
		if err != nil {
			return object.InvalidObject, nil, plumbing.NewKindError(plumbing.KindCorruption,
				fmt.Sprintf("apply delta %s", oid), "", err)
		}
		return baseType, target, nil
	default:
		return object.InvalidObject, nil, plumbing.NewKindError(plumbing.KindCorruption,
			fmt.Sprintf("parse object %s", oid), fmt.Sprintf("unknown record kind %d", kind), nil)
	}
}

func (r *Reader) readRecord(entry indexEntry) (uint8, []byte, error) {
	if entry.offset+5 > r.bodyEnd || entry.offset < headerSize {
		return 0, nil, plumbing.NewKindError(plumbing.KindCorruption, "read pack record", "offset outside body region", nil)
	}
	kind := r.data[entry.offset]
	payloadLen := getUint32(r.data[entry.offset+1 : entry.offset+5])
	start := entry.offset + 5
	end := start + uint64(payloadLen)
	if end > r.bodyEnd {
		return 0, nil, plumbing.NewKindError(plumbing.KindCorruption, "read pack record", "payload overruns body region", nil)
	}
	if payloadLen != entry.size {
		return 0, nil, plumbing.NewKindError(plumbing.KindCorruption, "read pack record", "index size does not match record payload length", nil)
	}
	return kind, r.data[start:end], nil
}
