// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"fmt"
)

// Delta instruction opcodes (§4.5, §6). The high bit of the opcode byte
// selects the instruction: 1 = Copy(offset varint, length varint), 0 =
// Insert(length varint, raw bytes). No full git-style packfile delta
// decoder is retrievable anywhere in the example pack (modules/git/gitobj/
// pack only carries its type/index tests, not the actual instruction
// codec), so this instruction stream and its varint encoding are written
// directly from the spec's literal algorithm description rather than
// adapted from a pack example.
const (
	opCopy   = 0x80
	opInsert = 0x00
)

// minCopyLength is the shortest match worth emitting as a Copy instruction
// instead of folding into the surrounding Insert run; below this, the Copy
// opcode + two varints cost more than the literal bytes.
const minCopyLength = 8

// chunkWindow is the content-index granularity used to seed candidate
// match positions in base (§4.5: "seed a content index over base").
const chunkWindow = 16

// putUvarint appends a little-endian base-128 varint (continuation bit set
// on all but the final byte) to dst and returns the extended slice.
func putUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// readUvarint decodes a varint from the front of b, returning the value,
// the number of bytes consumed, and an error if b is exhausted before the
// terminal byte.
func readUvarint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, fmt.Errorf("mediagit: delta varint overflow")
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("mediagit: delta varint truncated")
}

// EncodeDelta implements §4.5's encode(base, target) -> delta_bytes: a
// content index over base seeds candidate match positions, and the encoder
// greedily emits the longest Copy it can find at each position, folding
// unmatched runs into Insert instructions. Correctness never requires a
// minimum ratio — when no useful overlap exists the encoder falls back to
// one Insert spanning all of target.
func EncodeDelta(base, target []byte) []byte {
	index := indexChunks(base)

	var out []byte
	var insertRun []byte
	flushInsert := func() {
		if len(insertRun) == 0 {
			return
		}
		out = append(out, opInsert)
		out = putUvarint(out, uint64(len(insertRun)))
		out = append(out, insertRun...)
		insertRun = nil
	}

	i := 0
	for i < len(target) {
		if i+chunkWindow <= len(target) {
			if positions, ok := index[string(target[i:i+chunkWindow])]; ok {
				offset, length := bestMatch(base, target, positions, i)
				if length >= minCopyLength {
					flushInsert()
					out = append(out, opCopy)
					out = putUvarint(out, uint64(offset))
					out = putUvarint(out, uint64(length))
					i += length
					continue
				}
			}
		}
		insertRun = append(insertRun, target[i])
		i++
	}
	flushInsert()
	return out
}

// indexChunks maps every chunkWindow-byte window of base to the list of
// positions it occurs at, first-occurrence first.
func indexChunks(base []byte) map[string][]int {
	index := make(map[string][]int)
	if len(base) < chunkWindow {
		return index
	}
	for i := 0; i+chunkWindow <= len(base); i++ {
		key := string(base[i : i+chunkWindow])
		index[key] = append(index[key], i)
	}
	return index
}

// bestMatch extends every candidate position as far forward as base and
// target agree, returning the longest match's (offset, length).
func bestMatch(base, target []byte, positions []int, ti int) (offset, length int) {
	for _, bi := range positions {
		l := 0
		for bi+l < len(base) && ti+l < len(target) && base[bi+l] == target[ti+l] {
			l++
		}
		if l > length {
			offset, length = bi, l
		}
	}
	return offset, length
}

// ApplyDelta implements §4.5's apply(base, delta_bytes) -> target. The
// instruction stream is self-delimiting; any instruction referencing bytes
// outside base, or a stream that runs out of bytes mid-instruction, is a
// decode error rather than a truncated result (§4.5: "the reader must
// refuse rather than produce truncated output").
func ApplyDelta(base, delta []byte) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(delta) {
		op := delta[i]
		i++
		if op&opCopy != 0 {
			offset, n, err := readUvarint(delta[i:])
			if err != nil {
				return nil, fmt.Errorf("mediagit: invalid delta (copy offset): %w", err)
			}
			i += n
			length, n, err := readUvarint(delta[i:])
			if err != nil {
				return nil, fmt.Errorf("mediagit: invalid delta (copy length): %w", err)
			}
			i += n
			if offset+length > uint64(len(base)) {
				return nil, fmt.Errorf("mediagit: invalid delta: copy [%d,%d) exceeds base length %d", offset, offset+length, len(base))
			}
			out.Write(base[offset : offset+length])
			continue
		}
		length, n, err := readUvarint(delta[i:])
		if err != nil {
			return nil, fmt.Errorf("mediagit: invalid delta (insert length): %w", err)
		}
		i += n
		if uint64(i)+length > uint64(len(delta)) {
			return nil, fmt.Errorf("mediagit: invalid delta: insert of %d bytes exceeds remaining stream", length)
		}
		out.Write(delta[i : uint64(i)+length])
		i += int(length)
	}
	return out.Bytes(), nil
}
