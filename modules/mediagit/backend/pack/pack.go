// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pack implements the Packfile component (C7, §4.7, §6 wire
// format): a builder that streams object records plus a trailing index
// into a single self-verifying blob, and a reader that resolves any
// object in it, walking delta chains as needed.
package pack

import (
	"encoding/binary"
)

// Magic is the 4-byte literal that opens every pack.
var Magic = [4]byte{'P', 'A', 'C', 'K'}

// Version is the only wire format this reader/writer understands.
const Version uint32 = 1

// headerSize is len(Magic) + 4 (version) + 4 (object_count).
const headerSize = 4 + 4 + 4

// indexEntrySize is 32-byte OID + 8-byte offset + 4-byte size (§6).
const indexEntrySize = 32 + 8 + 4

// trailerSize is the SHA-256 checksum over everything prior (§6).
const trailerSize = 32

// Record kinds (§6 ObjectRecord).
const (
	recordFull  uint8 = 0
	recordDelta uint8 = 1
)

// maxDeltaDepth bounds delta-chain resolution so a cyclic or pathologically
// long chain fails fast instead of recursing forever (§4.7).
const maxDeltaDepth = 50

func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func putUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }
func getUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
func getUint64(b []byte) uint64    { return binary.BigEndian.Uint64(b) }
