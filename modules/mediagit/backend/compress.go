// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/mediagit/mediagit/modules/mediagit"
)

// Tier selects a compression speed/ratio tradeoff (§4.4).
type Tier int

const (
	// Fast trades ratio for latency: 1-3x on text.
	Fast Tier = iota
	// Balanced is the default: 2-4x.
	Balanced
	// Archival favors ratio over speed: 3-8x.
	Archival
)

func (t Tier) String() string {
	switch t {
	case Fast:
		return "fast"
	case Balanced:
		return "balanced"
	case Archival:
		return "archival"
	default:
		return "unknown"
	}
}

// zstdMagic is the 4-byte frame magic zstd prepends to every frame; used
// here to auto-detect framed payloads on decompress (§6 "Compression
// framing").
var zstdMagic = [4]byte{0x28, 0xb5, 0x2f, 0xfd}

// Archival frames are also zstd (§4.4's 3-8x ratio is reached with
// zstd.SpeedBestCompression) but at the best-compression encoder level; no
// brotli or equivalent archival-specific codec appears anywhere in the
// example pack's go.sum, so rather than fabricate an ungrounded dependency
// the archival tier reuses zstd at its highest level. A dedicated 4-byte
// marker distinguishes an archival frame from a fast/balanced one so a
// decoder can in principle special-case retuning without needing to; since
// both tiers decode with the same zstd reader, the marker is written ahead
// of the zstd frame and stripped before decoding.
var archivalMarker = [4]byte{'B', 'R', 'T', 0x01}

var (
	encoderPools = map[Tier]*sync.Pool{
		Fast:     newEncoderPool(zstd.SpeedFastest),
		Balanced: newEncoderPool(zstd.SpeedDefault),
		Archival: newEncoderPool(zstd.SpeedBestCompression),
	}
	decoderPool = sync.Pool{
		New: func() any {
			d, err := zstd.NewReader(nil)
			if err != nil {
				panic(err) // zstd.NewReader(nil) cannot fail: no dictionary, no reader to validate
			}
			return d
		},
	}
)

func newEncoderPool(level zstd.EncoderLevel) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
			if err != nil {
				panic(err)
			}
			return e
		},
	}
}

// Compress frames data under the given tier (§4.4: "compress(bytes) ->
// framed_bytes"). Empty input compresses to empty output.
func Compress(tier Tier, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	pool, ok := encoderPools[tier]
	if !ok {
		return nil, fmt.Errorf("tier %v: %w", tier, mediagit.ErrUnsupportCompressMethod)
	}
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)

	var buf bytes.Buffer
	if tier == Archival {
		buf.Write(archivalMarker[:])
	}
	enc.Reset(&buf)
	if _, err := enc.Write(data); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress auto-detects the algorithm by magic (§4.4: "decompress(...)
// auto-detects algorithm by magic; passes through if magic absent"). Empty
// input decompresses to empty output.
func Decompress(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, nil
	}
	payload := framed
	if len(framed) >= 4 && bytes.Equal(framed[:4], archivalMarker[:]) {
		payload = framed[4:]
	}
	if len(payload) < 4 || !bytes.Equal(payload[:4], zstdMagic[:]) {
		// No known magic: raw passthrough (§4.4 backward compatibility with
		// uncompressed historical objects).
		return framed, nil
	}
	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)
	return dec.DecodeAll(payload, nil)
}
