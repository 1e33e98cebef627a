// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressEmptyInput(t *testing.T) {
	for _, tier := range []Tier{Fast, Balanced, Archival} {
		framed, err := Compress(tier, nil)
		require.NoError(t, err)
		require.Empty(t, framed)
	}
}

func TestCompressDecompressRoundtrip(t *testing.T) {
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 200))
	for _, tier := range []Tier{Fast, Balanced, Archival} {
		framed, err := Compress(tier, payload)
		require.NoError(t, err)
		require.NotEmpty(t, framed)
		require.Less(t, len(framed), len(payload), "tier %v should shrink repetitive text", tier)

		out, err := Decompress(framed)
		require.NoError(t, err)
		require.Equal(t, payload, out)
	}
}

func TestDecompressPassthroughWithoutMagic(t *testing.T) {
	raw := []byte("not compressed at all")
	out, err := Decompress(raw)
	require.NoError(t, err)
	require.Equal(t, raw, out)
}

func TestCompressArchivalFramedWithMarker(t *testing.T) {
	payload := []byte(strings.Repeat("archival tier payload ", 50))
	framed, err := Compress(Archival, payload)
	require.NoError(t, err)
	require.Equal(t, archivalMarker[:], framed[:4])
}

func TestDecompressEmptyInput(t *testing.T) {
	out, err := Decompress(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}
