// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeltaApplyRoundtrip(t *testing.T) {
	cases := []struct {
		name, base, target string
	}{
		{"identical", "the quick brown fox", "the quick brown fox"},
		{"append", "the quick brown fox", "the quick brown fox jumps over the lazy dog"},
		{"prepend", "brown fox", "the quick brown fox"},
		{"middle-edit", "AAAAAAAAAAAAAAAAAAAA tail content here", "AAAAAAAAAAAAAAAAAAAA CHANGED tail content here"},
		{"no-overlap", "completely unrelated base content", "totally different target payload"},
		{"empty-base", "", "brand new content from nothing"},
		{"empty-target", "some base content", ""},
		{"both-empty", "", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			base, target := []byte(c.base), []byte(c.target)
			delta := EncodeDelta(base, target)
			got, err := ApplyDelta(base, delta)
			require.NoError(t, err)
			require.Equal(t, target, got)
		})
	}
}

func TestDeltaEncodeProducesCopyForRepeatedContent(t *testing.T) {
	base := []byte(strings.Repeat("0123456789abcdef", 20))
	target := append(append([]byte("PREFIX-"), base...), []byte("-SUFFIX")...)

	delta := EncodeDelta(base, target)
	require.Less(t, len(delta), len(target), "a mostly-shared payload should compress via Copy instructions")

	got, err := ApplyDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestDeltaApplyRejectsOutOfBoundsCopy(t *testing.T) {
	base := []byte("short base")
	var delta []byte
	delta = append(delta, opCopy)
	delta = putUvarint(delta, 0)
	delta = putUvarint(delta, 1000) // length far beyond len(base)

	_, err := ApplyDelta(base, delta)
	require.Error(t, err)
}

func TestDeltaApplyRejectsTruncatedInsert(t *testing.T) {
	base := []byte("base")
	var delta []byte
	delta = append(delta, opInsert)
	delta = putUvarint(delta, 50) // claims 50 bytes follow but none do

	_, err := ApplyDelta(base, delta)
	require.Error(t, err)
}

func TestVarintRoundtrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40} {
		buf := putUvarint(nil, v)
		got, n, err := readUvarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}
