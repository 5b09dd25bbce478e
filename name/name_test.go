// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package name

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		n     uint
		width int
		base  uint
	}{
		{0, 3, SequenceBase},
		{1, 3, SequenceBase},
		{35, 3, SequenceBase},
		{SequenceBase*SequenceBase - 1, 3, SequenceBase},
		{0, 4, TemporalBase},
		{9999, 4, TemporalBase},
		{0, PoppedWidth, 10},
		{9999999, PoppedWidth, 10},
	}
	for _, c := range cases {
		enc := EncodeUnsigned(c.n, c.width, c.base)
		require.Len(t, enc, c.width)
		got, ok := DecodeUnsigned(enc, c.base)
		require.True(t, ok)
		require.Equal(t, c.n, got)
	}
}

func TestDecodeUnsignedInvalidByteReturnsZero(t *testing.T) {
	n, ok := DecodeUnsigned([]byte("1!2"), 10)
	require.False(t, ok)
	require.Equal(t, uint(0), n)
}

func TestDecodeUnsignedFuzzNeverPanics(t *testing.T) {
	f := fuzz.New().NilChance(0)
	for i := 0; i < 2000; i++ {
		var raw []byte
		f.Fuzz(&raw)
		require.NotPanics(t, func() {
			n, ok := DecodeUnsigned(raw, SequenceBase)
			if ok {
				// A value that decoded successfully must round trip through a
				// wide-enough encode.
				back := EncodeUnsigned(n, len(raw)+8, SequenceBase)
				got, ok2 := DecodeUnsigned(back, SequenceBase)
				require.True(t, ok2)
				require.Equal(t, n, got)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	want := Name{Sequence: 7, Tag: 'd', Temporal: 42}
	raw := want.Format()
	require.Equal(t, "007d0042.log", string(raw))

	got, ok := Parse(raw)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, ok := Parse([]byte("short.log"))
	require.False(t, ok)

	_, ok = Parse([]byte("007d0042.bin"))
	require.False(t, ok, "tracked Parse must reject untracked suffix")

	_, ok = Parse([]byte("!!!d0042.log"))
	require.False(t, ok)
}

func TestNextAdvancesSequenceAndTemporal(t *testing.T) {
	n := Name{Sequence: 0, Tag: 'd', Temporal: 0}
	next := n.Next(3)
	require.Equal(t, Name{Sequence: 1, Tag: 'd', Temporal: 1}, next)
}

func TestNextWrapsExplicitlyAtCapacity(t *testing.T) {
	n := Name{Sequence: 2, Tag: 'd', Temporal: 9999}
	next := n.Next(3)
	require.Equal(t, uint(0), next.Sequence, "sequence must wrap to 0, not use modulus")
	require.Equal(t, uint(0), next.Temporal, "temporal must wrap modulo TemporalModulus")
}

func TestNextWrapRespectsShrunkCapacity(t *testing.T) {
	// A name with a sequence beyond a newly-shrunk capacity must still wrap
	// to 0 rather than silently growing past maxCapacity (this is exactly
	// why Next uses an explicit comparison instead of modulus).
	n := Name{Sequence: 9, Tag: 'd', Temporal: 0}
	next := n.Next(3)
	require.Equal(t, uint(0), next.Sequence)
}

func TestPrevInvertsNext(t *testing.T) {
	n := Name{Sequence: 1, Tag: 'd', Temporal: 7}
	require.Equal(t, n, n.Next(3).Prev(3))
}

func TestPrevWrapsAtZero(t *testing.T) {
	n := Name{Sequence: 0, Tag: 'd', Temporal: 0}
	prev := n.Prev(3)
	require.Equal(t, uint(2), prev.Sequence)
	require.Equal(t, uint(TemporalModulus-1), prev.Temporal)
}

func TestFormatUntracked(t *testing.T) {
	got := FormatUntracked('d', 0)
	require.Equal(t, "d0000000.bin", string(got))

	got = FormatUntracked('d', 1234567)
	require.Equal(t, "d1234567.bin", string(got))
}

func TestInitial(t *testing.T) {
	require.Equal(t, "000d0000.log", Initial('d').String())
}
