// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package name implements the fixed-width entry filename codec used by the
// log ring: encoding and decoding of the base-N sequence and base-10
// temporal fields packed into names of the form NNNCTTTT.log, and the
// next-name advancement rule used to walk the ring one slot at a time.
package name

import "fmt"

const (
	// SequenceWidth is the number of characters used to encode the ring slot
	// index.
	SequenceWidth = 3
	// SequenceBase is the numeral base used for the sequence field. 0-9a-z
	// gives headroom well past spec.md's illustrative base-10 examples while
	// staying within DecodeUnsigned's accepted alphabet.
	SequenceBase = 36
	// TemporalWidth is the number of characters used to encode the
	// wrap-around generation counter.
	TemporalWidth = 4
	// TemporalBase is the numeral base used for the temporal field.
	TemporalBase = 10
	// TemporalModulus is the modulus the temporal field wraps at (10^4).
	TemporalModulus = 10000

	// MaxLength is the total length of an entry name, FILESYSTEM_MAX_NAME_LENGTH
	// in spec.md: 3 sequence + 1 tag + 4 temporal + ".log"/".bin" (4).
	MaxLength = SequenceWidth + 1 + TemporalWidth + 4

	tagOffset      = SequenceWidth
	temporalOffset = SequenceWidth + 1

	trackedSuffix   = ".log"
	untrackedSuffix = ".bin"
)

// digits is the alphabet EncodeUnsigned emits and DecodeUnsigned accepts, matching the
// 0-9a-z ordering from the original C implementation's logger_uitoa.
const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeUnsigned left-pads n, base-encoded, into a width-wide byte buffer
// using the 0-9a-z alphabet. It panics if n does not fit in width digits of
// base - callers are expected to only ever encode values already known to
// fit (sequence < maxCapacity, temporal < TemporalModulus).
func EncodeUnsigned(n uint, width int, base uint) []byte {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = '0'
	}
	if n == 0 {
		return buf
	}
	for i := width - 1; i >= 0 && n > 0; i-- {
		rem := n % base
		buf[i] = digits[rem]
		n /= base
	}
	if n != 0 {
		panic(fmt.Sprintf("name: value does not fit in %d digits of base %d", width, base))
	}
	return buf
}

// DecodeUnsigned parses a width-wide base-encoded field. It accepts 0-9,
// a-z and A-Z as digit characters, each only if its value is below base. On
// any other byte, or a digit not below base, it returns (0, false) -
// behavior preserved from the source logger_atoui, which silently returned 0
// on an invalid byte. Callers MUST check the ok return and treat a false as
// cause to reinitialize whatever cached name produced it, per spec.md's
// "Name-parsing fragility" design note.
func DecodeUnsigned(chars []byte, base uint) (uint, bool) {
	var n uint
	for _, c := range chars {
		var d uint
		switch {
		case c >= '0' && c <= '9':
			d = uint(c - '0')
		case c >= 'a' && c <= 'z':
			d = uint(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			d = uint(c-'A') + 10
		default:
			return 0, false
		}
		if d >= base {
			return 0, false
		}
		n = n*base + d
	}
	return n, true
}

// Name is a parsed *tracked* entry filename: ring slot sequence, element
// tag and temporal generation, always suffixed ".log". Untracked (.bin)
// names have a different internal layout (see FormatUntracked) and are
// never parsed back into a Name - once popped, the ring no longer needs to
// address that file by slot.
type Name struct {
	Sequence uint
	Tag      byte
	Temporal uint
}

// Parse decodes a raw, possibly null-terminated tracked entry name of the
// form NNNCTTTT.log. ok is false if the name isn't well formed: wrong
// length, wrong suffix, or a sequence/temporal field that fails to decode
// (see DecodeUnsigned). Per spec.md's design note, callers must treat a
// failed Parse the same as a corrupt control record: reinitialize rather
// than silently trusting a zero value.
func Parse(raw []byte) (Name, bool) {
	raw = trimNull(raw)
	if len(raw) != MaxLength {
		return Name{}, false
	}
	if string(raw[MaxLength-4:]) != trackedSuffix {
		return Name{}, false
	}

	seq, ok := DecodeUnsigned(raw[:SequenceWidth], SequenceBase)
	if !ok {
		return Name{}, false
	}
	tem, ok := DecodeUnsigned(raw[temporalOffset:temporalOffset+TemporalWidth], TemporalBase)
	if !ok {
		return Name{}, false
	}
	return Name{
		Sequence: seq,
		Tag:      raw[tagOffset],
		Temporal: tem,
	}, true
}

// Format re-encodes a Name back into its canonical ".log" byte representation.
func (n Name) Format() []byte {
	buf := make([]byte, 0, MaxLength)
	buf = append(buf, EncodeUnsigned(n.Sequence, SequenceWidth, SequenceBase)...)
	buf = append(buf, n.Tag)
	buf = append(buf, EncodeUnsigned(n.Temporal, TemporalWidth, TemporalBase)...)
	buf = append(buf, trackedSuffix...)
	return buf
}

func (n Name) String() string {
	return string(n.Format())
}

// Next applies the next-name rule (spec.md 4.1): advance the sequence by
// one, wrapping explicitly to 0 at maxCapacity (not via modulus, since
// maxCapacity may shrink at runtime and a stale sequence could otherwise
// never wrap back into range), and advance the temporal generation counter
// modulo TemporalModulus. The tag is left untouched.
func (n Name) Next(maxCapacity uint) Name {
	next := n
	next.Sequence++
	if next.Sequence >= maxCapacity {
		next.Sequence = 0
	}
	next.Temporal = (next.Temporal + 1) % TemporalModulus
	return next
}

// Prev is the exact inverse of Next: it steps the sequence back by one,
// wrapping to maxCapacity-1 from 0, and the temporal generation counter
// back by one, wrapping modulo TemporalModulus. Since Next's transformation
// is applied unconditionally (never skipped, never doubled), Prev recovers
// the name that produced n via Next(maxCapacity) whenever that name's
// sequence was below maxCapacity (a sequence at or past maxCapacity wraps
// to 0 under Next, and Prev then gives maxCapacity-1), letting callers
// recover the most recently written slot from a persisted head pointer
// that names the next slot to be written.
func (n Name) Prev(maxCapacity uint) Name {
	prev := n
	if prev.Sequence == 0 {
		prev.Sequence = maxCapacity - 1
	} else {
		prev.Sequence--
	}
	prev.Temporal = (prev.Temporal + TemporalModulus - 1) % TemporalModulus
	return prev
}

// SameSlot reports whether a and b name the same ring slot (identical
// sequence portion), the collision test spec.md 4.3.1 uses to detect a
// full ring.
func (n Name) SameSlot(other Name) bool {
	return n.Sequence == other.Sequence
}

func trimNull(raw []byte) []byte {
	for i, b := range raw {
		if b == 0 {
			return raw[:i]
		}
	}
	return raw
}

// PoppedWidth is the width of the popped-temporal counter embedded in an
// untracked name, LOGGER_META_TEM_LENGTH in the original source.
const PoppedWidth = 7

// PoppedModulus is the modulus the popped-temporal counter wraps at (10^7).
const PoppedModulus = 10000000

// FormatUntracked builds the name a tail entry is renamed to when it is
// popped out of ring tracking: <tag><popped-7-digits>.bin. Separating this
// counter from the ring's own per-slot temporal generation guarantees
// globally unique untracked names even across ring wrap-arounds.
func FormatUntracked(tag byte, popped uint) []byte {
	buf := make([]byte, 0, MaxLength)
	buf = append(buf, tag)
	buf = append(buf, EncodeUnsigned(popped, PoppedWidth, 10)...)
	buf = append(buf, untrackedSuffix...)
	return buf
}

// Initial returns the canonical first name of a freshly created ring:
// 000<tag>0000.log.
func Initial(tag byte) Name {
	return Name{Sequence: 0, Tag: tag, Temporal: 0}
}
