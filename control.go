// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package logring

import (
	"errors"
	"io"

	"github.com/brendanbruner/logring/name"
)

// Control record layout, spec.md section 3, byte-exact so a ring written by
// one process can be reopened by another:
//
//	offset 0                 : head name, nameFieldLength bytes, null terminated
//	offset nameFieldLength   : tail name, nameFieldLength bytes, null terminated
//	offset 2*nameFieldLength : 3 bytes reserved sequence scratch
//	+3                       : 4 bytes reserved temporal scratch
//	+7                       : 7 bytes popped-temporal counter, decimal
//	+14                      : 2 bytes reserved
const (
	nameFieldLength = name.MaxLength + 1 // null terminated

	headOffset       = 0
	tailOffset       = nameFieldLength
	reservedOffset   = 2 * nameFieldLength
	reservedSeqLen   = 3
	reservedTemLen   = 4
	poppedOffset     = reservedOffset + reservedSeqLen + reservedTemLen
	poppedLen        = name.PoppedWidth
	tailReservedLen  = 2
	controlRecordLen = reservedOffset + reservedSeqLen + reservedTemLen + poppedLen + tailReservedLen
)

// createControlFile writes the deterministic initial control record: head
// = tail = 000<tag>0000.log, popped counter = 0000000, reserved fields
// zero-filled, in one contiguous write. Spec.md 4.2.
func createControlFile(fs Filesystem, path string, tag byte) Status {
	f, err := fs.Open(path, OpenReadWriteCreate)
	if err != nil {
		return NVMemErr
	}
	defer f.Close()

	buf := make([]byte, controlRecordLen)
	for i := range buf {
		buf[i] = '0'
	}
	initial := name.Initial(tag).Format()
	copy(buf[headOffset:], initial)
	buf[headOffset+name.MaxLength] = 0
	copy(buf[tailOffset:], initial)
	buf[tailOffset+name.MaxLength] = 0
	for i := 0; i < poppedLen; i++ {
		buf[poppedOffset+i] = '0'
	}

	n, err := f.Write(buf)
	if err != nil {
		return NVMemErr
	}
	if n != len(buf) {
		return NVMemFull
	}
	return OK
}

// cacheControlData reads the persisted head and tail names, creating and
// initializing the control file first if it doesn't exist, and
// reinitializing it if the stored record is truncated or its names fail to
// parse (spec.md's "Name-parsing fragility" note: a cached name that fails
// to parse is treated exactly like a truncated record). recreated reports
// whether an existing, but corrupt or truncated, control record had to be
// discarded and rebuilt - it is false for a brand new control file, since
// that is the ordinary first-open case, not an anomaly.
func cacheControlData(fs Filesystem, path string, tag byte) (head, tail name.Name, recreated bool, status Status) {
	f, err := fs.Open(path, OpenReadOnly)
	if err != nil {
		if !isNotExist(err) {
			return name.Name{}, name.Name{}, false, NVMemErr
		}
		if st := createControlFile(fs, path, tag); st != OK {
			return name.Name{}, name.Name{}, false, st
		}
		return name.Initial(tag), name.Initial(tag), false, OK
	}
	defer f.Close()

	headBuf := make([]byte, nameFieldLength)
	n, err := readFull(f, headBuf)
	if err != nil {
		return name.Name{}, name.Name{}, false, NVMemErr
	}
	if n != nameFieldLength {
		head, tail, st := recreateAndCache(fs, path, tag)
		return head, tail, true, st
	}

	tailBuf := make([]byte, nameFieldLength)
	n, err = readFull(f, tailBuf)
	if err != nil {
		return name.Name{}, name.Name{}, false, NVMemErr
	}
	if n != nameFieldLength {
		head, tail, st := recreateAndCache(fs, path, tag)
		return head, tail, true, st
	}

	head, ok := name.Parse(headBuf)
	if !ok {
		head, tail, st := recreateAndCache(fs, path, tag)
		return head, tail, true, st
	}
	tail, ok = name.Parse(tailBuf)
	if !ok {
		head, tail, st := recreateAndCache(fs, path, tag)
		return head, tail, true, st
	}
	return head, tail, false, OK
}

func recreateAndCache(fs Filesystem, path string, tag byte) (name.Name, name.Name, Status) {
	if st := createControlFile(fs, path, tag); st != OK {
		return name.Name{}, name.Name{}, st
	}
	return name.Initial(tag), name.Initial(tag), OK
}

// setHead persists a new head name at offset 0, spec.md 4.2.
func setHead(fs Filesystem, path string, head name.Name) Status {
	return writeNameAt(fs, path, headOffset, head)
}

// setTail persists a new tail name at offset nameFieldLength, spec.md 4.2.
func setTail(fs Filesystem, path string, tail name.Name) Status {
	return writeNameAt(fs, path, tailOffset, tail)
}

func writeNameAt(fs Filesystem, path string, offset int64, n name.Name) Status {
	f, err := fs.Open(path, OpenReadWrite)
	if err != nil {
		return NVMemErr
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return NVMemErr
	}
	raw := n.Format()
	written, err := f.Write(raw)
	if err != nil {
		return NVMemErr
	}
	if written < len(raw) {
		return NVMemFull
	}
	return OK
}

// consumePoppedCounter reads the current popped-temporal counter P, writes
// its successor P' = (P+1) mod name.PoppedModulus back to the control
// record, and returns P - the value to embed in this pop's untracked name.
// The counter advance is persisted before the caller performs the rename
// (spec.md 4.1's "untrack rename rule"), so a crash between the two simply
// skips a counter value; only uniqueness, not density, is required.
func consumePoppedCounter(fs Filesystem, path string) (uint, Status) {
	f, err := fs.Open(path, OpenReadWrite)
	if err != nil {
		return 0, NVMemErr
	}
	defer f.Close()

	if _, err := f.Seek(poppedOffset, 0); err != nil {
		return 0, NVMemErr
	}
	buf := make([]byte, poppedLen)
	n, err := readFull(f, buf)
	if err != nil || n != poppedLen {
		return 0, NVMemErr
	}
	current, ok := name.DecodeUnsigned(buf, 10)
	if !ok {
		return 0, NVMemErr
	}
	next := (current + 1) % name.PoppedModulus

	if _, err := f.Seek(poppedOffset, 0); err != nil {
		return 0, NVMemErr
	}
	encoded := name.EncodeUnsigned(next, poppedLen, 10)
	written, err := f.Write(encoded)
	if err != nil {
		return 0, NVMemErr
	}
	if written < len(encoded) {
		return 0, NVMemFull
	}
	return current, OK
}

// readFull reads len(buf) bytes from f, returning however many bytes it
// actually got along with any error other than io.EOF - the control
// record's "short read means truncated" contract needs the byte count (zero
// included) even when the underlying Read returns io.EOF.
func readFull(f File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
