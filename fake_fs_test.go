// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package logring

import (
	"io"
	"sync"
)

// fakeFilesystem is an in-memory Filesystem, the same shape as the teacher
// WAL test suite's hand-rolled testStorage: a map of name to bytes plus
// knobs to inject faults (a missing file, a short write, a rename failure)
// deterministically instead of needing a real disk.
type fakeFilesystem struct {
	mu    sync.Mutex
	files map[string][]byte

	// failRename names files whose every Rename call fails, and shortWrite
	// caps the length of each Write to a named file, simulating the rename
	// failure and storage-exhaustion scenarios spec.md section 8 calls for.
	// External deletion is simulated separately by deleteExternally.
	failRename map[string]bool
	shortWrite map[string]int // cap write length for this name
}

func newFakeFilesystem() *fakeFilesystem {
	return &fakeFilesystem{
		files:      make(map[string][]byte),
		failRename: make(map[string]bool),
		shortWrite: make(map[string]int),
	}
}

func (f *fakeFilesystem) Open(name string, mode OpenMode) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[name]
	if !ok {
		if mode == OpenReadWriteCreate {
			f.files[name] = nil
			data = nil
		} else {
			return nil, ErrNotExist
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return &fakeFile{fs: f, name: name, data: cp}, nil
}

func (f *fakeFilesystem) Rename(oldName, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRename[oldName] {
		return errNotExistForTest{name: oldName}
	}
	data, ok := f.files[oldName]
	if !ok {
		return ErrNotExist
	}
	f.files[newName] = data
	delete(f.files, oldName)
	return nil
}

func (f *fakeFilesystem) Unlink(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		return ErrNotExist
	}
	delete(f.files, name)
	return nil
}

// deleteExternally simulates an external actor removing an entry file
// out from under the ring between operations, spec.md section 2's central
// tolerance requirement.
func (f *fakeFilesystem) deleteExternally(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
}

func (f *fakeFilesystem) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[name]
	return ok
}

type errNotExistForTest struct{ name string }

func (e errNotExistForTest) Error() string { return "logring: rename failed for " + e.name }

type fakeFile struct {
	fs   *fakeFilesystem
	name string
	data []byte
	pos  int
}

func (ff *fakeFile) Read(p []byte) (int, error) {
	if ff.pos >= len(ff.data) {
		return 0, io.EOF
	}
	n := copy(p, ff.data[ff.pos:])
	ff.pos += n
	return n, nil
}

func (ff *fakeFile) Write(p []byte) (int, error) {
	ff.fs.mu.Lock()
	limit, capped := ff.fs.shortWrite[ff.name]
	ff.fs.mu.Unlock()
	write := p
	if capped && len(p) > limit {
		write = p[:limit]
	}

	need := ff.pos + len(write)
	if need > len(ff.data) {
		grown := make([]byte, need)
		copy(grown, ff.data)
		ff.data = grown
	}
	n := copy(ff.data[ff.pos:], write)
	ff.pos += n
	return n, nil
}

func (ff *fakeFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		ff.pos = int(offset)
	case io.SeekCurrent:
		ff.pos += int(offset)
	case io.SeekEnd:
		ff.pos = len(ff.data) + int(offset)
	}
	return int64(ff.pos), nil
}

func (ff *fakeFile) Size() (int64, error) {
	return int64(len(ff.data)), nil
}

func (ff *fakeFile) Close() error {
	ff.fs.mu.Lock()
	defer ff.fs.mu.Unlock()
	ff.fs.files[ff.name] = ff.data
	return nil
}
