// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

// Package logring implements a persistent, file-backed ring buffer for
// small transactional filesystems: a bounded FIFO sequence of log entries,
// each entry a file, whose head and tail pointers are persisted in a
// separate control record and whose state machine tolerates asynchronous
// deletion of entry files by external actors.
package logring

import (
	"errors"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/brendanbruner/logring/name"
)

// Ring is one open instance of a log ring. All state mutation goes through
// the single process-wide mutex (spec.md section 4.4): exactly one
// operation across every Ring in the process runs at a time. Ring itself
// holds no per-instance lock - there is nothing to hold, since there is
// only ever the one global mutex.
type Ring struct {
	controlPath string
	tag         byte
	maxCapacity uint

	fs      Filesystem
	logger  log.Logger
	metrics *ringMetrics
}

// Open initializes (or reopens) a ring backed by the control file at
// controlPath, identified by tag and bounded to maxCapacity live entries.
// The control record is created lazily on first use; reopening an existing
// valid control record is idempotent (spec.md section 8, property 6).
func Open(controlPath string, tag byte, maxCapacity uint, opts ...Option) (*Ring, error) {
	cfg := Config{
		ControlPath: controlPath,
		Tag:         tag,
		MaxCapacity: maxCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()

	if cfg.MaxCapacity < MinCapacity || cfg.MaxCapacity > MaxCapacity {
		return nil, InvalidCapacity
	}

	r := &Ring{
		controlPath: cfg.ControlPath,
		tag:         cfg.Tag,
		maxCapacity: cfg.MaxCapacity,
		fs:          cfg.FS,
		logger:      cfg.Logger,
		metrics:     newRingMetrics(cfg.Registerer),
	}

	mu := acquireGlobalMutex()
	mu.Lock()
	defer mu.Unlock()

	head, tail, st := r.cacheControl()
	if !st.ok() {
		return nil, st
	}
	r.publish(head, tail)
	return r, nil
}

// cacheControl wraps cacheControlData, surfacing a recreated control record
// (spec.md's "Name-parsing fragility" recovery path) as a log line and a
// metric - a fresh control record from ordinary first-open is not reported,
// since that is the expected boot path, not an anomaly.
func (r *Ring) cacheControl() (head, tail name.Name, status Status) {
	head, tail, recreated, status := cacheControlData(r.fs, r.controlPath, r.tag)
	if recreated {
		level.Info(r.logger).Log("msg", "log ring: control record was corrupt or truncated, reinitializing", "control_path", r.controlPath)
		r.metrics.controlRecreated.Inc()
	}
	return head, tail, status
}

// Close releases any resources held by the Ring. Per spec.md section 3,
// the ring never self-destructs - entry and control files outlive the
// process - so this is a no-op kept for symmetry with Open and to give
// callers a natural place to stop holding a reference.
func (r *Ring) Close() error {
	return nil
}

// Insert populates the slot the ring's head currently names and then
// advances the persisted head by one slot. If sourceFile is empty, an empty
// file is created in that slot. Otherwise the file named sourceFile is
// renamed into place, becoming the newest entry - it must exist and be on the same volume as the control
// file's directory (spec.md's rename contract is same-volume atomic-on-
// success). If the ring is full, the oldest entry is discarded (spec.md
// section 4.3.1's overwrite policy).
//
// Per the "Open questions" resolution in DESIGN.md, Insert returns only a
// Status - never a usable handle - so the crash-safety ordering between the
// rename-into-place commit point and the control record update (comment in
// spec.md 4.3.1) can't be undermined by a caller holding a handle open
// across operations.
func (r *Ring) Insert(sourceFile string) Status {
	mu := acquireGlobalMutex()
	mu.Lock()
	defer mu.Unlock()

	head, tail, st := r.cacheControl()
	if !st.ok() {
		return st
	}

	// head names the slot this insert is about to populate (spec.md section
	// 3: "a head pointer - next write position"). head shares a physical
	// slot with tail (SameSlot) either when the ring is empty (head == tail,
	// no file in the slot) or when the ring has wrapped all the way around:
	// then it's genuinely full (the tail file is still there) or tail is
	// stale and needs reconciling against an async external deletion
	// (spec.md section 4.3.3) before this slot can be reused. Both cases
	// without a tail file go through updateTailLocked.
	nextHead := head.Next(r.maxCapacity)

	if head.SameSlot(tail) {
		if r.exists(tail) {
			// Genuinely full. Overwrite policy: drop the oldest entry.
			if err := r.fs.Unlink(tail.String()); err != nil && !isNotExist(err) {
				return NVMemErr
			}
			tail = tail.Next(r.maxCapacity)
			if st := setTail(r.fs, r.controlPath, tail); !st.ok() {
				return st
			}
			level.Debug(r.logger).Log("msg", "log ring: full, overwrote oldest entry", "control_path", r.controlPath)
			r.metrics.overwrites.Inc()
		} else {
			newTail, st := r.updateTailLocked(head, tail)
			if st == NVMemErr || st == NVMemFull {
				return st
			}
			tail = newTail
		}
	}

	// Clean up any stale leftover under head's exact name - e.g. a file
	// committed by a crashed insert before its control record update landed.
	if r.exists(head) {
		if err := r.fs.Unlink(head.String()); err != nil && !isNotExist(err) {
			return NVMemErr
		}
	}

	if sourceFile == "" {
		f, err := r.fs.Open(head.String(), OpenReadWriteCreate)
		if err != nil {
			return NVMemErr
		}
		if err := f.Close(); err != nil {
			return NVMemErr
		}
	} else {
		if err := r.fs.Rename(sourceFile, head.String()); err != nil {
			level.Error(r.logger).Log("msg", "log ring: failed to rename entry into place", "err", err)
			return NVMemErr
		}
	}

	if st := setHead(r.fs, r.controlPath, nextHead); !st.ok() {
		return st
	}

	r.publish(nextHead, tail)
	r.metrics.inserts.Inc()
	return OK
}

// Pop removes the oldest live entry from the ring and returns its new
// (untracked, ".bin" suffixed) name. It returns Empty if the ring currently
// has no live entries; the only change it makes in that case is persisting
// a tail moved forward past externally deleted entries.
func (r *Ring) Pop() (string, Status) {
	mu := acquireGlobalMutex()
	mu.Lock()
	defer mu.Unlock()

	head, tail, st := r.cacheControl()
	if !st.ok() {
		return "", st
	}

	if !r.exists(tail) {
		newTail, st2 := r.updateTailLocked(head, tail)
		switch st2 {
		case NVMemErr, NVMemFull:
			return "", st2
		case Empty:
			r.publish(head, newTail)
			return "", Empty
		}
		tail = newTail
	}

	if head == tail {
		r.publish(head, tail)
		return "", Empty
	}

	poppedName, st3 := r.untrackLocked(tail)
	if !st3.ok() {
		return "", st3
	}
	r.metrics.pops.Inc()

	// The popped slot was just renamed out by the ring itself, so the
	// reconciliation starts one slot past it; only slots deleted from outside
	// count as reconciled.
	newTail, st4 := r.updateTailLocked(head, tail.Next(r.maxCapacity))
	r.publish(head, newTail)
	if st4 == NVMemErr || st4 == NVMemFull {
		return poppedName, st4
	}
	return poppedName, OK
}

// PeekHead returns a read-only handle to the most recently written (newest)
// entry, seeked to its end, intended for append-style inspection. It
// returns Empty if the ring currently has no live entries.
//
// head names the next slot to be *written*, not the newest entry (spec.md
// section 3) - the newest live entry is the slot Insert populated just
// before advancing head there, i.e. head.Prev(maxCapacity).
func (r *Ring) PeekHead() (File, Status) {
	mu := acquireGlobalMutex()
	mu.Lock()
	defer mu.Unlock()

	head, tail, st := r.cacheControl()
	if !st.ok() {
		return nil, st
	}

	if head == tail {
		return nil, Empty
	}

	newest := head.Prev(r.maxCapacity)
	f, err := r.fs.Open(newest.String(), OpenReadOnly)
	if err != nil {
		if isNotExist(err) {
			return nil, Empty
		}
		return nil, NVMemErr
	}
	size, err := f.Size()
	if err != nil {
		f.Close()
		return nil, NVMemErr
	}
	if _, err := f.Seek(size, 0); err != nil {
		f.Close()
		return nil, NVMemErr
	}
	r.publish(head, tail)
	return f, OK
}

// PeekTail returns a handle to the current tail entry, reconciling against
// asynchronous deletion first if necessary. Preserved from the source: the
// first attempt opens read-write, the fallback (after reconciling)
// read-only - the asymmetry is in the original implementation and is kept
// rather than "fixed" since nothing in spec.md depends on which mode
// succeeds, only that a usable handle is returned.
func (r *Ring) PeekTail() (File, Status) {
	mu := acquireGlobalMutex()
	mu.Lock()
	defer mu.Unlock()

	head, tail, st := r.cacheControl()
	if !st.ok() {
		return nil, st
	}

	f, err := r.fs.Open(tail.String(), OpenReadWrite)
	if err != nil {
		newTail, st2 := r.updateTailLocked(head, tail)
		switch st2 {
		case NVMemErr, NVMemFull:
			return nil, st2
		case Empty:
			r.publish(head, newTail)
			return nil, Empty
		}
		tail = newTail
		f, err = r.fs.Open(tail.String(), OpenReadOnly)
		if err != nil {
			return nil, NVMemErr
		}
	}
	r.publish(head, tail)
	return f, OK
}

// updateTailLocked reconciles the cached tail against truth on disk after
// possible asynchronous deletions (spec.md section 4.3.3). Callers must
// already hold the global mutex. It returns OK with the (possibly
// unchanged) live tail, Empty if every slot including head turned out to be
// gone (spec.md section 9's recommended resolution for the ambiguous
// loop-exhausted case: collapse tail onto head and report Empty), or a
// filesystem error status.
func (r *Ring) updateTailLocked(head, tail name.Name) (name.Name, Status) {
	cur := tail
	for i := uint(0); i < r.maxCapacity; i++ {
		if r.exists(cur) {
			if st := setTail(r.fs, r.controlPath, cur); !st.ok() {
				return cur, st
			}
			if cur != tail {
				r.metrics.tailReconciled.Inc()
			}
			return cur, OK
		}
		if cur == head {
			if st := setTail(r.fs, r.controlPath, head); !st.ok() {
				return cur, st
			}
			if cur != tail {
				r.metrics.tailReconciled.Inc()
			}
			return head, Empty
		}
		cur = cur.Next(r.maxCapacity)
	}
	// Loop exhausted without ever finding a live file or reaching head
	// again. This case is ambiguous in the source (spec.md section 9);
	// apply the same recommended policy used above.
	if st := setTail(r.fs, r.controlPath, head); !st.ok() {
		return cur, st
	}
	r.metrics.tailReconciled.Inc()
	return head, Empty
}

// untrackLocked renames the file named by tail out of the tracked ".log"
// namespace into a unique ".bin" name, spec.md sections 4.1 and 4.3.4.
// Callers must already hold the global mutex.
func (r *Ring) untrackLocked(tail name.Name) (string, Status) {
	popped, st := consumePoppedCounter(r.fs, r.controlPath)
	if !st.ok() {
		return "", st
	}
	untracked := string(name.FormatUntracked(r.tag, popped))

	if r.existsName(untracked) {
		if err := r.fs.Unlink(untracked); err != nil && !isNotExist(err) {
			return "", NVMemErr
		}
	}
	if err := r.fs.Rename(tail.String(), untracked); err != nil {
		return "", NVMemErr
	}
	return untracked, OK
}

func (r *Ring) exists(n name.Name) bool {
	return r.existsName(n.String())
}

func (r *Ring) existsName(n string) bool {
	f, err := r.fs.Open(n, OpenReadOnly)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func (r *Ring) publish(head, tail name.Name) {
	publishSnapshot(r.controlPath, ringSnapshot{
		Tag:         r.tag,
		MaxCapacity: r.maxCapacity,
		Head:        head.String(),
		Tail:        tail.String(),
		UpdatedAt:   time.Now(),
	})
	r.metrics.liveEntries.Set(float64(liveEntryCount(head, tail, r.maxCapacity, r.exists)))
}

// liveEntryCount derives the number of live entries from head and tail
// alone: the count is how many slots head is ahead of tail,
// (head.Sequence - tail.Sequence) mod maxCapacity. The one ambiguous case -
// diff == 0 - covers both
// "empty" and "completely full", disambiguated by checking whether tail's
// slot is actually occupied.
func liveEntryCount(head, tail name.Name, maxCapacity uint, exists func(name.Name) bool) uint {
	diff := (head.Sequence + maxCapacity - tail.Sequence) % maxCapacity
	if diff == 0 {
		if exists(tail) {
			return maxCapacity
		}
		return 0
	}
	return diff
}

func isNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
