// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package logring

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/immutable"
)

// ringSnapshot is a point-in-time view of one ring's state, published to
// the process-wide registry every time a public operation refreshes cached
// head/tail. This mirrors the teacher WAL's pattern of holding its segment
// set as an immutable.SortedMap behind an atomic.Value: readers (here,
// whatever wants to introspect live rings - the bench tool, a future
// /debug endpoint) never take the ring's mutex, they just load the latest
// published snapshot.
type ringSnapshot struct {
	Tag         byte
	MaxCapacity uint
	Head        string
	Tail        string
	UpdatedAt   time.Time
}

// registry is the process-wide, copy-on-write map from control-file path to
// its latest ringSnapshot. It is purely diagnostic: nothing about ring
// correctness depends on it, which remains entirely governed by
// globalMutex.
var registry atomic.Value // *immutable.Map[string, ringSnapshot]

func loadRegistry() *immutable.Map[string, ringSnapshot] {
	m, _ := registry.Load().(*immutable.Map[string, ringSnapshot])
	if m == nil {
		return immutable.NewMap[string, ringSnapshot](nil)
	}
	return m
}

// publishSnapshot records the latest known state of the ring at path. It
// must be called while holding globalMutex, same as every other mutation of
// ring-adjacent state.
func publishSnapshot(path string, snap ringSnapshot) {
	m := loadRegistry()
	registry.Store(m.Set(path, snap))
}

// Snapshots returns every currently-registered ring's last published
// snapshot, keyed by control-file path. Intended for diagnostics and the
// benchring command, not for anything that affects ring correctness.
func Snapshots() map[string]ringSnapshot {
	m := loadRegistry()
	out := make(map[string]ringSnapshot, m.Len())
	it := m.Iterator()
	for !it.Done() {
		k, v, ok := it.Next()
		if ok {
			out[k] = v
		}
	}
	return out
}
