// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package logring

import "sync"

// globalMutex is the single process-wide mutex shared by every Ring
// instance, spec.md section 4.4 and the "Global mutable state" design note
// in section 9: exactly one operation across every open ring executes at a
// time. It is created lazily, the first time any Ring is initialized, via
// sync.Once - the idiomatic Go stand-in for the spec's "init-once
// primitive" over a scheduler-aware semaphore that could fail to allocate.
var (
	globalMutexOnce sync.Once
	globalMutex     *sync.Mutex
)

// acquireGlobalMutex ensures the singleton mutex exists and returns it.
// Unlike the FreeRTOS semaphore the spec is modeled on, a sync.Mutex zero
// value is always ready to use and its creation cannot fail, so MutexErr is
// unreachable in this implementation; the status value is kept in the
// taxonomy for fidelity with spec.md section 7 and in case a future
// implementation backs this with an allocation that can fail (e.g. a named
// OS semaphore for cross-process rings).
func acquireGlobalMutex() *sync.Mutex {
	globalMutexOnce.Do(func() { globalMutex = new(sync.Mutex) })
	return globalMutex
}
