// Copyright 2024 rplc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tasks implements the rplc runtime kernel: the controller status
// machine, the thread registry and jitter-stats collector, and the task
// spawner/shutdown orchestrator described in the kernel specification.
package tasks // import "github.com/rplcgo/rplc/tasks"

import (
	"sync"
	"time"
)

// Status is the controller's totally ordered lifecycle state, stored as
// a signed 16 bit value on the wire and in the runtime's lifecycle.
type Status int16

// Controller status values. Order matters: the zero/positive path runs
// Inactive -> Starting -> Syncing -> Preparing -> Active, the shutdown
// path runs Stopping -> StopSyncing -> Stopped. Once any negative value
// has been set, status never returns to a positive one.
const (
	Unknown     Status = -200
	Stopped     Status = -100
	StopSyncing Status = -2
	Stopping    Status = -1
	Inactive    Status = 0
	Starting    Status = 1
	Syncing     Status = 2
	Preparing   Status = 3
	Active      Status = 100
)

// String returns the name fortio-style logging expects to see in a log line.
func (s Status) String() string {
	switch s {
	case Inactive:
		return "INACTIVE"
	case Starting:
		return "STARTING"
	case Syncing:
		return "SYNCING"
	case Preparing:
		return "PREPARING"
	case Active:
		return "ACTIVE"
	case Stopping:
		return "STOPPING"
	case StopSyncing:
		return "STOP_SYNCING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// StatusFromWire decodes a wire (i16) status value, mapping anything
// outside the known set to Unknown rather than panicking.
func StatusFromWire(v int16) Status {
	switch Status(v) {
	case Inactive, Starting, Syncing, Preparing, Active,
		Stopping, StopSyncing, Stopped:
		return Status(v)
	default:
		return Unknown
	}
}

// lifecycle owns the RWMutex-guarded status plus a broadcast channel used to
// wake loops waiting on a phase transition. WaitStep bounds how long a
// waiter blocks before re-checking its predicate even if it missed the
// broadcast, so the implementation stays responsive without depending on
// a condvar's spurious-wakeup guarantees.
type lifecycle struct {
	mu      sync.RWMutex
	status  Status
	changed chan struct{}
}

// WaitStep is the maximum time a phase-gated loop blocks before
// re-checking its predicate against the current status.
const WaitStep = 1 * time.Second

func newLifecycle() *lifecycle {
	return &lifecycle{status: Inactive, changed: make(chan struct{})}
}

func (l *lifecycle) get() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// set moves the status forward and wakes every waiter. Callers are
// expected to only ever move status along one monotonic path; set does
// not itself re-validate monotonicity since every call site in this
// package already computes the next state from the current one.
func (l *lifecycle) set(s Status, onChange func(Status)) {
	l.mu.Lock()
	l.status = s
	old := l.changed
	l.changed = make(chan struct{})
	l.mu.Unlock()
	close(old)
	if onChange != nil {
		onChange(s)
	}
}

// waitUntil blocks until pred(current status) is true, re-checking every
// WaitStep in case a broadcast was missed.
func (l *lifecycle) waitUntil(pred func(Status) bool) {
	for {
		l.mu.RLock()
		s := l.status
		ch := l.changed
		l.mu.RUnlock()
		if pred(s) {
			return
		}
		select {
		case <-ch:
		case <-time.After(WaitStep):
		}
	}
}

// canRunInput reports whether an Input loop may execute a tick.
func canRunInput(s Status) bool { return s >= Syncing }

// canRunProgram reports whether a Program loop may execute a tick.
func canRunProgram(s Status) bool { return s >= Preparing }

// canRunOutput reports whether an Output loop may execute a tick: either
// normal operation (Preparing or later) or anywhere in the shutdown path
// up to and including Stopping, so outputs keep flushing while inputs
// and programs are winding down.
func canRunOutput(s Status) bool { return s >= Preparing || s <= Stopping }

// mustStop reports whether a loop of the given kind must end its loop
// after observing the current status.
func mustStop(k Kind, s Status) bool {
	switch k {
	case Input, Program:
		return s <= Stopping
	case Output:
		return s <= StopSyncing
	default: // Service
		return false
	}
}
