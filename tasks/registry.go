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

package tasks

import (
	"fmt"
	"sync"

	"fortio.org/log"
	"fortio.org/sets"
)

// ThreadRecord is the registry's per-thread bookkeeping entry, keyed by
// the thread's full (prefixed) name.
type ThreadRecord struct {
	Name    string
	Kind    Kind
	mu      sync.Mutex
	ready   bool // Input/Program only
	stopped bool // Output only
	jitter  JitterRecord
}

// ThreadInfo is a point-in-time snapshot of a thread's tick statistics,
// returned by the control API. A thread with no recorded samples yet
// reports nil.
type ThreadInfo struct {
	Iters      uint32 `json:"iters"`
	JitterMin  uint16 `json:"jitter_min"`
	JitterMax  uint16 `json:"jitter_max"`
	JitterLast uint16 `json:"jitter_last"`
	JitterAvg  uint16 `json:"jitter_avg"`
}

func (t *ThreadRecord) info() *ThreadInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.jitter.Iters == 0 {
		return nil
	}
	return &ThreadInfo{
		Iters:      t.jitter.Iters,
		JitterMin:  t.jitter.Min,
		JitterMax:  t.jitter.Max,
		JitterLast: t.jitter.Last,
		JitterAvg:  t.jitter.average(),
	}
}

func (t *ThreadRecord) reportJitter(sample uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jitter.report(sample)
}

func (t *ThreadRecord) resetStats() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jitter.reset()
}

// Registry is the single process-wide table of registered threads plus
// the readiness/stopped bookkeeping that drives lifecycle transitions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	threads map[string]*ThreadRecord

	// names of Input/Program threads not yet marked ready, and Output
	// threads not yet marked stopped. A registration adds to the set;
	// marking ready/stopped removes from it. Empty means "all done
	// (or none registered)".
	inputsPending  sets.Set[string]
	programPending sets.Set[string]
	outputsPending sets.Set[string]
}

// NewRegistry returns an empty thread registry.
func NewRegistry() *Registry {
	return &Registry{
		threads:        make(map[string]*ThreadRecord),
		inputsPending:  sets.New[string](),
		programPending: sets.New[string](),
		outputsPending: sets.New[string](),
	}
}

// Register creates a new thread entry of the given kind. It panics if
// name is already registered: duplicate registration is a developer
// configuration error.
func (r *Registry) Register(name string, kind Kind) *ThreadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.threads[name]; dup {
		panic(fmt.Sprintf("thread %s is already registered", name))
	}
	rec := &ThreadRecord{Name: name, Kind: kind}
	r.threads[name] = rec
	switch kind {
	case Input:
		r.inputsPending.Add(name)
	case Program:
		r.programPending.Add(name)
	case Output:
		r.outputsPending.Add(name)
	}
	log.Debugf("registry: registered %s thread %s", kind, name)
	return rec
}

// InputsReady reports whether every registered Input thread has marked
// itself ready (true vacuously if none are registered).
func (r *Registry) InputsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputsPending.Len() == 0
}

// ProgramsReady reports whether every registered Program thread has
// marked itself ready (true vacuously if none are registered).
func (r *Registry) ProgramsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.programPending.Len() == 0
}

// OutputsStopped reports whether every registered Output thread has
// marked itself stopped (true vacuously if none are registered).
func (r *Registry) OutputsStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputsPending.Len() == 0
}

// HasOutputs reports whether any Output thread is registered.
func (r *Registry) HasOutputs() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.Kind == Output {
			return true
		}
	}
	return false
}

// MarkInputReady marks the named Input thread ready; it is a no-op if
// the thread was already ready or the name was not registered as Input.
// Returns true if this call caused all Input threads to become ready.
func (r *Registry) MarkInputReady(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inputsPending.Has(name) {
		return false
	}
	r.inputsPending.Remove(name)
	if t, ok := r.threads[name]; ok {
		t.mu.Lock()
		t.ready = true
		t.mu.Unlock()
	}
	return r.inputsPending.Len() == 0
}

// MarkProgramReady mirrors MarkInputReady for Program threads.
func (r *Registry) MarkProgramReady(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.programPending.Has(name) {
		return false
	}
	r.programPending.Remove(name)
	if t, ok := r.threads[name]; ok {
		t.mu.Lock()
		t.ready = true
		t.mu.Unlock()
	}
	return r.programPending.Len() == 0
}

// MarkOutputStopped marks the named Output thread stopped. Returns true
// if no Output thread is left pending after this call, including when
// name was already stopped or is not a registered Output.
func (r *Registry) MarkOutputStopped(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.outputsPending.Has(name) {
		return r.outputsPending.Len() == 0
	}
	r.outputsPending.Remove(name)
	if t, ok := r.threads[name]; ok {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
	}
	return r.outputsPending.Len() == 0
}

// ReportJitter folds one jitter sample (raw signed microsecond delta,
// saturated and absolute-valued here) into the named thread's stats. A
// report for an unregistered thread is dropped with a warning: it can
// only happen if a loop outlives its own registry entry, which should
// never occur in practice.
func (r *Registry) ReportJitter(name string, rawMicros int64) {
	sample := saturateU16(rawMicros)
	r.mu.Lock()
	t, ok := r.threads[name]
	r.mu.Unlock()
	if !ok {
		log.Warnf("registry: jitter report for unregistered thread %s", name)
		return
	}
	t.reportJitter(sample)
}

// ThreadInfo returns a snapshot of the named thread's stats, or nil if
// the thread is unknown or has not recorded any samples yet.
func (r *Registry) ThreadInfo(name string) *ThreadInfo {
	r.mu.Lock()
	t, ok := r.threads[name]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return t.info()
}

// AllThreadInfo returns a snapshot of every registered thread's stats,
// keyed by thread name. Threads with no samples yet map to a nil value.
func (r *Registry) AllThreadInfo() map[string]*ThreadInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*ThreadInfo, len(r.threads))
	for name, t := range r.threads {
		out[name] = t.info()
	}
	return out
}

// ResetStats clears iteration counts and jitter records for every
// registered thread. Readiness/stopped flags are untouched. Calling it
// twice in a row is idempotent: the second call finds everything already
// zeroed.
func (r *Registry) ResetStats() {
	r.mu.Lock()
	threads := make([]*ThreadRecord, 0, len(r.threads))
	for _, t := range r.threads {
		threads = append(threads, t)
	}
	r.mu.Unlock()
	for _, t := range threads {
		t.resetStats()
	}
}
