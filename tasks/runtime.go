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
	"os"
	"runtime"
	"sync"

	"fortio.org/log"
)

// StatsChannelSize is the capacity of the bounded jitter-report channel.
// A dedicated Service thread drains it; a full channel means a sample is
// dropped and a critical event logged rather than ever blocking a
// real-time loop.
const StatsChannelSize = 100_000

type jitterSample struct {
	name  string
	delta int64
}

// Runtime is the process-scoped handle on everything the kernel owns:
// the thread registry, the lifecycle status, the join set used for
// ordered shutdown, and the bounded stats-reporting channel. A process
// normally has exactly one Runtime, constructed by New and driven by
// Run; tests may construct additional ones.
type Runtime struct {
	Registry *Registry

	lc *lifecycle

	statsCh chan jitterSample

	mu          sync.Mutex
	joinSet     []chan struct{} // closed when an Input/Program goroutine exits
	stackSize   int
	started     bool
	shutdownFn  func()
	hasShutdown bool
}

// New constructs a Runtime in the Inactive state with its stats
// collector not yet running; call Init to start it.
func New() *Runtime {
	return &Runtime{
		Registry: NewRegistry(),
		lc:       newLifecycle(),
		statsCh:  make(chan jitterSample, StatsChannelSize),
	}
}

// SetStackSize configures the goroutine stack size hint applied to every
// spawn. Go does not expose a literal OS thread stack size the way
// pthread-backed runtimes do; this is surfaced for parity with the
// spec's "stack size is configurable process-wide" contract and is
// currently advisory (recorded, not enforced) since goroutine stacks
// grow dynamically. It must be called before Init.
func (rt *Runtime) SetStackSize(n int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.stackSize = n
}

// Status returns the current controller status.
func (rt *Runtime) Status() Status { return rt.lc.get() }

// Init starts the background stats-collector Service thread. It must be
// called exactly once before any Spawn call.
func (rt *Runtime) Init() {
	rt.spawnStatsCollector()
}

// OnShutdown installs the user shutdown hook, invoked once after all
// Input/Program threads have joined during an orderly shutdown. It
// panics if called twice: double-registration is a fatal configuration
// error.
func (rt *Runtime) OnShutdown(f func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.hasShutdown {
		panic("shutdown hook already set")
	}
	rt.shutdownFn = f
	rt.hasShutdown = true
}

// spawnStatsCollector runs the single consumer of the jitter-report
// channel, folding each sample into the registry.
func (rt *Runtime) spawnStatsCollector() {
	rt.Spawn("stats", Service, func() {
		for s := range rt.statsCh {
			rt.Registry.ReportJitter(s.name, s.delta)
		}
	})
}

// reportJitter is called by interval.Loop (as its interval.ReportFunc)
// to publish one sample. It never blocks: if the channel is full the
// sample is dropped and a critical event logged.
func (rt *Runtime) reportJitter(name string, deltaMicros int64) {
	select {
	case rt.statsCh <- jitterSample{name: name, delta: deltaMicros}:
	default:
		log.Critf("CRITICAL: stats channel full, dropping jitter sample for %s", name)
	}
}

// Spawn creates a new named goroutine-backed thread of the given kind
// and registers it. The name is prefixed with the kind marker (I/O/P/S)
// and must be at most 14 characters before prefixing, 15 after;
// violations panic as a configuration error.
//
// Spawning anything but a Service thread after the controller has left
// Starting is rejected with a logged error (not a panic): late non-
// service spawns are a runtime condition, not a build-time misconfig.
func (rt *Runtime) Spawn(name string, kind Kind, f func()) {
	status := rt.lc.get()
	if status != Inactive && status != Starting && kind != Service {
		log.Errf("can not spawn %s, the PLC is already running (status %s)", name, status)
		return
	}
	if len(name) >= 15 {
		panic(fmt.Sprintf("task name MUST be less than 15 characters (%s)", name))
	}
	fullName := kind.prefix() + name
	if len(fullName) > 15 {
		panic(fmt.Sprintf("task name MUST be less than 15 characters (%s)", fullName))
	}
	rec := rt.Registry.Register(fullName, kind)
	_ = rec

	var affinity *Affinity
	if v, ok := os.LookupEnv(affinityEnvName(fullName)); ok {
		a, err := ParseAffinity(v)
		if err != nil {
			panic(fmt.Sprintf("UNABLE TO SET THREAD %s AFFINITY: %v", fullName, err))
		}
		affinity = &a
	}

	var done chan struct{}
	if kind == Input || kind == Program {
		done = make(chan struct{})
		rt.mu.Lock()
		rt.joinSet = append(rt.joinSet, done)
		rt.mu.Unlock()
	}

	go func() {
		runtime.LockOSThread() // affinity/scheduling policy below are per-OS-thread
		defer runtime.UnlockOSThread()
		if affinity != nil {
			log.Infof("setting %s affinity to CPU %d, priority %d", fullName, affinity.CPUID, affinity.Priority)
			if err := applyAffinity(*affinity); err != nil {
				panic(fmt.Sprintf("UNABLE TO SET THREAD %s AFFINITY, error: %v", fullName, err))
			}
		}
		setThreadName(fullName)
		defer func() {
			if done != nil {
				close(done)
			}
		}()
		f()
	}()
}

// setThreadName best-effort-sets the kernel's view of the OS thread name
// for observability (`ps -L`, /proc/<pid>/task/<tid>/comm); failures are
// not fatal since it's a debugging aid, not a contract.
func setThreadName(name string) {
	if len(name) > 15 {
		name = name[:15]
	}
	setThreadNamePlatform(name)
}

// joinAll blocks until every Input/Program thread's goroutine has
// returned.
func (rt *Runtime) joinAll() {
	rt.mu.Lock()
	handles := rt.joinSet
	rt.joinSet = nil
	rt.mu.Unlock()
	for _, done := range handles {
		<-done
	}
}
