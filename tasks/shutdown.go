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
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fortio.org/log"
)

// DefaultStopTimeout bounds how long an orderly shutdown may take before
// the watchdog force-exits the process.
const DefaultStopTimeout = 30 * time.Second

// RunOptions configures Run. Every field is optional and has a usable
// zero value.
type RunOptions struct {
	// Init runs while the controller is Starting, before any Input
	// thread is allowed to run. Typically where I/O drivers are opened.
	Init func()
	// StopTimeout bounds orderly shutdown; zero means DefaultStopTimeout.
	StopTimeout time.Duration
	// Signals overrides which signals trigger shutdown; nil means
	// SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run drives the controller through its full lifecycle: Starting, the
// Init hook, Syncing, blocking until a registered signal arrives (a
// Shutdown call does not unblock it), then the ordered stop sequence
// (Stopping, join all Input/Program threads, the shutdown hook,
// StopSyncing, Stopped once all Outputs have flushed their last tick),
// with a watchdog that force-exits the process if shutdown overruns
// StopTimeout. It returns once the controller reaches Stopped.
func (rt *Runtime) Run(opts RunOptions) {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	signals := opts.Signals
	if signals == nil {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	rt.mu.Lock()
	if rt.started {
		rt.mu.Unlock()
		panic("Run called twice on the same Runtime")
	}
	rt.started = true
	rt.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	rt.SetStarting()
	if opts.Init != nil {
		opts.Init()
	}
	rt.SetSyncing()
	rt.SetPreparingIfNoInputs()
	rt.SetActiveIfNoInputsAndPrograms()

	log.Infof("controller running, waiting for shutdown signal")
	sig := <-sigCh
	log.Infof("received signal %v, starting shutdown", sig)

	rt.shutdown(opts.StopTimeout)
}

// Shutdown runs the orderly stop sequence without waiting for an OS
// signal and returns once the controller reaches Stopped. It waits for
// every Input/Program thread to return, so it must not be called from
// an Input or Program body.
func (rt *Runtime) Shutdown(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	rt.shutdown(timeout)
}

// shutdown runs the ordered stop sequence, guarded by a watchdog
// goroutine that panics ("FORCE STOP") if it overruns timeout.
func (rt *Runtime) shutdown(timeout time.Duration) {
	var once sync.Once
	done := make(chan struct{})
	watchdog := time.AfterFunc(timeout, func() {
		once.Do(func() {
			log.Critf("CRITICAL: shutdown exceeded %v, forcing exit", timeout)
			panic("FORCE STOP: shutdown watchdog expired")
		})
	})
	defer func() {
		watchdog.Stop()
		close(done)
	}()

	rt.setStatus(Stopping)
	rt.joinAll() // wait for every Input/Program loop to observe Stopping and return

	rt.mu.Lock()
	hook := rt.shutdownFn
	rt.mu.Unlock()
	if hook != nil {
		hook()
	}

	rt.setStatus(StopSyncing)
	rt.StopIfNoOutputsOrShutdownHook()
	rt.waitStopped()

	log.Infof("controller stopped")
}

// waitStopped blocks until status reaches Stopped.
func (rt *Runtime) waitStopped() {
	rt.lc.waitUntil(func(s Status) bool { return s == Stopped })
}
