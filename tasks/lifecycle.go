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

import "fortio.org/log"

// setStatus moves the controller to s and logs the transition. It is
// the sole place status ever changes.
func (rt *Runtime) setStatus(s Status) {
	rt.lc.set(s, func(s Status) {
		log.Infof("controller status: %s", s)
	})
}

// SetStarting moves Inactive -> Starting. A no-op if shutdown has
// already begun (mirrors the original: once Stopping, never go forward).
func (rt *Runtime) SetStarting() {
	if rt.lc.get() >= Inactive {
		rt.setStatus(Starting)
	}
}

// SetSyncing moves Starting -> Syncing, called once the external I/O
// launcher hook has returned.
func (rt *Runtime) SetSyncing() {
	if rt.lc.get() >= Inactive {
		rt.setStatus(Syncing)
	}
}

// SetPreparingIfNoInputs advances Syncing -> Preparing immediately when
// no Input threads are registered (there is nothing to wait for).
func (rt *Runtime) SetPreparingIfNoInputs() {
	if rt.Registry.InputsReady() {
		rt.setStatus(Preparing)
	}
}

// SetActiveIfNoInputsAndPrograms advances straight to Active when
// neither Input nor Program threads are registered.
func (rt *Runtime) SetActiveIfNoInputsAndPrograms() {
	if rt.Registry.InputsReady() && rt.Registry.ProgramsReady() {
		rt.setStatus(Active)
	}
}

// StopIfNoOutputsOrShutdownHook jumps straight to Stopped when there is
// nothing left to flush: no Output threads registered, or no shutdown
// hook was installed.
func (rt *Runtime) StopIfNoOutputsOrShutdownHook() {
	rt.mu.Lock()
	hasHook := rt.hasShutdown
	rt.mu.Unlock()
	if !rt.Registry.HasOutputs() || !hasHook {
		rt.setStatus(Stopped)
	}
}

// SetStopped forces the terminal Stopped state.
func (rt *Runtime) SetStopped() { rt.setStatus(Stopped) }

// markThreadReady is called once, by the owning loop, at the start of
// its first tick (tasks.mark_thread_ready in the original). It cascades
// the lifecycle forward when it completes the last pending thread of
// its kind.
func (rt *Runtime) markThreadReady(name string, kind Kind) {
	switch kind {
	case Input:
		if rt.lc.get() < Syncing {
			return
		}
		if rt.Registry.MarkInputReady(name) {
			rt.setStatus(Preparing)
			if rt.Registry.ProgramsReady() {
				rt.setStatus(Active)
			}
		}
	case Program:
		if rt.lc.get() < Preparing {
			return
		}
		if rt.Registry.MarkProgramReady(name) {
			rt.setStatus(Active)
		}
	default:
		// Output/Service threads have no "ready" concept.
	}
}

// markThreadStopped is called once, by an Output loop, after its final
// (StopSyncing) tick completes.
func (rt *Runtime) markThreadStopped(name string) {
	if rt.Registry.MarkOutputStopped(name) {
		rt.setStatus(Stopped)
	}
}

// waitCanRunInput blocks the calling loop until status >= Syncing.
func (rt *Runtime) waitCanRunInput() { rt.lc.waitUntil(canRunInput) }

// waitCanRunProgram blocks the calling loop until status >= Preparing.
func (rt *Runtime) waitCanRunProgram() { rt.lc.waitUntil(canRunProgram) }

// waitCanRunOutput blocks the calling loop until it may run: either
// normal operation or anywhere in the shutdown path up to Stopping.
func (rt *Runtime) waitCanRunOutput() { rt.lc.waitUntil(canRunOutput) }

// needStop reports whether a loop of kind k must end its loop now.
func (rt *Runtime) needStop(k Kind) bool { return mustStop(k, rt.lc.get()) }

// outputLastSync reports whether this is the Output loop's final,
// flush-then-stop tick.
func (rt *Runtime) outputLastSync() bool { return rt.lc.get() == StopSyncing }
