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
	"time"

	"fortio.org/log"

	"github.com/rplcgo/rplc/interval"
)

// LoopParams bundles a loop's period and optional phase shift, used by
// the three composer functions below.
type LoopParams struct {
	Period time.Duration
	Shift  time.Duration
}

// SpawnInputLoop spawns an Input thread that waits for Status >=
// Syncing, then repeatedly runs body, reports jitter, and stops once
// shutdown has begun (Status <= Stopping). body performs its own
// blocking I/O and commits results into the process image itself.
func (rt *Runtime) SpawnInputLoop(name string, p LoopParams, body func()) {
	rt.Spawn(name, Input, func() {
		fullName := Input.prefix() + name
		lp := interval.Prepare(interval.Options{
			Name:      fullName,
			Period:    p.Period,
			Shift:     p.Shift,
			Report:    rt.reportJitter,
			Wait:      rt.waitCanRunInput,
			MarkReady: func() { rt.markThreadReady(fullName, Input) },
		})
		for {
			log.Debugf("loop %s running", fullName)
			body()
			if rt.needStop(Input) {
				break
			}
			lp.Tick()
		}
		log.Debugf("loop %s finished", fullName)
	})
}

// SpawnProgramLoop spawns a Program thread whose body only runs once
// Status >= Preparing (the gate is re-checked every tick, not just at
// Prepare, since a Program may be registered before Syncing transitions
// are known).
func (rt *Runtime) SpawnProgramLoop(name string, p LoopParams, body func()) {
	rt.Spawn(name, Program, func() {
		fullName := Program.prefix() + name
		lp := interval.Prepare(interval.Options{
			Name:      fullName,
			Period:    p.Period,
			Shift:     p.Shift,
			Report:    rt.reportJitter,
			Wait:      rt.waitCanRunProgram,
			MarkReady: func() { rt.markThreadReady(fullName, Program) },
		})
		for {
			log.Debugf("loop %s running", fullName)
			if rt.Status() >= Preparing {
				body()
			}
			if rt.needStop(Program) {
				break
			}
			lp.Tick()
		}
		log.Debugf("loop %s finished", fullName)
	})
}

// SpawnOutputLoop spawns an Output thread. Each iteration first captures
// whether this is the final StopSyncing tick, then runs body, and if it
// was the final tick breaks out before sleeping again; otherwise it
// ticks normally. After the loop ends the thread is marked stopped.
func (rt *Runtime) SpawnOutputLoop(name string, p LoopParams, body func()) {
	rt.Spawn(name, Output, func() {
		fullName := Output.prefix() + name
		lp := interval.Prepare(interval.Options{
			Name:   fullName,
			Period: p.Period,
			Shift:  p.Shift,
			Report: rt.reportJitter,
			Wait:   rt.waitCanRunOutput,
		})
		for {
			lastSync := rt.outputLastSync()
			body()
			if lastSync {
				break
			}
			lp.Tick()
		}
		rt.markThreadStopped(fullName)
		log.Debugf("loop %s finished", fullName)
	})
}

// SpawnService spawns an ungated Service thread. Service threads never
// auto-stop; f is responsible for returning when it should end (or
// running until process exit).
func (rt *Runtime) SpawnService(name string, f func()) {
	rt.Spawn(name, Service, f)
}

// SpawnStatsLog spawns a Service thread that periodically logs every
// registered thread's current statistics, for operators tailing logs
// without a control-socket client.
func (rt *Runtime) SpawnStatsLog(period time.Duration) {
	rt.SpawnService("stlog", func() {
		lp := interval.Prepare(interval.Options{Name: "stlog", Period: period})
		for {
			lp.Tick()
			for name, info := range rt.Registry.AllThreadInfo() {
				if info == nil {
					continue
				}
				log.Infof("thread %s iters %d, jitter min: %d, max: %d, last: %d, avg: %d",
					name, info.Iters, info.JitterMin, info.JitterMax, info.JitterLast, info.JitterAvg)
			}
		}
	})
}

// statsAutoResetPollPeriod is how often SpawnStatsAutoReset checks
// getInterval for a new value; it is independent of the reset interval
// itself so a dynamically-adjusted interval takes effect promptly.
const statsAutoResetPollPeriod = time.Second

// dueForAutoReset reports whether sinceReset has reached want, where
// want <= 0 means auto-reset is disabled.
func dueForAutoReset(sinceReset, want time.Duration) bool {
	return want > 0 && sinceReset >= want
}

// SpawnStatsAutoReset spawns a Service thread that calls
// rt.Registry.ResetStats() every time getInterval's current value has
// elapsed since the last reset. getInterval may change its return value
// at any time (e.g. backed by a dynamically adjustable flag); a
// non-positive value disables auto-reset until it becomes positive
// again.
func (rt *Runtime) SpawnStatsAutoReset(getInterval func() time.Duration) {
	rt.SpawnService("stauto", func() {
		lp := interval.Prepare(interval.Options{Name: "stauto", Period: statsAutoResetPollPeriod})
		var sinceReset time.Duration
		for {
			lp.Tick()
			sinceReset += statsAutoResetPollPeriod
			if dueForAutoReset(sinceReset, getInterval()) {
				rt.Registry.ResetStats()
				sinceReset = 0
			}
		}
	})
}
