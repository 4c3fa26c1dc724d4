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

// Package interval provides the drift-free periodic tick used to drive
// every loop in the runtime: a target period is held by resetting the
// deadline to "now + period" on overrun instead of accumulating missed
// ticks, which avoids bursts of catch-up work amplifying jitter on the
// next cycle.
package interval // import "github.com/rplcgo/rplc/interval"

import (
	"time"

	"fortio.org/log"
)

// ReportFunc publishes one jitter sample (the absolute microsecond delta
// between the intended and observed inter-tick interval) for a named
// loop. It must not block.
type ReportFunc func(name string, deltaMicros int64)

// Options configures a Loop. Options are resolved once, at Prepare
// time, and the Loop does not retain the Options value itself:
// "normalize and move" rather than holding a live reference.
type Options struct {
	// Name identifies the loop in log lines and jitter reports.
	Name string
	// Period is the target inter-tick interval.
	Period time.Duration
	// Shift phase-offsets only the first deadline; subsequent ticks
	// still advance by Period from the shifted baseline.
	Shift time.Duration
	// Report, if non-nil, is called once per tick with the observed
	// jitter in microseconds.
	Report ReportFunc
	// Wait, if non-nil, blocks Prepare until this loop's kind is
	// allowed to run (the lifecycle phase gate).
	Wait func()
	// MarkReady, if non-nil, is invoked exactly once, at the start of
	// the first Tick (not at Prepare): "ready" means "has actually
	// begun executing".
	MarkReady func()
}

// Loop drives one periodic thread's ticks. It is not safe for concurrent
// use: exactly one goroutine, the one that called Prepare, should call
// Tick.
type Loop struct {
	name      string
	period    time.Duration
	periodUs  int64
	next      time.Time
	tPrev     time.Time
	report    ReportFunc
	markReady func()
	marked    bool
}

// Prepare records a monotonic baseline and the first deadline, blocking
// first (if opts.Wait is set) until the lifecycle permits this loop's
// kind to run.
func Prepare(opts Options) *Loop {
	if opts.Wait != nil {
		opts.Wait()
	}
	now := time.Now()
	return &Loop{
		name:      opts.Name,
		period:    opts.Period,
		periodUs:  opts.Period.Microseconds(),
		next:      now.Add(opts.Period + opts.Shift),
		tPrev:     now,
		report:    opts.Report,
		markReady: opts.MarkReady,
		marked:    opts.MarkReady == nil,
	}
}

// Tick blocks until the next deadline (or returns immediately past it),
// reports jitter if enabled, and advances the deadline for the next
// call. It returns false on an overrun: the deadline was missed, and has
// been realigned to now+period rather than accumulating catch-up ticks.
func (l *Loop) Tick() bool {
	if !l.marked {
		l.markReady()
		l.marked = true
	}
	now := time.Now()
	var onTime bool
	switch {
	case now.Before(l.next):
		time.Sleep(l.next.Sub(now))
		onTime = true
	case now.Equal(l.next):
		onTime = true
	default:
		onTime = false
	}
	if onTime {
		l.next = l.next.Add(l.period)
	} else {
		elapsed := now.Sub(l.next)
		l.next = time.Now().Add(l.period)
		log.Warnf("%s loop timeout (period %v, %v past deadline)", l.name, l.period, elapsed)
	}
	if l.report != nil {
		t := time.Now()
		delta := l.periodUs - t.Sub(l.tPrev).Microseconds()
		if delta < 0 {
			delta = -delta
		}
		l.report(l.name, delta)
		l.tPrev = t
	}
	return onTime
}
