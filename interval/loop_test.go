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

package interval

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPrepareWaitsBeforeReturning(t *testing.T) {
	var waited atomic.Bool
	l := Prepare(Options{
		Name:   "t",
		Period: 10 * time.Millisecond,
		Wait:   func() { waited.Store(true) },
	})
	if !waited.Load() {
		t.Fatal("Prepare must call Wait before returning")
	}
	if l == nil {
		t.Fatal("Prepare must return a non-nil Loop")
	}
}

func TestTickMarksReadyOnlyOnce(t *testing.T) {
	var readyCount atomic.Int32
	l := Prepare(Options{
		Name:      "t",
		Period:    time.Millisecond,
		MarkReady: func() { readyCount.Add(1) },
	})
	for i := 0; i < 3; i++ {
		l.Tick()
	}
	if n := readyCount.Load(); n != 1 {
		t.Fatalf("MarkReady called %d times, want exactly 1", n)
	}
}

func TestTickReportsJitter(t *testing.T) {
	var reported int
	var lastName string
	l := Prepare(Options{
		Name:   "loopy",
		Period: 5 * time.Millisecond,
		Report: func(name string, deltaMicros int64) {
			reported++
			lastName = name
			if deltaMicros < 0 {
				t.Fatalf("jitter report must be an absolute, non-negative value, got %d", deltaMicros)
			}
		},
	})
	l.Tick()
	l.Tick()
	if reported != 2 {
		t.Fatalf("Report called %d times, want 2", reported)
	}
	if lastName != "loopy" {
		t.Fatalf("Report got name %q, want %q", lastName, "loopy")
	}
}

func TestTickOnTimeAdvancesDeadlineByPeriod(t *testing.T) {
	l := Prepare(Options{Name: "t", Period: 20 * time.Millisecond})
	before := l.next
	onTime := l.Tick()
	if !onTime {
		t.Fatal("expected an on-time tick with ample period")
	}
	if !l.next.Equal(before.Add(l.period)) {
		t.Fatal("an on-time tick must advance the deadline by exactly one period")
	}
}

func TestTickOverrunRealignsDeadline(t *testing.T) {
	l := Prepare(Options{Name: "t", Period: time.Millisecond})
	// Force the deadline into the past to simulate an overrun.
	l.next = time.Now().Add(-10 * time.Millisecond)
	onTime := l.Tick()
	if onTime {
		t.Fatal("expected an overrun (missed deadline) tick")
	}
	if l.next.Before(time.Now()) {
		t.Fatal("an overrun tick must realign the deadline to now+period, not accumulate catch-up")
	}
}
