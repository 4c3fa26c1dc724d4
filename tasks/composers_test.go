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
	"sync/atomic"
	"testing"
	"time"
)

// TestFullLifecycleCascade drives a controller with one Input, one
// Program, and one Output thread through Starting -> Active -> an
// orderly shutdown -> Stopped, verifying the readiness/stopped
// cascades and that Output keeps ticking through StopSyncing.
func TestFullLifecycleCascade(t *testing.T) {
	rt := New()
	rt.Init()

	var inputTicks, programTicks, outputTicks atomic.Int32
	var shutdownHookRan atomic.Bool

	rt.SpawnInputLoop("in0", LoopParams{Period: 2 * time.Millisecond}, func() {
		inputTicks.Add(1)
	})
	rt.SpawnProgramLoop("prog0", LoopParams{Period: 2 * time.Millisecond}, func() {
		programTicks.Add(1)
	})
	rt.SpawnOutputLoop("out0", LoopParams{Period: 2 * time.Millisecond}, func() {
		outputTicks.Add(1)
	})
	rt.OnShutdown(func() { shutdownHookRan.Store(true) })

	rt.SetStarting()
	rt.SetSyncing()
	rt.SetPreparingIfNoInputs() // a no-op here: an Input is registered
	rt.SetActiveIfNoInputsAndPrograms()

	waitForStatus(t, rt, Active, time.Second)
	waitForCondition(t, time.Second, func() bool { return inputTicks.Load() > 0 && programTicks.Load() > 0 })

	rt.shutdown(2 * time.Second)

	if rt.Status() != Stopped {
		t.Fatalf("got status %v after shutdown, want Stopped", rt.Status())
	}
	if !shutdownHookRan.Load() {
		t.Fatal("shutdown hook must run before reaching Stopped")
	}
	finalOutputTicks := outputTicks.Load()
	if finalOutputTicks == 0 {
		t.Fatal("output loop must have ticked at least once (its final StopSyncing flush)")
	}
}

// TestRuntimeWithNoInputsOrProgramsGoesStraightActive exercises the
// "nothing to wait for" fast path.
func TestRuntimeWithNoInputsOrProgramsGoesStraightActive(t *testing.T) {
	rt := New()
	rt.Init()
	rt.SetStarting()
	rt.SetSyncing()
	rt.SetPreparingIfNoInputs()
	rt.SetActiveIfNoInputsAndPrograms()

	if rt.Status() != Active {
		t.Fatalf("got status %v, want Active with no Input/Program threads registered", rt.Status())
	}
}

// TestRuntimeStopsImmediatelyWithNoOutputsOrHook covers the fallback in
// StopIfNoOutputsOrShutdownHook.
func TestRuntimeStopsImmediatelyWithNoOutputsOrHook(t *testing.T) {
	rt := New()
	rt.Init()
	rt.SetStarting()
	rt.SetSyncing()
	rt.SetPreparingIfNoInputs()
	rt.SetActiveIfNoInputsAndPrograms()

	rt.shutdown(2 * time.Second)
	if rt.Status() != Stopped {
		t.Fatalf("got status %v, want Stopped immediately (no outputs, no shutdown hook)", rt.Status())
	}
}

func TestDueForAutoReset(t *testing.T) {
	tests := []struct {
		sinceReset, want time.Duration
		due              bool
	}{
		{time.Second, 0, false},
		{time.Second, -1, false},
		{time.Second, 2 * time.Second, false},
		{2 * time.Second, 2 * time.Second, true},
		{3 * time.Second, 2 * time.Second, true},
	}
	for _, tc := range tests {
		if got := dueForAutoReset(tc.sinceReset, tc.want); got != tc.due {
			t.Errorf("dueForAutoReset(%v, %v) = %v, want %v", tc.sinceReset, tc.want, got, tc.due)
		}
	}
}

func waitForStatus(t *testing.T, rt *Runtime, want Status, timeout time.Duration) {
	t.Helper()
	waitForCondition(t, timeout, func() bool { return rt.Status() == want })
}

func waitForCondition(t *testing.T, timeout time.Duration, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !pred() {
		t.Fatal("condition was not met before the timeout")
	}
}
