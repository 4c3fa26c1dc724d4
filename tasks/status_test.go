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
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{Inactive, "INACTIVE"},
		{Starting, "STARTING"},
		{Syncing, "SYNCING"},
		{Preparing, "PREPARING"},
		{Active, "ACTIVE"},
		{Stopping, "STOPPING"},
		{StopSyncing, "STOP_SYNCING"},
		{Stopped, "STOPPED"},
		{Unknown, "UNKNOWN"},
		{Status(42), "UNKNOWN"},
	}
	for _, tst := range tests {
		if got := tst.status.String(); got != tst.expected {
			t.Errorf("Status(%d).String() = %q, want %q", tst.status, got, tst.expected)
		}
	}
}

func TestStatusFromWire(t *testing.T) {
	tests := []struct {
		wire     int16
		expected Status
	}{
		{0, Inactive},
		{1, Starting},
		{2, Syncing},
		{3, Preparing},
		{100, Active},
		{-1, Stopping},
		{-2, StopSyncing},
		{-100, Stopped},
		{7, Unknown},
		{-50, Unknown},
	}
	for _, tst := range tests {
		if got := StatusFromWire(tst.wire); got != tst.expected {
			t.Errorf("StatusFromWire(%d) = %v, want %v", tst.wire, got, tst.expected)
		}
	}
}

func TestCanRunPredicates(t *testing.T) {
	if canRunInput(Starting) {
		t.Error("Input must not run before Syncing")
	}
	if !canRunInput(Syncing) || !canRunInput(Active) {
		t.Error("Input must run at Syncing and later")
	}
	if canRunProgram(Syncing) {
		t.Error("Program must not run before Preparing")
	}
	if !canRunProgram(Preparing) || !canRunProgram(Active) {
		t.Error("Program must run at Preparing and later")
	}
	if !canRunOutput(Active) || !canRunOutput(Stopping) || !canRunOutput(StopSyncing) {
		t.Error("Output must run through the whole shutdown path, including its final StopSyncing tick")
	}
}

func TestMustStop(t *testing.T) {
	if !mustStop(Input, Stopping) || !mustStop(Program, Stopping) {
		t.Error("Input/Program must stop at Stopping")
	}
	if mustStop(Input, Syncing) {
		t.Error("Input must not stop while running normally")
	}
	if !mustStop(Output, StopSyncing) {
		t.Error("Output must stop at StopSyncing")
	}
	if mustStop(Output, Stopping) {
		t.Error("Output keeps running through Stopping")
	}
	if mustStop(Service, Stopped) {
		t.Error("Service threads never auto-stop")
	}
}

func TestLifecycleWaitUntil(t *testing.T) {
	lc := newLifecycle()
	done := make(chan struct{})
	go func() {
		lc.waitUntil(func(s Status) bool { return s == Active })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitUntil returned before status changed")
	case <-time.After(50 * time.Millisecond):
	}

	lc.set(Active, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waitUntil did not wake up after status change")
	}
}
