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

import "testing"

func TestRegistryReadinessVacuouslyTrue(t *testing.T) {
	r := NewRegistry()
	if !r.InputsReady() || !r.ProgramsReady() || !r.OutputsStopped() {
		t.Fatal("an empty registry must report all readiness predicates true")
	}
}

func TestRegistryDuplicateRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("in0", Input)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic registering a duplicate thread name")
		}
	}()
	r.Register("in0", Program)
}

func TestRegistryInputReadyCascade(t *testing.T) {
	r := NewRegistry()
	r.Register("in0", Input)
	r.Register("in1", Input)

	if r.InputsReady() {
		t.Fatal("InputsReady must be false while threads are pending")
	}
	if all := r.MarkInputReady("in0"); all {
		t.Fatal("marking one of two inputs ready must not report 'all ready'")
	}
	if all := r.MarkInputReady("in1"); !all {
		t.Fatal("marking the last pending input ready must report 'all ready'")
	}
	if !r.InputsReady() {
		t.Fatal("InputsReady must be true once every input has reported ready")
	}
	// Marking an already-ready (or unknown) name again is a no-op, not a double count.
	if all := r.MarkInputReady("in0"); all {
		t.Fatal("re-marking an already-ready input must not re-report 'all ready'")
	}
}

func TestRegistryOutputStoppedCascade(t *testing.T) {
	r := NewRegistry()
	if r.HasOutputs() {
		t.Fatal("empty registry must report HasOutputs false")
	}
	r.Register("out0", Output)
	if !r.HasOutputs() {
		t.Fatal("expected HasOutputs true once an Output thread is registered")
	}
	if r.OutputsStopped() {
		t.Fatal("OutputsStopped must be false until the thread reports stopped")
	}
	if all := r.MarkOutputStopped("out0"); !all {
		t.Fatal("marking the only output stopped must report 'all stopped'")
	}
	if !r.OutputsStopped() {
		t.Fatal("OutputsStopped must be true once reported")
	}
}

func TestRegistryJitterAndStats(t *testing.T) {
	r := NewRegistry()
	r.Register("prog0", Program)

	if info := r.ThreadInfo("prog0"); info != nil {
		t.Fatal("a thread with no samples yet must report nil info")
	}
	r.ReportJitter("prog0", 150)
	r.ReportJitter("prog0", -50) // negative deltas are absolute-valued

	info := r.ThreadInfo("prog0")
	if info == nil {
		t.Fatal("expected non-nil info after reporting samples")
	}
	if info.Iters != 2 || info.JitterMin != 50 || info.JitterMax != 150 {
		t.Fatalf("got %+v, want iters=2 min=50 max=150", info)
	}

	all := r.AllThreadInfo()
	if len(all) != 1 || all["prog0"] == nil {
		t.Fatalf("AllThreadInfo returned %+v, want one populated entry for prog0", all)
	}

	r.ResetStats()
	if info := r.ThreadInfo("prog0"); info != nil {
		t.Fatal("ResetStats must clear recorded samples back to nil info")
	}
}

func TestRegistryJitterForUnregisteredThreadIsDropped(t *testing.T) {
	r := NewRegistry()
	r.ReportJitter("ghost", 10) // must not panic
	if info := r.ThreadInfo("ghost"); info != nil {
		t.Fatal("an unregistered thread must never appear in the registry")
	}
}
