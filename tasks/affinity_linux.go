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

//go:build linux

package tasks

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// applyAffinity pins the calling OS thread to CPUID and switches it to
// the SCHED_RR real-time policy at Priority. It must be called from
// inside the goroutine that is to be pinned, after runtime.LockOSThread,
// since Linux thread affinity and scheduling policy are per-OS-thread,
// not per-process.
func applyAffinity(a Affinity) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(a.CPUID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity: %w", err)
	}
	param := &unix.SchedParam{Priority: int32(a.Priority)}
	if err := unix.SchedSetscheduler(0, unix.SCHED_RR, param); err != nil {
		return fmt.Errorf("sched_setscheduler: %w", err)
	}
	return nil
}
