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
	"runtime"
	"strconv"
	"strings"
)

// Affinity binds a spawned thread to a CPU core and a fixed real-time
// scheduling priority.
type Affinity struct {
	CPUID    int
	Priority int
}

// ParseAffinity parses the "cpu_id,priority" format read from the
// PLC_THREAD_AFFINITY_<name> environment variable.
func ParseAffinity(s string) (Affinity, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Affinity{}, fmt.Errorf("invalid affinity %q: want cpu_id,priority", s)
	}
	cpuID, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Affinity{}, fmt.Errorf("invalid task cpu id: %w", err)
	}
	priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Affinity{}, fmt.Errorf("invalid task priority: %w", err)
	}
	if cpuID < 0 || cpuID >= runtime.NumCPU() {
		return Affinity{}, fmt.Errorf("CPU not found: %d", cpuID)
	}
	if priority < 1 || priority > 99 {
		return Affinity{}, fmt.Errorf("invalid scheduler priority: %d", priority)
	}
	return Affinity{CPUID: cpuID, Priority: priority}, nil
}

// affinityEnvName converts a thread name to its environment variable
// suffix: dots are encoded as double underscores.
func affinityEnvName(threadName string) string {
	return "PLC_THREAD_AFFINITY_" + strings.ReplaceAll(threadName, ".", "__")
}
