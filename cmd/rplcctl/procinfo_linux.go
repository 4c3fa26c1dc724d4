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

package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fortio.org/log"
)

// procThreadInfo is one OS thread's comm name, pinned CPU, and realtime
// priority as reported by /proc/<pid>/task/<tid>/stat fields 2, 39 and
// 40 (1-indexed) — the fields a stat_extended-style diagnostic reads
// to verify the affinity contract actually took effect.
type procThreadInfo struct {
	TID        int    `json:"tid"`
	Comm       string `json:"comm"`
	CPUID      int    `json:"cpu_id"`
	RTPriority int    `json:"rt_priority"`
}

// extendedThreadInfo walks /proc/<pid>/task for the rplc process whose
// pid is read from <name>.pid in the default var dir, returning nil if
// no pid is found or procfs is unreadable (e.g. non-Linux sandboxing or
// permission denial).
func extendedThreadInfo(name string) []procThreadInfo {
	pid := findPidByName(name)
	if pid == 0 {
		return nil
	}
	taskDir := filepath.Join("/proc", strconv.Itoa(pid), "task")
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		log.Debugf("extended thread info: reading %s: %v", taskDir, err)
		return nil
	}
	var out []procThreadInfo
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		info, err := readTaskStat(filepath.Join(taskDir, e.Name(), "stat"), tid)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out
}

func readTaskStat(path string, tid int) (procThreadInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return procThreadInfo{}, err
	}
	fields := strings.Fields(string(raw))
	// field 2 is "(comm)" with parens; fields 39/40 are cpu_id/rt_priority (1-indexed).
	if len(fields) < 40 {
		return procThreadInfo{}, os.ErrInvalid
	}
	comm := strings.Trim(fields[1], "()")
	cpuID, _ := strconv.Atoi(fields[38])
	rtPrio, _ := strconv.Atoi(fields[39])
	return procThreadInfo{TID: tid, Comm: comm, CPUID: cpuID, RTPriority: rtPrio}, nil
}

func findPidByName(name string) int {
	pidPath := filepath.Join(defaultVarDir(), name+".pid")
	raw, err := os.ReadFile(pidPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return pid
}
