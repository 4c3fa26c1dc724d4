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

package main

import (
	"math"
	"os"
	"strconv"
	"time"

	"fortio.org/log"
)

const (
	demoInputPeriod   = 100 * time.Millisecond
	demoProgramPeriod = 50 * time.Millisecond
	demoOutputPeriod  = 200 * time.Millisecond
)

// readDemoInput stands in for a field-bus read: a slowly moving sine
// wave so Output can show visible change without real hardware.
func readDemoInput() float64 {
	return math.Sin(float64(time.Now().UnixMilli()) / 1000.0)
}

// writeDemoOutput stands in for a field-bus write.
func writeDemoOutput(v float64) {
	log.LogVf("demo output: %.4f", v)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func writePidFile(path string) {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		log.Errf("unable to write pid file %s: %v", path, err)
	}
}
