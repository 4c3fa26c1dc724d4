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
	"math"

	"fortio.org/safecast"
)

// JitterRecord tracks the min/max/last/average inter-tick jitter for a
// single thread, in microseconds, plus the tick count used to compute
// the average (also surfaced as the thread's "iterations" statistic:
// every tick reported here is one tick of the owning loop). Min/Max/Last
// saturate to uint16; the running total saturates to uint32 and
// self-resets to a single-sample state rather than overflow. This is a
// known source of under-weighting of the total after a very long run,
// documented rather than "fixed".
type JitterRecord struct {
	Min   uint16
	Max   uint16
	Last  uint16
	Total uint32
	Iters uint32
}

// saturateU16 clamps v into the uint16 range, used for jitter samples
// that arrive as (possibly larger) intermediate computations.
func saturateU16(v int64) uint16 {
	if v < 0 {
		v = -v
	}
	u, err := safecast.Convert[uint16](v)
	if err != nil {
		return math.MaxUint16
	}
	return u
}

// report folds one new jitter sample (already saturated to uint16) into
// the record.
func (j *JitterRecord) report(sample uint16) {
	if j.Iters == 0 {
		j.Min = sample
		j.Max = sample
		j.Total = uint32(sample)
		j.Iters = 1
		j.Last = sample
		return
	}
	if sample < j.Min {
		j.Min = sample
	}
	if sample > j.Max {
		j.Max = sample
	}
	j.Last = sample
	if j.Total > math.MaxUint32-uint32(sample) {
		// Would overflow: reset to a single-sample state rather than
		// accumulate a wrapped total.
		j.Total = uint32(sample)
		j.Iters = 1
		return
	}
	j.Total += uint32(sample)
	j.Iters++
}

// average returns Total/Iters, saturated to uint16, or 0 if no samples
// have been recorded yet.
func (j *JitterRecord) average() uint16 {
	if j.Iters == 0 {
		return 0
	}
	avg := uint64(j.Total) / uint64(j.Iters)
	if avg > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(avg)
}

// reset clears the record back to its zero state.
func (j *JitterRecord) reset() {
	*j = JitterRecord{}
}
