// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package diskusage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulator_RelocationWithReservation(t *testing.T) {
	sim := NewSimulator(map[string]NodeDiskUsage{
		"A": {NodeID: "A", Paths: 1, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
		"B": {NodeID: "B", Paths: 1, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
	})

	sim.ApplyRelocation(30, "A", "B", true)

	a, _ := sim.Usage("A")
	b, _ := sim.Usage("B")
	assert.Equal(t, int64(130), a.LeastAvailableBytes)
	assert.Equal(t, int64(130), a.MostAvailableBytes)
	assert.Equal(t, int64(70), b.LeastAvailableBytes)
	assert.Equal(t, int64(70), b.MostAvailableBytes)
}

func TestSimulator_RelocationWithoutReservationIsNoop(t *testing.T) {
	sim := NewSimulator(map[string]NodeDiskUsage{
		"A": {NodeID: "A", Paths: 1, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
		"B": {NodeID: "B", Paths: 1, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
	})

	sim.ApplyRelocation(30, "A", "B", false)

	a, _ := sim.Usage("A")
	b, _ := sim.Usage("B")
	assert.Equal(t, int64(100), a.LeastAvailableBytes)
	assert.Equal(t, int64(100), b.LeastAvailableBytes)
}

func TestSimulator_NewShardChargesDestinationOnly(t *testing.T) {
	sim := NewSimulator(map[string]NodeDiskUsage{
		"A": {NodeID: "A", Paths: 1, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
		"B": {NodeID: "B", Paths: 1, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
	})

	sim.ApplyNewShard(30, "B")

	a, _ := sim.Usage("A")
	b, _ := sim.Usage("B")
	assert.Equal(t, int64(100), a.LeastAvailableBytes)
	assert.Equal(t, int64(70), b.LeastAvailableBytes)
}

func TestSimulator_MultiPathNodeSkipsLeastAvailable(t *testing.T) {
	sim := NewSimulator(map[string]NodeDiskUsage{
		"B": {NodeID: "B", Paths: 3, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
	})

	sim.ApplyNewShard(30, "B")

	b, _ := sim.Usage("B")
	assert.Equal(t, int64(100), b.LeastAvailableBytes, "multi-path node must not touch least-available")
	assert.Equal(t, int64(70), b.MostAvailableBytes)
}

func TestSimulator_FreeBytesClampToBounds(t *testing.T) {
	sim := NewSimulator(map[string]NodeDiskUsage{
		"A": {NodeID: "A", Paths: 1, TotalBytes: 50, LeastAvailableBytes: 10, MostAvailableBytes: 10},
		"B": {NodeID: "B", Paths: 1, TotalBytes: 50, LeastAvailableBytes: 40, MostAvailableBytes: 40},
	})

	sim.ApplyRelocation(30, "A", "B", true)

	a, _ := sim.Usage("A")
	b, _ := sim.Usage("B")
	assert.Equal(t, int64(40), a.LeastAvailableBytes)
	assert.Equal(t, int64(10), b.LeastAvailableBytes)

	// a second relocation in the same direction would overflow A's total
	// and underflow B's free bytes; both clamp instead of wrapping.
	sim.ApplyRelocation(30, "A", "B", true)
	a, _ = sim.Usage("A")
	b, _ = sim.Usage("B")
	assert.Equal(t, int64(50), a.LeastAvailableBytes)
	assert.Equal(t, int64(0), b.LeastAvailableBytes)
}

func TestSimulator_DoesNotMutateCallerInput(t *testing.T) {
	initial := map[string]NodeDiskUsage{
		"A": {NodeID: "A", Paths: 1, TotalBytes: 200, LeastAvailableBytes: 100, MostAvailableBytes: 100},
	}
	sim := NewSimulator(initial)
	sim.ApplyNewShard(30, "A")

	assert.Equal(t, int64(100), initial["A"].LeastAvailableBytes, "simulator must not mutate the caller's input map")
}
