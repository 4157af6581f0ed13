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

// Package diskusage projects the disk impact of starting currently
// initializing shards (C7), without ever mutating the real cluster info
// it was seeded from.
package diskusage

// NodeDiskUsage is one node's disk accounting as tracked by the
// simulator: Paths counts distinct disk paths on the node, since that
// changes which views a projected delta is allowed to touch.
type NodeDiskUsage struct {
	NodeID              string
	Paths               int
	TotalBytes          int64
	LeastAvailableBytes int64
	MostAvailableBytes  int64
}

func clamp(v, total int64) int64 {
	if v < 0 {
		return 0
	}
	if v > total {
		return total
	}
	return v
}

// Simulator holds its own copy of disk usage and projects planned shard
// placements onto it; reads never observe or mutate the real cluster info
// the simulator was seeded from.
type Simulator struct {
	usage map[string]*NodeDiskUsage
}

// NewSimulator deep-copies initial so later mutation of the caller's map
// (or its entries) cannot leak into the simulator's projection.
func NewSimulator(initial map[string]NodeDiskUsage) *Simulator {
	usage := make(map[string]*NodeDiskUsage, len(initial))
	for id, u := range initial {
		copied := u
		usage[id] = &copied
	}
	return &Simulator{usage: usage}
}

// Usage returns a copy of nodeID's currently projected disk usage.
func (s *Simulator) Usage(nodeID string) (NodeDiskUsage, bool) {
	u, ok := s.usage[nodeID]
	if !ok {
		return NodeDiskUsage{}, false
	}
	return *u, true
}

// adjust applies delta to nodeID's available-bytes views, clamped to
// [0, total]. Single-path nodes update both least-available and
// most-available; multi-path nodes update only most-available, since a
// multi-path node's least-available path is not known to hold the shard
// in question and updating it would double count.
func (s *Simulator) adjust(nodeID string, delta int64) {
	u, ok := s.usage[nodeID]
	if !ok {
		return
	}
	if u.Paths <= 1 {
		u.LeastAvailableBytes = clamp(u.LeastAvailableBytes+delta, u.TotalBytes)
	}
	u.MostAvailableBytes = clamp(u.MostAvailableBytes+delta, u.TotalBytes)
}

// ApplyRelocation projects a relocating shard of shardSize bytes moving
// from sourceNode to destNode: the source is credited the freed space and
// the destination is charged for it, but only when reserve is true (the
// allocator decided this shard should reserve space for the relocation).
func (s *Simulator) ApplyRelocation(shardSize int64, sourceNode, destNode string, reserve bool) {
	if !reserve {
		return
	}
	s.adjust(sourceNode, shardSize)
	s.adjust(destNode, -shardSize)
}

// ApplyNewShard projects a brand-new (non-relocating) shard of shardSize
// bytes being allocated onto destNode: only the destination is charged.
func (s *Simulator) ApplyNewShard(shardSize int64, destNode string) {
	s.adjust(destNode, -shardSize)
}
