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

package models

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lindb/common/models"
	"github.com/lindb/common/pkg/encoding"
	"github.com/lindb/roaring"
)

// ShardID identifies one shard of an index's routing table.
type ShardID int32

// ShardRoutingState represents the state a shard routing entry carries.
type ShardRoutingState int

const (
	ShardUnassigned ShardRoutingState = iota
	ShardInitializing
	ShardStarted
	ShardRelocating
)

// String returns a human readable name for the routing state.
func (s ShardRoutingState) String() string {
	switch s {
	case ShardInitializing:
		return "INITIALIZING"
	case ShardStarted:
		return "STARTED"
	case ShardRelocating:
		return "RELOCATING"
	default:
		return "UNASSIGNED"
	}
}

// ShardRouting places one shard copy (primary or a replica) on a node.
type ShardRouting struct {
	NodeID    NodeID            `json:"nodeId"`
	State     ShardRoutingState `json:"state"`
	Primary   bool              `json:"primary"`
}

// IndexRoutingTable maps every shard of one index to its current copies.
type IndexRoutingTable struct {
	IndexUUID string                    `json:"indexUUID"`
	Shards    map[ShardID][]ShardRouting `json:"shards"`
}

// PrimaryRouting returns the primary routing entry for a shard, if assigned.
func (t *IndexRoutingTable) PrimaryRouting(shard ShardID) (ShardRouting, bool) {
	for _, r := range t.Shards[shard] {
		if r.Primary {
			return r, true
		}
	}
	return ShardRouting{}, false
}

// MappingMetadata is the current state of one index's document mapping:
// the merged field source plus the version that bumps strictly iff the
// serialized source changes.
type MappingMetadata struct {
	Source  []byte `json:"source"`
	Version int64  `json:"version"`
}

// IndexMetadata is the durable, per-index configuration record the
// cluster state persists: identity, settings and the current mapping.
type IndexMetadata struct {
	Name            string          `json:"name"`
	UUID            string          `json:"uuid"`
	CreationVersion int64           `json:"creationVersion"`
	NumberOfShards  int             `json:"numberOfShards"`
	Mapping         MappingMetadata `json:"mapping"`
	Aliases         []string        `json:"aliases"`
}

// Blocks tracks which indices currently refuse writes/reads, stored as a
// bitmap of interned block ids per index so cluster state stays compact
// even with many indices blocked during a mapping update or relocation.
type Blocks struct {
	WriteBlocked map[string]*roaring.Bitmap `json:"-"`
}

// NewBlocks creates an empty Blocks.
func NewBlocks() *Blocks {
	return &Blocks{WriteBlocked: make(map[string]*roaring.Bitmap)}
}

// BlockWrites marks an index as refusing writes under the given reason id
// (e.g. a mapping update in flight for one of its shards).
func (b *Blocks) BlockWrites(index string, reason uint32) {
	bm, ok := b.WriteBlocked[index]
	if !ok {
		bm = roaring.New()
		b.WriteBlocked[index] = bm
	}
	bm.Add(reason)
}

// UnblockWrites clears one write-block reason for an index.
func (b *Blocks) UnblockWrites(index string, reason uint32) {
	if bm, ok := b.WriteBlocked[index]; ok {
		bm.Remove(reason)
		if bm.IsEmpty() {
			delete(b.WriteBlocked, index)
		}
	}
}

// IsWriteBlocked returns whether any block reason is active for the index.
func (b *Blocks) IsWriteBlocked(index string) bool {
	bm, ok := b.WriteBlocked[index]
	return ok && !bm.IsEmpty()
}

// Copy returns a deep copy of b so a task can mutate its own snapshot's
// blocks without reaching back into a previously published one.
func (b *Blocks) Copy() *Blocks {
	next := &Blocks{WriteBlocked: make(map[string]*roaring.Bitmap, len(b.WriteBlocked))}
	for index, bm := range b.WriteBlocked {
		next.WriteBlocked[index] = bm.Clone()
	}
	return next
}

// MarshalBinary serializes the write-blocked bitmaps, keyed by index name.
func (b *Blocks) MarshalBinary() (map[string][]byte, error) {
	out := make(map[string][]byte, len(b.WriteBlocked))
	for index, bm := range b.WriteBlocked {
		data, err := encoding.BitmapMarshal(bm)
		if err != nil {
			return nil, err
		}
		out[index] = data
	}
	return out, nil
}

// NewBlocksFromBinary reconstructs a Blocks from the bitmap bytes
// MarshalBinary produced, the inverse operation needed for a cluster
// state to round-trip through JSON (Blocks itself is tagged json:"-"
// since a raw roaring bitmap has no JSON representation).
func NewBlocksFromBinary(data map[string][]byte) (*Blocks, error) {
	b := NewBlocks()
	for index, raw := range data {
		bm := roaring.New()
		if _, err := encoding.BitmapUnmarshal(bm, raw); err != nil {
			return nil, err
		}
		b.WriteBlocked[index] = bm
	}
	return b, nil
}

// ClusterState is the single immutable, versioned snapshot the cluster
// maintains: current master, per-index metadata and routing, and the
// write blocks layered on top.
//
// NOTICE: a ClusterState value is never mutated in place; the cluster/state
// loop publishes a new value built from the previous one plus a task's diff.
type ClusterState struct {
	ClusterName string                         `json:"clusterName"`
	Version     int64                          `json:"version"`
	MasterID    NodeID                         `json:"masterId"`
	Nodes       map[NodeID]Node                `json:"nodes"`
	Indices     map[string]*IndexMetadata      `json:"indices"`
	Routing     map[string]*IndexRoutingTable  `json:"routing"`
	Blocks      *Blocks                        `json:"-"`
}

// NewClusterState creates an empty cluster state at version 0.
func NewClusterState(clusterName string) *ClusterState {
	return &ClusterState{
		ClusterName: clusterName,
		Nodes:       make(map[NodeID]Node),
		Indices:     make(map[string]*IndexMetadata),
		Routing:     make(map[string]*IndexRoutingTable),
		Blocks:      NewBlocks(),
	}
}

// Copy returns a shallow copy of the state with a fresh top-level maps,
// suitable as the base for a task's mutation before publish.
func (c *ClusterState) Copy() *ClusterState {
	next := &ClusterState{
		ClusterName: c.ClusterName,
		Version:     c.Version,
		MasterID:    c.MasterID,
		Nodes:       make(map[NodeID]Node, len(c.Nodes)),
		Indices:     make(map[string]*IndexMetadata, len(c.Indices)),
		Routing:     make(map[string]*IndexRoutingTable, len(c.Routing)),
		Blocks:      c.Blocks.Copy(),
	}
	for k, v := range c.Nodes {
		next.Nodes[k] = v
	}
	for k, v := range c.Indices {
		copied := *v
		next.Indices[k] = &copied
	}
	for k, v := range c.Routing {
		next.Routing[k] = v
	}
	return next
}

// String returns a human readable form of the cluster state.
func (c *ClusterState) String() string {
	return string(encoding.JSONMarshal(c))
}

// clusterStateWire is ClusterState's JSON shape, substituting Blocks'
// unserializable bitmaps for the bytes MarshalBinary produces.
type clusterStateWire struct {
	ClusterName string                        `json:"clusterName"`
	Version     int64                         `json:"version"`
	MasterID    NodeID                        `json:"masterId"`
	Nodes       map[NodeID]Node               `json:"nodes"`
	Indices     map[string]*IndexMetadata     `json:"indices"`
	Routing     map[string]*IndexRoutingTable `json:"routing"`
	Blocks      map[string][]byte             `json:"blocks"`
}

// MarshalJSON encodes the cluster state, including Blocks, so a
// published snapshot round-trips intact across a transport hop.
func (c *ClusterState) MarshalJSON() ([]byte, error) {
	blocks, err := c.Blocks.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(&clusterStateWire{
		ClusterName: c.ClusterName,
		Version:     c.Version,
		MasterID:    c.MasterID,
		Nodes:       c.Nodes,
		Indices:     c.Indices,
		Routing:     c.Routing,
		Blocks:      blocks,
	})
}

// UnmarshalJSON decodes a cluster state previously produced by MarshalJSON.
func (c *ClusterState) UnmarshalJSON(data []byte) error {
	var wire clusterStateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	blocks, err := NewBlocksFromBinary(wire.Blocks)
	if err != nil {
		return err
	}
	c.ClusterName = wire.ClusterName
	c.Version = wire.Version
	c.MasterID = wire.MasterID
	c.Nodes = wire.Nodes
	c.Indices = wire.Indices
	c.Routing = wire.Routing
	c.Blocks = blocks
	return nil
}

// ClusterStates is a sequence of historical snapshots that can be
// rendered as a table.
type ClusterStates []*ClusterState

// ToTable returns the snapshot list as a table, or empty if there are none.
func (c ClusterStates) ToTable() (rows int, tableStr string) {
	if len(c) == 0 {
		return 0, ""
	}
	writer := models.NewTableFormatter()
	writer.AppendHeader(table.Row{"Version", "Master", "Nodes", "Indices"})
	for _, s := range c {
		writer.AppendRow(table.Row{s.Version, s.MasterID, len(s.Nodes), len(s.Indices)})
	}
	return len(c), writer.Render()
}
