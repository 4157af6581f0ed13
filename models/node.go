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

import "fmt"

// NodeID uniquely identifies a node for the lifetime of its process; a
// restarted node is assigned a new NodeID (a node's identity is its
// transport address, its election candidacy is its process instance).
type NodeID string

// Role is one of the capabilities a node advertises at join time.
type Role string

const (
	// RoleMasterEligible marks a node as a candidate in master elections.
	RoleMasterEligible Role = "master_eligible"
	// RoleData marks a node as eligible to hold shard replicas.
	RoleData Role = "data"
	// RoleIngest marks a node as eligible to receive client bulk/mapping requests.
	RoleIngest Role = "ingest"
)

// StatelessNode is a node's liveness-registration identity: the bare
// transport address a registry entry is keyed and valued by.
type StatelessNode struct {
	HostIP   string `json:"hostIP"`
	GRPCPort uint32 `json:"grpcPort"`
}

// Indicator returns the stable string a node is addressed/keyed by.
func (s *StatelessNode) Indicator() string {
	return fmt.Sprintf("%s:%d", s.HostIP, s.GRPCPort)
}

// Node is a cluster member's full identity: its transport address, the
// roles it advertises, and the ephemeral NodeID assigned for its current
// process lifetime.
type Node struct {
	StatelessNode
	ID      NodeID   `json:"id"`
	Roles   []Role   `json:"roles"`
	Version string   `json:"version"`
}

// HasRole returns whether the node advertises the given role.
func (n *Node) HasRole(role Role) bool {
	for _, r := range n.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Master represents the node info of the currently elected master,
// published at a well-known path for non-master-eligible nodes to read
// without participating in the join protocol.
type Master struct {
	Node    Node  `json:"node"`
	ElectAt int64 `json:"electAt"`
}
