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

// Package constants holds the coordinator repository key layout and other
// process-wide fixed values, kept together so a key's owner is always one
// grep away.
package constants

import (
	"errors"
	"fmt"
)

const (
	// LiveNodesPath is the prefix node registrations are stored under.
	LiveNodesPath = "/live/nodes"
	// MasterElectedPath is the path the currently elected master publishes to.
	MasterElectedPath = "/master/elected"
	// JoinRequestsPath is the prefix join requests are accumulated under
	// while a master-eligible node runs an election.
	JoinRequestsPath = "/join/requests"
	// ClusterStatePath is the path the published cluster state snapshot lives at.
	ClusterStatePath = "/cluster/state"
	// IndexMetadataPath is the prefix per-index metadata blobs are stored under.
	IndexMetadataPath = "/indices"

	// APIVersion1CliPath is the /api/v1 base path; no package in this module serves HTTP under it.
	APIVersion1CliPath = "/api/v1"
)

// GetLiveNodePath returns the full repository key for a node's liveness
// registration entry.
func GetLiveNodePath(indicator string) string {
	return fmt.Sprintf("%s/%s", LiveNodesPath, indicator)
}

// GetJoinRequestPath returns the full repository key a joining node's
// request is accumulated under for a given election term.
func GetJoinRequestPath(term int64, indicator string) string {
	return fmt.Sprintf("%s/%d/%s", JoinRequestsPath, term, indicator)
}

// GetIndexMetadataPath returns the full repository key an index's metadata
// blob is stored under.
func GetIndexMetadataPath(indexUUID string) string {
	return fmt.Sprintf("%s/%s", IndexMetadataPath, indexUUID)
}

// ErrNoMaster is returned by operations that require a currently elected
// master when none is known.
var ErrNoMaster = errors.New("no master currently elected")
