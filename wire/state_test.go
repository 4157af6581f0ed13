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

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindb/zenith/models"
)

func TestClusterState_RoundTrip(t *testing.T) {
	state := models.NewClusterState("zenith")
	state.Version = 3
	state.MasterID = "n1"
	state.Nodes["n1"] = models.Node{
		StatelessNode: models.StatelessNode{HostIP: "10.0.0.1", GRPCPort: 9000},
		ID:            "n1",
		Roles:         []models.Role{models.RoleMasterEligible, models.RoleData},
	}
	state.Indices["orders"] = &models.IndexMetadata{
		Name:           "orders",
		UUID:           "abc",
		NumberOfShards: 2,
		Mapping:        models.MappingMetadata{Source: []byte(`{"properties":{}}`), Version: 1},
	}
	state.Blocks.BlockWrites("orders", 1)

	data := MarshalClusterState(state)
	decoded, err := UnmarshalClusterState(data)
	require.NoError(t, err)

	assert.Equal(t, state.ClusterName, decoded.ClusterName)
	assert.Equal(t, state.Version, decoded.Version)
	assert.Equal(t, state.MasterID, decoded.MasterID)
	assert.Equal(t, state.Nodes, decoded.Nodes)
	assert.Equal(t, state.Indices, decoded.Indices)
	assert.True(t, decoded.Blocks.IsWriteBlocked("orders"), "blocks must survive the round trip, not just the json:\"-\" fields")
}

func TestClusterState_RoundTripPreservesEmptyBlocks(t *testing.T) {
	state := models.NewClusterState("zenith")
	data := MarshalClusterState(state)
	decoded, err := UnmarshalClusterState(data)
	require.NoError(t, err)
	assert.False(t, decoded.Blocks.IsWriteBlocked("anything"))
}
