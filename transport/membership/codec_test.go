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

package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindb/zenith/models"
	"github.com/lindb/zenith/wire"
)

func TestJSONCodec_Name(t *testing.T) {
	assert.Equal(t, "proto", jsonCodec{}.Name())
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	req := &wire.JoinRequest{Node: models.Node{
		StatelessNode: models.StatelessNode{HostIP: "10.0.0.1", GRPCPort: 9001},
		ID:            "n1",
		Roles:         []models.Role{models.RoleMasterEligible},
	}}

	c := jsonCodec{}
	data, err := c.Marshal(req)
	require.NoError(t, err)

	decoded := new(wire.JoinRequest)
	require.NoError(t, c.Unmarshal(data, decoded))
	assert.Equal(t, req.Node, decoded.Node)
}

func TestJSONCodec_UnmarshalInvalid(t *testing.T) {
	c := jsonCodec{}
	err := c.Unmarshal([]byte("not json"), new(wire.JoinRequest))
	assert.Error(t, err)
}
