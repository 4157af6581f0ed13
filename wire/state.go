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
	"github.com/lindb/common/pkg/encoding"

	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

// MarshalClusterState serializes state for transport, following the
// same encoding.JSONMarshal convention models.ClusterState.String() uses.
func MarshalClusterState(state *models.ClusterState) []byte {
	return encoding.JSONMarshal(state)
}

// UnmarshalClusterState is MarshalClusterState's inverse; a peer on the
// same state version that round-trips a snapshot gets back an equal one.
func UnmarshalClusterState(data []byte) (*models.ClusterState, error) {
	state := &models.ClusterState{}
	if err := encoding.JSONUnmarshal(data, state); err != nil {
		return nil, errorpkg.Wrap(errorpkg.Transport, err, "unmarshal cluster state")
	}
	return state, nil
}
