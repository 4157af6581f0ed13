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

import "github.com/lindb/zenith/models"

// JoinRequest is the payload sent to EndpointJoin.
type JoinRequest struct {
	Node models.Node `json:"node"`
}

// JoinResponse is empty on success; Error is set once the join fails or
// times out.
type JoinResponse struct {
	Error *ErrorResponse `json:"error,omitempty"`
}

// JoinValidateRequest is the payload sent to EndpointJoinValidate: the
// joining node validates compatibility against the candidate master's
// current snapshot before the join is allowed to proceed.
type JoinValidateRequest struct {
	ClusterStateSnapshot *models.ClusterState `json:"clusterStateSnapshot"`
}

// JoinValidateResponse is empty on success; Error is set on failure,
// carrying the rejecting node's error kind back to the caller.
type JoinValidateResponse struct {
	Error *ErrorResponse `json:"error,omitempty"`
}

// LeaveRequest is the payload sent to EndpointLeave.
type LeaveRequest struct {
	Node models.Node `json:"node"`
}

// LeaveResponse is empty on success; Error is set on failure.
type LeaveResponse struct {
	Error *ErrorResponse `json:"error,omitempty"`
}
