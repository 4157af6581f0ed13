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

// Package wire carries the external-interface adapters (C8): the
// stable endpoint identifiers embedded in request framing, and the
// cluster-state/error payload shapes that cross a transport boundary.
package wire

// Endpoint identifiers name the logical endpoints the payloads in this
// package belong to. transport/membership does not send them: its grpc
// calls are addressed by the method paths declared in its service.go.
const (
	EndpointJoin         = "internal:discovery/zen/join"
	EndpointJoinValidate = "internal:discovery/zen/join/validate"
	EndpointLeave        = "internal:discovery/zen/leave"
	EndpointBulkShard    = "indices:data/write/bulk[s]"
)
