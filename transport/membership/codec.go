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

// Package membership carries C2's join, join-validate and leave RPCs
// between nodes. It drives grpc directly rather than through generated
// .proto stubs: the service method set is hand-declared as a
// grpc.ServiceDesc and messages are plain Go structs, so a codec
// substitutes for protoc entirely.
package membership

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName matches grpc's built-in default content-subtype ("proto"),
// so registering this codec replaces it process-wide without requiring
// callers to set a CallContentSubtype on every invocation.
const codecName = "proto"

// jsonCodec implements grpc's encoding.Codec over plain JSON, standing in
// for a protoc-generated proto.Marshal/Unmarshal pair.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal grpc payload: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal grpc payload: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
