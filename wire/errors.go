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

import errorpkg "github.com/lindb/zenith/pkg/errors"

// ErrorResponse is the wire representation of an error's kind, decoupled
// from the concrete *errorpkg.Error type so a peer on a different build
// can still interpret the kind even if it cannot construct the Go type.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EncodeError renders err as its wire representation; nil returns nil.
func EncodeError(err error) *ErrorResponse {
	if err == nil {
		return nil
	}
	kind := errorpkg.Fatal
	var typed *errorpkg.Error
	if as(err, &typed) {
		kind = typed.Kind
	}
	return &ErrorResponse{Kind: kind.String(), Message: err.Error()}
}

// DecodeError reconstructs an error from its wire representation; nil
// input returns nil. An unrecognized kind decodes as Fatal, since a
// peer's error kind is only ever widened across versions, never narrowed.
func DecodeError(resp *ErrorResponse) error {
	if resp == nil {
		return nil
	}
	kind, ok := errorpkg.ParseKind(resp.Kind)
	if !ok {
		kind = errorpkg.Fatal
	}
	return errorpkg.New(kind, "%s", resp.Message)
}

// as is a tiny local copy of errors.As restricted to *errorpkg.Error,
// mirroring the same helper in pkg/errors to avoid exporting it there.
func as(err error, target **errorpkg.Error) bool {
	for err != nil {
		if e, ok := err.(*errorpkg.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
