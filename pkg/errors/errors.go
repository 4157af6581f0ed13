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

// Package errors implements the closed error taxonomy cluster-state and
// bulk-write components use to report failures across task/transport
// boundaries without resorting to exception-style control flow.
package errors

import "fmt"

// Kind represents one of the closed set of error categories components
// may return.
type Kind int

const (
	// Unknown is the zero value; never returned deliberately.
	Unknown Kind = iota
	// Validation marks a malformed request, incompatible index version,
	// illegal alias name, or unknown operation type.
	Validation
	// NotMaster marks an operation that required the local node to be
	// master while it is not.
	NotMaster
	// VersionConflict marks a failed if_seq_no/if_primary_term/version
	// precondition on an update or index operation.
	VersionConflict
	// MappingUpdateRequired marks a recoverable condition handled by
	// pausing the bulk primary executor and resubmitting.
	MappingUpdateRequired
	// MappingUpdateTimeout marks a mapping publication that did not
	// propagate within the configured timeout; fatal for the item.
	MappingUpdateTimeout
	// Timeout marks a general blocking-call timeout.
	Timeout
	// NodeClosed marks a service shutting down; outstanding callbacks are
	// cancelled.
	NodeClosed
	// Transport marks a network-unreachable, peer-refused, or
	// deserialization failure.
	Transport
	// Fatal marks an invariant violation; the process may abort.
	Fatal
)

// String returns the human readable name of the kind.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotMaster:
		return "not_master"
	case VersionConflict:
		return "version_conflict"
	case MappingUpdateRequired:
		return "mapping_update_required"
	case MappingUpdateTimeout:
		return "mapping_update_timeout"
	case Timeout:
		return "timeout"
	case NodeClosed:
		return "node_closed"
	case Transport:
		return "transport"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String, used to decode a wire error's
// kind field back into its typed form.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "validation":
		return Validation, true
	case "not_master":
		return NotMaster, true
	case "version_conflict":
		return VersionConflict, true
	case "mapping_update_required":
		return MappingUpdateRequired, true
	case "mapping_update_timeout":
		return MappingUpdateTimeout, true
	case "timeout":
		return Timeout, true
	case "node_closed":
		return NodeClosed, true
	case "transport":
		return Transport, true
	case "fatal":
		return Fatal, true
	default:
		return Unknown, false
	}
}

// Error is the concrete error type carried across task and transport
// boundaries. It wraps an optional cause and carries a free-form message.
type Error struct {
	cause   error
	Kind    Kind
	Message string
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

// as is a tiny local copy of errors.As restricted to *Error, avoiding an
// import cycle concern for callers that only care about this package.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
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

// FromRecover recovers a panic value into an error, for use in a worker
// pool's panic handler.
func FromRecover(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
