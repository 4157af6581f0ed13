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

// Package join implements the Zen-style node-join controller: accumulating
// master election and streaming join commitment onto the cluster-state loop.
package join

import "go.uber.org/atomic"

// electionContext is created once per campaign; the controller enforces
// that at most one exists at a time (§3 "at most one election context
// exists process-wide"). Its lifecycle — FRESH, TASK_SUBMITTED,
// ELECTED/FAILED — is carried entirely by taskSubmitted and closed below:
// FRESH is taskSubmitted=false/closed=false, TASK_SUBMITTED is
// taskSubmitted=true/closed=false, and ELECTED/FAILED is closed=true
// (taskSubmitted may be false, e.g. a timeout reached before quorum).
type electionContext struct {
	required int
	callback func(err error)

	// taskSubmitted is the compare-and-set gate ensuring at most one
	// promotion task is ever submitted for this context.
	taskSubmitted atomic.Bool
	// closed marks the context terminal (elected, failed or timed out);
	// guards against completing the callback twice.
	closed atomic.Bool
}

func newElectionContext(required int, callback func(err error)) *electionContext {
	return &electionContext{
		required: required,
		callback: callback,
	}
}

// tryStartPromotion flips the task-submitted gate exactly once.
func (e *electionContext) tryStartPromotion() bool {
	return e.taskSubmitted.CompareAndSwap(false, true)
}

// complete fires the campaign's callback exactly once.
func (e *electionContext) complete(err error) {
	if e.closed.CompareAndSwap(false, true) {
		e.callback(err)
	}
}
