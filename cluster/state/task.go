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

// Package state runs the single-writer cluster-state loop: a priority
// task queue whose sole consumer publishes totally ordered, immutable
// cluster-state snapshots.
package state

import (
	"github.com/lindb/common/pkg/logger"

	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

// Priority orders tasks in the state loop's queue; lower values run first.
type Priority int

const (
	Immediate Priority = iota
	Urgent
	High
	Normal

	numPriorities = int(Normal) + 1
)

// String returns the priority's name, used in log lines.
func (p Priority) String() string {
	switch p {
	case Immediate:
		return "IMMEDIATE"
	case Urgent:
		return "URGENT"
	case High:
		return "HIGH"
	default:
		return "NORMAL"
	}
}

// Execute computes the next cluster state from the current one, or
// returns an error if the task failed; it must not block.
type Execute func(current *models.ClusterState) (*models.ClusterState, error)

// Task is one unit of work submitted to the state loop.
type Task struct {
	// Executor groups tasks that may be batched together against the same
	// base state; adjacent tasks in the queue sharing this label run as
	// one batch with a single publication.
	Executor string
	Priority Priority
	Execute  Execute

	// OnNoLongerMaster fires, instead of Execute, if the local node is not
	// master when the task is dequeued; its output (none) is discarded.
	OnNoLongerMaster func()
	// OnFailure fires if Execute returns an error; does not affect other
	// tasks in the same batch.
	OnFailure func(err error)
	// Ack fires once after the batch containing this task has run, if this
	// task's Execute succeeded (err == nil), whether or not the batch changed
	// the state and published; or after an immediate rejection (err != nil,
	// e.g. NodeClosed).
	Ack func(err error)
}

func (t *Task) ack(err error) {
	if t.Ack == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in task ack callback", logger.Error(errorpkg.FromRecover(r)))
		}
	}()
	t.Ack(err)
}
