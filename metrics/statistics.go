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

// Package metrics provides the atomic counters/gauges components expose.
package metrics

import "go.uber.org/atomic"

// Counter is a monotonically increasing/decreasing atomic counter.
type Counter struct {
	atomic.Int64
}

// Incr increments the counter by 1.
func (c *Counter) Incr() { c.Add(1) }

// Decr decrements the counter by 1.
func (c *Counter) Decr() { c.Sub(1) }

// Gauge is an atomic float64 value.
type Gauge struct {
	atomic.Float64
}

// ConcurrentStatistics tracks the worker pool's lifecycle counters.
type ConcurrentStatistics struct {
	WorkersAlive       Counter
	WorkersCreated     Counter
	WorkersKilled      Counter
	TasksConsumed      Counter
	TasksRejected      Counter
	TasksPanic         Counter
	TasksWaitingTime   Gauge
	TasksExecutingTime Gauge
}

// UpdateDuration records d as the gauge's current value, the call-site
// shape `statistics.TasksWaitingTime.UpdateDuration(...)` expects without
// pulling in a histogram dependency.
func (g *Gauge) UpdateDuration(d interface{ Seconds() float64 }) {
	g.Store(d.Seconds())
}

// NewConcurrentStatistics creates a fresh ConcurrentStatistics.
func NewConcurrentStatistics() *ConcurrentStatistics {
	return &ConcurrentStatistics{}
}

// JoinStatistics tracks the node-join controller's election counters.
type JoinStatistics struct {
	Elections        Counter
	ElectionFailures Counter
	ElectionTimeouts Counter
	JoinsCommitted   Counter
	JoinsEvicted     Counter
	JoinsRejected    Counter
}

// NewJoinStatistics creates a fresh JoinStatistics.
func NewJoinStatistics() *JoinStatistics {
	return &JoinStatistics{}
}

// MappingStatistics tracks the mapping coordinator's batch counters.
type MappingStatistics struct {
	Updates         Counter
	UpdateNoops     Counter
	UpdateFailures  Counter
	VersionBumps    Counter
	FastPathAcks    Counter
	AckTimeouts     Counter
}

// NewMappingStatistics creates a fresh MappingStatistics.
func NewMappingStatistics() *MappingStatistics {
	return &MappingStatistics{}
}

// BulkPrimaryStatistics tracks the primary executor's per-item counters.
type BulkPrimaryStatistics struct {
	ItemsTranslated     Counter
	ItemsExecuted       Counter
	ItemsFailed         Counter
	VersionConflicts    Counter
	ConflictRetries     Counter
	MappingWaits        Counter
	MappingWaitTimeouts Counter
}

// NewBulkPrimaryStatistics creates a fresh BulkPrimaryStatistics.
func NewBulkPrimaryStatistics() *BulkPrimaryStatistics {
	return &BulkPrimaryStatistics{}
}

// BulkReplicaStatistics tracks the replica executor's per-item counters.
type BulkReplicaStatistics struct {
	ItemsApplied     Counter
	ItemsNoop        Counter
	ItemsMarkedNoop  Counter
	MappingRetries   Counter
	InvalidSequences Counter
}

// NewBulkReplicaStatistics creates a fresh BulkReplicaStatistics.
func NewBulkReplicaStatistics() *BulkReplicaStatistics {
	return &BulkReplicaStatistics{}
}
