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

package replica

import (
	"context"
	"time"

	"github.com/lindb/common/pkg/logger"
	"go.uber.org/atomic"

	clusterstate "github.com/lindb/zenith/cluster/state"
	"github.com/lindb/zenith/internal/concurrent"
	"github.com/lindb/zenith/metrics"
	"github.com/lindb/zenith/models"
)

var log = logger.GetLogger("Bulk", "ReplicaExecutor")

// MappingRequester asks the mapping coordinator to publish whatever
// mapping update an item requires, mirroring the primary side; the
// replica waits on the next cluster-state publication rather than on
// the requester's own callback.
type MappingRequester func(index string, item models.BulkItemRequest)

// Executor applies one shard's replication batch in input order,
// suspending on the writer pool when an item's mapping has not yet
// caught up to what the primary already applied it under.
type Executor struct {
	index              string
	shardID            models.ShardID
	engine             Engine
	loop               clusterstate.Loop
	pool               concurrent.Pool
	requestMapping     MappingRequester
	mappingWaitTimeout time.Duration
	stats              *metrics.BulkReplicaStatistics
}

// NewExecutor creates a replica Executor for one shard.
func NewExecutor(index string, shardID models.ShardID, engine Engine, loop clusterstate.Loop,
	pool concurrent.Pool, requestMapping MappingRequester, mappingWaitTimeout time.Duration,
) *Executor {
	return &Executor{
		index:              index,
		shardID:            shardID,
		engine:             engine,
		loop:               loop,
		pool:               pool,
		requestMapping:     requestMapping,
		mappingWaitTimeout: mappingWaitTimeout,
		stats:              metrics.NewBulkReplicaStatistics(),
	}
}

// Execute applies req's items in order, calling done exactly once; done
// receives a non-nil error only for a condition that should fail the
// whole replication batch (there is none in the current engine, but the
// signature leaves room for one, matching the primary driver's shape).
func (e *Executor) Execute(ctx context.Context, req *models.ReplicaShardRequest, done func(error)) {
	e.submit(ctx, func() { e.runFrom(ctx, req, 0, done) })
}

func (e *Executor) submit(ctx context.Context, fn func()) {
	e.pool.Submit(ctx, concurrent.NewTask(fn, func(err error) {
		log.Error("panic in bulk replica executor", logger.Error(err))
	}))
}

func (e *Executor) runFrom(ctx context.Context, req *models.ReplicaShardRequest, start int, done func(error)) {
	for i := start; i < len(req.Items); i++ {
		item := req.Items[i]
		suspend, err := e.runItem(item)
		if err != nil {
			done(err)
			return
		}
		if suspend {
			e.waitForMapping(ctx, func() {
				e.submit(ctx, func() { e.runFrom(ctx, req, i, done) })
			})
			return
		}
	}
	done(nil)
}

// runItem applies one replicated item according to its mode; returns
// suspend=true if the item's mapping has not yet caught up and the
// caller must yield back to the writer pool.
func (e *Executor) runItem(item models.ReplicaItemRequest) (bool, error) {
	switch item.Mode {
	case models.ReplicaNormal:
		mappingVersion := e.currentMappingVersion()
		result, err := e.engine.Apply(item.Item, item.SeqNo, item.Item.Version, mappingVersion)
		if err != nil {
			return false, err
		}
		switch result {
		case ApplyMappingUpdateRequired:
			e.stats.MappingRetries.Incr()
			e.requestMapping(e.index, item.Item)
			return true, nil
		case ApplyAlreadyApplied:
			e.stats.InvalidSequences.Incr()
			return false, nil
		default:
			e.stats.ItemsApplied.Incr()
			return false, nil
		}
	case models.ReplicaFailure:
		if item.SeqNo > 0 {
			if e.engine.MarkNoop(item.SeqNo) == ApplyAlreadyApplied {
				e.stats.InvalidSequences.Incr()
			}
			e.stats.ItemsMarkedNoop.Incr()
		} else {
			e.stats.ItemsNoop.Incr()
		}
		return false, nil
	default: // models.ReplicaNoop
		e.stats.ItemsNoop.Incr()
		return false, nil
	}
}

func (e *Executor) currentMappingVersion() int64 {
	state := e.loop.CurrentState()
	meta, ok := state.Indices[e.index]
	if !ok {
		return 0
	}
	return meta.Mapping.Version
}

// waitForMapping returns at once; resume is invoked once, on the next
// cluster-state publication or when mappingWaitTimeout elapses, whichever
// comes first. If ctx is cancelled before either, resume is never invoked.
// Identical shape to the primary executor's wait, since both sides
// suspend on the same kind of asynchronous mapping dependency.
func (e *Executor) waitForMapping(ctx context.Context, resume func()) {
	var fired atomic.Bool
	settled := make(chan struct{})
	timer := time.NewTimer(e.mappingWaitTimeout)
	unsubscribe := e.loop.Subscribe(func(*models.ClusterState) {
		if fired.CompareAndSwap(false, true) {
			timer.Stop()
			close(settled)
			resume()
		}
	})
	go func() {
		defer unsubscribe()
		select {
		case <-timer.C:
			if fired.CompareAndSwap(false, true) {
				resume()
			}
		case <-settled:
		case <-ctx.Done():
		}
	}()
}
