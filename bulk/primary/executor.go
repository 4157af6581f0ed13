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

package primary

import (
	"context"
	"time"

	"github.com/lindb/common/pkg/logger"
	"go.uber.org/atomic"

	clusterstate "github.com/lindb/zenith/cluster/state"
	"github.com/lindb/zenith/internal/concurrent"
	"github.com/lindb/zenith/metrics"
	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

var log = logger.GetLogger("Bulk", "PrimaryExecutor")

// MappingRequester asks the mapping coordinator to publish whatever
// mapping update item requires; the executor does not wait on its
// callback directly, it waits on the next cluster-state publication (or
// a timeout) instead, since mapping acks and state publication are
// already sequenced by the state loop.
type MappingRequester func(index string, item models.BulkItemRequest)

// Executor drives one shard's bulk items through translate/execute/
// finalize, suspending on pool when an item needs a mapping update.
type Executor struct {
	index      string
	shardID    models.ShardID
	engine     Engine
	translator UpdateTranslator
	loop       clusterstate.Loop
	pool       concurrent.Pool
	requestMapping MappingRequester
	mappingWaitTimeout time.Duration
	stats      *metrics.BulkPrimaryStatistics
}

// NewExecutor creates a primary Executor for one shard.
func NewExecutor(index string, shardID models.ShardID, engine Engine, translator UpdateTranslator,
	loop clusterstate.Loop, pool concurrent.Pool, requestMapping MappingRequester, mappingWaitTimeout time.Duration,
) *Executor {
	return &Executor{
		index:              index,
		shardID:            shardID,
		engine:             engine,
		translator:         translator,
		loop:               loop,
		pool:               pool,
		requestMapping:     requestMapping,
		mappingWaitTimeout: mappingWaitTimeout,
		stats:              metrics.NewBulkPrimaryStatistics(),
	}
}

// itemRun tracks one item's progress across suspend/resume cycles.
type itemRun struct {
	item    models.BulkItemRequest
	state   models.ItemState
	retries int
}

// Execute runs req's items in order, calling done once with the
// slot-array response and the replication payload built from it. If ctx
// is cancelled while an item waits for a mapping update, the run stops
// there and done is not called.
func (e *Executor) Execute(ctx context.Context, req *models.BulkShardRequest, done func(*models.BulkShardResponse, *models.ReplicaShardRequest)) {
	runs := make([]*itemRun, len(req.Items))
	for i, item := range req.Items {
		runs[i] = &itemRun{item: item, state: models.ItemInitial}
	}
	respItems := make([]models.BulkItemResponse, len(req.Items))
	repItems := make([]models.ReplicaItemRequest, len(req.Items))

	e.submit(ctx, func() { e.runFrom(ctx, req, runs, 0, respItems, repItems, done) })
}

func (e *Executor) submit(ctx context.Context, fn func()) {
	e.pool.Submit(ctx, concurrent.NewTask(fn, func(err error) {
		log.Error("panic in bulk primary executor", logger.Error(err))
	}))
}

func (e *Executor) runFrom(ctx context.Context, req *models.BulkShardRequest, runs []*itemRun, start int,
	respItems []models.BulkItemResponse, repItems []models.ReplicaItemRequest,
	done func(*models.BulkShardResponse, *models.ReplicaShardRequest),
) {
	for i := start; i < len(runs); i++ {
		run := runs[i]
		outcome, suspend := e.runItem(run)
		if suspend {
			e.waitForMapping(ctx, func() {
				e.submit(ctx, func() { e.runFrom(ctx, req, runs, i, respItems, repItems, done) })
			})
			return
		}
		respItems[i] = outcome.resp
		repItems[i] = outcome.rep
		run.state = models.ItemInitial
	}

	done(
		&models.BulkShardResponse{Index: req.Index, ShardID: req.ShardID, Items: respItems},
		&models.ReplicaShardRequest{Index: req.Index, ShardID: req.ShardID, Items: repItems},
	)
}

type itemOutcome struct {
	resp models.BulkItemResponse
	rep  models.ReplicaItemRequest
}

// runItem runs one item's translate/execute/finalize pipeline to
// completion, retrying internally on bounded conflicts; returns
// suspend=true if the item needs a mapping update and the caller must
// yield back to the writer pool instead of continuing the loop.
func (e *Executor) runItem(run *itemRun) (itemOutcome, bool) {
	item := run.item

	if item.OpType == models.OpUpdate {
		translated, noop, err := e.translator.Translate(item)
		if err != nil {
			if errorpkg.Is(err, errorpkg.VersionConflict) {
				e.stats.VersionConflicts.Incr()
				if run.retries < item.RetryOnConflict {
					run.retries++
					e.stats.ConflictRetries.Incr()
					return e.runItem(run)
				}
			}
			e.stats.ItemsFailed.Incr()
			return e.finalizeFailure(item, err), false
		}
		if noop {
			e.stats.ItemsExecuted.Incr()
			return e.finalizeNoop(item), false
		}
		item = translated
	}
	run.item = item
	run.state = models.ItemTranslated
	e.stats.ItemsTranslated.Incr()

	mappingVersion := e.currentMappingVersion()
	seqNo, version, result, err := e.engine.Execute(item, mappingVersion)
	switch result {
	case ExecMappingUpdateRequired:
		e.stats.MappingWaits.Incr()
		run.state = models.ItemWaitForMappingUpdate
		e.requestMapping(e.index, item)
		return itemOutcome{}, true
	case ExecFailure:
		e.stats.ItemsFailed.Incr()
		return e.finalizeFailure(item, err), false
	default:
		e.stats.ItemsExecuted.Incr()
		run.state = models.ItemExecuted
		return e.finalizeSuccess(item, seqNo, version), false
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

func (e *Executor) finalizeSuccess(item models.BulkItemRequest, seqNo, version int64) itemOutcome {
	resp := models.BulkItemResponse{OpType: item.OpType, ID: item.ID, SeqNo: seqNo, Version: version, State: models.ItemCompleted}
	rep := models.ReplicaItemRequest{Mode: models.ReplicaNormal, SeqNo: seqNo, Item: item}
	return itemOutcome{resp: resp, rep: rep}
}

func (e *Executor) finalizeFailure(item models.BulkItemRequest, err error) itemOutcome {
	resp := models.BulkItemResponse{OpType: item.OpType, ID: item.ID, Failed: true, FailureMessage: err.Error(), State: models.ItemCompleted}
	rep := models.ReplicaItemRequest{Mode: models.ReplicaFailure, SeqNo: 0, Item: item}
	return itemOutcome{resp: resp, rep: rep}
}

func (e *Executor) finalizeNoop(item models.BulkItemRequest) itemOutcome {
	resp := models.BulkItemResponse{OpType: item.OpType, ID: item.ID, State: models.ItemCompleted}
	rep := models.ReplicaItemRequest{Mode: models.ReplicaNoop, Item: item}
	return itemOutcome{resp: resp, rep: rep}
}

// waitForMapping returns at once; resume is invoked once, on the next
// cluster-state publication or when mappingWaitTimeout elapses, whichever
// comes first. If ctx is cancelled before either, resume is never invoked.
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
				e.stats.MappingWaitTimeouts.Incr()
				resume()
			}
		case <-settled:
		case <-ctx.Done():
		}
	}()
}
