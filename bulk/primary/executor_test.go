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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	clusterstate "github.com/lindb/zenith/cluster/state"
	"github.com/lindb/zenith/internal/concurrent"
	"github.com/lindb/zenith/metrics"
	"github.com/lindb/zenith/models"
)

func newExecutorTestDeps(t *testing.T, index string) (clusterstate.Loop, concurrent.Pool) {
	t.Helper()
	state := models.NewClusterState("test")
	state.Indices[index] = &models.IndexMetadata{Name: index, Mapping: models.MappingMetadata{Version: 1}}
	loop := clusterstate.NewLoop(context.Background(), state)
	loop.SetMaster(true)
	loop.Start()
	t.Cleanup(loop.Stop)

	pool := concurrent.NewPool("bulk-primary-test", 4, time.Second, metrics.NewConcurrentStatistics())
	t.Cleanup(pool.Stop)
	return loop, pool
}

// stubTranslator is used only by tests whose items are never OpUpdate, so
// its merge behavior is irrelevant; it exists to satisfy the constructor.
func stubTranslator() UpdateTranslator {
	engine := NewInMemoryEngine()
	return NewUpdateTranslator(engine, func(stored map[string]interface{}, item models.BulkItemRequest) (map[string]interface{}, bool) {
		return item.Doc, true
	})
}

func TestExecutor_AllItemsSucceedInOrder(t *testing.T) {
	loop, pool := newExecutorTestDeps(t, "orders")
	engine := NewInMemoryEngine()
	exec := NewExecutor("orders", models.ShardID(0), engine, stubTranslator(), loop, pool,
		func(string, models.BulkItemRequest) {}, time.Second)

	req := &models.BulkShardRequest{
		Index:   "orders",
		ShardID: 0,
		Items: []models.BulkItemRequest{
			{OpType: models.OpIndex, ID: "1"},
			{OpType: models.OpIndex, ID: "2"},
			{OpType: models.OpIndex, ID: "3"},
		},
	}

	done := make(chan struct{})
	var resp *models.BulkShardResponse
	var rep *models.ReplicaShardRequest
	exec.Execute(context.Background(), req, func(r *models.BulkShardResponse, rr *models.ReplicaShardRequest) {
		resp, rep = r, rr
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bulk execution")
	}

	assert.Len(t, resp.Items, 3)
	for i, item := range resp.Items {
		assert.False(t, item.Failed)
		assert.Equal(t, req.Items[i].ID, item.ID)
		assert.Greater(t, item.SeqNo, int64(0))
	}
	assert.Len(t, rep.Items, 3)
	for i, item := range rep.Items {
		assert.Equal(t, models.ReplicaNormal, item.Mode)
		assert.Equal(t, req.Items[i].ID, item.Item.ID)
	}
	// sequence numbers assigned in input order.
	assert.True(t, rep.Items[0].SeqNo < rep.Items[1].SeqNo)
	assert.True(t, rep.Items[1].SeqNo < rep.Items[2].SeqNo)
}

func TestExecutor_MappingUpdateRequiredSuspendsAndResumes(t *testing.T) {
	loop, pool := newExecutorTestDeps(t, "orders")
	engine := NewInMemoryEngine()
	requested := make(chan string, 1)
	exec := NewExecutor("orders", models.ShardID(0), engine, stubTranslator(), loop, pool,
		func(index string, item models.BulkItemRequest) {
			requested <- item.ID
			go func() {
				_ = loop.Submit(&clusterstate.Task{
					Executor: "put_mapping",
					Priority: clusterstate.High,
					Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
						next := current.Copy()
						meta := *next.Indices["orders"]
						meta.Mapping.Version = 2
						next.Indices["orders"] = &meta
						return next, nil
					},
				})
			}()
		}, 5*time.Second)

	req := &models.BulkShardRequest{
		Index:   "orders",
		ShardID: 0,
		Items: []models.BulkItemRequest{
			{OpType: models.OpIndex, ID: "1", RequiredMappingVersion: 2},
		},
	}

	done := make(chan struct{})
	var resp *models.BulkShardResponse
	exec.Execute(context.Background(), req, func(r *models.BulkShardResponse, _ *models.ReplicaShardRequest) {
		resp = r
		close(done)
	})

	select {
	case id := <-requested:
		assert.Equal(t, "1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mapping request")
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for resumed execution")
	}
	assert.False(t, resp.Items[0].Failed)
	assert.Greater(t, resp.Items[0].SeqNo, int64(0))
}

func TestExecutor_VersionConflictRetriesThenFails(t *testing.T) {
	loop, pool := newExecutorTestDeps(t, "orders")
	engine := NewInMemoryEngine()
	conflictingLookup := &fixedLookup{seqNo: 99, version: 1, found: true}
	translator := NewUpdateTranslator(conflictingLookup, func(stored map[string]interface{}, item models.BulkItemRequest) (map[string]interface{}, bool) {
		return item.Doc, true
	})
	exec := NewExecutor("orders", models.ShardID(0), engine, translator, loop, pool,
		func(string, models.BulkItemRequest) {}, time.Second)

	req := &models.BulkShardRequest{
		Index:   "orders",
		ShardID: 0,
		Items: []models.BulkItemRequest{
			{OpType: models.OpUpdate, ID: "1", IfSeqNo: 1, RetryOnConflict: 2},
		},
	}

	done := make(chan struct{})
	var resp *models.BulkShardResponse
	exec.Execute(context.Background(), req, func(r *models.BulkShardResponse, _ *models.ReplicaShardRequest) {
		resp = r
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for execution")
	}
	assert.True(t, resp.Items[0].Failed)
	assert.Equal(t, int64(3), conflictingLookup.calls)
}

// fixedLookup always reports a stored seq_no that mismatches the item's
// if_seq_no, forcing a version conflict on every Translate call.
type fixedLookup struct {
	seqNo, version int64
	found          bool
	calls          int64
}

func (f *fixedLookup) CurrentVersion(id string) (int64, int64, bool) {
	f.calls++
	return f.seqNo, f.version, f.found
}
