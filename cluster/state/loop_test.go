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

package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lindb/zenith/models"
)

func newTestLoop() *loop {
	l := NewLoop(context.Background(), models.NewClusterState("test")).(*loop)
	l.SetMaster(true)
	l.Start()
	return l
}

func TestLoop_SubmitAndPublish(t *testing.T) {
	l := newTestLoop()
	defer l.Stop()

	var published *models.ClusterState
	var mutex sync.Mutex
	l.Subscribe(func(cs *models.ClusterState) {
		mutex.Lock()
		published = cs
		mutex.Unlock()
	})

	done := make(chan struct{})
	err := l.Submit(&Task{
		Executor: "test",
		Priority: Normal,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			next := current.Copy()
			next.MasterID = "n1"
			return next, nil
		},
		Ack: func(err error) {
			assert.NoError(t, err)
			close(done)
		},
	})
	assert.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ack")
	}

	mutex.Lock()
	defer mutex.Unlock()
	assert.NotNil(t, published)
	assert.Equal(t, models.NodeID("n1"), published.MasterID)
	assert.Equal(t, int64(1), published.Version)
}

func TestLoop_PriorityOrder(t *testing.T) {
	l := NewLoop(context.Background(), models.NewClusterState("test")).(*loop)
	l.SetMaster(true)
	defer l.Stop()

	var mutex sync.Mutex
	var order []string
	record := func(name string) func(err error) {
		return func(err error) {
			mutex.Lock()
			order = append(order, name)
			mutex.Unlock()
		}
	}
	noop := func(current *models.ClusterState) (*models.ClusterState, error) {
		return current.Copy(), nil
	}

	// queue all three before starting the dispatcher so priority ordering
	// (not arrival timing) decides execution order.
	_ = l.Submit(&Task{Executor: "a", Priority: Normal, Execute: noop, Ack: record("normal")})
	_ = l.Submit(&Task{Executor: "b", Priority: High, Execute: noop, Ack: record("high")})
	_ = l.Submit(&Task{Executor: "c", Priority: Immediate, Execute: noop, Ack: record("immediate")})
	l.Start()

	assert.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(order) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, []string{"immediate", "high", "normal"}, order)
}

func TestLoop_OnNoLongerMaster(t *testing.T) {
	l := NewLoop(context.Background(), models.NewClusterState("test")).(*loop)
	l.Start()
	defer l.Stop()
	// never set master: stays false.

	called := make(chan struct{})
	executed := false
	err := l.Submit(&Task{
		Executor: "a",
		Priority: Normal,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			executed = true
			return current.Copy(), nil
		},
		OnNoLongerMaster: func() {
			close(called)
		},
	})
	assert.NoError(t, err)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnNoLongerMaster")
	}
	assert.False(t, executed)
}

func TestLoop_FailureDoesNotBlockOthers(t *testing.T) {
	l := newTestLoop()
	defer l.Stop()

	failed := make(chan struct{})
	succeeded := make(chan struct{})

	_ = l.Submit(&Task{
		Executor: "a",
		Priority: Normal,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			return nil, assert.AnError
		},
		OnFailure: func(err error) { close(failed) },
	})
	_ = l.Submit(&Task{
		Executor: "a",
		Priority: Normal,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			return current.Copy(), nil
		},
		Ack: func(err error) { close(succeeded) },
	})

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure")
	}
	select {
	case <-succeeded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for success")
	}
}

func TestLoop_SubmitAfterStopRejected(t *testing.T) {
	l := newTestLoop()
	l.Stop()

	called := make(chan error, 1)
	err := l.Submit(&Task{
		Executor: "a",
		Priority: Normal,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			return current.Copy(), nil
		},
		Ack: func(err error) { called <- err },
	})
	assert.Error(t, err)
	select {
	case ackErr := <-called:
		assert.Error(t, ackErr)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack")
	}
}
