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

package join

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	clusterstate "github.com/lindb/zenith/cluster/state"
	errorpkg "github.com/lindb/zenith/pkg/errors"
	"github.com/lindb/zenith/models"
)

func testNode(id, host string, port uint32) models.Node {
	return models.Node{
		StatelessNode: models.StatelessNode{HostIP: host, GRPCPort: port},
		ID:            models.NodeID(id),
		Roles:         []models.Role{models.RoleMasterEligible},
	}
}

func newJoinTestLoop(t *testing.T) clusterstate.Loop {
	t.Helper()
	l := clusterstate.NewLoop(context.Background(), models.NewClusterState("test"))
	l.Start()
	t.Cleanup(l.Stop)
	return l
}

// TestController_ElectionWithQuorum mirrors the "election with quorum"
// scenario: three master-eligible nodes, required_master_joins=2; n1 starts
// accumulating and n1+n2 join within the timeout.
func TestController_ElectionWithQuorum(t *testing.T) {
	loop := newJoinTestLoop(t)
	n1 := testNode("n1", "10.0.0.1", 9001)
	n2 := testNode("n2", "10.0.0.2", 9001)

	c := NewController(n1, loop)
	assert.NoError(t, c.StartAccumulating())

	var wg sync.WaitGroup
	wg.Add(1)
	var electErr error
	go func() {
		defer wg.Done()
		electErr = c.WaitToBeElectedAsMaster(2, 10*time.Second)
	}()

	joined := make(chan error, 2)
	c.HandleJoinRequest(n1, func(err error) { joined <- err })
	c.HandleJoinRequest(n2, func(err error) { joined <- err })

	wg.Wait()
	assert.NoError(t, electErr)

	for i := 0; i < 2; i++ {
		select {
		case err := <-joined:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for join ack")
		}
	}

	state := loop.CurrentState()
	assert.Equal(t, models.NodeID("n1"), state.MasterID)
	assert.Contains(t, state.Nodes, models.NodeID("n1"))
	assert.Contains(t, state.Nodes, models.NodeID("n2"))
	assert.False(t, state.Blocks.IsWriteBlocked(globalBlockKey))
}

// TestController_ElectionTimeout mirrors the "election timeout" scenario:
// only one of two required joins arrives before the deadline.
func TestController_ElectionTimeout(t *testing.T) {
	loop := newJoinTestLoop(t)
	n1 := testNode("n1", "10.0.0.1", 9001)

	c := NewController(n1, loop)
	assert.NoError(t, c.StartAccumulating())

	joined := make(chan error, 1)
	c.HandleJoinRequest(n1, func(err error) { joined <- err })

	err := c.WaitToBeElectedAsMaster(2, 500*time.Millisecond)
	assert.Error(t, err)
	assert.True(t, errorpkg.Is(err, errorpkg.Timeout))

	select {
	case ackErr := <-joined:
		assert.Error(t, ackErr)
		assert.True(t, errorpkg.Is(ackErr, errorpkg.Timeout))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for drained join callback")
	}

	assert.Equal(t, models.NodeID(""), loop.CurrentState().MasterID)
}

// TestController_AlreadyKnownNodeAcksWithoutPublish covers the
// already-present-by-identifier commit rule: re-joining with the same
// NodeID after commit acks without a new publication.
func TestController_AlreadyKnownNodeAcksWithoutPublish(t *testing.T) {
	loop := newJoinTestLoop(t)
	loop.SetMaster(true)
	n1 := testNode("n1", "10.0.0.1", 9001)

	c := NewController(n1, loop)
	first := make(chan error, 1)
	c.HandleJoinRequest(n1, func(err error) { first <- err })
	select {
	case err := <-first:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on first join")
	}
	versionAfterFirst := loop.CurrentState().Version

	second := make(chan error, 1)
	c.HandleJoinRequest(n1, func(err error) { second <- err })
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on second join")
	}

	assert.Equal(t, versionAfterFirst, loop.CurrentState().Version)
}

// TestController_SameTransportAddressEviction covers the eviction rule: a
// new node joining with a different NodeID but the same transport address
// as an existing node evicts the existing entry in the same publication.
func TestController_SameTransportAddressEviction(t *testing.T) {
	loop := newJoinTestLoop(t)
	loop.SetMaster(true)
	n1 := testNode("n1", "10.0.0.1", 9001)
	restarted := testNode("n1-restarted", "10.0.0.1", 9001)

	c := NewController(n1, loop)
	first := make(chan error, 1)
	c.HandleJoinRequest(n1, func(err error) { first <- err })
	select {
	case err := <-first:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on first join")
	}
	assert.Contains(t, loop.CurrentState().Nodes, models.NodeID("n1"))

	second := make(chan error, 1)
	c.HandleJoinRequest(restarted, func(err error) { second <- err })
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on second join")
	}

	state := loop.CurrentState()
	assert.NotContains(t, state.Nodes, models.NodeID("n1"))
	assert.Contains(t, state.Nodes, models.NodeID("n1-restarted"))
}

// TestController_ValidateJoinRejectsClusterNameMismatch covers the
// join-validate pre-vote check: a candidate snapshot naming a different
// cluster is rejected without touching local state.
func TestController_ValidateJoinRejectsClusterNameMismatch(t *testing.T) {
	loop := newJoinTestLoop(t)
	n1 := testNode("n1", "10.0.0.1", 9001)
	c := NewController(n1, loop)

	foreign := models.NewClusterState("other-cluster")
	err := c.ValidateJoin(foreign)
	assert.Error(t, err)
	assert.True(t, errorpkg.Is(err, errorpkg.Validation))

	matching := models.NewClusterState("test")
	matching.Version = loop.CurrentState().Version
	assert.NoError(t, c.ValidateJoin(matching))
}

// TestController_ValidateJoinRejectsStaleVersion covers rejecting a
// candidate snapshot whose version trails the locally known one.
func TestController_ValidateJoinRejectsStaleVersion(t *testing.T) {
	loop := newJoinTestLoop(t)
	n1 := testNode("n1", "10.0.0.1", 9001)
	c := NewController(n1, loop)

	joined := make(chan error, 1)
	loop.SetMaster(true)
	c.HandleJoinRequest(n1, func(err error) { joined <- err })
	select {
	case err := <-joined:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on join")
	}

	stale := models.NewClusterState("test")
	stale.Version = 0
	err := c.ValidateJoin(stale)
	assert.Error(t, err)
	assert.True(t, errorpkg.Is(err, errorpkg.Validation))
}

// TestController_HandleLeaveRequestRemovesNode covers an explicit leave
// committing the node's removal and acking the callback.
func TestController_HandleLeaveRequestRemovesNode(t *testing.T) {
	loop := newJoinTestLoop(t)
	n1 := testNode("n1", "10.0.0.1", 9001)
	n2 := testNode("n2", "10.0.0.2", 9001)
	loop.SetMaster(true)

	c := NewController(n1, loop)
	joined := make(chan error, 1)
	c.HandleJoinRequest(n2, func(err error) { joined <- err })
	select {
	case err := <-joined:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on join")
	}
	assert.Contains(t, loop.CurrentState().Nodes, models.NodeID("n2"))

	left := make(chan error, 1)
	c.HandleLeaveRequest(models.NodeID("n2"), func(err error) { left <- err })
	select {
	case err := <-left:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on leave")
	}
	assert.NotContains(t, loop.CurrentState().Nodes, models.NodeID("n2"))
}

// TestController_HandleLeaveRequestAbsentNodeAcksWithoutPublish covers
// leaving a node that was never a member: acks success without bumping
// the published state version.
func TestController_HandleLeaveRequestAbsentNodeAcksWithoutPublish(t *testing.T) {
	loop := newJoinTestLoop(t)
	n1 := testNode("n1", "10.0.0.1", 9001)
	loop.SetMaster(true)
	c := NewController(n1, loop)

	versionBefore := loop.CurrentState().Version
	left := make(chan error, 1)
	c.HandleLeaveRequest(models.NodeID("ghost"), func(err error) { left <- err })
	select {
	case err := <-left:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on leave")
	}
	assert.Equal(t, versionBefore, loop.CurrentState().Version)
}
