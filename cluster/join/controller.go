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
	"sync"
	"time"

	"github.com/lindb/common/pkg/logger"
	"go.uber.org/atomic"

	clusterstate "github.com/lindb/zenith/cluster/state"
	"github.com/lindb/zenith/metrics"
	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

//go:generate mockgen -source=./controller.go -destination=./controller_mock.go -package=join

var log = logger.GetLogger("Cluster", "JoinController")

// the reason id blocking writes cluster-wide while no master is elected;
// stored under Blocks.WriteBlocked[globalBlockKey].
const (
	globalBlockKey  = ""
	noMasterBlockID = uint32(1)
)

const (
	executorElection      = "election"
	executorProcessJoins  = "process_joins"
	executorProcessLeaves = "process_leaves"
	executorReroute       = "reroute"
)

// Controller is the node-join controller (C3): accumulates join requests
// during a campaign, commits them once a master is established, and
// submits the election task that promotes the local node to master.
type Controller interface {
	// StartAccumulating begins an election campaign; fails if one is
	// already running or the controller is already accumulating.
	StartAccumulating() error
	// WaitToBeElectedAsMaster creates the election context and blocks the
	// calling goroutine until it is elected, fails, or times out.
	WaitToBeElectedAsMaster(required int, timeout time.Duration) error
	// HandleJoinRequest admits node's join, coalescing retries under the
	// same node, and acks callback once the join is committed or fails.
	HandleJoinRequest(node models.Node, callback func(err error))
	// StopAccumulating flushes any buffered joins through a process_joins
	// task and leaves accumulating mode.
	StopAccumulating()
	// ValidateJoin runs the pre-vote check a join-validate call performs:
	// a candidate master broadcasts its proposed snapshot to every
	// voting node before it accumulates their joins, and each recipient
	// rejects it outright rather than casting a vote it cannot honor.
	// It never mutates local state.
	ValidateJoin(snapshot *models.ClusterState) error
	// HandleLeaveRequest removes nodeID from cluster state once the
	// removal commits, acking callback the same way HandleJoinRequest
	// acks a join. A leave for a node already absent acks without a new
	// publication, mirroring the join "already known" rule.
	HandleLeaveRequest(nodeID models.NodeID, callback func(err error))
}

type controller struct {
	self  models.Node
	loop  clusterstate.Loop
	stats *metrics.JoinStatistics

	accumulating atomic.Bool

	electMutex sync.Mutex
	elect      *electionContext

	pendingMutex sync.Mutex
	pending      map[models.NodeID][]func(error)
	pendingNodes map[models.NodeID]models.Node
}

// NewController creates a join Controller for the local node.
func NewController(self models.Node, loop clusterstate.Loop) Controller {
	return &controller{
		self:         self,
		loop:         loop,
		stats:        metrics.NewJoinStatistics(),
		pending:      make(map[models.NodeID][]func(error)),
		pendingNodes: make(map[models.NodeID]models.Node),
	}
}

func (c *controller) StartAccumulating() error {
	c.electMutex.Lock()
	defer c.electMutex.Unlock()
	if c.accumulating.Load() {
		return errorpkg.New(errorpkg.Fatal, "already accumulating joins")
	}
	if c.elect != nil {
		return errorpkg.New(errorpkg.Fatal, "election context already exists")
	}
	c.accumulating.Store(true)
	return nil
}

func (c *controller) WaitToBeElectedAsMaster(required int, timeout time.Duration) error {
	c.electMutex.Lock()
	if c.elect != nil {
		c.electMutex.Unlock()
		return errorpkg.New(errorpkg.Fatal, "election context already exists")
	}
	done := make(chan error, 1)
	ctx := newElectionContext(required, func(err error) { done <- err })
	c.elect = ctx
	c.electMutex.Unlock()

	c.stats.Elections.Incr()
	c.checkQuorum(ctx)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		c.clearElectionContext(ctx)
		if err != nil {
			c.stats.ElectionFailures.Incr()
		}
		return err
	case <-timer.C:
		c.stats.ElectionTimeouts.Incr()
		timeoutErr := errorpkg.New(errorpkg.Timeout, "master election timed out")
		ctx.complete(timeoutErr)
		c.clearElectionContext(ctx)
		c.drainPending(timeoutErr)
		return timeoutErr
	}
}

func (c *controller) clearElectionContext(ctx *electionContext) {
	c.electMutex.Lock()
	defer c.electMutex.Unlock()
	if c.elect == ctx {
		c.elect = nil
	}
	c.accumulating.Store(false)
}

// checkQuorum re-evaluates whether enough distinct nodes have joined to
// submit the promotion task; safe to call repeatedly, the CAS gate on the
// election context ensures only the first caller to reach quorum submits.
func (c *controller) checkQuorum(ctx *electionContext) {
	c.pendingMutex.Lock()
	count := len(c.pendingNodes)
	nodes := make([]models.Node, 0, count)
	for _, n := range c.pendingNodes {
		nodes = append(nodes, n)
	}
	c.pendingMutex.Unlock()

	if count < ctx.required {
		return
	}
	if !ctx.tryStartPromotion() {
		return
	}
	c.submitElectionTask(ctx, nodes)
}

func (c *controller) submitElectionTask(ctx *electionContext, joiningNodes []models.Node) {
	task := &clusterstate.Task{
		Executor: executorElection,
		Priority: clusterstate.Immediate,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			if current.MasterID != "" && current.MasterID != c.self.ID {
				return nil, errorpkg.New(errorpkg.NotMaster, "another master (%s) already elected", current.MasterID)
			}
			next := current.Copy()
			next.MasterID = c.self.ID
			next.Blocks.UnblockWrites(globalBlockKey, noMasterBlockID)
			applyJoins(next, append(joiningNodes, c.self))
			return next, nil
		},
		OnFailure: func(err error) {
			ctx.complete(err)
			c.drainPending(err)
		},
		Ack: func(err error) {
			if err != nil {
				ctx.complete(err)
				c.drainPending(err)
				return
			}
			c.loop.SetMaster(true)
			ctx.complete(nil)
			c.ackAndClearPending(joiningNodes, nil)
			c.scheduleReroute("post_election")
		},
	}
	if err := c.loop.Submit(task); err != nil {
		ctx.complete(err)
		c.drainPending(err)
	}
}

func (c *controller) HandleJoinRequest(node models.Node, callback func(err error)) {
	if c.accumulating.Load() {
		c.pendingMutex.Lock()
		c.pending[node.ID] = append(c.pending[node.ID], callback)
		c.pendingNodes[node.ID] = node
		c.pendingMutex.Unlock()

		c.electMutex.Lock()
		ctx := c.elect
		c.electMutex.Unlock()
		if ctx != nil {
			c.checkQuorum(ctx)
		}
		return
	}
	c.pendingMutex.Lock()
	c.pending[node.ID] = append(c.pending[node.ID], callback)
	c.pendingNodes[node.ID] = node
	c.pendingMutex.Unlock()
	c.submitProcessJoins()
}

func (c *controller) StopAccumulating() {
	c.pendingMutex.Lock()
	hasPending := len(c.pendingNodes) > 0
	c.pendingMutex.Unlock()

	c.accumulating.Store(false)
	if hasPending {
		c.submitProcessJoins()
	}
}

// submitProcessJoins commits the currently buffered joins via a URGENT
// task, taking a stable snapshot of the pending map under its lock and
// invoking callbacks outside the lock once the batch resolves.
func (c *controller) submitProcessJoins() {
	c.pendingMutex.Lock()
	nodes := make([]models.Node, 0, len(c.pendingNodes))
	for _, n := range c.pendingNodes {
		nodes = append(nodes, n)
	}
	c.pendingMutex.Unlock()

	if len(nodes) == 0 {
		return
	}

	task := &clusterstate.Task{
		Executor: executorProcessJoins,
		Priority: clusterstate.Urgent,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			next := current.Copy()
			changed := applyJoins(next, nodes)
			if !changed {
				return current, nil
			}
			return next, nil
		},
		OnNoLongerMaster: func() {
			c.drainPending(errorpkg.New(errorpkg.NotMaster, "local node is no longer master"))
		},
		Ack: func(err error) {
			c.ackAndClearPending(nodes, err)
			if err == nil {
				c.scheduleReroute("post_node_add")
			}
		},
	}
	_ = c.loop.Submit(task)
}

// applyJoins adds each joining node to state, evicting any existing node
// that shares its transport address, and returns whether state changed.
func applyJoins(state *models.ClusterState, nodes []models.Node) bool {
	changed := false
	for _, n := range nodes {
		if _, exists := state.Nodes[n.ID]; exists {
			// already known by identifier: ack without changing state.
			continue
		}
		for id, existing := range state.Nodes {
			if existing.Indicator() == n.Indicator() {
				log.Warn("evicting node sharing transport address",
					logger.String("evicted", string(id)), logger.String("joining", string(n.ID)))
				delete(state.Nodes, id)
				changed = true
			}
		}
		state.Nodes[n.ID] = n
		changed = true
	}
	return changed
}

// ackAndClearPending acks every pending callback for nodes and removes
// them from the pending map; a panicking callback is logged, not fatal.
func (c *controller) ackAndClearPending(nodes []models.Node, err error) {
	c.pendingMutex.Lock()
	var callbacks []func(error)
	for _, n := range nodes {
		callbacks = append(callbacks, c.pending[n.ID]...)
		delete(c.pending, n.ID)
		delete(c.pendingNodes, n.ID)
	}
	c.pendingMutex.Unlock()

	for _, cb := range callbacks {
		invokeCallback(cb, err)
	}
}

// drainPending fails every currently buffered join callback with err and
// clears the pending map.
func (c *controller) drainPending(err error) {
	c.pendingMutex.Lock()
	var callbacks []func(error)
	for _, cbs := range c.pending {
		callbacks = append(callbacks, cbs...)
	}
	c.pending = make(map[models.NodeID][]func(error))
	c.pendingNodes = make(map[models.NodeID]models.Node)
	c.pendingMutex.Unlock()

	for _, cb := range callbacks {
		invokeCallback(cb, err)
	}
}

func invokeCallback(cb func(error), err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in join callback", logger.Error(errorpkg.FromRecover(r)))
		}
	}()
	cb(err)
}

func (c *controller) ValidateJoin(snapshot *models.ClusterState) error {
	local := c.loop.CurrentState()
	if snapshot.ClusterName != local.ClusterName {
		return errorpkg.New(errorpkg.Validation,
			"cluster name mismatch: candidate %q, local %q", snapshot.ClusterName, local.ClusterName)
	}
	if snapshot.Version < local.Version {
		return errorpkg.New(errorpkg.Validation,
			"candidate state version %d is stale against local version %d", snapshot.Version, local.Version)
	}
	return nil
}

func (c *controller) HandleLeaveRequest(nodeID models.NodeID, callback func(err error)) {
	task := &clusterstate.Task{
		Executor: executorProcessLeaves,
		Priority: clusterstate.Urgent,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			if _, exists := current.Nodes[nodeID]; !exists {
				return current, nil
			}
			next := current.Copy()
			delete(next.Nodes, nodeID)
			return next, nil
		},
		OnNoLongerMaster: func() {
			invokeCallback(callback, errorpkg.New(errorpkg.NotMaster, "local node is no longer master"))
		},
		Ack: func(err error) {
			invokeCallback(callback, err)
			if err == nil {
				c.scheduleReroute("post_node_remove")
			}
		},
	}
	if err := c.loop.Submit(task); err != nil {
		invokeCallback(callback, err)
	}
}

// scheduleReroute submits a separate NORMAL task under its own executor
// label so the reroute never runs synchronously inside the task that
// triggered it (spec's cyclic-dependency break).
func (c *controller) scheduleReroute(reason string) {
	_ = c.loop.Submit(&clusterstate.Task{
		Executor: executorReroute,
		Priority: clusterstate.Normal,
		Execute: func(current *models.ClusterState) (*models.ClusterState, error) {
			log.Info("reroute scheduled", logger.String("reason", reason))
			// routing recomputation is owned by a lower-layer collaborator;
			// this task only marks the cluster state as having observed it.
			return current, nil
		},
	})
}
