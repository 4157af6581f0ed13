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

package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lindb/common/pkg/logger"

	"github.com/lindb/zenith/cluster/join"
	clusterstate "github.com/lindb/zenith/cluster/state"
	"github.com/lindb/zenith/config"
	"github.com/lindb/zenith/constants"
	"github.com/lindb/zenith/coordinator/discovery"
	"github.com/lindb/zenith/models"
	"github.com/lindb/zenith/pkg/state"
	"github.com/lindb/zenith/transport/membership"
)

var runtimeLog = logger.GetLogger("Cmd", "Runtime")

// Runtime wires one node's collaborators together: the coordinator
// repository, the cluster-state loop, the join controller, its own
// liveness registration, and the membership grpc server.
type Runtime struct {
	cfg  *config.Node
	self models.Node

	ctx    context.Context
	cancel context.CancelFunc

	repo     state.Repository
	loop     clusterstate.Loop
	registry discovery.Registry
	server   *membership.Server
	liveness discovery.Discovery

	listener net.Listener
}

// NewRuntime constructs a Runtime for cfg. The node's ID is a fresh UUID:
// a restarted process is a new member, never a resurrection of its
// previous identity.
func NewRuntime(cfg *config.Node) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	self := models.Node{
		StatelessNode: models.StatelessNode{HostIP: cfg.Transport.HostIP, GRPCPort: cfg.Transport.GRPCPort},
		ID:            models.NodeID(uuid.New().String()),
		Roles:         []models.Role{models.RoleMasterEligible, models.RoleData, models.RoleIngest},
	}
	return &Runtime{cfg: cfg, self: self, ctx: ctx, cancel: cancel}
}

// Run starts every collaborator and begins accepting connections. It does
// not block; call Stop to shut down.
func (r *Runtime) Run() error {
	repoFactory := state.NewRepositoryFactory()
	repo, err := repoFactory.CreateRepo(r.ctx,
		r.cfg.Coordinator.Endpoints, time.Duration(r.cfg.Coordinator.Timeout), r.cfg.Coordinator.Namespace)
	if err != nil {
		return fmt.Errorf("create coordinator repository: %w", err)
	}
	r.repo = repo

	r.loop = clusterstate.NewLoop(r.ctx, models.NewClusterState("zenith"))
	r.loop.Start()

	controller := join.NewController(r.self, r.loop)
	r.server = membership.NewServer(controller)

	addr := fmt.Sprintf("%s:%d", r.self.HostIP, r.self.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	r.listener = lis
	go func() {
		if err := r.server.Serve(lis); err != nil {
			runtimeLog.Error("membership server stopped", logger.Error(err))
		}
	}()

	livenessPath := constants.GetLiveNodePath(r.self.Indicator())
	r.registry = discovery.NewRegistry(r.repo, livenessPath, r.self, int64(r.cfg.Coordinator.Timeout/time.Millisecond))
	if err := r.registry.Register(); err != nil {
		return fmt.Errorf("register liveness: %w", err)
	}

	watcher := join.NewLivenessWatcher(controller)
	r.liveness = discovery.NewFactory(r.ctx, r.repo).CreateDiscovery(constants.LiveNodesPath, watcher)
	if err := r.liveness.Discovery(true); err != nil {
		return fmt.Errorf("watch node liveness: %w", err)
	}

	runtimeLog.Info("node started",
		logger.String("id", string(r.self.ID)), logger.String("addr", addr))
	return nil
}

// Stop tears down every collaborator in reverse dependency order.
func (r *Runtime) Stop() {
	if r.liveness != nil {
		r.liveness.Close()
	}
	if r.registry != nil {
		_ = r.registry.Close()
	}
	if r.server != nil {
		r.server.Stop()
	}
	if r.loop != nil {
		r.loop.Stop()
	}
	if r.repo != nil {
		_ = r.repo.Close()
	}
	r.cancel()
}
