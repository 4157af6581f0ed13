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

package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/lindb/common/pkg/encoding"
	"github.com/lindb/common/pkg/logger"
	"go.uber.org/atomic"

	"github.com/lindb/zenith/pkg/state"
)

//go:generate mockgen -source=./registry.go -destination=./registry_mock.go -package=discovery

var registryLog = logger.GetLogger("Coordinator", "Registry")

// Registry keeps one node's liveness entry alive in the repository via a
// leased heartbeat, re-registering automatically if the lease is lost.
type Registry interface {
	// Register starts the background heartbeat loop; returns immediately.
	Register() error
	// Deregister removes the node's liveness entry without stopping the
	// background loop (the next heartbeat tick recreates it).
	Deregister() error
	// IsSuccess returns whether the node is currently successfully registered.
	IsSuccess() bool
	// Close stops the background heartbeat loop.
	Close() error
}

// registry is the Registry implementation.
type registry struct {
	repo  state.Repository
	path  string
	node  interface{}
	ttl   int64

	ctx    context.Context
	cancel context.CancelFunc

	success atomic.Bool
	once    sync.Once
}

// NewRegistry creates a Registry that heartbeats node's JSON-encoded value
// at path under a lease of ttl milliseconds.
func NewRegistry(repo state.Repository, path string, node interface{}, ttl int64) Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &registry{
		repo:   repo,
		path:   path,
		node:   node,
		ttl:    ttl,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *registry) Register() error {
	r.once.Do(func() {
		go r.register()
	})
	return nil
}

// register runs the heartbeat/retry loop until the registry is closed.
func (r *registry) register() {
	retryInterval := time.Duration(r.ttl) * time.Millisecond / 2
	if retryInterval <= 0 {
		retryInterval = 10 * time.Millisecond
	}
	value := encoding.JSONMarshal(r.node)

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		closedCh, err := r.repo.Heartbeat(r.ctx, r.path, value, r.ttl)
		if err != nil {
			r.success.Store(false)
			registryLog.Warn("heartbeat node failed, retrying", logger.String("path", r.path), logger.Error(err))
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(retryInterval):
				continue
			}
		}

		r.success.Store(true)
		select {
		case <-r.ctx.Done():
			return
		case <-closedCh:
			r.success.Store(false)
			registryLog.Warn("heartbeat lease lost, re-registering", logger.String("path", r.path))
		}
	}
}

func (r *registry) Deregister() error {
	return r.repo.Delete(context.Background(), r.path)
}

func (r *registry) IsSuccess() bool {
	return r.success.Load()
}

func (r *registry) Close() error {
	r.cancel()
	return nil
}
