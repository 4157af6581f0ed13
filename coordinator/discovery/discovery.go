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

// Package discovery watches prefixes of the coordinator repository and
// turns create/modify/delete events into callbacks, the mechanism node
// liveness, master-elected and index-metadata watches are all built on.
package discovery

import (
	"context"

	"github.com/lindb/common/pkg/logger"

	"github.com/lindb/zenith/pkg/state"
)

//go:generate mockgen -source=./discovery.go -destination=./discovery_mock.go -package=discovery

var discoveryLog = logger.GetLogger("Coordinator", "Discovery")

// Listener receives callbacks for changes under a watched prefix.
type Listener interface {
	// OnCreate is invoked for each key present at watch start (if requested)
	// and for each subsequently created/modified key.
	OnCreate(key string, resource []byte)
	// OnDelete is invoked when a watched key is removed.
	OnDelete(key string)
}

// Discovery watches one prefix and dispatches to a Listener until closed.
type Discovery interface {
	// Discovery starts watching; if withInitialize is true the listener is
	// first invoked with every key already present under the prefix.
	Discovery(withInitialize bool) error
	// Close stops watching.
	Close()
}

// Factory creates Discovery instances bound to a shared repository.
type Factory interface {
	// CreateDiscovery creates a Discovery for the given prefix and listener.
	CreateDiscovery(prefix string, listener Listener) Discovery
}

type factory struct {
	ctx  context.Context
	repo state.Repository
}

// NewFactory creates a discovery Factory backed by repo.
func NewFactory(ctx context.Context, repo state.Repository) Factory {
	return &factory{ctx: ctx, repo: repo}
}

func (f *factory) CreateDiscovery(prefix string, listener Listener) Discovery {
	ctx, cancel := context.WithCancel(f.ctx)
	return &discovery{
		ctx:      ctx,
		cancel:   cancel,
		prefix:   prefix,
		repo:     f.repo,
		listener: listener,
	}
}

type discovery struct {
	ctx      context.Context
	cancel   context.CancelFunc
	prefix   string
	repo     state.Repository
	listener Listener
}

func (d *discovery) Discovery(withInitialize bool) error {
	events := d.repo.WatchPrefix(d.ctx, d.prefix, withInitialize)
	go d.handle(events)
	return nil
}

func (d *discovery) handle(events <-chan *state.WatchEvent) {
	for ev := range events {
		if ev.Err != nil {
			discoveryLog.Error("watch prefix failed", logger.String("prefix", d.prefix), logger.Error(ev.Err))
			continue
		}
		for _, kv := range ev.KeyValues {
			switch ev.Type {
			case state.EventTypeDelete:
				d.listener.OnDelete(kv.Key)
			default:
				d.listener.OnCreate(kv.Key, kv.Value)
			}
		}
	}
}

func (d *discovery) Close() {
	d.cancel()
}
