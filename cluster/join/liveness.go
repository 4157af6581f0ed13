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

	"github.com/lindb/common/pkg/encoding"
	"github.com/lindb/common/pkg/logger"

	"github.com/lindb/zenith/models"
)

// LivenessWatcher turns liveness-registry deletions into the same removal
// path an explicit leave request takes. It implements discovery.Listener;
// the caller is responsible for creating a Discovery over the liveness
// prefix and starting it with withInitialize true so every already-live
// node is known before any delete can arrive.
type LivenessWatcher struct {
	controller Controller

	mu      sync.Mutex
	nodeIDs map[string]models.NodeID // registry key -> node ID
}

// NewLivenessWatcher returns a LivenessWatcher that removes nodes from
// cluster state through controller once their liveness registration
// disappears.
func NewLivenessWatcher(controller Controller) *LivenessWatcher {
	return &LivenessWatcher{
		controller: controller,
		nodeIDs:    make(map[string]models.NodeID),
	}
}

// OnCreate records the node ID a liveness key belongs to.
func (w *LivenessWatcher) OnCreate(key string, resource []byte) {
	node := &models.Node{}
	if err := encoding.JSONUnmarshal(resource, node); err != nil {
		log.Warn("unmarshal live node registration error", logger.String("key", key), logger.Error(err))
		return
	}
	w.mu.Lock()
	w.nodeIDs[key] = node.ID
	w.mu.Unlock()
}

// OnDelete removes the node the expired/deregistered key belongs to. A
// key this watcher never saw created (e.g. it missed the initial listing)
// is ignored; there is nothing to remove.
func (w *LivenessWatcher) OnDelete(key string) {
	w.mu.Lock()
	nodeID, ok := w.nodeIDs[key]
	if ok {
		delete(w.nodeIDs, key)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	w.controller.HandleLeaveRequest(nodeID, func(err error) {
		if err != nil {
			log.Warn("remove node on liveness expiry failed",
				logger.String("nodeID", string(nodeID)), logger.Error(err))
		}
	})
}
