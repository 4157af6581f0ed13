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
	"testing"

	"github.com/lindb/common/pkg/encoding"
	"github.com/stretchr/testify/assert"

	"github.com/lindb/zenith/models"
)

// fakeLeaveController is a minimal Controller fake recording the
// HandleLeaveRequest calls a LivenessWatcher makes against it; every other
// Controller method panics if called, since LivenessWatcher never calls
// them.
type fakeLeaveController struct {
	Controller

	mu      sync.Mutex
	removed []models.NodeID
}

func (f *fakeLeaveController) HandleLeaveRequest(nodeID models.NodeID, callback func(err error)) {
	f.mu.Lock()
	f.removed = append(f.removed, nodeID)
	f.mu.Unlock()
	callback(nil)
}

func TestLivenessWatcher_OnDeleteRemovesKnownNode(t *testing.T) {
	n2 := testNode("n2", "10.0.0.2", 9001)
	controller := &fakeLeaveController{}
	watcher := NewLivenessWatcher(controller)

	resource := encoding.JSONMarshal(&n2)
	assert.NotEmpty(t, resource)
	watcher.OnCreate("/live/nodes/10.0.0.2:9001", resource)
	watcher.OnDelete("/live/nodes/10.0.0.2:9001")

	controller.mu.Lock()
	defer controller.mu.Unlock()
	assert.Equal(t, []models.NodeID{n2.ID}, controller.removed)
}

func TestLivenessWatcher_OnDeleteUnknownKeyIsNoop(t *testing.T) {
	controller := &fakeLeaveController{}
	watcher := NewLivenessWatcher(controller)

	watcher.OnDelete("/live/nodes/unknown:9001")

	controller.mu.Lock()
	defer controller.mu.Unlock()
	assert.Empty(t, controller.removed)
}

func TestLivenessWatcher_OnCreateIgnoresMalformedResource(t *testing.T) {
	controller := &fakeLeaveController{}
	watcher := NewLivenessWatcher(controller)

	watcher.OnCreate("/live/nodes/broken:9001", []byte("not json"))
	watcher.OnDelete("/live/nodes/broken:9001")

	controller.mu.Lock()
	defer controller.mu.Unlock()
	assert.Empty(t, controller.removed)
}
