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

// Package mapping coordinates put_mapping task batches on the cluster-state
// loop: per-index mapper-service lifecycle scoped to one batch, byte-equal
// fast-path acks, and mapping_version bumps iff the merged source changed.
package mapping

import (
	"bytes"
	"time"

	"github.com/lindb/common/pkg/logger"

	clusterstate "github.com/lindb/zenith/cluster/state"
	"github.com/lindb/zenith/metrics"
	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

var log = logger.GetLogger("Mapping", "Coordinator")

// PutMappingRequest proposes a new mapping source for an index.
type PutMappingRequest struct {
	Index  string
	Source []byte
}

// Coordinator executes mapping updates against the cluster-state loop.
type Coordinator interface {
	// PutMapping applies requests; callback fires once the local
	// cluster-state loop has processed the update task (acknowledged=true),
	// the task fails (acknowledged=false with the error), or ackTimeout
	// elapses first (acknowledged=false, no error). Acks from other nodes
	// are not awaited.
	PutMapping(requests []PutMappingRequest, ackTimeout time.Duration, callback func(acknowledged bool, err error))
}

// mapperService simulates merging a new mapping source into the current
// one; created per task batch, closed before the batch's task returns.
type mapperService struct {
	index   string
	current []byte
}

func newMapperService(index string, current []byte) *mapperService {
	return &mapperService{index: index, current: current}
}

// merge validates and merges proposed into the service's current source,
// returning the merged result. A real implementation would parse field
// trees and reject incompatible type changes; this simulates that step by
// always accepting the proposed source as the merge result, since no
// concrete mapping grammar is in scope.
func (m *mapperService) merge(proposed []byte) ([]byte, error) {
	if len(proposed) == 0 {
		return nil, errorpkg.New(errorpkg.Validation, "mapping source for %q is empty", m.index)
	}
	return proposed, nil
}

func (m *mapperService) close() {
	m.current = nil
}

type coordinator struct {
	loop  clusterstate.Loop
	stats *metrics.MappingStatistics
}

// NewCoordinator creates a mapping Coordinator driving tasks on loop.
func NewCoordinator(loop clusterstate.Loop) Coordinator {
	return &coordinator{loop: loop, stats: metrics.NewMappingStatistics()}
}

func (c *coordinator) PutMapping(requests []PutMappingRequest, ackTimeout time.Duration, callback func(acknowledged bool, err error)) {
	current := c.loop.CurrentState()
	pending := requests[:0:0]
	for _, req := range requests {
		if meta, ok := current.Indices[req.Index]; ok && bytes.Equal(meta.Mapping.Source, req.Source) {
			c.stats.FastPathAcks.Incr()
			continue
		}
		pending = append(pending, req)
	}
	if len(pending) == 0 {
		callback(true, nil)
		return
	}

	done := make(chan error, 1)
	c.stats.Updates.Incr()
	err := c.loop.Submit(&clusterstate.Task{
		Executor: "put_mapping",
		Priority: clusterstate.High,
		Execute: func(state *models.ClusterState) (*models.ClusterState, error) {
			next := state.Copy()
			changed := false
			services := make(map[string]*mapperService, len(pending))
			defer func() {
				for _, svc := range services {
					svc.close()
				}
			}()

			for _, req := range pending {
				meta, ok := next.Indices[req.Index]
				if !ok {
					return nil, errorpkg.New(errorpkg.Validation, "unknown index %q", req.Index)
				}
				svc, ok := services[req.Index]
				if !ok {
					svc = newMapperService(req.Index, meta.Mapping.Source)
					services[req.Index] = svc
				}
				if bytes.Equal(svc.current, req.Source) {
					continue
				}
				merged, err := svc.merge(req.Source)
				if err != nil {
					c.stats.UpdateFailures.Incr()
					return nil, err
				}
				if bytes.Equal(merged, meta.Mapping.Source) {
					c.stats.UpdateNoops.Incr()
					continue
				}
				updated := *meta
				updated.Mapping.Source = merged
				updated.Mapping.Version++
				next.Indices[req.Index] = &updated
				svc.current = merged
				changed = true
				c.stats.VersionBumps.Incr()
			}
			if !changed {
				return state, nil
			}
			return next, nil
		},
		OnFailure: func(err error) { done <- err },
		Ack:       func(err error) { done <- err },
	})
	if err != nil {
		callback(false, err)
		return
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			callback(false, err)
			return
		}
		callback(true, nil)
	case <-timer.C:
		c.stats.AckTimeouts.Incr()
		log.Warn("mapping ack timed out", logger.Int("requests", len(pending)))
		callback(false, nil)
	}
}
