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

// Package replica implements the bulk replica executor (C6): applying a
// primary's already-decided per-item outcome to one replica copy of a
// shard, idempotently against re-delivery of the same sequence number.
package replica

import (
	"sync"

	"github.com/lindb/zenith/models"
)

// ApplyResult is the outcome the replica engine reports for one applied item.
type ApplyResult int

const (
	ApplySuccess ApplyResult = iota
	// ApplyAlreadyApplied means seqNo was already committed on this
	// replica; the caller must treat this as a no-op, not a failure, so
	// re-delivery of the same replication batch stays idempotent.
	ApplyAlreadyApplied
	ApplyMappingUpdateRequired
)

// Engine applies a primary-decided operation to one replica shard.
type Engine interface {
	// Apply applies item at seqNo/version, assuming mappingVersion is the
	// engine's currently known mapping version for the item's index.
	Apply(item models.BulkItemRequest, seqNo, version, mappingVersion int64) (ApplyResult, error)
	// MarkNoop commits seqNo as a no-op without applying any document
	// change, used for the FAILURE replica mode where the primary had
	// already assigned a sequence number before failing.
	MarkNoop(seqNo int64) ApplyResult
}

type replicaDocRecord struct {
	version int64
	seqNo   int64
	deleted bool
}

// InMemoryEngine is a minimal single-shard replica store that tracks
// applied sequence numbers for idempotent re-delivery, mirroring the
// version bookkeeping of the primary's InMemoryEngine.
type InMemoryEngine struct {
	mutex      sync.Mutex
	docs       map[string]*replicaDocRecord
	appliedSeq map[int64]bool
}

// NewInMemoryEngine creates an empty replica document store.
func NewInMemoryEngine() *InMemoryEngine {
	return &InMemoryEngine{
		docs:       make(map[string]*replicaDocRecord),
		appliedSeq: make(map[int64]bool),
	}
}

func (e *InMemoryEngine) Apply(item models.BulkItemRequest, seqNo, version, mappingVersion int64) (ApplyResult, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if item.RequiredMappingVersion > mappingVersion {
		return ApplyMappingUpdateRequired, nil
	}
	if e.appliedSeq[seqNo] {
		return ApplyAlreadyApplied, nil
	}
	e.appliedSeq[seqNo] = true

	if item.OpType == models.OpDelete {
		if rec, ok := e.docs[item.ID]; ok {
			rec.deleted = true
			rec.seqNo = seqNo
			rec.version = version
		}
		return ApplySuccess, nil
	}
	e.docs[item.ID] = &replicaDocRecord{version: version, seqNo: seqNo}
	return ApplySuccess, nil
}

func (e *InMemoryEngine) MarkNoop(seqNo int64) ApplyResult {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.appliedSeq[seqNo] {
		return ApplyAlreadyApplied
	}
	e.appliedSeq[seqNo] = true
	return ApplySuccess
}
