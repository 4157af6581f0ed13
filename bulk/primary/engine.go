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

// Package primary implements the bulk primary executor (C5): a per-shard
// cooperative state machine that translates, executes and finalizes the
// ordered items of a bulk shard request, suspending on a writer pool when
// a mapping update is required.
package primary

import (
	"sync"

	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

// ExecResult is the outcome the shard engine reports for one applied item.
type ExecResult int

const (
	ExecSuccess ExecResult = iota
	ExecFailure
	ExecMappingUpdateRequired
)

// Engine applies a translated index/delete operation to one primary shard.
type Engine interface {
	// Execute applies item, assuming mappingVersion is the engine's
	// currently known mapping version for the item's index; returns the
	// assigned sequence number (0 when no seq-no was assigned, i.e. on
	// MAPPING_UPDATE_REQUIRED) and the resulting version on success.
	Execute(item models.BulkItemRequest, mappingVersion int64) (seqNo int64, version int64, result ExecResult, err error)
}

// docRecord is one stored document's current version/seq-no.
type docRecord struct {
	version int64
	seqNo   int64
	deleted bool
}

// InMemoryEngine is a minimal single-shard document store simulating the
// version bookkeeping and mapping-gap behavior a real shard engine
// exhibits, used both for production composition (no on-disk storage
// engine is in scope) and for tests.
type InMemoryEngine struct {
	mutex   sync.Mutex
	docs    map[string]*docRecord
	nextSeq int64
}

// NewInMemoryEngine creates an empty shard document store.
func NewInMemoryEngine() *InMemoryEngine {
	return &InMemoryEngine{docs: make(map[string]*docRecord)}
}

// CurrentVersion implements CurrentVersionLookup for UpdateTranslator.
func (e *InMemoryEngine) CurrentVersion(id string) (seqNo int64, version int64, found bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	rec, ok := e.docs[id]
	if !ok || rec.deleted {
		return 0, 0, false
	}
	return rec.seqNo, rec.version, true
}

func (e *InMemoryEngine) Execute(item models.BulkItemRequest, mappingVersion int64) (int64, int64, ExecResult, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if item.RequiredMappingVersion > mappingVersion {
		return 0, 0, ExecMappingUpdateRequired, nil
	}

	switch item.OpType {
	case models.OpDelete:
		rec, ok := e.docs[item.ID]
		if !ok {
			return 0, 0, ExecFailure, errorpkg.New(errorpkg.Validation, "document %q not found", item.ID)
		}
		e.nextSeq++
		rec.seqNo = e.nextSeq
		rec.deleted = true
		return rec.seqNo, rec.version, ExecSuccess, nil
	default:
		rec, ok := e.docs[item.ID]
		if !ok {
			rec = &docRecord{version: 0}
			e.docs[item.ID] = rec
		}
		rec.version++
		e.nextSeq++
		rec.seqNo = e.nextSeq
		rec.deleted = false
		return rec.seqNo, rec.version, ExecSuccess, nil
	}
}
