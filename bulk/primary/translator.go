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

package primary

import (
	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

// UpdateTranslator turns an `update` item into either a NOOP or an index
// operation by reading the document's currently stored version/seq-no; it
// reports a VersionConflict when the item's if_seq_no precondition no
// longer matches what is stored. An update never translates to a delete.
type UpdateTranslator interface {
	// Translate returns the derived operation (always OpIndex), whether
	// the update was a no-op (nothing to apply), or a VersionConflict/
	// Validation error.
	Translate(item models.BulkItemRequest) (translated models.BulkItemRequest, noop bool, err error)
}

// CurrentVersionLookup reports the currently stored version/seq-no for a
// document, so the translator can detect a stale if_seq_no precondition.
type CurrentVersionLookup interface {
	CurrentVersion(id string) (seqNo int64, version int64, found bool)
}

// scriptedTranslator derives the update's effective operation via a
// caller-supplied merge function, standing in for an update helper
// without a concrete scripting engine. The stored document body is not
// loaded: merge always receives a nil stored map.
type scriptedTranslator struct {
	lookup CurrentVersionLookup
	// merge computes the merged document body for an index result; a nil
	// return with ok=false means the update resolves to NOOP (e.g. the
	// partial doc introduces no change).
	merge func(stored map[string]interface{}, item models.BulkItemRequest) (merged map[string]interface{}, ok bool)
}

// NewUpdateTranslator creates an UpdateTranslator backed by lookup and the
// given doc-merge function.
func NewUpdateTranslator(lookup CurrentVersionLookup, merge func(stored map[string]interface{}, item models.BulkItemRequest) (map[string]interface{}, bool)) UpdateTranslator {
	return &scriptedTranslator{lookup: lookup, merge: merge}
}

func (t *scriptedTranslator) Translate(item models.BulkItemRequest) (models.BulkItemRequest, bool, error) {
	seqNo, _, found := t.lookup.CurrentVersion(item.ID)
	if item.IfSeqNo > 0 && (!found || seqNo != item.IfSeqNo) {
		return models.BulkItemRequest{}, false, errorpkg.New(errorpkg.VersionConflict,
			"update on %q expected seq_no %d, found %d (found=%v)", item.ID, item.IfSeqNo, seqNo, found)
	}

	if !found {
		if item.Doc == nil {
			return models.BulkItemRequest{}, false, errorpkg.New(errorpkg.Validation, "document %q not found for update", item.ID)
		}
		translated := item
		translated.OpType = models.OpIndex
		return translated, false, nil
	}

	merged, changed := t.merge(nil, item)
	if !changed {
		return models.BulkItemRequest{}, true, nil
	}
	translated := item
	translated.OpType = models.OpIndex
	translated.Doc = merged
	return translated, false, nil
}
