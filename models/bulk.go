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

package models

// OpType is the per-item bulk action a client requests.
type OpType string

const (
	OpIndex  OpType = "index"
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// BulkItemRequest is one action/source pair of a client's _bulk payload.
type BulkItemRequest struct {
	OpType        OpType            `json:"opType"`
	Index         string            `json:"index"`
	ID            string            `json:"id"`
	Routing       string            `json:"routing,omitempty"`
	Version       int64             `json:"version,omitempty"`
	IfSeqNo       int64             `json:"ifSeqNo,omitempty"`
	IfPrimaryTerm int64             `json:"ifPrimaryTerm,omitempty"`
	RetryOnConflict int             `json:"retryOnConflict,omitempty"`
	Source        []byte            `json:"source,omitempty"`
	Doc           map[string]interface{} `json:"doc,omitempty"` // partial doc for OpUpdate

	// RequiredMappingVersion is the lowest mapping version the item's
	// fields need to already be merged into the index's mapping; the
	// primary executor suspends the item when the shard's known mapping
	// version falls short, instead of applying it (an update item has
	// already been translated by then).
	RequiredMappingVersion int64 `json:"requiredMappingVersion,omitempty"`
}

// ItemState is the per-item outcome a primary/replica executor records.
type ItemState int

const (
	ItemInitial ItemState = iota
	ItemTranslated
	ItemExecuted
	ItemWaitForMappingUpdate
	ItemCompleted
)

// BulkItemResponse is the recorded outcome of one bulk item, produced by
// the primary and replayed verbatim to replicas so NORMAL/FAILURE/NOOP
// replication mode can be derived without re-running conflict detection.
type BulkItemResponse struct {
	OpType    OpType `json:"opType"`
	ID        string `json:"id"`
	SeqNo     int64  `json:"seqNo"`
	Version   int64  `json:"version"`
	Failed    bool   `json:"failed"`
	FailureMessage string `json:"failureMessage,omitempty"`
	State     ItemState `json:"state"`
}

// BulkShardRequest is the primary-addressed request for all bulk items
// that route to one shard of one index.
type BulkShardRequest struct {
	Index   string            `json:"index"`
	ShardID ShardID           `json:"shardId"`
	Items   []BulkItemRequest `json:"items"`
}

// BulkShardResponse carries one response slot per input item, in the
// exact input order (slot array, not an append-list, so a retried item's
// eventual outcome lands back in its original position).
type BulkShardResponse struct {
	Index   string             `json:"index"`
	ShardID ShardID            `json:"shardId"`
	Items   []BulkItemResponse `json:"items"`
}

// ReplicaMode tells a replica executor how to apply a primary's recorded
// outcome for one item without redoing the primary's own translation.
type ReplicaMode int

const (
	// ReplicaNormal applies the item exactly as the primary executed it.
	ReplicaNormal ReplicaMode = iota
	// ReplicaFailure marks the item's slot as failed without applying it.
	ReplicaFailure
	// ReplicaNoop skips the item: the primary detected no effective change.
	ReplicaNoop
)

// ReplicaItemRequest is one item forwarded from primary to replica,
// carrying the primary's already-decided outcome and assigned sequence number.
type ReplicaItemRequest struct {
	Mode     ReplicaMode     `json:"mode"`
	SeqNo    int64           `json:"seqNo"`
	Item     BulkItemRequest `json:"item"`
}

// ReplicaShardRequest is the replication payload for one shard's batch,
// sent from the primary to each in-sync replica copy.
type ReplicaShardRequest struct {
	Index      string               `json:"index"`
	ShardID    ShardID              `json:"shardId"`
	PrimaryTerm int64               `json:"primaryTerm"`
	Items      []ReplicaItemRequest `json:"items"`
}
