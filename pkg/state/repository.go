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

// Package state holds the durable KV contract the cluster-state store and
// the node registry are built on: atomic put/get of a per-key blob, prefix
// watches for discovery, and lease-backed heartbeats for liveness.
package state

import (
	"context"
	"time"
)

//go:generate mockgen -source=./repository.go -destination=./repository_mock.go -package=state

// Closed is sent on the channel Heartbeat returns once the lease backing a
// key is lost (expired, revoked, or the repository closed) so the caller
// knows to re-register.
type Closed struct{}

// EventType represents the kind of change WatchPrefix reports.
type EventType int

const (
	// EventTypeAll is only used to request the initial full list on Watch.
	EventTypeAll EventType = iota
	EventTypeCreate
	EventTypeModify
	EventTypeDelete
)

// WatchEvent carries one or more key changes detected under a watched
// prefix, or an error terminating the watch.
type WatchEvent struct {
	Type EventType
	KeyValues []KeyValue
	Err  error
}

// KeyValue is a single key's raw value.
type KeyValue struct {
	Key   string
	Value []byte
}

// Repository is the durable, versioned key-value store backing cluster
// coordination: index metadata blobs, routing table snapshots, node
// liveness leases and master-election candidacy keys.
type Repository interface {
	// Get returns the value stored for key, or an error if it does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns all key/value pairs under prefix.
	List(ctx context.Context, prefix string) ([]KeyValue, error)
	// Put writes value for key unconditionally.
	Put(ctx context.Context, key string, value []byte) error
	// PutIfNotExist writes value for key iff key does not already exist,
	// reporting whether this call won the write.
	PutIfNotExist(ctx context.Context, key string, value []byte) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// WatchPrefix watches all keys under prefix for changes until ctx is
	// cancelled, delivering events on the returned channel.
	WatchPrefix(ctx context.Context, prefix string, withInitialLoad bool) <-chan *WatchEvent
	// Heartbeat registers key with value under a lease of ttlMs milliseconds,
	// refreshing the lease on an internal timer until ctx is cancelled or the
	// lease is lost, in which case it sends on the returned channel.
	Heartbeat(ctx context.Context, key string, value []byte, ttlMs int64) (<-chan Closed, error)
	// Close releases held leases and closes the underlying client.
	Close() error
}

// RepositoryFactory creates Repository instances bound to a RepoState config.
type RepositoryFactory interface {
	// CreateRepo creates a state repository based on the given config.
	CreateRepo(ctx context.Context, endpoints []string, timeout time.Duration, namespace string) (Repository, error)
}
