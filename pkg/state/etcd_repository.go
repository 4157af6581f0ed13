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

package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lindb/common/pkg/logger"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var repoLogger = logger.GetLogger("State", "Repository")

// etcdRepository is a Repository backed by an etcd v3 cluster, the durable
// store a node's cluster-state snapshots, index metadata blobs and liveness
// leases are persisted to.
type etcdRepository struct {
	namespace string
	client    *clientv3.Client

	mutex   sync.Mutex
	leases  map[string]clientv3.LeaseID
	closed  bool
}

// NewRepositoryFactory creates an etcd-backed RepositoryFactory.
func NewRepositoryFactory() RepositoryFactory {
	return &etcdRepositoryFactory{}
}

type etcdRepositoryFactory struct{}

func (f *etcdRepositoryFactory) CreateRepo(_ context.Context, endpoints []string, timeout time.Duration, namespace string) (Repository, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	return &etcdRepository{
		namespace: namespace,
		client:    cli,
		leases:    make(map[string]clientv3.LeaseID),
	}, nil
}

func (r *etcdRepository) key(key string) string {
	return r.namespace + key
}

func (r *etcdRepository) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := r.client.Get(ctx, r.key(key))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("key %s not found", key)
	}
	return resp.Kvs[0].Value, nil
}

func (r *etcdRepository) List(ctx context.Context, prefix string) ([]KeyValue, error) {
	resp, err := r.client.Get(ctx, r.key(prefix), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	result := make([]KeyValue, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		result = append(result, KeyValue{Key: string(kv.Key[len(r.namespace):]), Value: kv.Value})
	}
	return result, nil
}

func (r *etcdRepository) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.client.Put(ctx, r.key(key), string(value))
	return err
}

func (r *etcdRepository) PutIfNotExist(ctx context.Context, key string, value []byte) (bool, error) {
	fullKey := r.key(key)
	txn := r.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(fullKey), "=", 0)).
		Then(clientv3.OpPut(fullKey, string(value)))
	resp, err := txn.Commit()
	if err != nil {
		return false, err
	}
	return resp.Succeeded, nil
}

func (r *etcdRepository) Delete(ctx context.Context, key string) error {
	_, err := r.client.Delete(ctx, r.key(key))
	return err
}

func (r *etcdRepository) WatchPrefix(ctx context.Context, prefix string, withInitialLoad bool) <-chan *WatchEvent {
	ch := make(chan *WatchEvent)
	go func() {
		defer close(ch)
		if withInitialLoad {
			kvs, err := r.List(ctx, prefix)
			if err != nil {
				ch <- &WatchEvent{Err: err}
				return
			}
			ch <- &WatchEvent{Type: EventTypeAll, KeyValues: kvs}
		}
		watchCh := r.client.Watch(ctx, r.key(prefix), clientv3.WithPrefix())
		for {
			select {
			case <-ctx.Done():
				return
			case resp, ok := <-watchCh:
				if !ok {
					return
				}
				if resp.Err() != nil {
					ch <- &WatchEvent{Err: resp.Err()}
					return
				}
				for _, ev := range resp.Events {
					we := &WatchEvent{KeyValues: []KeyValue{{
						Key:   string(ev.Kv.Key[len(r.namespace):]),
						Value: ev.Kv.Value,
					}}}
					switch ev.Type {
					case clientv3.EventTypeDelete:
						we.Type = EventTypeDelete
					default:
						if ev.IsCreate() {
							we.Type = EventTypeCreate
						} else {
							we.Type = EventTypeModify
						}
					}
					ch <- we
				}
			}
		}
	}()
	return ch
}

func (r *etcdRepository) Heartbeat(ctx context.Context, key string, value []byte, ttlMs int64) (<-chan Closed, error) {
	ttlSeconds := ttlMs / 1000
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}
	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return nil, err
	}
	fullKey := r.key(key)
	if _, err := r.client.Put(ctx, fullKey, string(value), clientv3.WithLease(lease.ID)); err != nil {
		return nil, err
	}
	keepAliveCh, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return nil, err
	}
	r.mutex.Lock()
	r.leases[key] = lease.ID
	r.mutex.Unlock()

	closedCh := make(chan Closed)
	go func() {
		defer close(closedCh)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-keepAliveCh:
				if !ok {
					repoLogger.Warn("lease keepalive channel closed", logger.String("key", key))
					closedCh <- Closed{}
					return
				}
			}
		}
	}()
	return closedCh, nil
}

func (r *etcdRepository) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}
