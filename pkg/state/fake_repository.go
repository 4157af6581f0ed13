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
	"strings"
	"sync"
)

// fakeRepository is an in-memory Repository for tests that need real
// get/put/watch/heartbeat semantics without an etcd cluster.
type fakeRepository struct {
	mutex    sync.Mutex
	data     map[string][]byte
	watchers map[string][]chan *WatchEvent
	closed   bool
}

// NewFakeRepository creates an in-memory Repository.
func NewFakeRepository() Repository {
	return &fakeRepository{
		data:     make(map[string][]byte),
		watchers: make(map[string][]chan *WatchEvent),
	}
}

func (f *fakeRepository) Get(_ context.Context, key string) ([]byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	return v, nil
}

func (f *fakeRepository) List(_ context.Context, prefix string) ([]KeyValue, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	var result []KeyValue
	for k, v := range f.data {
		if strings.HasPrefix(k, prefix) {
			result = append(result, KeyValue{Key: k, Value: v})
		}
	}
	return result, nil
}

func (f *fakeRepository) Put(_ context.Context, key string, value []byte) error {
	f.mutex.Lock()
	_, existed := f.data[key]
	f.data[key] = value
	watchers := append([]chan *WatchEvent{}, f.watchers[prefixMatch(f, key)]...)
	f.mutex.Unlock()
	eventType := EventTypeModify
	if !existed {
		eventType = EventTypeCreate
	}
	f.notify(key, value, eventType, watchers)
	return nil
}

func (f *fakeRepository) PutIfNotExist(_ context.Context, key string, value []byte) (bool, error) {
	f.mutex.Lock()
	if _, exists := f.data[key]; exists {
		f.mutex.Unlock()
		return false, nil
	}
	f.data[key] = value
	watchers := append([]chan *WatchEvent{}, f.watchers[prefixMatch(f, key)]...)
	f.mutex.Unlock()
	f.notify(key, value, EventTypeCreate, watchers)
	return true, nil
}

func (f *fakeRepository) Delete(_ context.Context, key string) error {
	f.mutex.Lock()
	delete(f.data, key)
	watchers := append([]chan *WatchEvent{}, f.watchers[prefixMatch(f, key)]...)
	f.mutex.Unlock()
	f.notify(key, nil, EventTypeDelete, watchers)
	return nil
}

// prefixMatch returns the registered watch prefix that key falls under, if
// any; the fake keeps watcher lists keyed by their own registered prefix so
// this just finds which bucket to append new channels into at Put-time.
func prefixMatch(f *fakeRepository, key string) string {
	for prefix := range f.watchers {
		if strings.HasPrefix(key, prefix) {
			return prefix
		}
	}
	return key
}

func (f *fakeRepository) notify(key string, value []byte, t EventType, watchers []chan *WatchEvent) {
	for _, ch := range watchers {
		select {
		case ch <- &WatchEvent{Type: t, KeyValues: []KeyValue{{Key: key, Value: value}}}:
		default:
		}
	}
}

func (f *fakeRepository) WatchPrefix(ctx context.Context, prefix string, withInitialLoad bool) <-chan *WatchEvent {
	ch := make(chan *WatchEvent, 16)
	f.mutex.Lock()
	f.watchers[prefix] = append(f.watchers[prefix], ch)
	if withInitialLoad {
		var initial []KeyValue
		for k, v := range f.data {
			if strings.HasPrefix(k, prefix) {
				initial = append(initial, KeyValue{Key: k, Value: v})
			}
		}
		ch <- &WatchEvent{Type: EventTypeAll, KeyValues: initial}
	}
	f.mutex.Unlock()

	go func() {
		<-ctx.Done()
		f.mutex.Lock()
		defer f.mutex.Unlock()
		chans := f.watchers[prefix]
		for i, c := range chans {
			if c == ch {
				f.watchers[prefix] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (f *fakeRepository) Heartbeat(ctx context.Context, key string, value []byte, _ int64) (<-chan Closed, error) {
	if err := f.Put(ctx, key, value); err != nil {
		return nil, err
	}
	closedCh := make(chan Closed)
	go func() {
		<-ctx.Done()
		_ = f.Delete(context.Background(), key)
		close(closedCh)
	}()
	return closedCh, nil
}

func (f *fakeRepository) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.closed = true
	return nil
}
