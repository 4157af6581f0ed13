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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeRepository_PutGet(t *testing.T) {
	repo := NewFakeRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "/a")
	assert.Error(t, err)

	assert.NoError(t, repo.Put(ctx, "/a", []byte("1")))
	v, err := repo.Get(ctx, "/a")
	assert.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestFakeRepository_PutIfNotExist(t *testing.T) {
	repo := NewFakeRepository()
	ctx := context.Background()

	ok, err := repo.PutIfNotExist(ctx, "/lock", []byte("n1"))
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.PutIfNotExist(ctx, "/lock", []byte("n2"))
	assert.NoError(t, err)
	assert.False(t, ok)

	v, _ := repo.Get(ctx, "/lock")
	assert.Equal(t, []byte("n1"), v)
}

func TestFakeRepository_List(t *testing.T) {
	repo := NewFakeRepository()
	ctx := context.Background()
	assert.NoError(t, repo.Put(ctx, "/nodes/1", []byte("a")))
	assert.NoError(t, repo.Put(ctx, "/nodes/2", []byte("b")))
	assert.NoError(t, repo.Put(ctx, "/other/1", []byte("c")))

	kvs, err := repo.List(ctx, "/nodes/")
	assert.NoError(t, err)
	assert.Len(t, kvs, 2)
}

func TestFakeRepository_Delete(t *testing.T) {
	repo := NewFakeRepository()
	ctx := context.Background()
	assert.NoError(t, repo.Put(ctx, "/a", []byte("1")))
	assert.NoError(t, repo.Delete(ctx, "/a"))
	_, err := repo.Get(ctx, "/a")
	assert.Error(t, err)
	// deleting an absent key is not an error.
	assert.NoError(t, repo.Delete(ctx, "/a"))
}

func TestFakeRepository_WatchPrefix(t *testing.T) {
	repo := NewFakeRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := repo.WatchPrefix(ctx, "/nodes/", false)
	assert.NoError(t, repo.Put(ctx, "/nodes/1", []byte("a")))

	select {
	case ev := <-events:
		assert.Equal(t, EventTypeCreate, ev.Type)
		assert.Equal(t, "/nodes/1", ev.KeyValues[0].Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestFakeRepository_Heartbeat(t *testing.T) {
	repo := NewFakeRepository()
	ctx, cancel := context.WithCancel(context.Background())

	closedCh, err := repo.Heartbeat(ctx, "/live/n1", []byte("n1"), 1000)
	assert.NoError(t, err)

	v, err := repo.Get(context.Background(), "/live/n1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("n1"), v)

	cancel()
	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for heartbeat close")
	}
	_, err = repo.Get(context.Background(), "/live/n1")
	assert.Error(t, err)
}
