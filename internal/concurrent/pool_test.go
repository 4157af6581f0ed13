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

package concurrent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lindb/zenith/metrics"
)

func TestPool_Submit(t *testing.T) {
	stats := metrics.NewConcurrentStatistics()
	pool := NewPool("test", 2, time.Second, stats)
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		pool.Submit(context.Background(), NewTask(func() {
			wg.Done()
		}, nil))
	}
	wg.Wait()
	assert.False(t, pool.Stopped())
}

func TestPool_SubmitAfterStop(t *testing.T) {
	stats := metrics.NewConcurrentStatistics()
	pool := NewPool("test", 1, time.Second, stats)
	pool.Stop()
	assert.True(t, pool.Stopped())

	// submitting after stop must not panic or block.
	pool.Submit(context.Background(), NewTask(func() {}, nil))
}

func TestPool_PanicHandle(t *testing.T) {
	stats := metrics.NewConcurrentStatistics()
	pool := NewPool("test", 1, time.Second, stats)
	defer pool.Stop()

	done := make(chan error, 1)
	pool.Submit(context.Background(), NewTask(func() {
		panic("boom")
	}, func(err error) {
		done <- err
	}))

	select {
	case err := <-done:
		assert.EqualError(t, err, "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for panic handler")
	}
}

func TestPool_ContextCancelRejectsSubmit(t *testing.T) {
	stats := metrics.NewConcurrentStatistics()
	pool := NewPool("test", 0, time.Millisecond, stats)
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool.Submit(ctx, NewTask(func() {}, nil))
	assert.Equal(t, int64(1), stats.TasksRejected.Load())
}
