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
	"sync"

	"github.com/lindb/common/pkg/logger"
	"go.uber.org/atomic"

	"github.com/lindb/zenith/models"
	errorpkg "github.com/lindb/zenith/pkg/errors"
)

//go:generate mockgen -source=./loop.go -destination=./loop_mock.go -package=state

var log = logger.GetLogger("Cluster", "StateLoop")

const queueCapacity = 1024

// batchLimit bounds how many adjacent same-executor tasks are folded into
// one publication, so one chatty executor cannot starve a single publish
// cycle indefinitely.
const batchLimit = 256

// Loop is the single writer of cluster state: it drains a priority queue
// of tasks, applies them in batches against the current snapshot, and
// publishes the result to every subscriber before the next task runs.
type Loop interface {
	// Start begins draining the task queue in a background goroutine.
	Start()
	// Submit enqueues task; returns a NodeClosed error if the loop has stopped.
	Submit(task *Task) error
	// CurrentState returns the most recently published snapshot.
	CurrentState() *models.ClusterState
	// SetMaster flips whether the local node currently considers itself master.
	SetMaster(isMaster bool)
	// IsMaster returns the local node's current master flag.
	IsMaster() bool
	// Subscribe registers fn to be invoked with every newly published
	// snapshot, in no particular order relative to other subscribers;
	// fn must not block. Returns an unsubscribe func that removes fn;
	// safe to call more than once.
	Subscribe(fn func(*models.ClusterState)) (unsubscribe func())
	// Stop drains no further tasks and rejects subsequent submissions.
	Stop()
}

type queuedTask struct {
	task *Task
}

type loop struct {
	ctx    context.Context
	cancel context.CancelFunc

	queues [numPriorities]chan *queuedTask

	current     atomic.Value // *models.ClusterState
	isMaster    atomic.Bool
	stopped     atomic.Bool

	mutex         sync.Mutex
	nextSubID     int
	subscribers   map[int]func(*models.ClusterState)

	// pending holds a task already dequeued while peeking for batch
	// membership but belonging to the next batch; only the run goroutine
	// touches this, so it needs no lock.
	pending [numPriorities]*queuedTask

	done chan struct{}
}

// NewLoop creates a Loop seeded with the given initial snapshot.
func NewLoop(ctx context.Context, initial *models.ClusterState) Loop {
	ctx, cancel := context.WithCancel(ctx)
	l := &loop{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for i := range l.queues {
		l.queues[i] = make(chan *queuedTask, queueCapacity)
	}
	l.current.Store(initial)
	l.subscribers = make(map[int]func(*models.ClusterState))
	return l
}

func (l *loop) Start() {
	go l.run()
}

func (l *loop) Submit(task *Task) error {
	if l.stopped.Load() {
		if task.Ack != nil {
			task.ack(errorpkg.New(errorpkg.NodeClosed, "state loop stopped"))
		}
		return errorpkg.New(errorpkg.NodeClosed, "state loop stopped")
	}
	select {
	case l.queues[task.Priority] <- &queuedTask{task: task}:
		return nil
	default:
		err := errorpkg.New(errorpkg.NodeClosed, "state loop queue full for priority %s", task.Priority)
		task.ack(err)
		return err
	}
}

func (l *loop) CurrentState() *models.ClusterState {
	v, _ := l.current.Load().(*models.ClusterState)
	return v
}

func (l *loop) SetMaster(isMaster bool) {
	l.isMaster.Store(isMaster)
}

func (l *loop) IsMaster() bool {
	return l.isMaster.Load()
}

func (l *loop) Subscribe(fn func(*models.ClusterState)) (unsubscribe func()) {
	l.mutex.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = fn
	l.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mutex.Lock()
			delete(l.subscribers, id)
			l.mutex.Unlock()
		})
	}
}

func (l *loop) Stop() {
	if l.stopped.Swap(true) {
		return
	}
	l.cancel()
	<-l.done
}

// run is the loop's sole goroutine: repeatedly picks the highest non-empty
// priority queue, folds in adjacent same-executor tasks, applies the batch
// and publishes once.
func (l *loop) run() {
	defer close(l.done)
	for {
		qt, ok := l.next()
		if !ok {
			return
		}
		l.runBatch(qt)
	}
}

// next blocks until a task is available on any queue (checked in priority
// order) or the loop is stopped. A task set aside by a previous batch as
// belonging to the next one is returned ahead of the channels so FIFO
// order within a priority is preserved.
func (l *loop) next() (*queuedTask, bool) {
	for {
		for p := 0; p < numPriorities; p++ {
			if qt := l.pending[p]; qt != nil {
				l.pending[p] = nil
				return qt, true
			}
			select {
			case qt := <-l.queues[p]:
				return qt, true
			default:
			}
		}
		select {
		case <-l.ctx.Done():
			return nil, false
		case qt := <-l.queues[Immediate]:
			return qt, true
		case qt := <-l.queues[Urgent]:
			return qt, true
		case qt := <-l.queues[High]:
			return qt, true
		case qt := <-l.queues[Normal]:
			return qt, true
		}
	}
}

// runBatch executes first plus every immediately-following same-priority,
// same-executor task, against a shared base state, then publishes once.
func (l *loop) runBatch(first *queuedTask) {
	batch := []*queuedTask{first}
	priority := first.task.Priority
	queue := l.queues[priority]
	for len(batch) < batchLimit {
		select {
		case qt := <-queue:
			if qt.task.Executor != first.task.Executor {
				// belongs to the next batch: defer it, don't requeue.
				l.pending[priority] = qt
				goto execute
			}
			batch = append(batch, qt)
		default:
			goto execute
		}
	}
execute:
	base := l.CurrentState()
	current := base
	var acked []*queuedTask
	notMaster := !l.IsMaster()

	for _, qt := range batch {
		t := qt.task
		if notMaster && t.OnNoLongerMaster != nil {
			t.OnNoLongerMaster()
			continue
		}
		next, err := t.Execute(current)
		if err != nil {
			if t.OnFailure != nil {
				t.OnFailure(err)
			}
			continue
		}
		if next != nil {
			current = next
		}
		acked = append(acked, qt)
	}

	if current != base {
		current.Version = base.Version + 1
		l.current.Store(current)
		l.publish(current)
	}

	for _, qt := range acked {
		qt.task.ack(nil)
	}
}

func (l *loop) publish(next *models.ClusterState) {
	l.mutex.Lock()
	subs := make([]func(*models.ClusterState), 0, len(l.subscribers))
	for _, fn := range l.subscribers {
		subs = append(subs, fn)
	}
	l.mutex.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic in state subscriber", logger.Error(errorpkg.FromRecover(r)))
				}
			}()
			fn(next)
		}()
	}
}
