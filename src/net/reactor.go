package net

import (
	"context"
	"sync"

	"github.com/mosaicnetworks/axolotl/src/queue"
)

// reactor runs posted tasks one at a time on a dedicated goroutine.
type reactor struct {
	tasks *queue.Queue[func()]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	l       sync.Mutex
	stopped bool
}

func newReactor() *reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &reactor{
		tasks:  queue.New[func()](),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// run executes tasks until stop is called.
func (r *reactor) run() {
	defer close(r.done)
	for {
		if err := r.tasks.WaitContext(r.ctx); err != nil {
			return
		}
		r.drain()
	}
}

func (r *reactor) drain() {
	for {
		fn, ok := r.tasks.PopFront()
		if !ok {
			return
		}
		fn()
	}
}

// post schedules fn on the reactor. It reports false, and drops fn, once the
// reactor is stopped.
func (r *reactor) post(fn func()) bool {
	r.l.Lock()
	defer r.l.Unlock()

	if r.stopped {
		return false
	}
	r.tasks.PushBack(fn)
	return true
}

// call runs fn on the reactor and waits for it to return. Every task accepted
// by post is eventually executed, by run or by stop. call must not be used
// from the reactor itself.
func (r *reactor) call(fn func()) bool {
	done := make(chan struct{})
	ok := r.post(func() {
		defer close(done)
		fn()
	})
	if !ok {
		return false
	}
	<-done
	return true
}

// stop terminates run, then executes the tasks that were posted before the
// reactor was marked as stopped, on the calling goroutine. If run was never
// started, leftover tasks are still executed.
func (r *reactor) stop(started bool) {
	r.l.Lock()
	r.stopped = true
	r.l.Unlock()

	r.cancel()
	if started {
		<-r.done
	}
	r.drain()
}
