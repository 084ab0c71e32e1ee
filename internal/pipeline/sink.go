// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package pipeline implements the connection-owned FIFO request/response
// scheduler: it tracks which request is currently being written, which
// replies are outstanding, and routes each parsed message or error to the
// sink waiting for it, in arrival order. Every exported method on Pipeline
// runs on the connection's single owning goroutine; Pipeline performs no
// internal locking, mirroring the teacher's RingBuffer's documented
// "not thread-safe, expected to be used on a strand" contract — except
// here there genuinely is only ever one caller, so no lock exists at all.
package pipeline

import (
	"time"

	"github.com/nishisan-dev/rediscoro/internal/rerr"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// Sink is the capability every pending request's reply consumer must
// implement. A sink is created already knowing how many replies it
// expects and counts down to zero.
type Sink interface {
	ExpectedReplies() int
	Deliver(msg resp3.Message)
	DeliverError(err *rerr.Error)
	FailAll(err *rerr.Error)
	IsComplete() bool
}

// notifyOnce is a single-shot wakeup, the direct analogue of the original
// implementation's notify_event wrapping a coroutine condition variable.
// The waiter blocks receiving from Done(); the sink closes it exactly once
// from the connection's owning goroutine. Closing a channel is visible to
// any number of receivers without running callback code on the closer's
// goroutine, so the waiter's own goroutine is what resumes and runs the
// caller's continuation — satisfying "resume on the waiter's own executor"
// without any extra machinery.
type notifyOnce struct {
	ch chan struct{}
}

func newNotifyOnce() *notifyOnce {
	return &notifyOnce{ch: make(chan struct{})}
}

// Done returns the channel the waiter blocks on.
func (n *notifyOnce) Done() <-chan struct{} { return n.ch }

// fire closes the channel. Safe to call more than once; only the first
// call has an effect.
func (n *notifyOnce) fire() {
	select {
	case <-n.ch:
		// already fired
	default:
		close(n.ch)
	}
}

// TraceInfo mirrors rediscoro.RequestTraceInfo without importing the root
// package (which would create a cycle); the root package's trace hooks
// convert to/from this shape at the boundary.
type TraceInfo struct {
	CommandCount int
	EnqueuedAt   time.Time
	FinishedAt   time.Time
	OKCount      int
	ErrorCount   int
	FirstError   *rerr.Error
}
