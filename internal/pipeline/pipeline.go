// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package pipeline

import (
	"time"

	"github.com/nishisan-dev/rediscoro/internal/rerr"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// OutboundRequest is the encoded-bytes view of a rediscoro.Request, passed
// across the package boundary without importing the root package.
type OutboundRequest struct {
	Bytes        []byte
	CommandCount int
}

// pendingItem is one request in flight: either still being written
// (writeQueue) or fully written and awaiting replies (readQueue, where
// Bytes/written are unused). commandCount and enqueuedAt are only filled
// when the pipeline was built with trace hooks; the ok/error counters and
// firstErr are updated for every reply either way.
type pendingItem struct {
	bytes    []byte
	written  int
	sink     Sink
	deadline time.Time // zero means no deadline

	commandCount int
	enqueuedAt   time.Time
	okCount      int
	errorCount   int
	firstErr     *rerr.Error
}

// Pipeline preserves FIFO order of requests across the write and read
// sides of a connection. Every method is meant to be called from the
// connection's single owning goroutine; there is no internal locking.
type Pipeline struct {
	writeQueue []pendingItem
	readQueue  []pendingItem

	maxPendingRequests   int
	maxPendingWriteBytes int
	pendingWriteBytes    int

	onTraceStart  func(TraceInfo)
	onTraceFinish func(TraceInfo)
}

// New creates a Pipeline. maxPendingRequests and maxPendingWriteBytes of 0
// mean unbounded. onTraceStart/onTraceFinish may be nil; when set, they are
// invoked on the caller's goroutine (the connection's owning goroutine)
// once per request, at Push and at completion respectively.
func New(maxPendingRequests, maxPendingWriteBytes int, onTraceStart, onTraceFinish func(TraceInfo)) *Pipeline {
	return &Pipeline{
		maxPendingRequests:   maxPendingRequests,
		maxPendingWriteBytes: maxPendingWriteBytes,
		onTraceStart:         onTraceStart,
		onTraceFinish:        onTraceFinish,
	}
}

// Push enqueues req on the write side. It fails, returning false, if
// accepting it would exceed the configured pending-request or
// pending-write-bytes limit; req.CommandCount must equal
// sink.ExpectedReplies() at push time.
func (p *Pipeline) Push(req OutboundRequest, sink Sink, deadline time.Time) bool {
	if p.maxPendingRequests > 0 && len(p.writeQueue)+len(p.readQueue) >= p.maxPendingRequests {
		return false
	}
	if p.maxPendingWriteBytes > 0 && p.pendingWriteBytes+len(req.Bytes) > p.maxPendingWriteBytes {
		return false
	}
	item := pendingItem{bytes: req.Bytes, sink: sink, deadline: deadline}
	if p.onTraceStart != nil || p.onTraceFinish != nil {
		item.commandCount = req.CommandCount
		item.enqueuedAt = time.Now()
	}
	p.writeQueue = append(p.writeQueue, item)
	p.pendingWriteBytes += len(req.Bytes)
	if p.onTraceStart != nil {
		p.onTraceStart(TraceInfo{CommandCount: item.commandCount, EnqueuedAt: item.enqueuedAt})
	}
	return true
}

// HasPendingWrite reports whether any request still has unsent bytes.
func (p *Pipeline) HasPendingWrite() bool { return len(p.writeQueue) > 0 }

// HasPendingRead reports whether any fully-written request still awaits
// replies.
func (p *Pipeline) HasPendingRead() bool { return len(p.readQueue) > 0 }

// NextWriteBuffer returns the unsent tail of the front write-queue request,
// or nil if there is nothing to write.
func (p *Pipeline) NextWriteBuffer() []byte {
	if len(p.writeQueue) == 0 {
		return nil
	}
	front := &p.writeQueue[0]
	return front.bytes[front.written:]
}

// OnWriteDone advances the front request's written-bytes count by n. Once a
// request is fully written, it migrates (sink and deadline preserved) to
// the read-awaiting queue.
func (p *Pipeline) OnWriteDone(n int) {
	if len(p.writeQueue) == 0 {
		return
	}
	front := &p.writeQueue[0]
	front.written += n
	p.pendingWriteBytes -= n
	if front.written >= len(front.bytes) {
		p.readQueue = append(p.readQueue, pendingItem{
			sink:         front.sink,
			deadline:     front.deadline,
			commandCount: front.commandCount,
			enqueuedAt:   front.enqueuedAt,
		})
		p.writeQueue = p.writeQueue[1:]
	}
}

// OnMessage delivers msg to the head read-awaiting sink, popping it once it
// reports complete.
func (p *Pipeline) OnMessage(msg resp3.Message) {
	if len(p.readQueue) == 0 {
		return
	}
	front := &p.readQueue[0]
	front.okCount++
	front.sink.Deliver(msg)
	if front.sink.IsComplete() {
		p.finishTrace(front)
		p.readQueue = p.readQueue[1:]
	}
}

// OnError delivers err for one reply slot of the head read-awaiting sink.
func (p *Pipeline) OnError(err *rerr.Error) {
	if len(p.readQueue) == 0 {
		return
	}
	front := &p.readQueue[0]
	front.errorCount++
	if front.firstErr == nil {
		front.firstErr = err
	}
	front.sink.DeliverError(err)
	if front.sink.IsComplete() {
		p.finishTrace(front)
		p.readQueue = p.readQueue[1:]
	}
}

// ClearAll fails every outstanding sink, on both the write and read sides,
// with err, and empties the pipeline. Used on shutdown and on
// connection-level failure.
func (p *Pipeline) ClearAll(err *rerr.Error) {
	for i := range p.writeQueue {
		item := &p.writeQueue[i]
		item.sink.FailAll(err)
		item.errorCount++
		if item.firstErr == nil {
			item.firstErr = err
		}
		p.finishTrace(item)
	}
	for i := range p.readQueue {
		item := &p.readQueue[i]
		item.sink.FailAll(err)
		item.errorCount++
		if item.firstErr == nil {
			item.firstErr = err
		}
		p.finishTrace(item)
	}
	p.writeQueue = nil
	p.readQueue = nil
	p.pendingWriteBytes = 0
}

// finishTrace reports item's completion if trace hooks are configured.
func (p *Pipeline) finishTrace(item *pendingItem) {
	if p.onTraceFinish == nil {
		return
	}
	p.onTraceFinish(TraceInfo{
		CommandCount: item.commandCount,
		EnqueuedAt:   item.enqueuedAt,
		FinishedAt:   time.Now(),
		OKCount:      item.okCount,
		ErrorCount:   item.errorCount,
		FirstError:   item.firstErr,
	})
}

// NextDeadline returns the earliest non-zero deadline across every
// outstanding request, if any.
func (p *Pipeline) NextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if !found || t.Before(best) {
			best = t
			found = true
		}
	}
	for _, item := range p.writeQueue {
		consider(item.deadline)
	}
	for _, item := range p.readQueue {
		consider(item.deadline)
	}
	return best, found
}

// HasExpired reports whether any outstanding request's deadline has
// already passed as of now.
func (p *Pipeline) HasExpired(now time.Time) bool {
	deadline, ok := p.NextDeadline()
	return ok && !now.Before(deadline)
}
