// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package pipeline

import (
	"github.com/nishisan-dev/rediscoro/internal/rerr"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// SlotTarget is the per-command half of Sink: something that can accept
// exactly one reply or error. *rediscoro.Cmd[T] satisfies this structurally.
type SlotTarget interface {
	Deliver(msg resp3.Message)
	DeliverError(err *rerr.Error)
}

// FixedSink backs a fixed-arity pipeline (Client.Exec / Client.ExecPipeline):
// a known-at-push-time ordered list of per-command targets, filled in
// command order as replies arrive.
type FixedSink struct {
	targets []SlotTarget
	next    int
	notify  *notifyOnce
}

// NewFixedSink wraps targets (one per pipelined command, in command order).
func NewFixedSink(targets []SlotTarget) *FixedSink {
	return &FixedSink{targets: targets, notify: newNotifyOnce()}
}

// Done returns the channel that closes once every target has received a
// reply or the sink was failed.
func (s *FixedSink) Done() <-chan struct{} { return s.notify.Done() }

func (s *FixedSink) ExpectedReplies() int { return len(s.targets) - s.next }

func (s *FixedSink) IsComplete() bool { return s.next >= len(s.targets) }

func (s *FixedSink) Deliver(msg resp3.Message) {
	if s.IsComplete() {
		return
	}
	s.targets[s.next].Deliver(msg)
	s.next++
	if s.IsComplete() {
		s.notify.fire()
	}
}

func (s *FixedSink) DeliverError(err *rerr.Error) {
	if s.IsComplete() {
		return
	}
	s.targets[s.next].DeliverError(err)
	s.next++
	if s.IsComplete() {
		s.notify.fire()
	}
}

func (s *FixedSink) FailAll(err *rerr.Error) {
	for ; s.next < len(s.targets); s.next++ {
		s.targets[s.next].DeliverError(err)
	}
	s.notify.fire()
}
