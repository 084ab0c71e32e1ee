// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package pipeline

import (
	"github.com/nishisan-dev/rediscoro/internal/rerr"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// DynamicDecoder decodes one reply message into a caller-chosen type and
// appends the result; it is how DynamicSink stays non-generic while
// Client.ExecDynamic[T] stays generic.
type DynamicDecoder interface {
	AppendValue(msg resp3.Message)
	AppendError(err *rerr.Error)
}

// DynamicSink backs Client.ExecDynamic: a runtime-sized, homogeneously
// typed sequence of requests, each reply appended as it arrives.
type DynamicSink struct {
	decoder  DynamicDecoder
	expected int
	received int
	notify   *notifyOnce
}

// NewDynamicSink creates a sink expecting exactly expected replies, each
// forwarded to decoder.
func NewDynamicSink(decoder DynamicDecoder, expected int) *DynamicSink {
	return &DynamicSink{decoder: decoder, expected: expected, notify: newNotifyOnce()}
}

func (s *DynamicSink) Done() <-chan struct{} { return s.notify.Done() }

func (s *DynamicSink) ExpectedReplies() int { return s.expected - s.received }

func (s *DynamicSink) IsComplete() bool { return s.received >= s.expected }

func (s *DynamicSink) Deliver(msg resp3.Message) {
	if s.IsComplete() {
		return
	}
	s.decoder.AppendValue(msg)
	s.received++
	if s.IsComplete() {
		s.notify.fire()
	}
}

func (s *DynamicSink) DeliverError(err *rerr.Error) {
	if s.IsComplete() {
		return
	}
	s.decoder.AppendError(err)
	s.received++
	if s.IsComplete() {
		s.notify.fire()
	}
}

func (s *DynamicSink) FailAll(err *rerr.Error) {
	for ; s.received < s.expected; s.received++ {
		s.decoder.AppendError(err)
	}
	s.notify.fire()
}
