// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package connio implements the single connection actor: the goroutine
// group that owns a socket, drives the RESP3 parser, and runs the
// request/response pipeline through its lifecycle (connect, steady-state
// read/write, failure, optional reconnection, and shutdown). It follows
// the teacher's ControlChannel in shape — a state atomic, a stop channel
// closed once via sync.Once, a background goroutine group joined on
// Close — generalized from a single keepalive loop to a control-loop actor
// driving an arbitrary request/response protocol.
package connio

import "sync/atomic"

// State is one of the connection actor's seven lifecycle states.
type State string

const (
	StateInit         State = "init"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateFailed       State = "failed"
	StateReconnecting State = "reconnecting"
	StateClosing      State = "closing"
	StateClosed       State = "closed"
)

// stateBox is an atomic.Value-backed State, exposing lock-free reads from
// any goroutine, mirroring ControlChannel.state. Writes come from Connect,
// Close, the control loop and the reconnect goroutine.
type stateBox struct {
	v atomic.Value // State
}

func newStateBox(initial State) *stateBox {
	b := &stateBox{}
	b.store(initial)
	return b
}

func (b *stateBox) store(s State) { b.v.Store(s) }

func (b *stateBox) load() State {
	s, _ := b.v.Load().(State)
	if s == "" {
		return StateInit
	}
	return s
}

// acceptsEnqueue reports whether a request may be pushed onto the pipeline
// while the connection is in state s.
func (s State) acceptsEnqueue() bool { return s == StateOpen }
