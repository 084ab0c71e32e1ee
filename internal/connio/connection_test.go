// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connio

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nishisan-dev/rediscoro/internal/pipeline"
	"github.com/nishisan-dev/rediscoro/internal/rerr"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// fakeRedisServer accepts exactly one connection and answers every command
// with a canned reply, decoding requests with the same resp3 package the
// client uses. handle lets each test customize replies per command name.
func fakeRedisServer(t *testing.T, handle func(cmd string, args []string) resp3.Message) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		p := resp3.NewParser(resp3.DefaultLimits())
		buf := make([]byte, 4096)
		for {
			root, status, err := p.ParseOne()
			if err != nil {
				return
			}
			if status != resp3.StatusReady {
				n, err := conn.Read(buf)
				if err != nil {
					return
				}
				dst := p.Prepare(n)
				copy(dst, buf[:n])
				p.Commit(n)
				continue
			}
			msg := resp3.Builder{}.Build(p.Tree(), root)
			p.Reclaim()

			cmd := ""
			var args []string
			if len(msg.Items) > 0 {
				cmd = string(msg.Items[0].Bytes)
				for _, it := range msg.Items[1:] {
					args = append(args, string(it.Bytes))
				}
			}
			reply := handle(cmd, args)
			conn.Write(resp3.Encode(reply))
		}
	}()
	return ln
}

func listenerHostPort(t *testing.T, ln net.Listener) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, uint16(port)
}

func baseTestConfig(host string, port uint16) Config {
	return Config{
		Host:           host,
		Port:           port,
		ResolveTimeout: time.Second,
		ConnectTimeout: time.Second,
		Handshake:      HandshakeOptions{},
		Limits:         resp3.DefaultLimits(),
	}
}

func TestConnectionPingReturnsSimpleString(t *testing.T) {
	ln := fakeRedisServer(t, func(cmd string, args []string) resp3.Message {
		switch cmd {
		case "HELLO":
			return resp3.Message{Kind: resp3.KindMap, Items: nil}
		case "PING":
			return resp3.Message{Kind: resp3.KindSimpleString, Str: "PONG"}
		default:
			return resp3.Message{Kind: resp3.KindSimpleString, Str: "OK"}
		}
	})
	defer ln.Close()
	host, port := listenerHostPort(t, ln)

	conn := New(baseTestConfig(host, port))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if got := conn.State(); got != StateOpen {
		t.Fatalf("State() = %v, want %v", got, StateOpen)
	}

	req := &capturingRequest{}
	req.push("PING")

	sink := pipeline.NewFixedSink([]pipeline.SlotTarget{req})
	enqueueErr := conn.Enqueue(ctx, pipeline.OutboundRequest{Bytes: req.bytes, CommandCount: 1}, sink, time.Time{})
	if enqueueErr != nil {
		t.Fatalf("Enqueue: %v", enqueueErr)
	}

	select {
	case <-sink.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for PING reply")
	}

	if req.err != nil {
		t.Fatalf("unexpected error: %v", req.err)
	}
	if req.lastMsg.Str != "PONG" {
		t.Fatalf("reply = %q, want PONG", req.lastMsg.Str)
	}
}

func TestConnectionRequestTimeout(t *testing.T) {
	// Server accepts the handshake but never answers any later command, to exercise
	// the per-request deadline path.
	ln := fakeRedisServer(t, func(cmd string, args []string) resp3.Message {
		if cmd == "HELLO" {
			return resp3.Message{Kind: resp3.KindMap}
		}
		select {} // never reply to anything else
	})
	defer ln.Close()
	host, port := listenerHostPort(t, ln)

	cfg := baseTestConfig(host, port)
	cfg.RequestTimeout = 100 * time.Millisecond
	conn := New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	req := &capturingRequest{}
	req.push("BLPOP", "missing", "5")
	sink := pipeline.NewFixedSink([]pipeline.SlotTarget{req})

	deadline := time.Now().Add(cfg.RequestTimeout)
	enqueueErr := conn.Enqueue(ctx, pipeline.OutboundRequest{Bytes: req.bytes, CommandCount: 1}, sink, deadline)
	if enqueueErr != nil {
		t.Fatalf("Enqueue: %v", enqueueErr)
	}

	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for request_timeout delivery")
	}
	if req.err == nil {
		t.Fatal("expected a request_timeout error, got nil")
	}
}

// capturingRequest is a minimal pipeline.SlotTarget used by tests in place
// of rediscoro.Cmd[T], avoiding a dependency on the root package.
type capturingRequest struct {
	bytes   []byte
	lastMsg resp3.Message
	err     error
}

func (r *capturingRequest) push(cmd string, args ...string) {
	r.bytes = append(r.bytes, '*')
	r.bytes = append(r.bytes, []byte(strconv.Itoa(1+len(args)))...)
	r.bytes = append(r.bytes, '\r', '\n')
	appendArg := func(s string) {
		r.bytes = append(r.bytes, '$')
		r.bytes = append(r.bytes, []byte(strconv.Itoa(len(s)))...)
		r.bytes = append(r.bytes, '\r', '\n')
		r.bytes = append(r.bytes, s...)
		r.bytes = append(r.bytes, '\r', '\n')
	}
	appendArg(cmd)
	for _, a := range args {
		appendArg(a)
	}
}

func (r *capturingRequest) Deliver(msg resp3.Message) { r.lastMsg = msg }
func (r *capturingRequest) DeliverError(err *rerr.Error) {
	r.err = err
}

// recordingMetrics is a minimal MetricsRecorder test double that only
// tracks what TestConnectionObservesRTTOnCompletion cares about. Guarded by
// a mutex since the actor goroutine writes while the test goroutine polls.
type recordingMetrics struct {
	mu   sync.Mutex
	rtts []time.Duration
}

func (m *recordingMetrics) RequestSent()           {}
func (m *recordingMetrics) ReplyReceived()         {}
func (m *recordingMetrics) ReconnectAttempted()    {}
func (m *recordingMetrics) ProtocolErrorObserved() {}
func (m *recordingMetrics) ObserveRTT(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rtts = append(m.rtts, d)
}

func (m *recordingMetrics) snapshot() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.rtts...)
}

// traceRecorder records trace callbacks behind a mutex; the connection's
// actor goroutine calls OnStart/OnFinish, while the test goroutine polls
// Starts/Finishes, so plain slices would race.
type traceRecorder struct {
	mu       sync.Mutex
	starts   []pipeline.TraceInfo
	finishes []pipeline.TraceInfo
}

func (r *traceRecorder) OnStart(info pipeline.TraceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, info)
}

func (r *traceRecorder) OnFinish(info pipeline.TraceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes = append(r.finishes, info)
}

func (r *traceRecorder) snapshot() (starts, finishes []pipeline.TraceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.TraceInfo(nil), r.starts...), append([]pipeline.TraceInfo(nil), r.finishes...)
}

func TestConnectionObservesRTTOnCompletion(t *testing.T) {
	ln := fakeRedisServer(t, func(cmd string, args []string) resp3.Message {
		if cmd == "HELLO" {
			return resp3.Message{Kind: resp3.KindMap}
		}
		return resp3.Message{Kind: resp3.KindSimpleString, Str: "PONG"}
	})
	defer ln.Close()
	host, port := listenerHostPort(t, ln)

	trace := &traceRecorder{}
	metrics := &recordingMetrics{}

	cfg := baseTestConfig(host, port)
	cfg.Metrics = metrics
	cfg.OnTraceStart = trace.OnStart
	cfg.OnTraceFinish = trace.OnFinish

	conn := New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	req := &capturingRequest{}
	req.push("PING")
	sink := pipeline.NewFixedSink([]pipeline.SlotTarget{req})
	if err := conn.Enqueue(ctx, pipeline.OutboundRequest{Bytes: req.bytes, CommandCount: 1}, sink, time.Time{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-sink.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for PING reply")
	}

	// sink.Done() fires from inside sink.Deliver, which pipeline.OnMessage
	// calls before checking IsComplete() and running finishTrace on the
	// same (actor) goroutine; poll briefly rather than assume the two are
	// simultaneously visible to this goroutine.
	var traceFinishes []pipeline.TraceInfo
	var traceStarts []pipeline.TraceInfo
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		traceStarts, traceFinishes = trace.snapshot()
		if len(traceFinishes) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if len(traceStarts) != 1 {
		t.Fatalf("traceStarts = %d, want 1", len(traceStarts))
	}
	if len(traceFinishes) != 1 {
		t.Fatalf("traceFinishes = %d, want 1", len(traceFinishes))
	}
	if traceFinishes[0].OKCount != 1 || traceFinishes[0].ErrorCount != 0 {
		t.Fatalf("traceFinishes[0] = %+v, want OKCount=1 ErrorCount=0", traceFinishes[0])
	}
	rtts := metrics.snapshot()
	if len(rtts) != 1 {
		t.Fatalf("ObserveRTT called %d times, want 1", len(rtts))
	}
	if rtts[0] < 0 {
		t.Fatalf("observed negative RTT: %v", rtts[0])
	}
}

// TestConnectionReconnectLeavesExactlyOneControlLoop exercises the actor's
// single-owner invariant across a reconnect: the server closes the socket
// right after the handshake, forcing handleError -> reconnectLoop, and the
// test asserts the connection emits exactly one EventClosed on the final
// Close(), which would double-fire if the pre-reconnect controlLoop
// survived its handleError branch instead of returning.
func TestConnectionReconnectLeavesExactlyOneControlLoop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	host, port := listenerHostPort(t, ln)

	accepted := make(chan struct{}, 2)
	go func() {
		for i := 0; i < 2; i++ {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- struct{}{}
			first := i == 0
			go func(c net.Conn, dropAfterHandshake bool) {
				defer c.Close()
				p := resp3.NewParser(resp3.DefaultLimits())
				buf := make([]byte, 4096)
				for {
					root, status, err := p.ParseOne()
					if err != nil {
						return
					}
					if status != resp3.StatusReady {
						n, err := c.Read(buf)
						if err != nil {
							return
						}
						dst := p.Prepare(n)
						copy(dst, buf[:n])
						p.Commit(n)
						continue
					}
					p.Reclaim()
					c.Write(resp3.Encode(resp3.Message{Kind: resp3.KindMap}))
					if dropAfterHandshake {
						return
					}
				}
			}(c, first)
		}
	}()

	var events []Event
	cfg := baseTestConfig(host, port)
	cfg.Reconnection = ReconnectionPolicy{Enabled: true, ImmediateAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2}
	cfg.OnEvent = func(ev Event) { events = append(events, ev) }

	conn := New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never accepted first connection")
	}
	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never reconnected")
	}

	deadline := time.Now().Add(2 * time.Second)
	for conn.State() != StateOpen && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := conn.State(); got != StateOpen {
		t.Fatalf("State() after reconnect = %v, want %v", got, StateOpen)
	}

	conn.Close()

	closedCount := 0
	for _, ev := range events {
		if ev.Kind == EventClosed {
			closedCount++
		}
	}
	if closedCount != 1 {
		t.Fatalf("EventClosed fired %d times, want exactly 1 (zombie controlLoop)", closedCount)
	}
}
