// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/nishisan-dev/rediscoro/internal/pipeline"
	"github.com/nishisan-dev/rediscoro/internal/rerr"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// Config carries every field of rediscoro.Config the connection actor
// needs. Duplicated here (rather than imported) to keep internal/connio
// free of a dependency on the root package — the root package's Client
// translates its own Config into this shape when it creates a Connection.
type Config struct {
	Host string
	Port uint16

	ResolveTimeout time.Duration
	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	Handshake HandshakeOptions

	Reconnection ReconnectionPolicy

	MaxBytesPerSec int64

	TraceHandshake bool
	OnTraceStart   func(pipeline.TraceInfo)
	OnTraceFinish  func(pipeline.TraceInfo)
	OnEvent        func(Event)

	Logger  *slog.Logger
	Metrics MetricsRecorder

	Limits resp3.Limits
}

// Event mirrors rediscoro.ConnectionEvent.
type Event struct {
	Kind       EventKind
	Generation uint64
	Reconnects int
	Err        *rerr.Error
}

// EventKind enumerates the lifecycle events a Connection can emit.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventClosed       EventKind = "closed"
)

type enqueueRequest struct {
	req      pipeline.OutboundRequest
	sink     pipeline.Sink
	deadline time.Time
	result   chan *rerr.Error
}

// Connection is the single-connection actor: it owns a net.Conn, a RESP3
// parser, and a pipeline, and runs one control loop that alone mutates
// the pipeline, handing each socket read and write to a short-lived
// helper goroutine and coordinating only through channels and atomics, following the
// teacher's ControlChannel in shape — a state atomic, a stop channel
// closed once via sync.Once, a goroutine group joined on Close.
type Connection struct {
	cfg    Config
	logger *slog.Logger
	connID string

	state      *stateBox
	generation atomic.Uint64
	reconnects atomic.Int32

	pipe   *pipeline.Pipeline
	parser *resp3.Parser

	conn   net.Conn
	writer io.Writer

	enqueueCh chan enqueueRequest
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	rnd *rand.Rand
}

// setConn installs conn as the active socket, wrapping its write side with
// a rate limiter when cfg.MaxBytesPerSec is set so the write loop never
// writes faster than the configured budget.
func (c *Connection) setConn(conn net.Conn) {
	c.conn = conn
	c.writer = newThrottledWriter(c.ioContext(), conn, c.cfg.MaxBytesPerSec)
}

// ioContext ties outbound throttling to the connection's lifetime: a
// blocked WaitN unblocks as soon as Close fires, instead of outliving it.
func (c *Connection) ioContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.stopCh
		cancel()
	}()
	return ctx
}

// New creates a Connection in StateInit. Call Connect to dial and start
// the actor loops.
func New(cfg Config) *Connection {
	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("conn_id", id)

	c := &Connection{
		cfg:       cfg,
		logger:    logger,
		connID:    id,
		state:     newStateBox(StateInit),
		parser:    resp3.NewParser(cfg.Limits),
		enqueueCh: make(chan enqueueRequest, 64),
		stopCh:    make(chan struct{}),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.pipe = pipeline.New(0, 0, c.onTraceStart, c.onTraceFinish)
	return c
}

// onTraceStart forwards a request's enqueue to cfg.OnTraceStart, if set,
// guarding the connection against a panic inside the caller-supplied hook.
func (c *Connection) onTraceStart(info pipeline.TraceInfo) {
	if c.cfg.OnTraceStart == nil {
		return
	}
	recoverTraceHook(c.logger, "trace_start", func() { c.cfg.OnTraceStart(info) })
}

// onTraceFinish records the request's round-trip time and forwards the
// completed trace to cfg.OnTraceFinish, if set.
func (c *Connection) onTraceFinish(info pipeline.TraceInfo) {
	if c.cfg.Metrics != nil && !info.EnqueuedAt.IsZero() && !info.FinishedAt.IsZero() {
		c.cfg.Metrics.ObserveRTT(info.FinishedAt.Sub(info.EnqueuedAt))
	}
	if c.cfg.OnTraceFinish == nil {
		return
	}
	recoverTraceHook(c.logger, "trace_finish", func() { c.cfg.OnTraceFinish(info) })
}

// State returns a lock-free snapshot of the connection's current state.
func (c *Connection) State() State { return c.state.load() }

// ConnID returns this connection's correlation id, used to tag every log
// line it emits.
func (c *Connection) ConnID() string { return c.connID }

// Connect dials the server, runs the handshake, and starts the actor
// loops. It blocks until the initial connection either succeeds or fails;
// initial failure is returned directly (never routed through the FAILED
// state, which is reserved for runtime errors after reaching OPEN).
func (c *Connection) Connect(ctx context.Context) error {
	c.state.store(StateConnecting)
	conn, err := c.dialAndHandshake(ctx)
	if err != nil {
		c.state.store(StateInit)
		return err
	}
	c.setConn(conn)
	c.generation.Add(1)
	c.state.store(StateOpen)
	c.emitEvent(Event{Kind: EventConnected, Generation: c.generation.Load()})

	c.wg.Add(1)
	go c.controlLoop()
	return nil
}

// Enqueue pushes req onto the pipeline if the connection is OPEN. It may
// be called from any goroutine; the call always hops through enqueueCh to
// reach the control loop, since Go offers no cheap "already on this
// goroutine" check.
func (c *Connection) Enqueue(ctx context.Context, req pipeline.OutboundRequest, sink pipeline.Sink, deadline time.Time) *rerr.Error {
	switch c.state.load() {
	case StateOpen:
	case StateInit, StateConnecting:
		return rerr.New(rerr.NotConnected, "")
	case StateFailed, StateReconnecting:
		return rerr.New(rerr.ConnectionLost, "")
	default:
		return rerr.New(rerr.ConnectionClosed, "")
	}

	result := make(chan *rerr.Error, 1)
	select {
	case c.enqueueCh <- enqueueRequest{req: req, sink: sink, deadline: deadline, result: result}:
	case <-ctx.Done():
		return rerr.New(rerr.OperationAborted, ctx.Err().Error())
	case <-c.stopCh:
		return rerr.New(rerr.ConnectionClosed, "")
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return rerr.New(rerr.OperationAborted, ctx.Err().Error())
	case <-c.stopCh:
		return rerr.New(rerr.ConnectionClosed, "")
	}
}

// Close requests shutdown, fails every outstanding sink, closes the
// socket, and joins the actor. Idempotent.
func (c *Connection) Close() {
	first := false
	c.stopOnce.Do(func() {
		close(c.stopCh)
		first = true
	})
	c.wg.Wait()
	if first && c.state.load() == StateClosing {
		// A failure with reconnection disabled left CLOSING behind and
		// the control loop has already returned; finish the shutdown here.
		c.handleClose()
	}
}

func (c *Connection) emitEvent(ev Event) {
	ev.Reconnects = int(c.reconnects.Load())
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}

// dialAndHandshake resolves, dials plain TCP (TLS is an explicit Non-goal,
// §6), and runs the HELLO/AUTH/SELECT/CLIENT-SETNAME handshake.
func (c *Connection) dialAndHandshake(ctx context.Context) (net.Conn, error) {
	resolveCtx, cancel := context.WithTimeout(ctx, c.cfg.ResolveTimeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(int(c.cfg.Port)))

	connectCtx, cancelConnect := context.WithTimeout(resolveCtx, c.cfg.ConnectTimeout)
	defer cancelConnect()

	conn, err := dialer.DialContext(connectCtx, "tcp", addr)
	if err != nil {
		if connectCtx.Err() != nil {
			return nil, rerr.Wrap(rerr.ConnectTimeout, err)
		}
		return nil, rerr.Wrap(rerr.ConnectFailed, err)
	}

	if c.cfg.ConnectTimeout > 0 {
		conn.SetDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	}
	if err := runHandshake(conn, c.parser, c.cfg.Handshake, c.cfg.TraceHandshake, c.logger); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})
	return conn, nil
}

type readResult struct {
	data []byte
	err  error
}

type writeResult struct {
	n   int
	err error
}

// controlLoop is the connection's single owner of state and pipeline
// mutation. It dispatches blocking socket I/O to two helper goroutines and
// communicates with them purely over channels, so no two goroutines ever
// touch the socket in the same direction concurrently, and the pipeline is
// only ever mutated here.
func (c *Connection) controlLoop() {
	defer c.wg.Done()

	// conn is pinned for the lifetime of this controlLoop instance. c.conn
	// may be reassigned by reconnectLoop once this loop has returned and a
	// new controlLoop has been spawned; reading the field instead of this
	// local at cleanup time would risk closing the new socket.
	conn := c.conn

	readCh := make(chan readResult, 1)
	writeCh := make(chan writeResult, 1)
	ioStop := make(chan struct{})

	var writeInFlight bool
	var readerStarted bool

	startReader := func() {
		if readerStarted {
			return
		}
		readerStarted = true
		go socketReadLoop(conn, readCh, ioStop)
	}

	var deadlineTimer *time.Timer
	resetDeadlineTimer := func() {
		if deadlineTimer != nil {
			deadlineTimer.Stop()
		}
		if dl, ok := c.pipe.NextDeadline(); ok {
			d := time.Until(dl)
			if d < 0 {
				d = 0
			}
			deadlineTimer = time.NewTimer(d)
		} else {
			deadlineTimer = time.NewTimer(24 * time.Hour)
		}
	}

	startReader()
	resetDeadlineTimer()
	kickWrite := func() {
		if writeInFlight || !c.pipe.HasPendingWrite() {
			return
		}
		buf := c.pipe.NextWriteBuffer()
		writeInFlight = true
		go socketWriteLoop(c.writer, buf, writeCh, ioStop)
	}

	defer func() {
		close(ioStop)
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		switch c.state.load() {
		case StateOpen:
			kickWrite()
		}

		select {
		case <-c.stopCh:
			c.handleClose()
			return

		case er := <-c.enqueueCh:
			if c.state.load() != StateOpen {
				er.result <- rerr.New(rerr.NotConnected, "")
				continue
			}
			if !c.pipe.Push(er.req, er.sink, er.deadline) {
				er.result <- rerr.New(rerr.QueueFull, "")
				continue
			}
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RequestSent()
			}
			resetDeadlineTimer()
			er.result <- nil

		case res := <-writeCh:
			writeInFlight = false
			if res.err != nil {
				c.handleError(rerr.Wrap(rerr.WriteError, res.err))
				return
			}
			c.pipe.OnWriteDone(res.n)
			resetDeadlineTimer()

		case res := <-readCh:
			readerStarted = false
			if res.err != nil {
				c.handleError(rerr.Wrap(rerr.ConnectionReset, res.err))
				return
			}
			c.onReadBytes(res.data)
			if c.state.load() != StateOpen {
				return
			}
			resetDeadlineTimer()
			startReader()

		case <-deadlineTimer.C:
			if c.pipe.HasExpired(time.Now()) {
				c.handleError(rerr.New(rerr.RequestTimeout, ""))
				return
			}
			resetDeadlineTimer()
		}
	}
}

func (c *Connection) onReadBytes(data []byte) {
	dst := c.parser.Prepare(len(data))
	copy(dst, data)
	c.parser.Commit(len(data))

	for {
		root, status, err := c.parser.ParseOne()
		if err != nil {
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.ProtocolErrorObserved()
			}
			c.handleError(rerr.Wrap(rerr.InvalidState, err))
			return
		}
		if status != resp3.StatusReady {
			return
		}
		msg := resp3.Builder{}.Build(c.parser.Tree(), root)
		c.parser.Reclaim()
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.ReplyReceived()
		}
		if msg.Kind.IsError() {
			detail := msg.Str
			if msg.Kind == resp3.KindBulkError {
				detail = string(msg.Bytes)
			}
			c.pipe.OnError(rerr.New(rerr.RedisError, detail))
			continue
		}
		c.pipe.OnMessage(msg)
	}
}

// handleError is the sole runtime failure entry point: idempotent (no-op
// once already failed/reconnecting/closing/closed), otherwise fails every
// outstanding sink and either begins reconnection or terminates.
func (c *Connection) handleError(err *rerr.Error) {
	switch c.state.load() {
	case StateFailed, StateReconnecting, StateClosing, StateClosed:
		return
	}

	c.logger.Warn("connection failed", "error", err, "code", err.Code)
	c.state.store(StateFailed)
	c.pipe.ClearAll(err)
	if c.conn != nil {
		c.conn.Close()
	}
	c.emitEvent(Event{Kind: EventDisconnected, Generation: c.generation.Load(), Err: err})

	if !c.cfg.Reconnection.Enabled {
		c.state.store(StateClosing)
		return
	}

	go c.reconnectLoop()
}

// reconnectLoop runs outside controlLoop's select (it does blocking
// network I/O) after the previous controlLoop has returned. It sleeps each
// backoff delay in FAILED, moves to RECONNECTING for the attempt itself,
// and on success stores the new socket and state directly and starts a
// fresh controlLoop. It respects stopCh so a Close during backoff aborts
// promptly.
func (c *Connection) reconnectLoop() {
	attempt := int(c.reconnects.Load())

	for {
		delay := backoffDelay(c.cfg.Reconnection, attempt, c.rnd)
		timer := time.NewTimer(delay)
		select {
		case <-c.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		c.state.store(StateReconnecting)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.ReconnectAttempted()
		}
		conn, err := c.dialAndHandshake(context.Background())
		attempt++
		c.reconnects.Store(int32(attempt))
		if err != nil {
			c.state.store(StateFailed)
			c.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			select {
			case <-c.stopCh:
				return
			default:
			}
			continue
		}

		c.setConn(conn)
		c.generation.Add(1)
		c.state.store(StateOpen)
		c.emitEvent(Event{Kind: EventConnected, Generation: c.generation.Load()})
		c.wg.Add(1)
		go c.controlLoop()
		return
	}
}

func (c *Connection) handleClose() {
	c.state.store(StateClosing)
	c.pipe.ClearAll(rerr.New(rerr.ConnectionClosed, ""))
	if c.conn != nil {
		c.conn.Close()
	}
	c.state.store(StateClosed)
	c.emitEvent(Event{Kind: EventClosed, Generation: c.generation.Load()})
	c.logger.Info("connection closed")
}

// socketReadLoop performs exactly one conn.Read and reports the result,
// exiting afterward; controlLoop restarts it as long as the connection
// remains OPEN. A single in-flight read at a time matches net.Conn's
// one-concurrent-reader contract.
func socketReadLoop(conn net.Conn, out chan<- readResult, stop <-chan struct{}) {
	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	data := append([]byte(nil), buf[:n]...)
	select {
	case out <- readResult{data: data, err: err}:
	case <-stop:
	}
}

// socketWriteLoop performs exactly one write of buf through w (the raw
// socket, or a throttledWriter wrapping it) and reports the result. A
// single in-flight write at a time matches net.Conn's one-concurrent-writer
// contract.
func socketWriteLoop(w io.Writer, buf []byte, out chan<- writeResult, stop <-chan struct{}) {
	n, err := w.Write(buf)
	select {
	case out <- writeResult{n: n, err: err}:
	case <-stop:
	}
}

// recoverTraceHook runs fn, converting a panic into an error-level log line
// built with github.com/pkg/errors so it carries a stack trace — the one
// place in the codebase that needs a stack trace fmt.Errorf cannot attach,
// guarding against a programmer error in a user-supplied trace hook taking
// down the connection. Connection event hooks are called without this
// guard.
func recoverTraceHook(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			wrapped := pkgerrors.Errorf("panic in %s hook: %v", name, r)
			logger.Error("hook panicked", "error", fmt.Sprintf("%+v", wrapped))
		}
	}()
	fn()
}
