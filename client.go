// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rediscoro

import (
	"context"
	"time"

	"github.com/nishisan-dev/rediscoro/internal/connio"
	"github.com/nishisan-dev/rediscoro/internal/pipeline"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// Client is the public facade over one connection actor: it owns request
// encoding and response decoding, and forwards connection lifecycle calls
// to internal/connio.Connection. A Client is safe for concurrent use by
// multiple goroutines; Exec/ExecPipeline/ExecDynamic may be called
// concurrently and each enqueues independently.
type Client struct {
	cfg  *Config
	conn *connio.Connection
}

// NewClient validates cfg and returns a Client in its initial,
// not-yet-connected state. Call Connect before issuing commands.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		conn: connio.New(toConnioConfig(cfg)),
	}, nil
}

// toConnioConfig translates the public Config into internal/connio's
// duplicated shape, field by field, since connio cannot import the root
// package without creating a cycle.
func toConnioConfig(cfg *Config) connio.Config {
	return connio.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ResolveTimeout: cfg.ResolveTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
		RequestTimeout: cfg.RequestTimeout,
		Handshake: connio.HandshakeOptions{
			Username:   cfg.Username,
			Password:   cfg.Password,
			Database:   cfg.Database,
			ClientName: cfg.ClientName,
		},
		Reconnection: connio.ReconnectionPolicy{
			Enabled:           cfg.Reconnection.Enabled,
			ImmediateAttempts: cfg.Reconnection.ImmediateAttempts,
			InitialDelay:      cfg.Reconnection.InitialDelay,
			MaxDelay:          cfg.Reconnection.MaxDelay,
			BackoffFactor:     cfg.Reconnection.BackoffFactor,
			JitterRatio:       cfg.Reconnection.JitterRatio,
		},
		MaxBytesPerSec: cfg.MaxBytesPerSec,
		TraceHandshake: cfg.TraceHandshake,
		OnTraceStart:   connioTraceAdapter(cfg.TraceHooks.OnStart),
		OnTraceFinish:  connioTraceAdapter(cfg.TraceHooks.OnFinish),
		OnEvent:        connioEventAdapter(cfg.ConnectionHooks.OnEvent),
		Logger:         cfg.Logger,
		Metrics:        connioMetricsAdapter(cfg.Metrics),
		Limits:         resp3.DefaultLimits(),
	}
}

// connioTraceAdapter wraps a rediscoro.RequestTraceInfo callback so it can
// be handed to internal/connio, translating pipeline.TraceInfo back into
// the public shape at the boundary.
func connioTraceAdapter(hook func(RequestTraceInfo)) func(pipeline.TraceInfo) {
	if hook == nil {
		return nil
	}
	return func(info pipeline.TraceInfo) {
		hook(RequestTraceInfo{
			CommandCount: info.CommandCount,
			EnqueuedAt:   info.EnqueuedAt,
			FinishedAt:   info.FinishedAt,
			OKCount:      info.OKCount,
			ErrorCount:   info.ErrorCount,
			FirstError:   info.FirstError,
		})
	}
}

// connioEventAdapter wraps a rediscoro.ConnectionHooks.OnEvent callback so
// it can be handed to internal/connio, translating connio.Event back into
// the public ConnectionEvent shape at the boundary.
func connioEventAdapter(onEvent func(ConnectionEvent)) func(connio.Event) {
	if onEvent == nil {
		return nil
	}
	return func(ev connio.Event) {
		onEvent(ConnectionEvent{
			Kind:       ConnectionEventKind(ev.Kind),
			Generation: ev.Generation,
			Reconnects: ev.Reconnects,
			Err:        ev.Err,
		})
	}
}

// connioMetricsAdapter re-exposes a rediscoro.MetricsRecorder as a
// connio.MetricsRecorder. The two interfaces are structurally identical;
// this indirection only exists because Go requires the assignment to
// happen through a named conversion when crossing package boundaries with
// duplicated (not shared) interface types is not otherwise expressible
// without the caller's concrete type already satisfying connio's interface
// directly, which any real MetricsRecorder implementation does.
func connioMetricsAdapter(m MetricsRecorder) connio.MetricsRecorder {
	if m == nil {
		return nil
	}
	return m
}

// Connect dials the server, performs the RESP3 handshake, and starts the
// connection actor. It blocks until the initial attempt succeeds or fails.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Close fails every outstanding command, closes the socket, and joins the
// actor goroutine. Idempotent and safe to call from any goroutine.
func (c *Client) Close() {
	c.conn.Close()
}

// State reports the connection's current lifecycle state as a string
// (e.g. "open", "reconnecting"), matching internal/connio.State's values.
func (c *Client) State() string {
	return string(c.conn.State())
}

// Exec encodes a single command, sends it, and decodes its reply as T. It
// blocks until the reply arrives, the context is cancelled, or the
// connection's configured RequestTimeout elapses.
func Exec[T any](ctx context.Context, c *Client, cmd string, args ...any) (T, error) {
	out := NewCmd[T](cmd, args...)
	sink := pipeline.NewFixedSink([]pipeline.SlotTarget{out})

	deadline := c.requestDeadline()
	if err := c.enqueue(ctx, out.request(), sink, deadline); err != nil {
		var zero T
		return zero, err
	}
	if err := c.await(ctx, sink); err != nil {
		var zero T
		return zero, err
	}
	if out.Err() != nil {
		var zero T
		return zero, out.Err()
	}
	return out.Val(), nil
}

// rawTarget adapts a single resp3.Message slot to pipeline.SlotTarget
// without decoding it into any Go type, backing ExecRaw.
type rawTarget struct {
	msg resp3.Message
	err *Error
}

func (t *rawTarget) Deliver(msg resp3.Message) { t.msg = msg }
func (t *rawTarget) DeliverError(err *Error)   { t.err = err }

// ExecRaw sends one already-encoded Request and returns its reply
// undecoded, for callers (such as cmd/rediscoro-cli's REPL) that print or
// inspect a reply without committing to a Go type ahead of time.
func ExecRaw(ctx context.Context, c *Client, req *Request) (resp3.Message, error) {
	target := &rawTarget{}
	sink := pipeline.NewFixedSink([]pipeline.SlotTarget{target})

	deadline := c.requestDeadline()
	if err := c.enqueue(ctx, req, sink, deadline); err != nil {
		return resp3.Message{}, err
	}
	if err := c.await(ctx, sink); err != nil {
		return resp3.Message{}, err
	}
	if target.err != nil {
		return resp3.Message{}, target.err
	}
	return target.msg, nil
}

// ExecPipeline sends every cmd as a single pipelined request — one write,
// one batch of replies in command order — and fills in each Cmd's Val/Err
// in place. It blocks until every command has a reply or the sink fails.
// cmds may carry different type parameters, since cmder type-erases them.
func (c *Client) ExecPipeline(ctx context.Context, cmds ...cmder) error {
	if len(cmds) == 0 {
		return nil
	}

	req := NewRequest()
	targets := make([]pipeline.SlotTarget, len(cmds))
	for i, cmd := range cmds {
		req.buf = append(req.buf, cmd.request().Bytes()...)
		req.commands += cmd.request().CommandCount()
		targets[i] = cmd
	}
	sink := pipeline.NewFixedSink(targets)

	deadline := c.requestDeadline()
	if err := c.enqueue(ctx, req, sink, deadline); err != nil {
		return err
	}
	return c.await(ctx, sink)
}

// dynamicDecoder adapts a []Slot[T] accumulator to pipeline.DynamicDecoder
// without internal/pipeline needing to know about Slot or T.
type dynamicDecoder[T any] struct {
	slots []Slot[T]
}

func (d *dynamicDecoder[T]) AppendValue(msg resp3.Message) {
	v, err := resp3.Adapt[T](msg)
	if err != nil {
		d.slots = append(d.slots, Slot[T]{Err: adapterToError(err)})
		return
	}
	d.slots = append(d.slots, Slot[T]{Val: v})
}

func (d *dynamicDecoder[T]) AppendError(err *Error) {
	d.slots = append(d.slots, Slot[T]{Err: err})
}

// ExecDynamic sends every req as one pipelined request with a runtime-known
// command count and decodes each reply as T, returning one Slot per
// command in request order. Unlike ExecPipeline, every reply shares type T.
func ExecDynamic[T any](ctx context.Context, c *Client, reqs ...*Request) ([]Slot[T], error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	combined := NewRequest()
	expected := 0
	for _, r := range reqs {
		combined.buf = append(combined.buf, r.Bytes()...)
		combined.commands += r.CommandCount()
		expected += r.CommandCount()
	}

	decoder := &dynamicDecoder[T]{slots: make([]Slot[T], 0, expected)}
	sink := pipeline.NewDynamicSink(decoder, expected)

	deadline := c.requestDeadline()
	if err := c.enqueue(ctx, combined, sink, deadline); err != nil {
		return nil, err
	}
	if err := c.await(ctx, sink); err != nil {
		return nil, err
	}
	return decoder.slots, nil
}

// doneSink is implemented by both pipeline.FixedSink and
// pipeline.DynamicSink; await waits on whichever was used.
type doneSink interface {
	Done() <-chan struct{}
}

func (c *Client) enqueue(ctx context.Context, req *Request, sink pipeline.Sink, deadline time.Time) error {
	out := pipeline.OutboundRequest{Bytes: req.Bytes(), CommandCount: req.CommandCount()}
	if err := c.conn.Enqueue(ctx, out, sink, deadline); err != nil {
		return err
	}
	return nil
}

func (c *Client) await(ctx context.Context, sink doneSink) error {
	select {
	case <-sink.Done():
		return nil
	case <-ctx.Done():
		return NewError(ErrOperationAborted, ctx.Err().Error())
	}
}

func (c *Client) requestDeadline() time.Time {
	if c.cfg.RequestTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.RequestTimeout)
}
