// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rediscoro

import "github.com/nishisan-dev/rediscoro/internal/resp3"

// Slot is a union of a decoded value or an error, used for dynamic-arity
// responses where every reply shares the same target type T.
type Slot[T any] struct {
	Val T
	Err *Error
}

// OK reports whether the slot holds a value rather than an error.
func (s Slot[T]) OK() bool { return s.Err == nil }

// Cmd is one command within a pipeline: it carries its own decode target
// type T, closing over it so a pipeline can hold a heterogeneous sequence
// of commands as a slice of the type-erased cmder interface (Go has no
// variadic heterogeneous tuple to express this the way C++ templates do).
type Cmd[T any] struct {
	req  *Request
	val  T
	err  *Error
	done bool
}

// NewCmd wraps a single-command Request for use with Client.ExecPipeline.
// cmd/args are encoded immediately, mirroring Exec's own encoding step.
func NewCmd[T any](name string, args ...any) *Cmd[T] {
	req := NewRequest()
	req.Push(name, args...)
	return &Cmd[T]{req: req}
}

// Val returns the decoded value. Only meaningful once the owning pipeline
// call has returned; returns the zero value before that.
func (c *Cmd[T]) Val() T { return c.val }

// Err returns the command's error, or nil if it completed successfully.
func (c *Cmd[T]) Err() *Error { return c.err }

// cmder is the type-erased handle Client.ExecPipeline uses to extract each
// Cmd[T]'s encoded request without the pipeline itself being generic over a
// tuple of types. Deliver/DeliverError satisfy pipeline.SlotTarget
// structurally (Go interfaces are satisfied by method set, not by
// declaration site), so a *Cmd[T] can be handed directly to a
// pipeline.FixedSink.
type cmder interface {
	request() *Request
	Deliver(msg resp3.Message)
	DeliverError(err *Error)
}

func (c *Cmd[T]) request() *Request { return c.req }

// Deliver decodes msg into T, satisfying pipeline.SlotTarget.
func (c *Cmd[T]) Deliver(msg resp3.Message) {
	c.done = true
	v, err := resp3.Adapt[T](msg)
	if err != nil {
		c.err = adapterToError(err)
		return
	}
	c.val = v
}

// DeliverError records err as this command's result, satisfying
// pipeline.SlotTarget.
func (c *Cmd[T]) DeliverError(err *Error) {
	c.done = true
	c.err = err
}

// adapterToError maps a resp3.AdapterError into the public Error taxonomy,
// preserving the server's message for redis_error and the structured path
// for every other adapter failure kind.
func adapterToError(err error) *Error {
	ae, ok := err.(*resp3.AdapterError)
	if !ok {
		return WrapError(ErrInternal, err)
	}
	if ae.Kind == resp3.AdapterServerError {
		return NewError(ErrRedisError, ae.ServerDetail)
	}
	code := map[resp3.AdapterErrorKind]ErrorCode{
		resp3.AdapterTypeMismatch:   ErrTypeMismatch,
		resp3.AdapterUnexpectedNull: ErrUnexpectedNil,
		resp3.AdapterOutOfRange:     ErrOutOfRange,
		resp3.AdapterSizeMismatch:   ErrSizeMismatch,
		resp3.AdapterInvalidValue:  ErrInvalidValue,
	}[ae.Kind]
	if code == "" {
		code = ErrInvalidValue
	}
	return WrapError(code, ae)
}
