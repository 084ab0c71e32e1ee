// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rediscoro

import "github.com/nishisan-dev/rediscoro/internal/rerr"

// ErrorDomain groups ErrorCode values by the layer that raised them.
type ErrorDomain = rerr.Domain

const (
	DomainClient   = rerr.DomainClient
	DomainProtocol = rerr.DomainProtocol
	DomainAdapter  = rerr.DomainAdapter
	DomainServer   = rerr.DomainServer
)

// ErrorCode is a stable, comparable identifier for a failure mode. Callers
// should branch on Code, never parse Detail.
type ErrorCode = rerr.Code

// Client-domain codes: raised by the connection actor or client facade.
const (
	ErrNotConnected      = rerr.NotConnected
	ErrConnectionLost    = rerr.ConnectionLost
	ErrConnectionClosed  = rerr.ConnectionClosed
	ErrConnectionReset   = rerr.ConnectionReset
	ErrAlreadyInProgress = rerr.AlreadyInProgress
	ErrOperationAborted  = rerr.OperationAborted
	ErrRequestTimeout    = rerr.RequestTimeout
	ErrResolveFailed     = rerr.ResolveFailed
	ErrResolveTimeout    = rerr.ResolveTimeout
	ErrConnectFailed     = rerr.ConnectFailed
	ErrConnectTimeout    = rerr.ConnectTimeout
	ErrHandshakeFailed   = rerr.HandshakeFailed
	ErrHandshakeTimeout  = rerr.HandshakeTimeout
	ErrWriteError        = rerr.WriteError
	ErrUnsolicitedMsg    = rerr.UnsolicitedMsg
	ErrQueueFull         = rerr.QueueFull
	ErrInternal          = rerr.InternalError
)

// Protocol-domain codes mirror internal/resp3's ProtocolErrorCode values.
const (
	ErrInvalidTypeByte   = rerr.InvalidTypeByte
	ErrInvalidLength     = rerr.InvalidLength
	ErrInvalidInteger    = rerr.InvalidInteger
	ErrInvalidDouble     = rerr.InvalidDouble
	ErrInvalidBoolean    = rerr.InvalidBoolean
	ErrInvalidNull       = rerr.InvalidNull
	ErrInvalidBulkTrailr = rerr.InvalidBulkTrailr
	ErrInvalidMapPairs   = rerr.InvalidMapPairs
	ErrInvalidState      = rerr.InvalidState
	ErrLimitExceeded     = rerr.LimitExceeded
)

// Adapter-domain codes mirror internal/resp3's AdapterErrorKind values.
const (
	ErrTypeMismatch  = rerr.TypeMismatch
	ErrUnexpectedNil = rerr.UnexpectedNil
	ErrOutOfRange    = rerr.OutOfRange
	ErrSizeMismatch  = rerr.SizeMismatch
	ErrInvalidValue  = rerr.InvalidValue
)

// ErrRedisError is the sole server-domain code; Detail carries the
// server's own error message verbatim.
const ErrRedisError = rerr.RedisError

// Error is the single error type returned across the library's public
// surface. Code is stable and safe to switch on; Detail is a human-oriented
// string that may change between releases. Error() renders
// "<domain>: <code> (<detail>)", the Go analogue of the original
// implementation's error_info::to_string().
type Error = rerr.Error

// NewError constructs an Error with no underlying cause.
func NewError(code ErrorCode, detail string) *Error {
	return rerr.New(code, detail)
}

// WrapError constructs an Error that wraps a lower-level cause, preserving
// it for errors.As/errors.Unwrap while keeping the stable public Code at
// the front of the chain.
func WrapError(code ErrorCode, cause error) *Error {
	return rerr.Wrap(code, cause)
}
