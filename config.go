// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rediscoro

import (
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ReconnectionPolicy governs whether and how the connection actor retries
// after losing an established connection. Defaults (DefaultReconnectionPolicy)
// are carried verbatim from the original implementation's config header,
// since the distilled spec only implies their existence.
type ReconnectionPolicy struct {
	Enabled bool

	// ImmediateAttempts is the number of reconnect attempts made with no
	// delay before exponential backoff kicks in.
	ImmediateAttempts int

	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// JitterRatio multiplies each computed delay by a value drawn
	// uniformly from [1-r, 1+r]. Zero disables jitter.
	JitterRatio float64
}

// DefaultReconnectionPolicy returns the policy defaults carried from the
// original C++ implementation's config.hpp.
func DefaultReconnectionPolicy() ReconnectionPolicy {
	return ReconnectionPolicy{
		Enabled:           false,
		ImmediateAttempts: 5,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffFactor:     2.0,
		JitterRatio:       0,
	}
}

// RequestTraceInfo describes one completed (or failed) request, passed to
// TraceHooks.OnStart/OnFinish.
type RequestTraceInfo struct {
	CommandCount int
	EnqueuedAt   time.Time
	FinishedAt   time.Time
	OKCount      int
	ErrorCount   int
	FirstError   *Error
}

// TraceHooks are invoked on the connection's actor goroutine around every
// request's lifecycle. Implementations must not block or panic; a
// recovered panic is logged at error level with a stack trace and does not
// take down the connection.
type TraceHooks struct {
	OnStart  func(RequestTraceInfo)
	OnFinish func(RequestTraceInfo)
}

// ConnectionEvent reports a connection lifecycle transition.
type ConnectionEvent struct {
	Kind       ConnectionEventKind
	Generation uint64
	Reconnects int
	Err        *Error
}

// ConnectionEventKind enumerates the lifecycle events ConnectionHooks can
// observe.
type ConnectionEventKind string

const (
	EventConnected    ConnectionEventKind = "connected"
	EventDisconnected ConnectionEventKind = "disconnected"
	EventClosed       ConnectionEventKind = "closed"
)

// ConnectionHooks are invoked on the connection's actor goroutine for every
// lifecycle transition.
type ConnectionHooks struct {
	OnEvent func(ConnectionEvent)
}

// MetricsRecorder is implemented by internal/connio's Prometheus-backed
// recorder. A nil Config.Metrics disables metrics entirely at the call
// site (a nil check, not a no-op implementation), so no label sets are
// allocated on the hot path when metrics are off.
type MetricsRecorder interface {
	RequestSent()
	ReplyReceived()
	ReconnectAttempted()
	ProtocolErrorObserved()
	ObserveRTT(time.Duration)
}

// Config configures a single connection. The zero value is not usable;
// construct via NewConfig or populate every required field directly.
type Config struct {
	Host string
	Port uint16

	ResolveTimeout time.Duration
	ConnectTimeout time.Duration
	RequestTimeout time.Duration // 0 disables per-request deadlines

	Username   string
	Password   string
	Database   int
	ClientName string

	Reconnection ReconnectionPolicy

	TraceHooks      TraceHooks
	TraceHandshake  bool
	ConnectionHooks ConnectionHooks

	// MaxBytesPerSec limits outbound write throughput; 0 disables limiting.
	MaxBytesPerSec int64

	Logger  *slog.Logger
	Metrics MetricsRecorder
}

// NewConfig returns a Config with Host/Port defaulted to localhost:6379 and
// reconnection disabled, matching DefaultReconnectionPolicy's Enabled=false.
func NewConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           6379,
		ResolveTimeout: 5 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Reconnection:   DefaultReconnectionPolicy(),
	}
}

// Validate aggregates every invalid field into a single error via
// hashicorp/go-multierror, rather than stopping at the first problem,
// so a caller with several unrelated mistakes sees all of them at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Host == "" {
		result = multierror.Append(result, NewError(ErrInvalidValue, "Host must not be empty"))
	}
	if c.Port == 0 {
		result = multierror.Append(result, NewError(ErrInvalidValue, "Port must not be zero"))
	}
	if c.ConnectTimeout <= 0 {
		result = multierror.Append(result, NewError(ErrInvalidValue, "ConnectTimeout must be positive"))
	}
	if c.ResolveTimeout <= 0 {
		result = multierror.Append(result, NewError(ErrInvalidValue, "ResolveTimeout must be positive"))
	}
	if c.Database < 0 {
		result = multierror.Append(result, NewError(ErrInvalidValue, "Database must not be negative"))
	}
	if c.MaxBytesPerSec < 0 {
		result = multierror.Append(result, NewError(ErrInvalidValue, "MaxBytesPerSec must not be negative"))
	}

	r := c.Reconnection
	if r.Enabled {
		if r.ImmediateAttempts < 0 {
			result = multierror.Append(result, NewError(ErrInvalidValue, "Reconnection.ImmediateAttempts must not be negative"))
		}
		if r.InitialDelay <= 0 {
			result = multierror.Append(result, NewError(ErrInvalidValue, "Reconnection.InitialDelay must be positive"))
		}
		if r.MaxDelay < r.InitialDelay {
			result = multierror.Append(result, NewError(ErrInvalidValue, "Reconnection.MaxDelay must be >= InitialDelay"))
		}
		if r.BackoffFactor < 1 {
			result = multierror.Append(result, NewError(ErrInvalidValue, "Reconnection.BackoffFactor must be >= 1"))
		}
		if r.JitterRatio < 0 || r.JitterRatio > 1 {
			result = multierror.Append(result, NewError(ErrInvalidValue, "Reconnection.JitterRatio must be within [0, 1]"))
		}
	}

	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}
