// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connio

import (
	"math"
	"math/rand"
	"time"
)

// ReconnectionPolicy mirrors rediscoro.ReconnectionPolicy, duplicated here
// (rather than imported) to keep internal/connio free of a dependency on
// the root package.
type ReconnectionPolicy struct {
	Enabled           bool
	ImmediateAttempts int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffFactor     float64
	JitterRatio       float64
}

// backoffDelay computes the reconnect delay for attempt k (0-indexed),
// generalizing the teacher's ControlChannel.run() backoff loop (which
// doubles unconditionally from the first failure) by prepending an
// immediate-attempts window during which the delay is zero, per the
// original reconnection_policy's documented algorithm.
func backoffDelay(p ReconnectionPolicy, k int, rnd *rand.Rand) time.Duration {
	if k < p.ImmediateAttempts {
		return 0
	}
	exp := float64(k - p.ImmediateAttempts)
	delay := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, exp)
	if delay < float64(p.InitialDelay) {
		delay = float64(p.InitialDelay)
	}
	if max := float64(p.MaxDelay); delay > max {
		delay = max
	}
	if p.JitterRatio > 0 {
		lo := 1 - p.JitterRatio
		hi := 1 + p.JitterRatio
		delay *= lo + rnd.Float64()*(hi-lo)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
