// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connio

import (
	"math/rand"
	"testing"
	"time"
)

func TestBackoffDelayImmediateAttempts(t *testing.T) {
	p := ReconnectionPolicy{
		ImmediateAttempts: 3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffFactor:     2.0,
	}
	rnd := rand.New(rand.NewSource(1))
	for k := 0; k < 3; k++ {
		if d := backoffDelay(p, k, rnd); d != 0 {
			t.Fatalf("attempt %d: delay = %v, want 0", k, d)
		}
	}
}

func TestBackoffDelayExponentialGrowthAndCap(t *testing.T) {
	p := ReconnectionPolicy{
		ImmediateAttempts: 0,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffFactor:     2.0,
	}
	rnd := rand.New(rand.NewSource(1))

	d0 := backoffDelay(p, 0, rnd)
	d1 := backoffDelay(p, 1, rnd)
	d2 := backoffDelay(p, 2, rnd)
	if d0 != 100*time.Millisecond {
		t.Fatalf("d0 = %v, want 100ms", d0)
	}
	if d1 != 200*time.Millisecond {
		t.Fatalf("d1 = %v, want 200ms", d1)
	}
	if d2 != 400*time.Millisecond {
		t.Fatalf("d2 = %v, want 400ms", d2)
	}

	dCapped := backoffDelay(p, 10, rnd)
	if dCapped != p.MaxDelay {
		t.Fatalf("dCapped = %v, want %v", dCapped, p.MaxDelay)
	}
}

func TestBackoffDelayJitterStaysWithinRange(t *testing.T) {
	p := ReconnectionPolicy{
		ImmediateAttempts: 0,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffFactor:     1.0,
		JitterRatio:       0.5,
	}
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		d := backoffDelay(p, 0, rnd)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}
