// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rediscoro

import (
	"strings"
	"testing"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if cfg.Reconnection.Enabled {
		t.Fatal("NewConfig() should leave reconnection disabled by default")
	}
}

func TestConfigValidateAggregatesEveryError(t *testing.T) {
	cfg := &Config{
		Host:           "",
		Port:           0,
		ConnectTimeout: 0,
		ResolveTimeout: 0,
		Database:       -1,
		MaxBytesPerSec: -1,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want an aggregated error")
	}
	msg := err.Error()
	for _, want := range []string{"Host", "Port", "ConnectTimeout", "ResolveTimeout", "Database", "MaxBytesPerSec"} {
		if !strings.Contains(msg, want) {
			t.Errorf("aggregated error missing mention of %q: %s", want, msg)
		}
	}
}

func TestConfigValidateRejectsBadReconnectionPolicy(t *testing.T) {
	cfg := NewConfig()
	cfg.Reconnection = ReconnectionPolicy{
		Enabled:       true,
		InitialDelay:  0,
		MaxDelay:      0,
		BackoffFactor: 0.5,
		JitterRatio:   2,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want an error for an invalid reconnection policy")
	}
}

func TestDefaultReconnectionPolicyMatchesOriginalDefaults(t *testing.T) {
	p := DefaultReconnectionPolicy()
	if p.Enabled {
		t.Error("DefaultReconnectionPolicy().Enabled should be false")
	}
	if p.ImmediateAttempts != 5 {
		t.Errorf("ImmediateAttempts = %d, want 5", p.ImmediateAttempts)
	}
	if p.BackoffFactor != 2.0 {
		t.Errorf("BackoffFactor = %v, want 2.0", p.BackoffFactor)
	}
}
