// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"log/slog"

	"github.com/nishisan-dev/rediscoro"
	"github.com/nishisan-dev/rediscoro/internal/config"
)

// cliConfigToRediscoro translates a YAML-sourced CLIConfig into a
// rediscoro.Config, the CLI's equivalent of client.go's toConnioConfig.
func cliConfigToRediscoro(cfg *config.CLIConfig, logger *slog.Logger) *rediscoro.Config {
	out := rediscoro.NewConfig()
	out.Host = cfg.Redis.Host
	out.Port = cfg.Redis.Port
	out.Username = cfg.Redis.Username
	out.Password = cfg.Redis.Password
	out.Database = cfg.Redis.Database
	out.ClientName = cfg.Redis.ClientName
	out.MaxBytesPerSec = cfg.Redis.MaxBytesPerSecRaw
	out.Logger = logger

	if cfg.Redis.ConnectTimeout > 0 {
		out.ConnectTimeout = cfg.Redis.ConnectTimeout
	}
	if cfg.Redis.ResolveTimeout > 0 {
		out.ResolveTimeout = cfg.Redis.ResolveTimeout
	}
	out.RequestTimeout = cfg.Redis.RequestTimeout

	out.Reconnection = rediscoro.ReconnectionPolicy{
		Enabled:           cfg.Redis.Reconnection.Enabled,
		ImmediateAttempts: cfg.Redis.Reconnection.ImmediateAttempts,
		InitialDelay:      cfg.Redis.Reconnection.InitialDelay,
		MaxDelay:          cfg.Redis.Reconnection.MaxDelay,
		BackoffFactor:     cfg.Redis.Reconnection.BackoffFactor,
		JitterRatio:       cfg.Redis.Reconnection.JitterRatio,
	}

	return out
}
