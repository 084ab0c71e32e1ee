// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package logging builds the slog.Logger used by cmd/rediscoro-cli. The
// library itself (package rediscoro) never constructs a logger on its own;
// a Config.Logger is expected to be supplied by the embedding program, and
// this package is that program's default choice.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a slog.Logger from level/format/filePath. Supported
// formats: "json" (default), "text". Supported levels: "debug", "info"
// (default), "warn", "error". A non-empty filePath logs to stdout and the
// file via io.MultiWriter. The returned io.Closer must be closed on
// shutdown; it is a no-op when filePath is empty.
func NewLogger(level, format, filePath string) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	w, closer := openOutput(filePath)
	return slog.New(newHandler(format, w, opts)), closer
}

func openOutput(filePath string) (io.Writer, io.Closer) {
	if filePath == "" {
		return os.Stdout, io.NopCloser(strings.NewReader(""))
	}
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file %q: %v (logging to stdout only)\n", filePath, err)
		return os.Stdout, io.NopCloser(strings.NewReader(""))
	}
	return io.MultiWriter(os.Stdout, f), f
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
