// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connio

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/rediscoro/internal/rerr"
	"github.com/nishisan-dev/rediscoro/internal/resp3"
)

// HandshakeOptions carries the fields of rediscoro.Config the handshake
// needs, duplicated here to avoid importing the root package.
type HandshakeOptions struct {
	Username   string
	Password   string
	Database   int
	ClientName string
}

// runHandshake drives a private request/response round trip below the
// actor loops: a single pipelined request containing HELLO 3 (with the
// credentials as HELLO's own AUTH arguments when a username or password is
// set; no separate AUTH command is sent), optionally followed by SELECT
// and CLIENT SETNAME. It resets p before and
// after so zero-copy text views from the handshake never leak into the
// steady-state parser, and so a gated write/read loop is guaranteed not to
// observe handshake bytes out of order. When trace is true, logger records
// each reply's kind and the handshake's total duration at debug level —
// useful for diagnosing a slow or rejected HELLO without tracing every
// steady-state request.
func runHandshake(conn net.Conn, p *resp3.Parser, opts HandshakeOptions, trace bool, logger *slog.Logger) error {
	p.Reset()
	started := time.Now()

	req := resp3HandshakeRequest(opts)
	if _, err := conn.Write(req.bytes); err != nil {
		return &rerr.Error{Code: rerr.HandshakeFailed, Detail: fmt.Sprintf("writing handshake: %v", err), Cause: err}
	}
	if trace {
		logger.Debug("handshake request sent", "command_count", req.commandCount)
	}

	readBuf := make([]byte, 4096)
	for i := 0; i < req.commandCount; i++ {
		for {
			root, status, err := p.ParseOne()
			if err != nil {
				return &rerr.Error{Code: rerr.HandshakeFailed, Detail: err.Error(), Cause: err}
			}
			if status == resp3.StatusReady {
				msg := resp3.Builder{}.Build(p.Tree(), root)
				p.Reclaim()
				if msg.Kind.IsError() {
					detail := msg.Str
					if msg.Kind == resp3.KindBulkError {
						detail = string(msg.Bytes)
					}
					return &rerr.Error{Code: rerr.HandshakeFailed, Detail: detail}
				}
				if trace {
					logger.Debug("handshake reply received", "step", i, "kind", msg.Kind)
				}
				break
			}
			n, err := conn.Read(readBuf)
			if err != nil {
				return &rerr.Error{Code: rerr.HandshakeFailed, Detail: fmt.Sprintf("reading handshake reply: %v", err), Cause: err}
			}
			dst := p.Prepare(n)
			copy(dst, readBuf[:n])
			p.Commit(n)
		}
	}

	p.Reset()
	if trace {
		logger.Debug("handshake complete", "duration", time.Since(started))
	}
	return nil
}

type handshakeRequest struct {
	bytes        []byte
	commandCount int
}

func resp3HandshakeRequest(opts HandshakeOptions) handshakeRequest {
	var buf []byte
	count := 0

	push := func(cmd string, args ...string) {
		buf = append(buf, '*')
		buf = appendDecimal(buf, 1+len(args))
		buf = append(buf, '\r', '\n')
		buf = appendBulkString(buf, cmd)
		for _, a := range args {
			buf = appendBulkString(buf, a)
		}
		count++
	}

	if opts.Username != "" {
		push("HELLO", "3", "AUTH", opts.Username, opts.Password)
	} else if opts.Password != "" {
		push("HELLO", "3", "AUTH", "default", opts.Password)
	} else {
		push("HELLO", "3")
	}
	if opts.Database != 0 {
		push("SELECT", fmt.Sprintf("%d", opts.Database))
	}
	if opts.ClientName != "" {
		push("CLIENT", "SETNAME", opts.ClientName)
	}

	return handshakeRequest{bytes: buf, commandCount: count}
}

func appendBulkString(buf []byte, s string) []byte {
	buf = append(buf, '$')
	buf = appendDecimal(buf, len(s))
	buf = append(buf, '\r', '\n')
	buf = append(buf, s...)
	buf = append(buf, '\r', '\n')
	return buf
}

func appendDecimal(buf []byte, n int) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}
