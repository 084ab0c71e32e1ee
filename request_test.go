// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rediscoro

import "testing"

func TestRequestPushEncodesArrayOfBulkStrings(t *testing.T) {
	req := NewRequest()
	req.Push("SET", "key", "value")

	want := "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"
	if got := string(req.Bytes()); got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
	if req.CommandCount() != 1 {
		t.Fatalf("CommandCount() = %d, want 1", req.CommandCount())
	}
}

func TestRequestPushAccumulatesAcrossCalls(t *testing.T) {
	req := NewRequest()
	req.Push("PING").Push("PING")

	if req.CommandCount() != 2 {
		t.Fatalf("CommandCount() = %d, want 2", req.CommandCount())
	}
	want := "*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n"
	if got := string(req.Bytes()); got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestRequestPushEncodesNumericArgTypes(t *testing.T) {
	req := NewRequest()
	req.Push("SETEX", "key", 10, 3.5, uint32(7))

	want := "*5\r\n$5\r\nSETEX\r\n$3\r\nkey\r\n$2\r\n10\r\n$3\r\n3.5\r\n$1\r\n7\r\n"
	if got := string(req.Bytes()); got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
}

func TestRequestPushPanicsOnUnsupportedArgType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an unsupported argument type")
		}
	}()
	NewRequest().Push("SET", "key", struct{}{})
}
