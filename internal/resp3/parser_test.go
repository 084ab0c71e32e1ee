// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

import (
	"testing"
)

func feed(t *testing.T, p *Parser, data string) (uint32, ParseStatus) {
	t.Helper()
	buf := p.Prepare(len(data))
	copy(buf, data)
	p.Commit(len(data))
	root, status, err := p.ParseOne()
	if err != nil {
		t.Fatalf("ParseOne: %v", err)
	}
	return root, status
}

func TestParserSimpleString(t *testing.T) {
	p := NewParser(DefaultLimits())
	root, status := feed(t, p, "+OK\r\n")
	if status != StatusReady {
		t.Fatalf("expected Ready, got %v", status)
	}
	n := p.Tree().Node(root)
	if n.kind != KindSimpleString || string(n.text) != "OK" {
		t.Fatalf("unexpected node: %+v", n)
	}
}

func TestParserIntegerAndDouble(t *testing.T) {
	p := NewParser(DefaultLimits())
	root, _ := feed(t, p, ":1000\r\n")
	if got := p.Tree().Node(root).i64; got != 1000 {
		t.Fatalf("integer = %d, want 1000", got)
	}
	p.Reclaim()

	root, _ = feed(t, p, ",3.14\r\n")
	if got := p.Tree().Node(root).f64; got != 3.14 {
		t.Fatalf("double = %v, want 3.14", got)
	}
}

func TestParserNullBulk(t *testing.T) {
	p := NewParser(DefaultLimits())
	root, status := feed(t, p, "$-1\r\n")
	if status != StatusReady {
		t.Fatalf("expected Ready, got %v", status)
	}
	n := p.Tree().Node(root)
	if n.kind != KindBulkString || n.i64 != -1 {
		t.Fatalf("unexpected null bulk node: %+v", n)
	}
}

func TestParserBulkStringAcrossReads(t *testing.T) {
	p := NewParser(DefaultLimits())
	buf := p.Prepare(8)
	copy(buf, "$5\r\nhel")
	p.Commit(7)
	_, status, err := p.ParseOne()
	if err != nil {
		t.Fatalf("ParseOne: %v", err)
	}
	if status != StatusNeedMore {
		t.Fatalf("expected NeedMore before full payload, got %v", status)
	}

	buf = p.Prepare(4)
	copy(buf, "lo\r\n")
	p.Commit(4)
	root, status, err := p.ParseOne()
	if err != nil {
		t.Fatalf("ParseOne: %v", err)
	}
	if status != StatusReady {
		t.Fatalf("expected Ready, got %v", status)
	}
	n := p.Tree().Node(root)
	if string(n.text) != "hello" {
		t.Fatalf("text = %q, want hello", n.text)
	}
}

func TestParserArrayOfBulkStrings(t *testing.T) {
	p := NewParser(DefaultLimits())
	root, status := feed(t, p, "*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	if status != StatusReady {
		t.Fatalf("expected Ready, got %v", status)
	}
	n := p.Tree().Node(root)
	if n.kind != KindArray || n.childCount != 2 {
		t.Fatalf("unexpected array node: %+v", n)
	}
	c0 := p.Tree().Node(p.Tree().Child(root, 0))
	c1 := p.Tree().Node(p.Tree().Child(root, 1))
	if string(c0.text) != "foo" || string(c1.text) != "bar" {
		t.Fatalf("unexpected children: %q %q", c0.text, c1.text)
	}
}

func TestParserNestedArray(t *testing.T) {
	p := NewParser(DefaultLimits())
	root, status := feed(t, p, "*2\r\n*2\r\n:1\r\n:2\r\n:3\r\n")
	if status != StatusReady {
		t.Fatalf("expected Ready, got %v", status)
	}
	tree := p.Tree()
	outer := tree.Node(root)
	if outer.childCount != 2 {
		t.Fatalf("outer childCount = %d, want 2", outer.childCount)
	}
	innerIdx := tree.Child(root, 0)
	inner := tree.Node(innerIdx)
	if inner.kind != KindArray || inner.childCount != 2 {
		t.Fatalf("inner node unexpected: %+v", inner)
	}
	innerFirst := tree.Node(tree.Child(innerIdx, 0))
	if innerFirst.i64 != 1 {
		t.Fatalf("inner[0] = %d, want 1", innerFirst.i64)
	}
	last := tree.Node(tree.Child(root, 1))
	if last.i64 != 3 {
		t.Fatalf("last = %d, want 3", last.i64)
	}
}

func TestParserMapFlattensPairs(t *testing.T) {
	p := NewParser(DefaultLimits())
	root, status := feed(t, p, "%2\r\n+k1\r\n:1\r\n+k2\r\n:2\r\n")
	if status != StatusReady {
		t.Fatalf("expected Ready, got %v", status)
	}
	n := p.Tree().Node(root)
	if n.kind != KindMap || n.childCount != 4 {
		t.Fatalf("unexpected map node: %+v", n)
	}
}

func TestParserAttributePrefixesNextValue(t *testing.T) {
	p := NewParser(DefaultLimits())
	root, status := feed(t, p, "|1\r\n+ttl\r\n:100\r\n$3\r\nfoo\r\n")
	if status != StatusReady {
		t.Fatalf("expected Ready, got %v", status)
	}
	n := p.Tree().Node(root)
	if n.kind != KindBulkString || string(n.text) != "foo" {
		t.Fatalf("unexpected value node: %+v", n)
	}
	if n.attrCount != 2 {
		t.Fatalf("attrCount = %d, want 2", n.attrCount)
	}
}

func TestParserStickyFailure(t *testing.T) {
	p := NewParser(DefaultLimits())
	buf := p.Prepare(4)
	copy(buf, "?abc")
	p.Commit(4)
	_, _, err := p.ParseOne()
	if err == nil {
		t.Fatal("expected protocol error for unknown prefix")
	}
	if !p.Failed() {
		t.Fatal("expected parser to be sticky-failed")
	}
	_, _, err2 := p.ParseOne()
	if err2 == nil {
		t.Fatal("expected sticky failure to persist")
	}
}
