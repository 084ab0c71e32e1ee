// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

import "strconv"

// Message is an owned, tagged RESP3 value, built from a raw tree by deep
// traversal. Unlike rawNode, every byte slice here is an independent copy:
// a Message outlives Reclaim.
type Message struct {
	Kind Kind

	Str     string // simple_string, simple_error, big_number (decimal text)
	Bytes   []byte // bulk_string, bulk_error
	Int     int64  // integer; also -1 marker copied from a null bulk/container is not stored here
	Float   float64
	Bool    bool
	IsNull  bool // set for null bulk/container/scalar nodes
	Verb    VerbatimString
	Items   []Message          // array, set, push elements; map is flattened key,value,...
	Attrs   Attributes
}

// VerbatimString is a RESP3 verbatim string split into its 3-byte encoding
// tag (e.g. "txt", "mkd") and the text payload.
type VerbatimString struct {
	Encoding string
	Text     string
}

// Attributes is the owned, materialized form of a value's attribute pairs,
// flattened the same way map children are: key, value, key, value...
type Attributes struct {
	Pairs []Message
}

// Len reports the number of key/value pairs.
func (a Attributes) Len() int { return len(a.Pairs) / 2 }

// Pair returns the i-th key/value pair.
func (a Attributes) Pair(i int) (key, value Message) {
	return a.Pairs[2*i], a.Pairs[2*i+1]
}

// Builder materializes Messages from a parser's raw tree.
type Builder struct{}

// Build deep-copies the value rooted at idx in t into an owned Message.
func (Builder) Build(t *rawTree, idx uint32) Message {
	n := t.Node(idx)
	m := Message{Kind: n.kind}

	switch n.kind {
	case KindSimpleString, KindSimpleError, KindBigNumber:
		m.Str = string(n.text)
	case KindInteger:
		m.Int = n.i64
	case KindDouble:
		m.Float = n.f64
	case KindBoolean:
		m.Bool = n.boolean
	case KindNull:
		m.IsNull = true
	case KindBulkString, KindBulkError:
		if n.i64 == -1 {
			m.IsNull = true
		} else {
			m.Bytes = append([]byte(nil), n.text...)
		}
	case KindVerbatimString:
		if n.i64 == -1 {
			m.IsNull = true
		} else {
			m.Verb = splitVerbatim(n.text)
		}
	case KindArray, KindSet, KindPush, KindMap:
		if n.i64 == -1 {
			m.IsNull = true
			break
		}
		m.Items = make([]Message, n.childCount)
		for i := uint32(0); i < n.childCount; i++ {
			child := t.Child(idx, i)
			m.Items[i] = Builder{}.Build(t, child)
		}
	}

	if n.attrCount > 0 {
		pairs := make([]Message, n.attrCount)
		for i := uint32(0); i < n.attrCount; i++ {
			link := t.AttrLink(idx, i)
			pairs[i] = Builder{}.Build(t, link)
		}
		m.Attrs = Attributes{Pairs: pairs}
	}

	return m
}

// splitVerbatim separates the 3-byte encoding tag and ':' separator that
// precede a verbatim string's text, per the RESP3 wire format
// "<encoding>:<text>".
func splitVerbatim(raw []byte) VerbatimString {
	if len(raw) >= 4 && raw[3] == ':' {
		return VerbatimString{
			Encoding: string(raw[:3]),
			Text:     string(raw[4:]),
		}
	}
	return VerbatimString{Text: string(raw)}
}

// String renders a Message for diagnostics (error details, logging). It is
// not a wire format.
func (m Message) String() string {
	switch m.Kind {
	case KindSimpleString, KindSimpleError, KindBigNumber:
		return m.Str
	case KindInteger:
		return strconv.FormatInt(m.Int, 10)
	case KindDouble:
		return strconv.FormatFloat(m.Float, 'g', -1, 64)
	case KindBoolean:
		if m.Bool {
			return "true"
		}
		return "false"
	case KindNull:
		return "(nil)"
	case KindBulkString, KindBulkError:
		if m.IsNull {
			return "(nil)"
		}
		return string(m.Bytes)
	case KindVerbatimString:
		if m.IsNull {
			return "(nil)"
		}
		return m.Verb.Text
	default:
		return m.Kind.String()
	}
}
