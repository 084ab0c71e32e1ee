// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

import (
	"math"
	"strconv"
)

// Encode renders a Message to its exact RESP3 wire bytes. It exists for
// tests (round-tripping parser output) and for constructing canned replies
// in the fake server used by connection tests; the client itself only
// ever encodes commands, via Request.
func Encode(m Message) []byte {
	var buf []byte
	return appendMessage(buf, m)
}

func appendMessage(buf []byte, m Message) []byte {
	if m.Attrs.Len() > 0 {
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(m.Attrs.Len()), 10)
		buf = append(buf, '\r', '\n')
		for i := 0; i < m.Attrs.Len(); i++ {
			k, v := m.Attrs.Pair(i)
			buf = appendMessage(buf, k)
			buf = appendMessage(buf, v)
		}
	}

	switch m.Kind {
	case KindSimpleString:
		buf = append(buf, '+')
		buf = append(buf, m.Str...)
		buf = append(buf, '\r', '\n')
	case KindSimpleError:
		buf = append(buf, '-')
		buf = append(buf, m.Str...)
		buf = append(buf, '\r', '\n')
	case KindInteger:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, m.Int, 10)
		buf = append(buf, '\r', '\n')
	case KindDouble:
		buf = append(buf, ',')
		buf = appendDouble(buf, m.Float)
		buf = append(buf, '\r', '\n')
	case KindBoolean:
		buf = append(buf, '#')
		if m.Bool {
			buf = append(buf, 't')
		} else {
			buf = append(buf, 'f')
		}
		buf = append(buf, '\r', '\n')
	case KindBigNumber:
		buf = append(buf, '(')
		buf = append(buf, m.Str...)
		buf = append(buf, '\r', '\n')
	case KindNull:
		buf = append(buf, '_', '\r', '\n')
	case KindBulkString:
		if m.IsNull {
			buf = append(buf, '$', '-', '1', '\r', '\n')
			break
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(m.Bytes)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, m.Bytes...)
		buf = append(buf, '\r', '\n')
	case KindBulkError:
		if m.IsNull {
			buf = append(buf, '!', '-', '1', '\r', '\n')
			break
		}
		buf = append(buf, '!')
		buf = strconv.AppendInt(buf, int64(len(m.Bytes)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, m.Bytes...)
		buf = append(buf, '\r', '\n')
	case KindVerbatimString:
		if m.IsNull {
			buf = append(buf, '=', '-', '1', '\r', '\n')
			break
		}
		payload := m.Verb.Encoding + ":" + m.Verb.Text
		buf = append(buf, '=')
		buf = strconv.AppendInt(buf, int64(len(payload)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, payload...)
		buf = append(buf, '\r', '\n')
	case KindArray, KindSet, KindPush:
		buf = append(buf, m.Kind.Prefix())
		if m.IsNull {
			buf = append(buf, '-', '1', '\r', '\n')
			break
		}
		buf = strconv.AppendInt(buf, int64(len(m.Items)), 10)
		buf = append(buf, '\r', '\n')
		for _, item := range m.Items {
			buf = appendMessage(buf, item)
		}
	case KindMap:
		buf = append(buf, '%')
		if m.IsNull {
			buf = append(buf, '-', '1', '\r', '\n')
			break
		}
		buf = strconv.AppendInt(buf, int64(len(m.Items)/2), 10)
		buf = append(buf, '\r', '\n')
		for _, item := range m.Items {
			buf = appendMessage(buf, item)
		}
	}
	return buf
}

// appendDouble renders a float64 using RESP3's double literal conventions:
// "inf"/"-inf"/"nan" for the special values, shortest round-trip decimal
// otherwise.
func appendDouble(buf []byte, f float64) []byte {
	switch {
	case math.IsInf(f, 1):
		return append(buf, "inf"...)
	case math.IsInf(f, -1):
		return append(buf, "-inf"...)
	case math.IsNaN(f):
		return append(buf, "nan"...)
	default:
		return strconv.AppendFloat(buf, f, 'g', -1, 64)
	}
}
