// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

import (
	"fmt"
	"reflect"
	"strings"
)

// AdapterErrorKind classifies why Adapt failed to decode a Message into the
// requested Go type.
type AdapterErrorKind string

const (
	AdapterTypeMismatch   AdapterErrorKind = "type_mismatch"
	AdapterUnexpectedNull AdapterErrorKind = "unexpected_null"
	AdapterOutOfRange     AdapterErrorKind = "value_out_of_range"
	AdapterSizeMismatch   AdapterErrorKind = "size_mismatch"
	AdapterInvalidValue   AdapterErrorKind = "invalid_value"
	AdapterServerError    AdapterErrorKind = "server_error"
)

// pathSegment is one step ("[3]" for an element index, "{2}" for a map
// pair index, used for both the pair's key and its value) in the path an
// AdapterError accumulates as it unwinds out of nested slice, fixed-size
// array and map decode calls.
type pathSegment string

// AdapterError reports a decode failure with the path to the offending
// value, preserved so callers can locate the exact element in a nested
// reply that failed to decode.
type AdapterError struct {
	Kind    AdapterErrorKind
	Path    []pathSegment
	Message string
	// ServerDetail holds the Redis-reported message when Kind ==
	// AdapterServerError.
	ServerDetail string
}

func (e *AdapterError) Error() string {
	var b strings.Builder
	b.WriteString("resp3: adapt")
	for _, s := range e.Path {
		b.WriteString(string(s))
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *AdapterError) prepend(seg pathSegment) *AdapterError {
	path := make([]pathSegment, 0, len(e.Path)+1)
	path = append(path, seg)
	path = append(path, e.Path...)
	e.Path = path
	return e
}

func adaptErr(kind AdapterErrorKind, format string, args ...any) *AdapterError {
	return &AdapterError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Adapt decodes a Message into T. Supported type shapes: strings/[]byte,
// bounded integers, bool, float64, pointers (optional<U>), slices
// (array/set/push), maps, and fixed-size arrays.
func Adapt[T any](m Message) (T, error) {
	var out T
	if m.Kind.IsError() {
		detail := m.Str
		if m.Kind == KindBulkError {
			detail = string(m.Bytes)
		}
		return out, &AdapterError{Kind: AdapterServerError, Message: "server returned an error", ServerDetail: detail}
	}
	v := reflect.ValueOf(&out).Elem()
	if err := decodeInto(v, m); err != nil {
		return out, err
	}
	return out, nil
}

func decodeInto(v reflect.Value, m Message) error {
	switch v.Kind() {
	case reflect.Ptr:
		if m.Kind == KindNull || m.IsNull {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		elem := reflect.New(v.Type().Elem())
		if err := decodeInto(elem.Elem(), m); err != nil {
			return err
		}
		v.Set(elem)
		return nil

	case reflect.String:
		s, err := decodeString(m)
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := decodeBytes(m)
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		return decodeSlice(v, m)

	case reflect.Array:
		return decodeArray(v, m)

	case reflect.Map:
		return decodeMap(v, m)

	case reflect.Bool:
		if m.Kind == KindNull || m.IsNull {
			return adaptErr(AdapterUnexpectedNull, "unexpected null for boolean")
		}
		if m.Kind != KindBoolean {
			return adaptErr(AdapterTypeMismatch, "expected boolean, got %s", m.Kind)
		}
		v.SetBool(m.Bool)
		return nil

	case reflect.Float32, reflect.Float64:
		if m.Kind == KindNull || m.IsNull {
			return adaptErr(AdapterUnexpectedNull, "unexpected null for float")
		}
		if m.Kind != KindDouble {
			return adaptErr(AdapterTypeMismatch, "expected double, got %s", m.Kind)
		}
		v.SetFloat(m.Float)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := decodeInt(m)
		if err != nil {
			return err
		}
		if v.OverflowInt(n) {
			return adaptErr(AdapterOutOfRange, "integer %d overflows %s", n, v.Type())
		}
		v.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := decodeInt(m)
		if err != nil {
			return err
		}
		if n < 0 || v.OverflowUint(uint64(n)) {
			return adaptErr(AdapterOutOfRange, "integer %d out of range for %s", n, v.Type())
		}
		v.SetUint(uint64(n))
		return nil

	case reflect.Struct:
		if v.Type() == reflect.TypeOf(VerbatimString{}) {
			if m.Kind != KindVerbatimString {
				return adaptErr(AdapterTypeMismatch, "expected verbatim_string, got %s", m.Kind)
			}
			v.Set(reflect.ValueOf(m.Verb))
			return nil
		}
		if v.NumField() == 0 {
			// struct{} is the canonical "ignore" target: accept anything.
			return nil
		}
		return adaptErr(AdapterInvalidValue, "unsupported struct type %s", v.Type())

	case reflect.Interface:
		if v.NumMethod() == 0 {
			v.Set(reflect.ValueOf(toAny(m)))
			return nil
		}
		return adaptErr(AdapterInvalidValue, "unsupported interface type %s", v.Type())

	default:
		return adaptErr(AdapterInvalidValue, "unsupported target type %s", v.Type())
	}
}

func decodeString(m Message) (string, error) {
	if m.Kind == KindNull || m.IsNull {
		return "", adaptErr(AdapterUnexpectedNull, "unexpected null for string")
	}
	switch m.Kind {
	case KindSimpleString, KindBigNumber:
		return m.Str, nil
	case KindBulkString:
		return string(m.Bytes), nil
	case KindVerbatimString:
		return m.Verb.Text, nil
	default:
		return "", adaptErr(AdapterTypeMismatch, "expected a string-like kind, got %s", m.Kind)
	}
}

func decodeBytes(m Message) ([]byte, error) {
	if m.Kind == KindNull || m.IsNull {
		return nil, adaptErr(AdapterUnexpectedNull, "unexpected null for []byte")
	}
	switch m.Kind {
	case KindBulkString:
		return m.Bytes, nil
	case KindSimpleString, KindBigNumber:
		return []byte(m.Str), nil
	case KindVerbatimString:
		return []byte(m.Verb.Text), nil
	default:
		return nil, adaptErr(AdapterTypeMismatch, "expected a string-like kind, got %s", m.Kind)
	}
}

func decodeInt(m Message) (int64, error) {
	if m.Kind == KindNull || m.IsNull {
		return 0, adaptErr(AdapterUnexpectedNull, "unexpected null for integer")
	}
	if m.Kind != KindInteger {
		return 0, adaptErr(AdapterTypeMismatch, "expected integer, got %s", m.Kind)
	}
	return m.Int, nil
}

func decodeSlice(v reflect.Value, m Message) error {
	if m.Kind == KindNull || m.IsNull {
		return adaptErr(AdapterUnexpectedNull, "unexpected null for slice")
	}
	switch m.Kind {
	case KindArray, KindSet, KindPush:
	default:
		return adaptErr(AdapterTypeMismatch, "expected array/set/push, got %s", m.Kind)
	}
	out := reflect.MakeSlice(v.Type(), len(m.Items), len(m.Items))
	for i, item := range m.Items {
		if err := decodeInto(out.Index(i), item); err != nil {
			if ae, ok := err.(*AdapterError); ok {
				return ae.prepend(pathSegment(fmt.Sprintf("[%d]", i)))
			}
			return err
		}
	}
	v.Set(out)
	return nil
}

func decodeArray(v reflect.Value, m Message) error {
	if m.Kind == KindNull || m.IsNull {
		return adaptErr(AdapterUnexpectedNull, "unexpected null for fixed-size array")
	}
	switch m.Kind {
	case KindArray, KindSet, KindPush:
	default:
		return adaptErr(AdapterTypeMismatch, "expected array/set/push, got %s", m.Kind)
	}
	n := v.Len()
	if len(m.Items) != n {
		return adaptErr(AdapterSizeMismatch, "expected %d elements, got %d", n, len(m.Items))
	}
	for i := 0; i < n; i++ {
		if err := decodeInto(v.Index(i), m.Items[i]); err != nil {
			if ae, ok := err.(*AdapterError); ok {
				return ae.prepend(pathSegment(fmt.Sprintf("[%d]", i)))
			}
			return err
		}
	}
	return nil
}

func decodeMap(v reflect.Value, m Message) error {
	if m.Kind == KindNull || m.IsNull {
		return adaptErr(AdapterUnexpectedNull, "unexpected null for map")
	}
	if m.Kind != KindMap {
		return adaptErr(AdapterTypeMismatch, "expected map, got %s", m.Kind)
	}
	if len(m.Items)%2 != 0 {
		return adaptErr(AdapterInvalidValue, "map has odd child count %d", len(m.Items))
	}
	out := reflect.MakeMapWithSize(v.Type(), len(m.Items)/2)
	keyType := v.Type().Key()
	valType := v.Type().Elem()
	for i := 0; i < len(m.Items); i += 2 {
		key := reflect.New(keyType).Elem()
		if err := decodeInto(key, m.Items[i]); err != nil {
			if ae, ok := err.(*AdapterError); ok {
				return ae.prepend(pathSegment(fmt.Sprintf("{%d}", i/2)))
			}
			return err
		}
		val := reflect.New(valType).Elem()
		if err := decodeInto(val, m.Items[i+1]); err != nil {
			if ae, ok := err.(*AdapterError); ok {
				return ae.prepend(pathSegment(fmt.Sprintf("{%d}", i/2)))
			}
			return err
		}
		out.SetMapIndex(key, val)
	}
	v.Set(out)
	return nil
}

// toAny renders a Message into an `any` for callers that decode into
// interface{} (rarely used; prefer a concrete shape).
func toAny(m Message) any {
	switch m.Kind {
	case KindNull:
		return nil
	case KindSimpleString, KindBigNumber:
		return m.Str
	case KindBulkString:
		if m.IsNull {
			return nil
		}
		return string(m.Bytes)
	case KindVerbatimString:
		if m.IsNull {
			return nil
		}
		return m.Verb.Text
	case KindInteger:
		return m.Int
	case KindDouble:
		return m.Float
	case KindBoolean:
		return m.Bool
	case KindArray, KindSet, KindPush:
		if m.IsNull {
			return nil
		}
		out := make([]any, len(m.Items))
		for i, item := range m.Items {
			out[i] = toAny(item)
		}
		return out
	case KindMap:
		if m.IsNull {
			return nil
		}
		out := make(map[any]any, len(m.Items)/2)
		for i := 0; i < len(m.Items); i += 2 {
			out[toAny(m.Items[i])] = toAny(m.Items[i+1])
		}
		return out
	default:
		return m.String()
	}
}
