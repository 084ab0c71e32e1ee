// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptString(t *testing.T) {
	m := Message{Kind: KindBulkString, Bytes: []byte("hello")}
	s, err := Adapt[string](m)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestAdaptIntOverflow(t *testing.T) {
	m := Message{Kind: KindInteger, Int: 1 << 40}
	_, err := Adapt[int8](m)
	require.Error(t, err)
	var ae *AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AdapterOutOfRange, ae.Kind)
}

func TestAdaptOptionalNull(t *testing.T) {
	m := Message{Kind: KindNull, IsNull: true}
	v, err := Adapt[*string](m)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAdaptSliceOfInts(t *testing.T) {
	m := Message{
		Kind: KindArray,
		Items: []Message{
			{Kind: KindInteger, Int: 1},
			{Kind: KindInteger, Int: 2},
			{Kind: KindInteger, Int: 3},
		},
	}
	v, err := Adapt[[]int](m)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)
}

func TestAdaptMap(t *testing.T) {
	m := Message{
		Kind: KindMap,
		Items: []Message{
			{Kind: KindBulkString, Bytes: []byte("a")},
			{Kind: KindInteger, Int: 1},
			{Kind: KindBulkString, Bytes: []byte("b")},
			{Kind: KindInteger, Int: 2},
		},
	}
	v, err := Adapt[map[string]int](m)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, v)
}

func TestAdaptServerError(t *testing.T) {
	m := Message{Kind: KindSimpleError, Str: "ERR no such key"}
	_, err := Adapt[string](m)
	require.Error(t, err)
	var ae *AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AdapterServerError, ae.Kind)
	assert.Equal(t, "ERR no such key", ae.ServerDetail)
}

func TestAdaptNestedArrayErrorPath(t *testing.T) {
	m := Message{
		Kind: KindArray,
		Items: []Message{
			{Kind: KindInteger, Int: 1},
			{Kind: KindBulkString, Bytes: []byte("not an int")},
		},
	}
	_, err := Adapt[[]int](m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[1]")
}
