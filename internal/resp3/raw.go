// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

// rawNode is a non-owning view produced by the parser. Text points into the
// parser's own buffer and is valid only until the tree is reclaimed.
//
// Conventions:
//   - i64 holds the integer value for KindInteger, the declared length for
//     bulk/container kinds, or -1 for a null bulk/container.
//   - childCount is the element count for array/set/push, or 2*pairCount for
//     map (children alternate key, value).
//   - firstAttr/attrCount index into links for this node's attribute
//     key/value pairs (flattened the same way: key, value, key, value...).
type rawNode struct {
	kind       Kind
	text       []byte
	i64        int64
	f64        float64
	boolean    bool
	firstChild uint32
	childCount uint32
	firstAttr  uint32
	attrCount  uint32
}

// rawTree is an arena of nodes plus an adjacency slice. Children and
// attribute pairs are referenced by index into links, never by pointer, so
// the whole tree can be cleared in O(1) by truncating both slices.
type rawTree struct {
	nodes []rawNode
	links []uint32
}

func (t *rawTree) reset() {
	t.nodes = t.nodes[:0]
	t.links = t.links[:0]
}

func (t *rawTree) addNode(n rawNode) uint32 {
	t.nodes = append(t.nodes, n)
	return uint32(len(t.nodes) - 1)
}

func (t *rawTree) addLink(idx uint32) uint32 {
	t.links = append(t.links, idx)
	return uint32(len(t.links) - 1)
}

// Node returns the node at idx.
func (t *rawTree) Node(idx uint32) *rawNode {
	return &t.nodes[idx]
}

// Child returns the node index of the i-th child of the node at idx.
func (t *rawTree) Child(idx uint32, i uint32) uint32 {
	n := &t.nodes[idx]
	return t.links[n.firstChild+i]
}

// AttrLink returns the node index of the i-th attribute link (flattened
// key/value pairs) of the node at idx.
func (t *rawTree) AttrLink(idx uint32, i uint32) uint32 {
	n := &t.nodes[idx]
	return t.links[n.firstAttr+i]
}
