// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

import (
	"bytes"
	"math"
	"strconv"
)

// ParseStatus is the result of one ParseOne call.
type ParseStatus int

const (
	StatusNeedMore ParseStatus = iota
	StatusReady
)

// Limits bounds parser resource usage; zero values disable the
// corresponding check.
type Limits struct {
	MaxBulkLength         int64
	MaxContainerElements  int64
	MaxLineLength         int
}

// DefaultLimits returns generous limits suitable for trusted servers.
func DefaultLimits() Limits {
	return Limits{
		MaxBulkLength:        512 * 1024 * 1024,
		MaxContainerElements: 1 << 24,
		MaxLineLength:        64 * 1024,
	}
}

// frame describes an in-progress aggregate (array/map/set/push) or an
// in-progress attribute group on the parser's explicit stack.
type frame struct {
	kind          Kind
	nodeIndex     uint32
	expected      uint32
	produced      uint32
	childLinks    []uint32 // used for array/map/set/push frames
	attrLinks     []uint32 // used only when kind == KindAttribute
}

// Parser incrementally decodes RESP3 wire bytes into a RawTree. It performs
// no allocation on the steady-state path beyond growing its own buffer, the
// tree's node/link slices, and the per-frame child and attribute link lists
// of aggregates in progress; scalar payloads are sub-slices of the
// parser's buffer and are valid only until Reclaim is called.
type Parser struct {
	buf      []byte
	writePos int
	pos      int

	tree  rawTree
	stack []frame

	done    bool
	rootIdx uint32

	hasPendingAttr   bool
	pendingAttrFirst uint32
	pendingAttrCount uint32

	failed bool
	err    error

	limits Limits
}

// NewParser creates a Parser with the given resource limits.
func NewParser(limits Limits) *Parser {
	return &Parser{limits: limits}
}

// Failed reports whether the parser is in the sticky-failed state.
func (p *Parser) Failed() bool { return p.failed }

// Prepare returns a writable region of at least min bytes, growing the
// internal buffer as needed. The caller fills it via an I/O read and then
// calls Commit with the number of bytes actually written.
func (p *Parser) Prepare(min int) []byte {
	if min <= 0 {
		min = 4096
	}
	needed := p.writePos + min
	if len(p.buf) < needed {
		newCap := cap(p.buf) * 2
		if newCap < needed {
			newCap = needed
		}
		nb := make([]byte, newCap)
		copy(nb, p.buf[:p.writePos])
		p.buf = nb
	}
	return p.buf[p.writePos : p.writePos+min]
}

// Commit marks n bytes (previously filled into the slice returned by
// Prepare) as valid input.
func (p *Parser) Commit(n int) {
	p.writePos += n
}

// Tree returns the raw tree built by the most recent completed ParseOne.
// Valid only until Reclaim is called.
func (p *Parser) Tree() *rawTree { return &p.tree }

// Reclaim compacts the buffer, discarding consumed bytes, and clears the
// raw tree. Must be called between successive ParseOne calls that each
// materialize a message, to keep the zero-copy text views from one message
// from being invalidated by parsing the next.
func (p *Parser) Reclaim() {
	if p.pos > 0 {
		n := copy(p.buf, p.buf[p.pos:p.writePos])
		p.writePos = n
		p.pos = 0
	}
	p.tree.reset()
}

// Reset fully clears the parser: buffer, tree, stack, and the failed flag.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.writePos = 0
	p.pos = 0
	p.tree.reset()
	p.stack = p.stack[:0]
	p.done = false
	p.hasPendingAttr = false
	p.pendingAttrFirst = 0
	p.pendingAttrCount = 0
	p.failed = false
	p.err = nil
}

func (p *Parser) fail(err error) {
	p.failed = true
	p.err = err
}

// ParseOne drives the parser's state machine until either a complete
// top-level value is available (StatusReady, with root as the tree index),
// more input is required (StatusNeedMore), or the input is malformed
// (non-nil error, which is also latched as the sticky failure).
func (p *Parser) ParseOne() (root uint32, status ParseStatus, err error) {
	if p.failed {
		return 0, StatusNeedMore, p.err
	}
	for !p.done {
		progressed, perr := p.step()
		if perr != nil {
			p.fail(perr)
			return 0, StatusNeedMore, perr
		}
		if !progressed {
			return 0, StatusNeedMore, nil
		}
	}
	root = p.rootIdx
	p.done = false
	return root, StatusReady, nil
}

// step attempts to consume exactly one "value unit" from the buffer: a
// complete scalar, a complete bulk payload, or an aggregate/attribute
// header. It reports false (no error) when the buffer doesn't yet hold a
// full unit, leaving parser position unchanged so the caller can feed more
// bytes and retry.
func (p *Parser) step() (bool, error) {
	remaining := p.buf[p.pos:p.writePos]
	if len(remaining) == 0 {
		return false, nil
	}
	kind, ok := PrefixToKind(remaining[0])
	if !ok {
		return false, protoErr(ErrInvalidTypeByte, "byte "+strconv.Itoa(int(remaining[0])))
	}

	switch {
	case kind.IsSimple():
		return p.stepSimple(kind, remaining)
	case kind.IsBulk():
		return p.stepBulk(kind, remaining)
	case kind.IsAggregate():
		return p.stepAggregate(kind, remaining)
	case kind == KindAttribute:
		return p.stepAttribute(remaining)
	default:
		return false, protoErr(ErrInvalidTypeByte, "unhandled kind")
	}
}

type lineResult int

const (
	lineNeedMore lineResult = iota
	lineFound
	lineTooLong
)

// findLine scans b[1:] (the prefix byte at b[0] is skipped) for a CRLF,
// returning the line content (excluding the prefix byte and CRLF) and the
// total byte count consumed including the prefix byte.
func findLine(b []byte, maxLen int) (line []byte, total int, res lineResult) {
	body := b[1:]
	scanLimit := len(body)
	capped := false
	if maxLen > 0 && scanLimit > maxLen+1 {
		scanLimit = maxLen + 1
		capped = true
	}
	idx := bytes.IndexByte(body[:scanLimit], '\r')
	if idx == -1 {
		if capped {
			return nil, 0, lineTooLong
		}
		return nil, 0, lineNeedMore
	}
	if idx+1 >= len(body) {
		return nil, 0, lineNeedMore
	}
	return body[:idx], 1 + idx + 2, lineFound
}

func (p *Parser) stepSimple(kind Kind, remaining []byte) (bool, error) {
	line, total, res := findLine(remaining, p.limits.MaxLineLength)
	switch res {
	case lineNeedMore:
		return false, nil
	case lineTooLong:
		return false, protoErr(ErrLimitExceeded, "line too long")
	}

	var node rawNode
	node.kind = kind
	switch kind {
	case KindSimpleString, KindSimpleError:
		node.text = line
	case KindBigNumber:
		if !isValidBigNumber(line) {
			return false, protoErr(ErrInvalidInteger, "malformed big number")
		}
		node.text = line
	case KindInteger:
		v, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return false, protoErr(ErrInvalidInteger, err.Error())
		}
		node.i64 = v
	case KindDouble:
		v, ok := parseRESPDouble(line)
		if !ok {
			return false, protoErr(ErrInvalidDouble, "malformed double")
		}
		node.f64 = v
	case KindBoolean:
		if len(line) != 1 || (line[0] != 't' && line[0] != 'f') {
			return false, protoErr(ErrInvalidBoolean, "expected t or f")
		}
		node.boolean = line[0] == 't'
	case KindNull:
		if len(line) != 0 {
			return false, protoErr(ErrInvalidNull, "expected empty payload")
		}
	}

	p.pos += total
	idx := p.tree.addNode(node)
	return true, p.completeValue(idx)
}

func (p *Parser) stepBulk(kind Kind, remaining []byte) (bool, error) {
	line, headerLen, res := findLine(remaining, p.limits.MaxLineLength)
	switch res {
	case lineNeedMore:
		return false, nil
	case lineTooLong:
		return false, protoErr(ErrLimitExceeded, "line too long")
	}
	length, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return false, protoErr(ErrInvalidLength, err.Error())
	}
	if length < -1 {
		return false, protoErr(ErrInvalidLength, "negative bulk length")
	}
	if p.limits.MaxBulkLength > 0 && length > p.limits.MaxBulkLength {
		return false, protoErr(ErrLimitExceeded, "bulk length exceeds limit")
	}

	if length == -1 {
		p.pos += headerLen
		idx := p.tree.addNode(rawNode{kind: kind, i64: -1})
		return true, p.completeValue(idx)
	}

	total := headerLen + int(length) + 2
	if len(remaining) < total {
		return false, nil
	}
	payload := remaining[headerLen : headerLen+int(length)]
	trailer := remaining[headerLen+int(length) : total]
	if trailer[0] != '\r' || trailer[1] != '\n' {
		return false, protoErr(ErrInvalidBulkTrailr, "missing CRLF after bulk payload")
	}

	p.pos += total
	idx := p.tree.addNode(rawNode{kind: kind, text: payload, i64: length})
	return true, p.completeValue(idx)
}

func (p *Parser) stepAggregate(kind Kind, remaining []byte) (bool, error) {
	line, headerLen, res := findLine(remaining, p.limits.MaxLineLength)
	switch res {
	case lineNeedMore:
		return false, nil
	case lineTooLong:
		return false, protoErr(ErrLimitExceeded, "line too long")
	}
	count, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return false, protoErr(ErrInvalidLength, err.Error())
	}
	if count < -1 {
		return false, protoErr(ErrInvalidLength, "negative container length")
	}
	if p.limits.MaxContainerElements > 0 && count > p.limits.MaxContainerElements {
		return false, protoErr(ErrLimitExceeded, "container element count exceeds limit")
	}

	p.pos += headerLen

	if count == -1 {
		idx := p.tree.addNode(rawNode{kind: kind, i64: -1})
		return true, p.completeValue(idx)
	}

	expected := uint32(count)
	if kind == KindMap {
		expected *= 2
	}
	nodeIdx := p.tree.addNode(rawNode{kind: kind, i64: count})
	if expected == 0 {
		p.tree.Node(nodeIdx).childCount = 0
		return true, p.completeValue(nodeIdx)
	}
	p.stack = append(p.stack, frame{kind: kind, nodeIndex: nodeIdx, expected: expected})
	return true, nil
}

func (p *Parser) stepAttribute(remaining []byte) (bool, error) {
	line, headerLen, res := findLine(remaining, p.limits.MaxLineLength)
	switch res {
	case lineNeedMore:
		return false, nil
	case lineTooLong:
		return false, protoErr(ErrLimitExceeded, "line too long")
	}
	count, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return false, protoErr(ErrInvalidLength, err.Error())
	}
	if count < 0 {
		return false, protoErr(ErrInvalidMapPairs, "negative attribute pair count")
	}
	p.pos += headerLen

	expected := uint32(count) * 2
	if expected == 0 {
		p.hasPendingAttr = true
		p.pendingAttrFirst = uint32(len(p.tree.links))
		p.pendingAttrCount = 0
		return true, nil
	}
	p.stack = append(p.stack, frame{kind: KindAttribute, expected: expected})
	return true, nil
}

// completeValue attaches a freshly-completed node (scalar, bulk, or a
// just-finished aggregate) to whatever is waiting for it: pending
// attributes, the frame on top of the stack, or — if the stack is empty —
// the parser's root result.
func (p *Parser) completeValue(idx uint32) error {
	if p.hasPendingAttr {
		n := p.tree.Node(idx)
		n.firstAttr = p.pendingAttrFirst
		n.attrCount = p.pendingAttrCount
		p.hasPendingAttr = false
	}

	if len(p.stack) == 0 {
		p.done = true
		p.rootIdx = idx
		return nil
	}

	top := &p.stack[len(p.stack)-1]
	if top.kind == KindAttribute {
		top.attrLinks = append(top.attrLinks, idx)
		top.produced++
		if top.produced == top.expected {
			start := uint32(len(p.tree.links))
			for _, l := range top.attrLinks {
				p.tree.addLink(l)
			}
			p.pendingAttrFirst = start
			p.pendingAttrCount = top.produced
			p.hasPendingAttr = true
			p.stack = p.stack[:len(p.stack)-1]
		}
		return nil
	}

	// Children are buffered per frame and linked only when the frame
	// completes, so a nested aggregate's own links never land between
	// this frame's children.
	top.childLinks = append(top.childLinks, idx)
	top.produced++
	if top.produced == top.expected {
		nodeIdx := top.nodeIndex
		start := uint32(len(p.tree.links))
		for _, l := range top.childLinks {
			p.tree.addLink(l)
		}
		n := p.tree.Node(nodeIdx)
		n.firstChild = start
		n.childCount = top.produced
		p.stack = p.stack[:len(p.stack)-1]
		return p.completeValue(nodeIdx)
	}
	return nil
}

func isValidBigNumber(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	i := 0
	if b[0] == '-' || b[0] == '+' {
		i++
	}
	if i == len(b) {
		return false
	}
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return false
		}
	}
	return true
}

func parseRESPDouble(b []byte) (float64, bool) {
	s := string(b)
	switch s {
	case "inf", "+inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	case "nan":
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
