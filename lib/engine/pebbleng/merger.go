package pebbleng

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/pebble"

	"shardkv/lib/engine"
)

// newValueMerger is the single pebble merge entry point. It decodes the
// family id from the key prefix and accumulates operands for the operator
// registered for that family.
func (e *engineImpl) newValueMerger(key, value []byte) (pebble.ValueMerger, error) {
	var op engine.MergeOperator
	if len(key) >= 4 {
		id := binary.BigEndian.Uint32(key[:4])
		e.mergeMu.RLock()
		op = e.mergeByID[id]
		e.mergeMu.RUnlock()
	}
	m := &valueMerger{op: op}
	if len(key) >= 4 {
		m.key = append(m.key, key[4:]...)
	}
	m.operands = append(m.operands, copyOf(value))
	return m, nil
}

// valueMerger folds merge operands lazily: pebble feeds them in either
// direction, so they are collected oldest-to-newest and folded in Finish.
type valueMerger struct {
	op       engine.MergeOperator
	key      []byte
	operands [][]byte
}

func (m *valueMerger) MergeNewer(value []byte) error {
	m.operands = append(m.operands, copyOf(value))
	return nil
}

func (m *valueMerger) MergeOlder(value []byte) error {
	m.operands = append([][]byte{copyOf(value)}, m.operands...)
	return nil
}

// Finish folds the collected operands. includesBase reports that the oldest
// entry is a regular stored value rather than a merge operand.
func (m *valueMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	if m.op == nil {
		// No operator for this family: the newest operand wins.
		return m.operands[len(m.operands)-1], nil, nil
	}
	var cur []byte
	rest := m.operands
	if includesBase {
		cur = rest[0]
		rest = rest[1:]
	} else {
		cur = m.op.MergeNonexistent(m.key, rest[0])
		rest = rest[1:]
	}
	for _, operand := range rest {
		cur = m.op.Merge(m.key, cur, operand)
	}
	return cur, nil, nil
}

func copyOf(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
