package sharding

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// UnboundedHigh is the hash-range upper bound meaning "to the end of the key".
const UnboundedHigh = uint32(math.MaxUint32)

// ColumnDescriptor describes one logical column: its name, how many physical
// shards back it, which byte range of a key selects the shard, and an opaque
// option string passed to the engine when the shards are created.
//
// A descriptor is immutable once parsed. Two descriptors are considered
// shape-equal when name, shard count and hash range match; options are
// deliberately excluded since they do not affect data placement.
type ColumnDescriptor struct {
	Name       string
	ShardCount int
	HashLow    uint32
	HashHigh   uint32
	Options    string
}

// SameShape reports whether two descriptors place data identically.
func (d ColumnDescriptor) SameShape(o ColumnDescriptor) bool {
	return d.Name == o.Name &&
		d.ShardCount == o.ShardCount &&
		d.HashLow == o.HashLow &&
		d.HashHigh == o.HashHigh
}

// ShardName returns the physical name of shard idx of this column.
// Unsharded columns use the column name itself; sharded columns use
// "name-0" .. "name-(k-1)".
func (d ColumnDescriptor) ShardName(idx int) string {
	if d.ShardCount == 1 {
		return d.Name
	}
	return d.Name + "-" + strconv.Itoa(idx)
}

// ShardNames returns the physical names of all shards of this column, in
// shard-index order.
func (d ColumnDescriptor) ShardNames() []string {
	names := make([]string, 0, d.ShardCount)
	for i := 0; i < d.ShardCount; i++ {
		names = append(names, d.ShardName(i))
	}
	return names
}

// String renders the descriptor as a canonical column definition token.
func (d ColumnDescriptor) String() string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	defaultRange := d.HashLow == 0 && d.HashHigh == UnboundedHigh
	if d.ShardCount != 1 || !defaultRange {
		sb.WriteByte('(')
		sb.WriteString(strconv.Itoa(d.ShardCount))
		if !defaultRange {
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatUint(uint64(d.HashLow), 10))
			sb.WriteByte('-')
			if d.HashHigh != UnboundedHigh {
				sb.WriteString(strconv.FormatUint(uint64(d.HashHigh), 10))
			}
		}
		sb.WriteByte(')')
	}
	if d.Options != "" {
		sb.WriteByte('=')
		sb.WriteString(d.Options)
	}
	return sb.String()
}

// PhysicalNames expands a descriptor slice into the flat, ordered list of
// physical shard names it describes.
func PhysicalNames(defs []ColumnDescriptor) []string {
	var names []string
	for _, d := range defs {
		names = append(names, d.ShardNames()...)
	}
	return names
}

// Serialize renders a descriptor slice as canonical definition text.
// Parse(Serialize(defs)) yields a slice equal to defs.
func Serialize(defs []ColumnDescriptor) string {
	tokens := make([]string, 0, len(defs))
	for _, d := range defs {
		tokens = append(tokens, d.String())
	}
	return strings.Join(tokens, " ")
}

// --------------------------------------------------------------------------
// Parse Errors
// --------------------------------------------------------------------------

// ParseError reports the first malformed token of a sharding definition.
// Offset is the byte offset into the original text.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sharding definition invalid at offset %d: %s", e.Offset, e.Reason)
}

// --------------------------------------------------------------------------
// Parser
// --------------------------------------------------------------------------

// Parse scans a sharding definition left to right and returns the described
// columns in appearance order. It stops at the first malformed token and
// returns a *ParseError; partial results are discarded.
func Parse(text string) ([]ColumnDescriptor, error) {
	var defs []ColumnDescriptor
	pos := 0
	for pos < len(text) {
		end := strings.IndexByte(text[pos:], ' ')
		var token string
		if end < 0 {
			token = text[pos:]
			end = len(text)
		} else {
			token = text[pos : pos+end]
			end = pos + end
		}
		if token != "" {
			d, err := parseColumnDef(token, pos)
			if err != nil {
				return nil, err
			}
			defs = append(defs, d)
		}
		pos = end + 1
	}
	return defs, nil
}

// parseColumnDef parses a single space-free column definition token.
// base is the token's byte offset in the full text, used for error positions.
func parseColumnDef(token string, base int) (ColumnDescriptor, error) {
	d := ColumnDescriptor{
		ShardCount: 1,
		HashLow:    0,
		HashHigh:   UnboundedHigh,
	}

	// The option split happens before shard parsing so that option values
	// may themselves contain '(' and '-'.
	if eq := strings.IndexByte(token, '='); eq >= 0 {
		d.Options = token[eq+1:]
		token = token[:eq]
	}

	bpos := strings.IndexByte(token, '(')
	if bpos < 0 {
		d.Name = token
		return d, nil
	}
	d.Name = token[:bpos]

	p := bpos + 1
	n, width := scanUint(token[p:])
	if width == 0 {
		return d, &ParseError{Offset: base + p, Reason: "expecting integer"}
	}
	if n < 1 {
		return d, &ParseError{Offset: base + p, Reason: "shard count must be at least 1"}
	}
	d.ShardCount = int(n)
	p += width

	if p < len(token) && token[p] == ',' {
		p++
		lo, width := scanUint(token[p:])
		if width == 0 {
			return d, &ParseError{Offset: base + p, Reason: "expecting integer"}
		}
		d.HashLow = uint32(lo)
		p += width
		if p >= len(token) || token[p] != '-' {
			return d, &ParseError{Offset: base + p, Reason: "expecting '-'"}
		}
		p++
		// An absent upper bound is valid and means unbounded.
		hi, width := scanUint(token[p:])
		if width > 0 {
			d.HashHigh = uint32(hi)
			p += width
		}
		if d.HashHigh <= d.HashLow {
			return d, &ParseError{Offset: base + bpos, Reason: "hash range low must be below high"}
		}
	}

	if p >= len(token) || token[p] != ')' {
		return d, &ParseError{Offset: base + p, Reason: "expecting ')'"}
	}
	return d, nil
}

// scanUint consumes a run of decimal digits from the front of s, returning
// the value and the number of bytes consumed (0 if s does not start with a
// digit or the value overflows uint32).
func scanUint(s string) (uint64, int) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:i], 10, 32)
	if err != nil {
		return 0, 0
	}
	return v, i
}
