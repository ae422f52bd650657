// Package sharding implements the textual sharding-description language that
// defines how logical key prefixes (columns) are mapped onto physical shards.
//
// A sharding definition is a single line of space-separated column
// definitions:
//
//	definition  := column_def [ ' ' column_def ]*
//	column_def  := name [ '(' shard_count [ ',' hash_low '-' [hash_high] ] ')' ] [ '=' options ]
//
// Examples:
//
//	I=write_buffer_size=1048576
//	O(6)
//	m(7,10-)
//	prefix(4,0-10)=disable_auto_compactions=true
//
// A column without a parenthesized part has exactly one shard. The optional
// hash range selects which bytes of a key participate in shard selection;
// hash_high may be omitted, meaning "to the end of the key". Everything after
// the first '=' is an opaque option string handed to the engine verbatim.
//
// Parsing is a single left-to-right scan that stops at the first malformed
// token and reports the byte offset of the problem. The parsed form is a
// slice of ColumnDescriptor values in appearance order; Serialize produces a
// canonical text that parses back to an equal slice, which is the form
// persisted as the on-disk schema record.
package sharding
