package sharding

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseSingleColumnDefaults(t *testing.T) {
	defs, err := Parse("meta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(defs))
	}
	want := ColumnDescriptor{Name: "meta", ShardCount: 1, HashLow: 0, HashHigh: UnboundedHigh}
	if defs[0] != want {
		t.Errorf("expected %+v, got %+v", want, defs[0])
	}
}

func TestParseFullDefinition(t *testing.T) {
	text := "I=write_buffer_size=1048576 O(6) m(7,10-) prefix(4,0-10)=disable_auto_compactions=true,max_bytes_for_level_base=1048576"
	defs, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []ColumnDescriptor{
		{Name: "I", ShardCount: 1, HashLow: 0, HashHigh: UnboundedHigh, Options: "write_buffer_size=1048576"},
		{Name: "O", ShardCount: 6, HashLow: 0, HashHigh: UnboundedHigh},
		{Name: "m", ShardCount: 7, HashLow: 10, HashHigh: UnboundedHigh},
		{Name: "prefix", ShardCount: 4, HashLow: 0, HashHigh: 10, Options: "disable_auto_compactions=true,max_bytes_for_level_base=1048576"},
	}
	if !reflect.DeepEqual(defs, want) {
		t.Errorf("expected %+v, got %+v", want, defs)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		text   string
		offset int
		reason string
	}{
		{"p(x)", 2, "expecting integer"},
		{"p(2,a-)", 4, "expecting integer"},
		{"p(2,1)", 5, "expecting '-'"},
		{"p(2", 3, "expecting ')'"},
		{"p(2,1-9", 7, "expecting ')'"},
		{"p(0)", 2, "shard count must be at least 1"},
		{"p(2,9-3)", 1, "hash range low must be below high"},
		{"ok(2) p(", 8, "expecting integer"},
	}
	for _, c := range cases {
		_, err := Parse(c.text)
		if err == nil {
			t.Errorf("Parse(%q): expected error", c.text)
			continue
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q): expected *ParseError, got %T", c.text, err)
			continue
		}
		if perr.Offset != c.offset || perr.Reason != c.reason {
			t.Errorf("Parse(%q): expected offset=%d reason=%q, got offset=%d reason=%q",
				c.text, c.offset, c.reason, perr.Offset, perr.Reason)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	texts := []string{
		"a",
		"a(4)",
		"a(4,2-8)",
		"a(7,10-)",
		"a=opt1=1,opt2=2 b(3)=x=y",
		"I=write_buffer_size=1048576 O(6) m(7,10-) prefix(4,0-10)=disable_auto_compactions=true",
	}
	for _, text := range texts {
		defs, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		again, err := Parse(Serialize(defs))
		if err != nil {
			t.Fatalf("reparse of %q: %v", Serialize(defs), err)
		}
		if !reflect.DeepEqual(defs, again) {
			t.Errorf("round trip of %q: got %+v, want %+v", text, again, defs)
		}
	}
}

func TestPhysicalNames(t *testing.T) {
	defs, err := Parse("p(3) q r(2,0-4)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"p-0", "p-1", "p-2", "q", "r-0", "r-1"}
	if got := PhysicalNames(defs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestShardName(t *testing.T) {
	single := ColumnDescriptor{Name: "q", ShardCount: 1}
	if got := single.ShardName(0); got != "q" {
		t.Errorf("expected %q, got %q", "q", got)
	}
	multi := ColumnDescriptor{Name: "p", ShardCount: 3}
	if got := multi.ShardName(2); got != "p-2" {
		t.Errorf("expected %q, got %q", "p-2", got)
	}
}
