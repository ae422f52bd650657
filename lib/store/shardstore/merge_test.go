package shardstore

import (
	"testing"

	"shardkv/lib/engine"
	"shardkv/lib/sharding"
)

// concatOp joins operands with '|'; absent values start with '*'.
type concatOp struct{}

func (concatOp) Name() string { return "concat" }

func (concatOp) Merge(key, existing, operand []byte) []byte {
	out := make([]byte, 0, len(existing)+1+len(operand))
	out = append(out, existing...)
	out = append(out, '|')
	return append(out, operand...)
}

func (concatOp) MergeNonexistent(key, operand []byte) []byte {
	out := make([]byte, 0, 1+len(operand))
	out = append(out, '*')
	return append(out, operand...)
}

// keyEchoOp records the key it was called with, to verify the router strips
// the prefix before delegating.
type keyEchoOp struct{}

func (keyEchoOp) Name() string { return "echo" }

func (keyEchoOp) Merge(key, existing, operand []byte) []byte {
	return append([]byte(nil), key...)
}

func (keyEchoOp) MergeNonexistent(key, operand []byte) []byte {
	return append([]byte(nil), key...)
}

func TestMergerIdentityDeterministic(t *testing.T) {
	ops := map[string]engine.MergeOperator{
		"b": concatOp{},
		"a": concatOp{},
		"c": keyEchoOp{},
	}
	_, name := buildMergeConfig(nil, ops)
	want := "shardkv.merge.a:concat.b:concat.c:echo"
	if name != want {
		t.Errorf("identity %q, want %q", name, want)
	}
	for i := 0; i < 10; i++ {
		if _, again := buildMergeConfig(nil, ops); again != name {
			t.Fatal("identity must not depend on map iteration order")
		}
	}
}

func TestBuildMergeConfigSplitsBindings(t *testing.T) {
	defs, err := sharding.Parse("col(3)")
	if err != nil {
		t.Fatal(err)
	}
	families, _ := buildMergeConfig(defs, map[string]engine.MergeOperator{
		"col":   concatOp{},
		"loose": concatOp{},
	})

	for _, name := range []string{"col-0", "col-1", "col-2"} {
		if _, ok := families[name]; !ok {
			t.Errorf("shard %s has no operator bound", name)
		}
	}
	router, ok := families["default"].(*mergeRouter)
	if !ok {
		t.Fatal("expected a router on the default family")
	}
	if len(router.bindings) != 1 || router.bindings[0].prefix != "loose" {
		t.Errorf("router bindings: %+v", router.bindings)
	}
}

func TestRouterDispatch(t *testing.T) {
	r := newMergeRouter([]mergeBinding{
		{prefix: "p", op: concatOp{}},
		{prefix: "q", op: keyEchoOp{}},
	})

	if got := r.MergeNonexistent(combineKey("p", "k"), []byte("a")); string(got) != "*a" {
		t.Errorf("p dispatch: got %q", got)
	}
	if got := r.Merge(combineKey("p", "k"), []byte("x"), []byte("a")); string(got) != "x|a" {
		t.Errorf("p dispatch: got %q", got)
	}
	// The delegate sees the logical key, not the combined one.
	if got := r.Merge(combineKey("q", "mykey"), nil, nil); string(got) != "mykey" {
		t.Errorf("q dispatch saw key %q", got)
	}
	// Unbound prefixes pass the operand through.
	if got := r.Merge(combineKey("z", "k"), []byte("x"), []byte("a")); string(got) != "a" {
		t.Errorf("unbound prefix: got %q", got)
	}
	// A key that merely shares bytes with a prefix does not match.
	if got := r.Merge([]byte("pp\x00k"), nil, []byte("a")); string(got) != "a" {
		t.Errorf("near-miss prefix: got %q", got)
	}
}

func TestStoreMergeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	open := func() *Store {
		opts := DefaultOptions()
		opts.ShardingDefinition = "col(2)"
		opts.MergeOperators = map[string]engine.MergeOperator{
			"col":   concatOp{},
			"loose": concatOp{},
		}
		s, err := Open(dir, opts)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return s
	}

	s := open()
	b := s.NewBatch()
	// Linker path: the column's own shards.
	b.Merge("col", "k", []byte("a"))
	b.Merge("col", "k", []byte("b"))
	// Router path: default family.
	b.Merge("loose", "k", []byte("a"))
	if err := b.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b.Close()

	mustGet(t, s, "col", "k", "*a|b")
	mustGet(t, s, "loose", "k", "*a")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The operator set is stable across restarts, so merges keep folding.
	s = open()
	defer s.Close()
	mustGet(t, s, "col", "k", "*a|b")

	b = s.NewBatch()
	b.Merge("col", "k", []byte("c"))
	b.Merge("loose", "k", []byte("b"))
	if err := b.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b.Close()

	mustGet(t, s, "col", "k", "*a|b|c")
	mustGet(t, s, "loose", "k", "*a|b")
}
