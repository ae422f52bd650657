package enginetest

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"shardkv/lib/engine"
)

// EngineFactory creates a fresh engine for one test. Implementations decide
// where the data lives; t.TempDir is the usual choice.
type EngineFactory func(t *testing.T) engine.Engine

// RunEngineTests runs the conformance suite against an engine implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("ShardLifecycle", func(t *testing.T) {
			testShardLifecycle(t, factory(t))
		})
		t.Run("BatchSetGet", func(t *testing.T) {
			testBatchSetGet(t, factory(t))
		})
		t.Run("BatchDeleteRange", func(t *testing.T) {
			testBatchDeleteRange(t, factory(t))
		})
		t.Run("CursorOrder", func(t *testing.T) {
			testCursorOrder(t, factory(t))
		})
		t.Run("CursorSeek", func(t *testing.T) {
			testCursorSeek(t, factory(t))
		})
		t.Run("ShardIsolation", func(t *testing.T) {
			testShardIsolation(t, factory(t))
		})
		t.Run("AuxRecords", func(t *testing.T) {
			testAuxRecords(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustCreate(t *testing.T, e engine.Engine, name string) engine.Shard {
	t.Helper()
	s, err := e.CreateShard(name, "")
	if err != nil {
		t.Fatalf("CreateShard(%s): %v", name, err)
	}
	return s
}

func mustCommit(t *testing.T, b engine.Batch) {
	t.Helper()
	if err := b.Commit(false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func put(t *testing.T, e engine.Engine, s engine.Shard, key, value string) {
	t.Helper()
	b := e.NewBatch()
	if err := b.Set(s, []byte(key), []byte(value)); err != nil {
		t.Fatalf("Set(%s): %v", key, err)
	}
	mustCommit(t, b)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testShardLifecycle(t *testing.T, e engine.Engine) {
	defer e.Close()

	if e.DefaultShard() == nil {
		t.Fatal("expected a default shard")
	}

	s := mustCreate(t, e, "alpha")
	if s.Name() != "alpha" {
		t.Errorf("expected name %q, got %q", "alpha", s.Name())
	}

	if _, err := e.CreateShard("alpha", ""); !errors.Is(err, engine.ErrShardExists) {
		t.Errorf("expected ErrShardExists, got %v", err)
	}

	names, err := e.ListShards()
	if err != nil {
		t.Fatalf("ListShards: %v", err)
	}
	if len(names) != 1 || names[0] != "alpha" {
		t.Errorf("expected [alpha], got %v", names)
	}

	if _, err := e.OpenShard("missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.Release(); err != nil {
		t.Errorf("first Release: %v", err)
	}
	if err := s.Release(); !errors.Is(err, engine.ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
}

func testBatchSetGet(t *testing.T, e engine.Engine) {
	defer e.Close()

	s := mustCreate(t, e, "data")
	b := e.NewBatch()
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		if err := b.Set(s, []byte(key), []byte(fmt.Sprintf("val-%02d", i))); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if b.Count() != 10 {
		t.Errorf("expected count 10, got %d", b.Count())
	}
	mustCommit(t, b)

	val, err := s.Get([]byte("key-03"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(val, []byte("val-03")) {
		t.Errorf("expected val-03, got %q", val)
	}

	if _, err := s.Get([]byte("nope")); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testBatchDeleteRange(t *testing.T, e engine.Engine) {
	defer e.Close()

	s := mustCreate(t, e, "data")
	for i := 0; i < 10; i++ {
		put(t, e, s, fmt.Sprintf("key-%02d", i), "x")
	}

	b := e.NewBatch()
	if err := b.DeleteRange(s, []byte("key-03"), []byte("key-07")); err != nil {
		t.Fatalf("DeleteRange: %v", err)
	}
	mustCommit(t, b)

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		_, err := s.Get([]byte(key))
		deleted := i >= 3 && i < 7
		if deleted && !errors.Is(err, engine.ErrNotFound) {
			t.Errorf("expected %s deleted, got err=%v", key, err)
		}
		if !deleted && err != nil {
			t.Errorf("expected %s present, got err=%v", key, err)
		}
	}
}

func testCursorOrder(t *testing.T, e engine.Engine) {
	defer e.Close()

	s := mustCreate(t, e, "data")
	// Insert out of order, expect byte order back.
	for _, key := range []string{"m", "a", "z", "q", "b"} {
		put(t, e, s, key, "v-"+key)
	}

	c, err := s.NewCursor()
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer c.Close()

	var got []string
	for ok := c.First(); ok; ok = c.Next() {
		got = append(got, string(c.Key()))
	}
	want := []string{"a", "b", "m", "q", "z"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	// Backwards from the end.
	got = got[:0]
	for ok := c.Last(); ok; ok = c.Prev() {
		got = append(got, string(c.Key()))
	}
	for i := range want {
		if got[len(got)-1-i] != want[i] {
			t.Fatalf("reverse scan: expected reversal of %v, got %v", want, got)
		}
	}
}

func testCursorSeek(t *testing.T, e engine.Engine) {
	defer e.Close()

	s := mustCreate(t, e, "data")
	for _, key := range []string{"b", "d", "f"} {
		put(t, e, s, key, "v")
	}

	c, err := s.NewCursor()
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer c.Close()

	if !c.SeekGE([]byte("c")) || string(c.Key()) != "d" {
		t.Errorf("SeekGE(c): expected d, valid=%v key=%q", c.Valid(), c.Key())
	}
	if !c.SeekGE([]byte("d")) || string(c.Key()) != "d" {
		t.Errorf("SeekGE(d): expected d, valid=%v key=%q", c.Valid(), c.Key())
	}
	if c.SeekGE([]byte("g")) {
		t.Errorf("SeekGE(g): expected invalid, got key=%q", c.Key())
	}
	if !c.SeekLT([]byte("d")) || string(c.Key()) != "b" {
		t.Errorf("SeekLT(d): expected b, valid=%v key=%q", c.Valid(), c.Key())
	}
	if c.SeekLT([]byte("b")) {
		t.Errorf("SeekLT(b): expected invalid, got key=%q", c.Key())
	}
}

func testShardIsolation(t *testing.T, e engine.Engine) {
	defer e.Close()

	one := mustCreate(t, e, "one")
	two := mustCreate(t, e, "two")

	put(t, e, one, "k", "from-one")
	put(t, e, two, "k", "from-two")
	put(t, e, two, "only-two", "x")

	val, err := one.Get([]byte("k"))
	if err != nil || !bytes.Equal(val, []byte("from-one")) {
		t.Errorf("shard one: expected from-one, got %q err=%v", val, err)
	}
	if _, err := one.Get([]byte("only-two")); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected only-two absent in shard one, got %v", err)
	}

	// A cursor on shard one must not see shard two's entries.
	c, err := one.NewCursor()
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer c.Close()
	count := 0
	for ok := c.First(); ok; ok = c.Next() {
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 entry in shard one, got %d", count)
	}
}

func testAuxRecords(t *testing.T, e engine.Engine) {
	defer e.Close()

	if _, err := e.ReadAux("sharding/def"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent aux record, got %v", err)
	}
	if err := e.WriteAux("sharding/def", "p(3) q"); err != nil {
		t.Fatalf("WriteAux: %v", err)
	}
	text, err := e.ReadAux("sharding/def")
	if err != nil || text != "p(3) q" {
		t.Errorf("expected %q, got %q err=%v", "p(3) q", text, err)
	}
	if err := e.RemoveAux("sharding/def"); err != nil {
		t.Fatalf("RemoveAux: %v", err)
	}
	if _, err := e.ReadAux("sharding/def"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound after removal, got %v", err)
	}
	// Removing an absent record is a no-op.
	if err := e.RemoveAux("sharding/def"); err != nil {
		t.Errorf("RemoveAux on absent record: %v", err)
	}
}
