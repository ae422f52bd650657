package pebbleng

import (
	"bytes"
	"errors"
	"testing"

	"shardkv/lib/engine"
	"shardkv/lib/engine/enginetest"
)

func TestPebbleEngineConformance(t *testing.T) {
	enginetest.RunEngineTests(t, "pebble", func(t *testing.T) engine.Engine {
		e, err := Open(t.TempDir(), DefaultOptions())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return e
	})
}

// appendOperator joins operands with commas. Simple enough to predict the
// result of any merge chain by hand.
type appendOperator struct{}

func (appendOperator) Name() string { return "append" }

func (appendOperator) Merge(key, existing, operand []byte) []byte {
	out := make([]byte, 0, len(existing)+1+len(operand))
	out = append(out, existing...)
	out = append(out, ',')
	return append(out, operand...)
}

func (appendOperator) MergeNonexistent(key, operand []byte) []byte {
	out := make([]byte, 0, 1+len(operand))
	out = append(out, '?')
	return append(out, operand...)
}

func openWithAppend(t *testing.T, path string) engine.Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.MergeOperators = map[string]engine.MergeOperator{
		"merged": appendOperator{},
	}
	e, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e
}

func TestMergeDispatch(t *testing.T) {
	e := openWithAppend(t, t.TempDir())
	defer e.Close()

	s, err := e.CreateShard("merged", "")
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	// First operand lands on a nonexistent value.
	b := e.NewBatch()
	if err := b.Merge(s, []byte("k"), []byte("a")); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := b.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b.Close()

	val, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(val, []byte("?a")) {
		t.Errorf("expected ?a, got %q", val)
	}

	// Further operands fold onto the existing value.
	b = e.NewBatch()
	b.Merge(s, []byte("k"), []byte("b"))
	b.Merge(s, []byte("k"), []byte("c"))
	if err := b.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b.Close()

	val, err = s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(val, []byte("?a,b,c")) {
		t.Errorf("expected ?a,b,c, got %q", val)
	}
}

func TestMergeWithoutOperatorKeepsNewest(t *testing.T) {
	e, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	s := e.DefaultShard()
	b := e.NewBatch()
	b.Merge(s, []byte("k"), []byte("old"))
	b.Merge(s, []byte("k"), []byte("new"))
	if err := b.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b.Close()

	val, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(val, []byte("new")) {
		t.Errorf("expected newest operand to win, got %q", val)
	}
}

func TestReopenPersistence(t *testing.T) {
	dir := t.TempDir()

	e := openWithAppend(t, dir)
	s, err := e.CreateShard("merged", "")
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}
	b := e.NewBatch()
	b.Set(s, []byte("k"), []byte("v"))
	b.Merge(s, []byte("m"), []byte("x"))
	if err := b.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b.Close()
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The catalog and the merge binding must survive a reopen.
	e = openWithAppend(t, dir)
	defer e.Close()

	names, err := e.ListShards()
	if err != nil || len(names) != 1 || names[0] != "merged" {
		t.Fatalf("expected [merged], got %v err=%v", names, err)
	}
	s, err = e.OpenShard("merged")
	if err != nil {
		t.Fatalf("OpenShard: %v", err)
	}
	val, err := s.Get([]byte("k"))
	if err != nil || !bytes.Equal(val, []byte("v")) {
		t.Errorf("expected v, got %q err=%v", val, err)
	}
	val, err = s.Get([]byte("m"))
	if err != nil || !bytes.Equal(val, []byte("?x")) {
		t.Errorf("expected ?x, got %q err=%v", val, err)
	}
}

func TestOpenMissingFails(t *testing.T) {
	opts := DefaultOptions()
	opts.CreateIfMissing = false
	if _, err := Open(t.TempDir(), opts); err == nil {
		t.Fatal("expected open of a missing database to fail")
	}
}

func TestForeignShardRejected(t *testing.T) {
	e1, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e1.Close()
	e2, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e2.Close()

	b := e1.NewBatch()
	defer b.Close()
	if err := b.Set(e2.DefaultShard(), []byte("k"), []byte("v")); err == nil {
		t.Fatal("expected a batch to reject shards from another engine")
	}
}

func TestReleasedShardRejected(t *testing.T) {
	e, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	s, err := e.CreateShard("gone", "")
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	b := e.NewBatch()
	defer b.Close()
	if err := b.Set(s, []byte("k"), []byte("v")); !errors.Is(err, engine.ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
}
