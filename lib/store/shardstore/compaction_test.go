package shardstore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"shardkv/lib/logger"
)

var errTest = errors.New("test failure")

// queueHarness drives a compaction queue whose worker can be held on its
// first entry, so the test can fill and inspect the queue deterministically.
type queueHarness struct {
	q       *compactionQueue
	mu      sync.Mutex
	ran     []compactEntry
	merges  int
	started chan struct{}
	release chan struct{}
}

func newQueueHarness() *queueHarness {
	h := &queueHarness{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h.q = newCompactionQueue(logger.GetLogger("test"),
		func(e compactEntry) error {
			if e.prefix == "hold" {
				close(h.started)
				<-h.release
				return nil
			}
			h.mu.Lock()
			h.ran = append(h.ran, e)
			h.mu.Unlock()
			return nil
		},
		func() { h.merges++ })
	return h
}

// hold blocks the worker on a sentinel entry until release is closed.
func (h *queueHarness) hold(t *testing.T) {
	t.Helper()
	h.q.add(compactEntry{prefix: "hold"})
	select {
	case <-h.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not start")
	}
}

func (h *queueHarness) waitRan(t *testing.T, n int) []compactEntry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.mu.Lock()
		got := append([]compactEntry(nil), h.ran...)
		h.mu.Unlock()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker ran %d entries, want %d", len(got), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *queueHarness) entries() []compactEntry {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	return append([]compactEntry(nil), h.q.entries...)
}

func TestQueueDropsDuplicates(t *testing.T) {
	h := newQueueHarness()
	defer h.q.shutdown()
	h.hold(t)

	h.q.add(compactEntry{"p", "a", "c"})
	h.q.add(compactEntry{"p", "a", "c"})
	if got := h.entries(); len(got) != 1 {
		t.Fatalf("expected 1 queued entry, got %v", got)
	}
	if h.merges != 0 {
		t.Errorf("a dropped duplicate is not a merge, counted %d", h.merges)
	}
	close(h.release)
}

func TestQueueCoalescesOverlaps(t *testing.T) {
	h := newQueueHarness()
	defer h.q.shutdown()
	h.hold(t)

	h.q.add(compactEntry{"p", "c", "e"})
	// Crosses the start of the existing range.
	h.q.add(compactEntry{"p", "a", "d"})
	if got := h.entries(); len(got) != 1 || got[0] != (compactEntry{"p", "a", "e"}) {
		t.Fatalf("expected [{p a e}], got %v", got)
	}
	// Crosses the end of the coalesced range.
	h.q.add(compactEntry{"p", "d", "g"})
	if got := h.entries(); len(got) != 1 || got[0] != (compactEntry{"p", "a", "g"}) {
		t.Fatalf("expected [{p a g}], got %v", got)
	}
	if h.merges != 2 {
		t.Errorf("expected 2 merges, got %d", h.merges)
	}

	close(h.release)
	got := h.waitRan(t, 1)
	if got[0] != (compactEntry{"p", "a", "g"}) {
		t.Errorf("worker ran %v", got[0])
	}
}

func TestQueueKeepsPrefixesApart(t *testing.T) {
	h := newQueueHarness()
	defer h.q.shutdown()
	h.hold(t)

	h.q.add(compactEntry{"p", "a", "c"})
	h.q.add(compactEntry{"q", "a", "c"})
	if got := h.entries(); len(got) != 2 {
		t.Fatalf("ranges of different prefixes must not merge, got %v", got)
	}
	if h.merges != 0 {
		t.Errorf("expected 0 merges, got %d", h.merges)
	}

	close(h.release)
	got := h.waitRan(t, 2)
	if got[0].prefix != "p" || got[1].prefix != "q" {
		t.Errorf("expected FIFO order p then q, got %v", got)
	}
}

func TestQueueWorkerSurvivesErrors(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	q := newCompactionQueue(logger.GetLogger("test"),
		func(e compactEntry) error {
			mu.Lock()
			ran = append(ran, e.prefix)
			mu.Unlock()
			if e.prefix == "bad" {
				return errTest
			}
			return nil
		},
		func() {})
	defer q.shutdown()

	q.add(compactEntry{prefix: "bad"})
	q.add(compactEntry{prefix: "good"})

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(ran)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker stopped after a failure, ran %d entries", n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestQueueShutdown(t *testing.T) {
	q := newCompactionQueue(logger.GetLogger("test"),
		func(compactEntry) error { return nil }, func() {})

	// Shutdown before any work must not block on a worker that never ran.
	q.shutdown()
	q.shutdown()

	// Entries after shutdown are discarded.
	q.add(compactEntry{prefix: "late"})
	if q.length() != 0 {
		t.Error("entries added after shutdown must be dropped")
	}
}
