package shardstore

import (
	"sync"

	"shardkv/lib/logger"
)

// --------------------------------------------------------------------------
// Compaction Queue
// --------------------------------------------------------------------------

// compactEntry is one queued compaction. The zero entry is the whole-store
// sentinel: no prefix and no bounds means compact everything.
type compactEntry struct {
	prefix string
	start  string
	end    string
}

func (e compactEntry) wholeStore() bool {
	return e.prefix == "" && e.start == "" && e.end == ""
}

// compactionQueue serializes background compactions through a single worker.
// The worker is started lazily on the first enqueue and drains the queue
// strictly in FIFO order; an in-flight compaction is never cancelled, stop
// only takes effect between entries.
type compactionQueue struct {
	log *logger.Logger
	run func(compactEntry) error

	// merges counts enqueues that coalesced into an existing entry.
	merges func()

	mu      sync.Mutex
	cond    *sync.Cond
	entries []compactEntry
	started bool
	stop    bool
	done    chan struct{}
}

func newCompactionQueue(log *logger.Logger, run func(compactEntry) error, merges func()) *compactionQueue {
	q := &compactionQueue{
		log:    log,
		run:    run,
		merges: merges,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// add enqueues one compaction, merging adjacent ranges where it can. The
// coalescing is O(n) over the queue, which stays short in practice, and does
// not try to cover every overlap case.
func (q *compactionQueue) add(e compactEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop {
		return
	}

	merged := false
	for i, p := range q.entries {
		if p.prefix != e.prefix {
			continue
		}
		if p.start == e.start && p.end == e.end {
			// dup; no-op
			return
		}
		if e.start <= p.start && p.start <= e.end {
			// new range crosses the start of an existing one
			end := e.end
			if p.end > end {
				end = p.end
			}
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.entries = append(q.entries, compactEntry{e.prefix, e.start, end})
			merged = true
			break
		}
		if e.start <= p.end && p.end <= e.end {
			// new range crosses the end of an existing one
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.entries = append(q.entries, compactEntry{e.prefix, p.start, e.end})
			merged = true
			break
		}
	}
	if merged {
		q.merges()
	} else {
		q.entries = append(q.entries, e)
	}

	q.cond.Broadcast()
	if !q.started {
		q.started = true
		go q.worker()
	}
}

// length returns the current queue depth.
func (q *compactionQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// shutdown stops the worker and waits for it to finish. Queued entries that
// have not started are dropped.
func (q *compactionQueue) shutdown() {
	q.mu.Lock()
	if q.stop {
		q.mu.Unlock()
		return
	}
	q.stop = true
	started := q.started
	q.cond.Broadcast()
	q.mu.Unlock()
	if started {
		<-q.done
	}
}

func (q *compactionQueue) worker() {
	q.mu.Lock()
	for !q.stop {
		if len(q.entries) > 0 {
			e := q.entries[0]
			q.entries = q.entries[1:]
			q.mu.Unlock()
			if err := q.run(e); err != nil {
				q.log.Errorf("compaction of %q [%q, %q] failed: %v",
					e.prefix, e.start, e.end, err)
			}
			q.mu.Lock()
			continue
		}
		q.cond.Wait()
	}
	q.mu.Unlock()
	close(q.done)
}
