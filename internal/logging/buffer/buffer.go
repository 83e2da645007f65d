// Package buffer implements the stateful delivery engine: it owns the live
// entry queue and the retry queue, schedules timer-driven flushes, and
// coordinates the sender and the persistence store.
//
// Retry scheduling enforces the policy delay: a failed batch carries a
// not-before timestamp and is skipped by flush cycles until that time has
// passed. This is stricter than retrying on the next trigger regardless of
// elapsed time.
package buffer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telemetrykit/lokibuf/internal/logging"
)

// retryItem is a failed batch waiting for redelivery. The attempt counter
// only ever grows; the id ties together log lines about one logical batch.
type retryItem struct {
	id        string
	entries   []logging.LogEntry
	attempt   uint32
	notBefore time.Time
}

// Engine is the single owner of all mutable log state. Append, Flush and
// Stop may be called from any goroutine; effects are observed as if totally
// ordered. At most one flush sequence is in flight at any time.
type Engine struct {
	config  logging.Config
	sender  logging.Sender
	trigger logging.TriggerSource
	metrics *Metrics

	mu         sync.Mutex
	buf        []logging.LogEntry
	retryQueue []retryItem
	running    bool

	// flushMu serializes whole flush sequences, network call included.
	// A concurrent Flush waits here instead of racing to send overlapping
	// batches.
	flushMu sync.Mutex

	flushCh chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped engine. The trigger source is optional; pass nil
// when no external flush signals are wired.
func New(config logging.Config, sender logging.Sender, trigger logging.TriggerSource) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config:  config,
		sender:  sender,
		trigger: trigger,
		metrics: &Metrics{},
		flushCh: make(chan struct{}, 1),
	}, nil
}

// Metrics returns the engine's counters. Safe to call at any time.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Start recovers persisted entries from a prior session, then begins the
// periodic flush loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	e.recover()

	e.wg.Add(1)
	go e.run(ctx)

	log.Printf("Buffer engine started: batch size=%d, flush interval=%s, max buffer=%d",
		e.config.BatchSize, e.config.FlushInterval, e.config.MaxBufferSize)
}

// Stop cancels the flush loop, performs one final flush, and hands anything
// still undelivered to the persistence store. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	e.Flush()

	// Whatever the final flush could not deliver goes to the store so the
	// next session can recover it. Retry batches are older than the live
	// buffer, so they are written first.
	e.mu.Lock()
	var remaining []logging.LogEntry
	for _, item := range e.retryQueue {
		remaining = append(remaining, item.entries...)
	}
	remaining = append(remaining, e.buf...)
	e.buf = nil
	e.retryQueue = nil
	e.mu.Unlock()

	if len(remaining) > 0 {
		e.persist(remaining, "shutdown")
	}
	log.Printf("Buffer engine stopped")
}

// Append adds one entry to the live buffer, evicting the oldest entry when
// the buffer is at capacity. It never blocks on network I/O and never fails:
// reaching the batch size signals the flush loop instead of sending inline.
// Appending to a stopped engine drops the entry with a warning.
func (e *Engine) Append(entry logging.LogEntry) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		e.metrics.IncEntriesDropped()
		log.Printf("Buffer engine not started, dropping entry: %q", entry.Message)
		return
	}

	if len(e.buf) >= e.config.MaxBufferSize {
		e.buf = e.buf[1:]
		e.metrics.IncEntriesEvicted()
	}
	e.buf = append(e.buf, entry)
	e.metrics.IncEntriesAppended()
	reachedBatch := len(e.buf) >= e.config.BatchSize
	e.mu.Unlock()

	if reachedBatch {
		e.signalFlush()
	}
}

// Flush runs one flush sequence: the live buffer is swapped out and sent,
// then every due retry batch is re-attempted. Concurrent calls serialize;
// an empty engine flushes as a no-op with no network call. Delivery failures
// are absorbed into the retry queue or the store, never returned.
func (e *Engine) Flush() {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	now := time.Now()

	e.mu.Lock()
	if len(e.buf) == 0 && len(e.retryQueue) == 0 {
		e.mu.Unlock()
		return
	}

	batch := e.buf
	e.buf = nil

	var due []retryItem
	var waiting []retryItem
	for _, item := range e.retryQueue {
		if item.notBefore.After(now) {
			waiting = append(waiting, item)
		} else {
			due = append(due, item)
		}
	}
	e.retryQueue = waiting
	e.mu.Unlock()

	if len(batch) > 0 {
		e.deliver(retryItem{id: uuid.NewString(), entries: batch})
	}
	for _, item := range due {
		e.deliver(item)
	}
}

// deliver makes one send attempt for a batch and routes the outcome: success
// is done, a failure below the retry ceiling re-enqueues with attempt+1 and a
// policy-computed not-before time, and a failure at the ceiling hands the
// batch to the store.
func (e *Engine) deliver(item retryItem) {
	err := e.sender.Send(item.entries)
	if err == nil {
		e.metrics.IncBatchesSent()
		return
	}
	e.metrics.IncBatchesFailed()

	if item.attempt >= uint32(e.config.Retry.MaxRetries) {
		log.Printf("Batch %s failed after %d attempts, handing %d entries to persistence: %v",
			item.id, item.attempt+1, len(item.entries), err)
		e.persist(item.entries, "retry ceiling")
		return
	}

	delay := e.config.Retry.Delay(item.attempt)
	item.attempt++
	item.notBefore = time.Now().Add(delay)
	log.Printf("Batch %s delivery failed (attempt %d), retrying in %s: %v",
		item.id, item.attempt, delay, err)

	e.mu.Lock()
	e.retryQueue = append(e.retryQueue, item)
	e.mu.Unlock()
}

func (e *Engine) persist(entries []logging.LogEntry, reason string) {
	if e.config.Persistence == nil {
		log.Printf("No persistence configured, dropping %d entries (%s)", len(entries), reason)
		return
	}
	if err := e.config.Persistence.Append(entries); err != nil {
		perr := &logging.PersistenceError{Op: "append", Err: err}
		log.Printf("Failed to persist %d entries (%s): %v", len(entries), reason, perr)
		return
	}
	e.metrics.AddEntriesPersisted(len(entries))
}

// recover merges entries left behind by a prior session into the live buffer
// ahead of anything appended since Start. A store failure yields zero
// entries; it never aborts startup.
func (e *Engine) recover() {
	if e.config.Persistence == nil {
		return
	}

	recovered, err := e.config.Persistence.LoadAndClear()
	if err != nil {
		perr := &logging.PersistenceError{Op: "load", Err: err}
		log.Printf("Recovery failed, starting with empty buffer: %v", perr)
		return
	}
	if len(recovered) == 0 {
		return
	}

	e.mu.Lock()
	merged := append(recovered, e.buf...)
	for len(merged) > e.config.MaxBufferSize {
		merged = merged[1:]
		e.metrics.IncEntriesEvicted()
	}
	e.buf = merged
	e.mu.Unlock()

	e.metrics.AddEntriesRecovered(len(recovered))
	log.Printf("Recovered %d entries from persistence", len(recovered))
}

func (e *Engine) signalFlush() {
	select {
	case e.flushCh <- struct{}{}:
	default:
	}
}

// run is the engine's single flush-driving goroutine. Timer ticks, batch
// size signals and external trigger signals all funnel into Flush here, so
// no two trigger sources ever start overlapping sequences.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	var external <-chan struct{}
	if e.trigger != nil {
		external = e.trigger.Flushes()
	}

	for {
		select {
		case <-ticker.C:
			e.Flush()
		case <-e.flushCh:
			e.Flush()
		case <-external:
			e.Flush()
		case <-ctx.Done():
			return
		}
	}
}
