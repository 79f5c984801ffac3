// SPDX-License-Identifier: GPL-3.0-or-later

// Package universe implements the shared in-memory universe of named
// [frame.Frame] values that stages publish to and subscribe from (§3, §4.7,
// §9 Design Notes). A [Cell] is a single named slot: a reader-writer locked
// current Frame plus a monotonic generation counter and a bounded fan-out
// of update notifications. [Universe] is the name → Cell directory that
// Universe construction populates once at pipeline build time.
package universe

import (
	"context"
	"sync"
)

// notificationBuffer is the per-subscriber channel capacity. Backpressure
// beyond this drops the oldest queued notification rather than blocking the
// writer (§4.7 Backpressure) — the dirty flag on the cell still guarantees
// a subscriber reads the latest generation once it catches up.
const notificationBuffer = 4

// Update is delivered to a cell's subscribers on every publish (§3 "Update
// notification" entity).
type Update struct {
	CellName     string
	Generation   uint64
	ProducerLabel string
}

// FrameHolder is the narrow view of a [frame.Frame] that package universe
// depends on. It is satisfied by frame.Frame; defining it here (instead of
// importing package frame) keeps universe a leaf package with no
// dependency on the concrete columnar representation, mirroring how
// package frame itself stays independent of capperr (see DESIGN.md).
type FrameHolder interface{}

// Cell is a single named slot in the Universe: the latest published Frame,
// a strictly monotonic generation counter, a dirty flag for late
// subscribers, and the set of subscriber notification channels (§3
// FrameCell entity).
type Cell struct {
	name string

	mu         sync.RWMutex
	writerCond sync.Cond // guards writer-priority admission, see acquireWrite
	current    FrameHolder
	generation uint64
	dirty      bool

	subMu        sync.Mutex
	subscribers  map[int]chan Update
	nextSubID    int
	waitingWrite int // count of writers parked behind readers (reader-bias-with-writer-priority)

	droppedMu sync.Mutex
	dropped   map[int]uint64 // per-subscriber dropped-notification counter
}

// newCell constructs an empty, unpublished cell.
func newCell(name string) *Cell {
	c := &Cell{
		name:        name,
		subscribers: map[int]chan Update{},
		dropped:     map[int]uint64{},
	}
	c.writerCond.L = &sync.Mutex{}
	return c
}

// Name returns the cell's name.
func (c *Cell) Name() string { return c.name }

// Generation returns the cell's current generation counter, and whether it
// has ever been published to.
func (c *Cell) Generation() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation, c.generation > 0 || c.dirty
}

// Read acquires a read lock and returns the current Frame and generation.
// The returned Frame is safe to retain: Frame values in this engine are
// immutable, so a reader's snapshot remains valid even after a writer
// installs a newer generation.
func (c *Cell) Read(ctx context.Context) (FrameHolder, uint64, error) {
	if err := c.acquireRead(ctx); err != nil {
		return nil, 0, err
	}
	defer c.mu.RUnlock()
	return c.current, c.generation, nil
}

// acquireRead blocks until a read lock is available, respecting
// writer-priority-with-reader-bias: ordinary reads proceed immediately
// unless a writer is currently parked waiting for the lock, in which case
// the reader waits behind it (§4.7 "admits queued writers before new
// readers once a writer is parked").
func (c *Cell) acquireRead(ctx context.Context) error {
	c.writerCond.L.Lock()
	for c.waitingWrite > 0 {
		if done := waitOrCancel(ctx, &c.writerCond); done != nil {
			c.writerCond.L.Unlock()
			return done
		}
	}
	c.writerCond.L.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.mu.RLock()
	return nil
}

// waitOrCancel waits on cond.Wait() while respecting ctx cancellation. It
// returns a non-nil error if ctx was already done; callers must re-check
// their own condition after a nil return since Wait can wake spuriously.
func waitOrCancel(ctx context.Context, cond *sync.Cond) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	waitDone := make(chan struct{})
	go func() {
		cond.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		return nil
	case <-ctx.Done():
		// Wake every waiter so the goroutine above can observe ctx
		// cancellation too and this call stack doesn't leak.
		cond.Broadcast()
		<-waitDone
		return ctx.Err()
	}
}

// Write installs a new Frame as the latest generation, publishing an
// Update to every subscriber (§4.1 "publishers replace the whole Frame
// atomically with respect to readers"). producerLabel is the stage label
// that produced this write, carried in the Update for logging.
func (c *Cell) Write(ctx context.Context, f FrameHolder, producerLabel string) (uint64, error) {
	if err := c.acquireWrite(ctx); err != nil {
		return 0, err
	}
	c.generation++
	c.current = f
	c.dirty = true
	gen := c.generation
	c.mu.Unlock()

	c.broadcast(Update{CellName: c.name, Generation: gen, ProducerLabel: producerLabel})
	return gen, nil
}

// acquireWrite takes the exclusive write lock, registering as a parked
// writer first so that concurrent reader acquisitions yield to it (the
// writer-priority half of the reader-bias policy).
func (c *Cell) acquireWrite(ctx context.Context) error {
	c.writerCond.L.Lock()
	c.waitingWrite++
	c.writerCond.L.Unlock()

	if ctx.Err() != nil {
		c.writerCond.L.Lock()
		c.waitingWrite--
		c.writerCond.L.Unlock()
		return ctx.Err()
	}
	c.mu.Lock()

	c.writerCond.L.Lock()
	c.waitingWrite--
	if c.waitingWrite == 0 {
		c.writerCond.Broadcast()
	}
	c.writerCond.L.Unlock()
	return nil
}

// Subscribe registers a new notification channel for this cell and returns
// it along with an unsubscribe function. A late subscriber (one joining
// after the cell already has a generation) immediately observes the
// current generation by calling Read; the channel only carries updates
// from this point forward (§9 Design Notes: "bounded fan-out with a dirty
// flag so a late subscriber immediately observes the current generation by
// reading the cell, and receives the next notification through the
// channel").
func (c *Cell) Subscribe() (ch <-chan Update, unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	sub := make(chan Update, notificationBuffer)
	c.subscribers[id] = sub

	return sub, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if existing, ok := c.subscribers[id]; ok {
			close(existing)
			delete(c.subscribers, id)
		}
	}
}

// DroppedCount returns the number of notifications ever dropped due to
// backpressure on a subscription still tracked internally for metrics;
// exposed mainly for tests asserting Testable Property 1's dirty-flag
// fallback path is exercised under load.
func (c *Cell) DroppedCount() uint64 {
	c.droppedMu.Lock()
	defer c.droppedMu.Unlock()
	var total uint64
	for _, n := range c.dropped {
		total += n
	}
	return total
}

// broadcast delivers upd to every live subscriber, non-blocking: a full
// channel drops its oldest queued notification to make room rather than
// blocking the writer (§4.7 Backpressure).
func (c *Cell) broadcast(upd Update) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, sub := range c.subscribers {
		select {
		case sub <- upd:
		default:
			// Drop the oldest queued notification, then enqueue this one.
			select {
			case <-sub:
				c.droppedMu.Lock()
				c.dropped[id]++
				c.droppedMu.Unlock()
			default:
			}
			select {
			case sub <- upd:
			default:
				// Another writer raced us; the dirty flag still makes the
				// latest generation observable on the next Read.
			}
		}
	}
}

// CloseSubscriptions closes every live subscriber channel, used by the
// async runner's cancellation path to signal "stop waiting, the run is
// over" to every stage in one pass (§4.7 Cancellation).
func (c *Cell) CloseSubscriptions() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, sub := range c.subscribers {
		close(sub)
		delete(c.subscribers, id)
	}
}
