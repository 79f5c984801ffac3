// SPDX-License-Identifier: GPL-3.0-or-later

package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capport-dev/capport/capctx"
	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/internal/genid"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/stage"
	"github.com/capport-dev/capport/universe"
)

// drainInterval bounds how long the async runner waits for in-flight
// stage invocations to return once cancellation is requested, before
// forcibly reporting them CANCELLED (§4.7 Cancellation).
const drainInterval = 5 * time.Second

// Async is the update-driven concurrent strategy (§4.7): every stage
// runs on its own goroutine, woken by its input cells' publish
// notifications rather than by position in the pipeline.
//
// Once, when true, selects "run-once-fanout": every stage executes
// exactly one time (a root stage immediately, a dependent stage as soon
// as its first qualifying wake arrives), and Run returns once every
// stage has completed its single invocation. When false, Run operates
// as "loop": every stage keeps re-invoking on every coalesced wake (and
// on its own Every ticker, if it carries one) until ctx is cancelled.
type Async struct {
	Pipeline   stage.Pipeline
	Registries *registry.Registries
	Universe   *universe.Universe
	Env        *envreg.Registry
	Logger     capplog.Logger
	Once       bool
}

// Run starts one goroutine per stage and blocks until they all exit:
// on cancellation (bounded by drainInterval), or — in run-once mode —
// once every stage has completed exactly one invocation. It returns the
// first error reported by any stage.
func (r Async) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing every cell's subscriptions on cancellation is what makes a
	// parked worker's fan-in goroutine (`for range ch`) return promptly
	// instead of waiting on a channel nothing will ever send to again.
	stopWatch := watchCancellation(ctx, r.Universe.CloseAll)
	defer stopWatch()

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	// reportErr records a stage's error for the run's final exit status
	// without cancelling the shared ctx: a stage failure must not abort
	// every other stage's worker. A global cancel() is reserved for
	// genuine external cancellation, handled below via watchCancellation.
	reportErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	// Every worker subscribes to its input cells before any worker is
	// allowed to invoke its task, so a downstream stage can never miss
	// the publish that would have woken it — a root stage's first write
	// always happens after every dependent has already subscribed.
	workers := make([]*worker, 0, len(r.Pipeline.Stages))
	for _, s := range r.Pipeline.Stages {
		task, ok := r.Registries.Tasks.Get(s.TaskName)
		if !ok {
			return capperr.New(capperr.ConfigValidate, s.Label, fmt.Errorf("task %q is not registered", s.TaskName))
		}
		w := newWorker(s, task, r)
		if err := w.subscribe(ctx); err != nil {
			return err
		}
		workers = append(workers, w)
	}
	defer func() {
		for _, w := range workers {
			w.unsubscribe()
		}
	}()

	for _, w := range workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.run(ctx, r.Once); err != nil {
				w.closeOutputs()
				reportErr(err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(drainInterval):
			mu.Lock()
			if firstErr == nil {
				firstErr = capperr.New(capperr.Cancelled, "", ctx.Err())
			}
			mu.Unlock()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

// worker drives one stage's invocations: it fans in every input cell's
// update channel plus an optional Every ticker into a single coalesced
// wake signal, and serializes re-entrant invocations of its own task.
type worker struct {
	stage stage.Stage
	task  registry.Task
	rt    Async

	mu    sync.Mutex
	dirty bool
	wake  chan struct{}

	subs   []func()
	ticker *time.Ticker
}

func newWorker(s stage.Stage, task registry.Task, rt Async) *worker {
	return &worker{
		stage: s,
		task:  task,
		rt:    rt,
		wake:  make(chan struct{}, 1),
	}
}

// subscribe establishes every input-cell subscription (and the Every
// ticker, if any) up front, before this or any other worker is allowed
// to invoke a task — see the ordering note in Async.Run.
func (w *worker) subscribe(ctx context.Context) error {
	for _, cellName := range w.stage.InputCells() {
		cell, ok := w.rt.Universe.Cell(cellName)
		if !ok {
			return capperr.New(capperr.ConfigValidate, w.stage.Label, fmt.Errorf("input cell %q not found in universe", cellName))
		}
		ch, unsubscribe := cell.Subscribe()
		w.subs = append(w.subs, unsubscribe)
		go func(ch <-chan universe.Update) {
			for range ch {
				w.notify()
			}
		}(ch)
	}

	if w.stage.Every > 0 {
		w.ticker = time.NewTicker(w.stage.Every)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-w.ticker.C:
					if !ok {
						return
					}
					w.notify()
				}
			}
		}()
	}
	return nil
}

// closeOutputs closes the subscriber channels of every cell this stage
// produces, once its task has errored terminally: any downstream worker
// parked on one of those cells' update channels stops waiting on a
// producer that will never write again, while every other stage's
// subscriptions are left untouched and keep running.
func (w *worker) closeOutputs() {
	for _, cellName := range w.stage.OutputCells() {
		if cell, ok := w.rt.Universe.Cell(cellName); ok {
			cell.CloseSubscriptions()
		}
	}
}

func (w *worker) unsubscribe() {
	for _, unsub := range w.subs {
		unsub()
	}
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

// notify marks the worker dirty and, if it was not already, signals the
// wake channel — the coalescing mechanism: any number of notifications
// arriving while the worker is busy collapse into exactly one queued
// re-run (§4.7 "a pending wake coalesces into at most one queued
// re-run").
func (w *worker) notify() {
	w.mu.Lock()
	already := w.dirty
	w.dirty = true
	w.mu.Unlock()
	if !already {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

func (w *worker) run(ctx context.Context, once bool) error {
	isRoot := w.stage.IsRoot()

	if isRoot {
		if err := w.invoke(ctx); err != nil {
			return err
		}
		if once || w.stage.Every == 0 {
			if once {
				return nil
			}
			// A root stage with no schedule runs exactly once even in
			// loop mode — nothing will ever wake it again.
			<-ctx.Done()
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.wake:
			w.mu.Lock()
			w.dirty = false
			w.mu.Unlock()
			if err := w.invoke(ctx); err != nil {
				return err
			}
			if once {
				return nil
			}
		}
	}
}

func (w *worker) invoke(ctx context.Context) error {
	logger := w.rt.Logger.With("stage", w.stage.Label, "span", genid.NewSpanID())
	rc := capctx.New(ctx, w.stage.Label, w.stage.Args, w.rt.Universe, w.rt.Registries, w.rt.Env, logger)

	logger.Info("stage started")
	if err := w.task(rc); err != nil {
		logger.Error("stage failed", "error", err)
		return err
	}
	logger.Info("stage finished")
	return nil
}
