// SPDX-License-Identifier: GPL-3.0-or-later

package schedule

import "context"

// Scheduler drives repeated pipeline runs from a [Trigger] (§4.8): it
// is the only component permitted to start a run, it never starts a
// second run while one is in progress, and any trigger fires that occur
// mid-run coalesce into exactly one follow-up run once the current one
// finishes.
//
// The coalescing falls directly out of Trigger.C's buffered,
// non-blocking-send contract: Scheduler.Run only reads the channel
// between runs, so every fire that lands while runFn is executing either
// fills the one free buffer slot or is dropped by the trigger itself —
// no additional bookkeeping is needed here.
type Scheduler struct {
	Trigger Trigger
}

// Run blocks until ctx is cancelled, invoking runFn once per trigger
// fire, never concurrently. It returns the first error runFn reports;
// ctx cancellation itself is not an error.
func (s Scheduler) Run(ctx context.Context, runFn func(context.Context) error) error {
	defer s.Trigger.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Trigger.C():
		}
		if err := runFn(ctx); err != nil {
			return err
		}
	}
}
