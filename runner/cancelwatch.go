// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's CancelWatchFunc (context.AfterFunc-based
// connection closer), generalized from "close a net.Conn" to "run an
// arbitrary teardown exactly once when the run context is done".

package runner

import "context"

// watchCancellation arranges for teardown to run exactly once when ctx is
// done (cancelled or deadline exceeded), and returns a stop function that
// unregisters the watcher if the caller tears down on its own first.
//
// The async runner uses this to close every stage's subscription channels
// as soon as the run-wide cancellation signal fires (§4.7 Cancellation),
// rather than waiting for each stage to notice ctx.Done() on its own.
func watchCancellation(ctx context.Context, teardown func()) (stop func() bool) {
	return context.AfterFunc(ctx, teardown)
}
