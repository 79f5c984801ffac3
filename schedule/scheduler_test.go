// SPDX-License-Identifier: GPL-3.0-or-later

package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrigger lets tests fire on demand instead of waiting on a real
// cron schedule.
type fakeTrigger struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{ch: make(chan time.Time, 1)}
}

func (f *fakeTrigger) C() <-chan time.Time { return f.ch }
func (f *fakeTrigger) Stop()               { f.stopped.Store(true) }
func (f *fakeTrigger) fire() {
	select {
	case f.ch <- time.Now():
	default:
	}
}

func TestSchedulerRunsOncePerFire(t *testing.T) {
	trig := newFakeTrigger()
	s := Scheduler{Trigger: trig}

	var runs int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		})
	}()

	trig.fire()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, time.Millisecond)

	trig.fire()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.True(t, trig.stopped.Load())
}

func TestSchedulerNeverOverlapsRuns(t *testing.T) {
	trig := newFakeTrigger()
	s := Scheduler{Trigger: trig}

	var concurrent int32
	var maxConcurrent int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context) error {
			n := atomic.AddInt32(&concurrent, 1)
			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			return nil
		})
	}()

	// Fire multiple times in quick succession — the fake trigger's
	// buffered, non-blocking send coalesces extras the same way a real
	// cron-backed Trigger does.
	for i := 0; i < 5; i++ {
		trig.fire()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}

func TestSchedulerReturnsFirstRunError(t *testing.T) {
	trig := newFakeTrigger()
	s := Scheduler{Trigger: trig}
	wantErr := errors.New("boom")

	ctx := context.Background()
	trig.fire()
	err := s.Run(ctx, func(ctx context.Context) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}
