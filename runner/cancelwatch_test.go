// SPDX-License-Identifier: GPL-3.0-or-later

package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchCancellationRunsTeardownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 1)

	watchCancellation(ctx, func() { done <- struct{}{} })

	select {
	case <-done:
		t.Fatal("teardown should not run before cancellation")
	default:
	}

	cancel()

	waitDone := func() bool {
		<-done
		return true
	}
	assert.Eventually(t, waitDone, time.Second, 10*time.Millisecond)
}

func TestWatchCancellationAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{}, 1)
	watchCancellation(ctx, func() { done <- struct{}{} })

	waitDone := func() bool {
		<-done
		return true
	}
	assert.Eventually(t, waitDone, time.Second, 10*time.Millisecond)
}

func TestWatchCancellationStopUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := 0
	stop := watchCancellation(ctx, func() { count++ })

	assert.True(t, stop())

	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, count)
}
