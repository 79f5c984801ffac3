// SPDX-License-Identifier: GPL-3.0-or-later

package universe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellReadBeforePublish(t *testing.T) {
	c := newCell("A")
	gen, published := c.Generation()
	assert.Equal(t, uint64(0), gen)
	assert.False(t, published)
}

func TestCellWriteIncrementsGenerationMonotonically(t *testing.T) {
	c := newCell("A")
	ctx := context.Background()

	g1, err := c.Write(ctx, "frame-v1", "stageA")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g1)

	g2, err := c.Write(ctx, "frame-v2", "stageA")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), g2)
	assert.Greater(t, g2, g1)
}

func TestCellReadReturnsLatestFrame(t *testing.T) {
	c := newCell("A")
	ctx := context.Background()
	_, err := c.Write(ctx, "v1", "s")
	require.NoError(t, err)

	f, gen, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", f)
	assert.Equal(t, uint64(1), gen)
}

// TestSubscriberNeverObservesStaleGeneration covers Testable Property 1:
// every live subscriber either observes generation g or some g'>g, never a
// generation pre-dating its subscription.
func TestSubscriberNeverObservesStaleGeneration(t *testing.T) {
	c := newCell("A")
	ctx := context.Background()

	_, err := c.Write(ctx, "v1", "s") // generation 1, before any subscriber
	require.NoError(t, err)

	sub, unsubscribe := c.Subscribe()
	defer unsubscribe()

	// A late subscriber must see the CURRENT generation by reading the
	// cell directly; it is under no obligation to have received a
	// notification for a generation published before it subscribed.
	_, gen, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	_, err = c.Write(ctx, "v2", "s")
	require.NoError(t, err)

	select {
	case upd := <-sub:
		assert.GreaterOrEqual(t, upd.Generation, uint64(2))
	case <-time.After(time.Second):
		t.Fatal("expected a notification for the post-subscription write")
	}
}

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	c := newCell("A")
	ctx := context.Background()

	sub1, unsub1 := c.Subscribe()
	defer unsub1()
	sub2, unsub2 := c.Subscribe()
	defer unsub2()

	_, err := c.Write(ctx, "v1", "s")
	require.NoError(t, err)

	for _, sub := range []<-chan Update{sub1, sub2} {
		select {
		case upd := <-sub:
			assert.Equal(t, uint64(1), upd.Generation)
			assert.Equal(t, "A", upd.CellName)
		case <-time.After(time.Second):
			t.Fatal("expected delivery to every subscriber")
		}
	}
}

func TestBackpressureDropsOldestNotNewest(t *testing.T) {
	c := newCell("A")
	ctx := context.Background()
	sub, unsubscribe := c.Subscribe()
	defer unsubscribe()

	// Publish more than the buffer can hold without draining.
	for i := 0; i < notificationBuffer+3; i++ {
		_, err := c.Write(ctx, i, "s")
		require.NoError(t, err)
	}

	var last Update
	for {
		select {
		case upd, ok := <-sub:
			if !ok {
				break
			}
			last = upd
			continue
		default:
		}
		break
	}
	assert.Equal(t, uint64(notificationBuffer+3), last.Generation)
	assert.Greater(t, c.DroppedCount(), uint64(0))
}

func TestCloseSubscriptionsClosesChannels(t *testing.T) {
	c := newCell("A")
	sub, _ := c.Subscribe()
	c.CloseSubscriptions()

	_, ok := <-sub
	assert.False(t, ok)
}

func TestConcurrentReadersDoNotRace(t *testing.T) {
	c := newCell("A")
	ctx := context.Background()
	_, err := c.Write(ctx, "v1", "s")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Read(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestWriteRespectsContextCancellation(t *testing.T) {
	c := newCell("A")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Write(ctx, "v1", "s")
	assert.ErrorIs(t, err, context.Canceled)
}
