package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop().Sugar())
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	subs := []*Subscription{hub.Subscribe(), hub.Subscribe(), hub.Subscribe()}
	hub.Broadcast(EventNewHardDrive, map[string]string{"serial_number": "SN-1"})

	for i, sub := range subs {
		select {
		case event := <-sub.C():
			assert.Equal(t, EventNewHardDrive, event.Type, "subscriber %d", i)
			assert.False(t, event.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestHub_SubscriberConnectedAfterBroadcastSeesNothing(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	before := hub.Subscribe()
	hub.Broadcast(EventStatusUpdate, nil)
	after := hub.Subscribe()

	require.Len(t, before.C(), 1)
	assert.Empty(t, after.C(), "no payload is delivered until the next broadcast")

	hub.Broadcast(EventStatusUpdate, nil)
	assert.Len(t, before.C(), 2)
	assert.Len(t, after.C(), 1)
}

func TestHub_UnsubscribedSeesNoFurtherEvents(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe()
	stays := hub.Subscribe()

	hub.Unsubscribe(sub)
	hub.Broadcast(EventStatusUpdate, nil)

	// The unsubscribed channel is closed and empty
	event, ok := <-sub.C()
	assert.False(t, ok, "channel must be closed, got event %v", event)
	assert.Len(t, stays.C(), 1)
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe()
	hub.Unsubscribe(sub)

	assert.NotPanics(t, func() {
		hub.Unsubscribe(sub)
		hub.Unsubscribe(sub)
	})
	assert.NotPanics(t, func() { hub.Unsubscribe(nil) })
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	slow := hub.Subscribe()

	// Fill the subscriber's buffer, then overflow it
	for i := 0; i <= subscriptionBufferSize; i++ {
		hub.Broadcast(EventStatusUpdate, i)
	}

	assert.Equal(t, 0, hub.SubscriberCount(), "slow subscriber must be removed")

	// A failed send closes the channel; unsubscribing again is still a no-op
	assert.NotPanics(t, func() { hub.Unsubscribe(slow) })
}

func TestHub_DroppedSubscriberDoesNotAbortDelivery(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	slow := hub.Subscribe()
	// Saturate only the slow subscriber's buffer
	for i := 0; i < subscriptionBufferSize; i++ {
		hub.Broadcast(EventStatusUpdate, i)
	}
	// Drain the healthy subscriber's backlog by subscribing fresh
	healthy := hub.Subscribe()

	hub.Broadcast(EventNewHardDrive, "payload")

	select {
	case event := <-healthy.C():
		assert.Equal(t, EventNewHardDrive, event.Type)
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber must still receive events")
	}
	assert.Equal(t, 1, hub.SubscriberCount())
	_ = slow
}

func TestHub_ConcurrentSubscribeUnsubscribeDuringBroadcast(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Broadcasters
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Broadcast(EventStatusUpdate, "x")
				}
			}
		}()
	}

	// Churning subscribers
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				sub := hub.Subscribe()
				// Drain a little so some survive, some get dropped
				select {
				case <-sub.C():
				default:
				}
				hub.Unsubscribe(sub)
				hub.Unsubscribe(sub)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock in hub under concurrent churn")
	}
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	hub := newTestHub()

	subs := make([]*Subscription, 5)
	for i := range subs {
		subs[i] = hub.Subscribe()
	}

	hub.Close()

	for i, sub := range subs {
		_, ok := <-sub.C()
		assert.False(t, ok, "subscriber %d channel must be closed", i)
	}
	assert.Equal(t, 0, hub.SubscriberCount())

	// Subscriptions after close come back already closed
	late := hub.Subscribe()
	_, ok := <-late.C()
	assert.False(t, ok)
}

func TestHub_EventPayloadShape(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe()
	payload := map[string]any{"serial_number": fmt.Sprintf("SN-%d", 42)}
	hub.Broadcast(EventNewHardDrive, payload)

	event := <-sub.C()
	assert.Equal(t, EventNewHardDrive, event.Type)
	assert.Equal(t, payload, event.Data)
}
