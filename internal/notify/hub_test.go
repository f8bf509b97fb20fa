package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchDeliversInPublishOrder(t *testing.T) {
	hub := New[string]()

	var got []Change[string]
	cancel := hub.SubscribeAll(func(c Change[string]) { got = append(got, c) })
	defer cancel()

	hub.Publish(Change[string]{Key: "a", Op: Added, Version: 1})
	hub.Publish(Change[string]{Key: "b", Op: Removed, Version: 2})

	assert.Empty(t, got, "nothing is delivered before Dispatch")
	assert.Equal(t, 2, hub.Pending())

	n := hub.Dispatch()
	require.Equal(t, 2, n)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, Removed, got[1].Op)
	assert.Equal(t, 0, hub.Pending())
}

func TestKeyedSubscription(t *testing.T) {
	hub := New[string]()

	var keys []string
	cancel := hub.Subscribe("game", func(c Change[string]) { keys = append(keys, c.Key) })
	defer cancel()

	hub.Publish(Change[string]{Key: "game", Op: Added})
	hub.Publish(Change[string]{Key: "audio", Op: Added})
	hub.Publish(Change[string]{Key: "game", Op: Changed})
	hub.Dispatch()

	assert.Equal(t, []string{"game", "game"}, keys)
}

func TestCancelIsIdempotent(t *testing.T) {
	hub := New[int]()

	calls := 0
	cancel := hub.SubscribeAll(func(Change[int]) { calls++ })
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers())

	hub.Publish(Change[int]{Key: 1, Op: Added})
	hub.Dispatch()
	assert.Equal(t, 0, calls)
}

func TestCancelDuringDispatch(t *testing.T) {
	hub := New[int]()

	var second func()
	secondCalls := 0
	first := hub.SubscribeAll(func(Change[int]) { second() })
	second = hub.SubscribeAll(func(Change[int]) { secondCalls++ })
	defer first()

	hub.Publish(Change[int]{Key: 1, Op: Added})
	hub.Dispatch()

	assert.Equal(t, 0, secondCalls, "cancelled subscriber must not run later in the same batch")
}

func TestPublishDuringDispatchIsDeferred(t *testing.T) {
	hub := New[int]()

	calls := 0
	cancel := hub.SubscribeAll(func(c Change[int]) {
		calls++
		if c.Key == 1 {
			hub.Publish(Change[int]{Key: 2, Op: Added})
		}
	})
	defer cancel()

	hub.Publish(Change[int]{Key: 1, Op: Added})
	assert.Equal(t, 1, hub.Dispatch())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, hub.Dispatch())
	assert.Equal(t, 2, calls)
}

func TestConcurrentPublish(t *testing.T) {
	hub := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish(Change[int]{Key: i, Op: Changed})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 800, hub.Dispatch())
}
