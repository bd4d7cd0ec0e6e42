package realtime

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(vaultID string, seq int64) Event {
	return Event{
		VaultID: vaultID,
		Seq:     seq,
		OpType:  "md_update",
		Payload: json.RawMessage(`{}`),
	}
}

func TestPublishReachesVaultSubscribersOnly(t *testing.T) {
	bus := NewBus()

	subA := bus.Subscribe("vault-a")
	defer bus.Unsubscribe(subA)
	subB := bus.Subscribe("vault-b")
	defer bus.Unsubscribe(subB)

	bus.Publish(testEvent("vault-a", 1))

	ev := <-subA.C()
	assert.Equal(t, int64(1), ev.Seq)

	select {
	case ev := <-subB.C():
		t.Fatalf("vault-b subscriber received foreign event seq=%d", ev.Seq)
	default:
	}
}

func TestPublishPreservesSeqOrder(t *testing.T) {
	bus := NewBus()

	sub := bus.Subscribe("vault-a")
	defer bus.Unsubscribe(sub)

	for seq := int64(1); seq <= 10; seq++ {
		bus.Publish(testEvent("vault-a", seq))
	}

	for seq := int64(1); seq <= 10; seq++ {
		ev := <-sub.C()
		assert.Equal(t, seq, ev.Seq)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	drops := 0
	bus := NewBus(WithBufferSize(2), WithDropHook(func() { drops++ }))

	sub := bus.Subscribe("vault-a")

	// Fill the buffer without draining, then overflow it.
	bus.Publish(testEvent("vault-a", 1))
	bus.Publish(testEvent("vault-a", 2))
	bus.Publish(testEvent("vault-a", 3))

	// Buffered events are still readable, then the channel closes.
	ev, ok := <-sub.C()
	require.True(t, ok)
	assert.Equal(t, int64(1), ev.Seq)
	ev, ok = <-sub.C()
	require.True(t, ok)
	assert.Equal(t, int64(2), ev.Seq)
	_, ok = <-sub.C()
	assert.False(t, ok)

	assert.True(t, sub.Dropped())
	assert.Equal(t, 1, drops)
	assert.Equal(t, 0, bus.SubscriberCount("vault-a"))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()

	sub := bus.Subscribe("vault-a")
	assert.Equal(t, 1, bus.SubscriberCount("vault-a"))

	bus.Unsubscribe(sub)
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.False(t, sub.Dropped())
	assert.Equal(t, 0, bus.SubscriberCount("vault-a"))

	// Unsubscribing twice is harmless.
	bus.Unsubscribe(sub)
}

func TestPublishNeverBlocksWithManySubscribers(t *testing.T) {
	bus := NewBus(WithBufferSize(1))

	for i := 0; i < 20; i++ {
		bus.Subscribe("vault-a")
	}

	// None of the subscribers drain; every publish past the first drops them
	// without blocking the caller.
	for seq := int64(1); seq <= 5; seq++ {
		bus.Publish(testEvent("vault-a", seq))
	}
	assert.Equal(t, 0, bus.SubscriberCount("vault-a"))
}

func TestEnvelopes(t *testing.T) {
	t.Run("backlog normalizes nil events", func(t *testing.T) {
		env := NewBacklogEnvelope(nil)
		assert.Equal(t, EnvelopeBacklog, env.Type)
		require.NotNil(t, env.Events)

		data, err := json.Marshal(env)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"events":[]`)
	})

	t.Run("event carries the operation", func(t *testing.T) {
		env := NewEventEnvelope(testEvent("vault-a", 7))
		assert.Equal(t, EnvelopeEvent, env.Type)
		assert.Equal(t, "vault-a", env.VaultID)
		assert.Equal(t, int64(7), env.Seq)
	})
}

func BenchmarkPublish(b *testing.B) {
	bus := NewBus()
	for i := 0; i < 8; i++ {
		bus.Subscribe(fmt.Sprintf("vault-%d", i))
	}
	sub := bus.Subscribe("vault-a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.C() {
		}
	}()

	ev := testEvent("vault-a", 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Publish(ev)
	}
	b.StopTimer()
	bus.Unsubscribe(sub)
	<-done
}
