package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBusPublishNoSubscribers(t *testing.T) {
	b := NewMemoryBus(MemoryConfig{BufferSize: 10})
	defer b.Close()

	require.NoError(t, b.Publish(context.Background(), NewEvent("market.tick", "test", nil)))
}

func TestMemoryBusExactMatch(t *testing.T) {
	b := NewMemoryBus(MemoryConfig{BufferSize: 10})
	defer b.Close()

	_, ch, err := b.Subscribe(context.Background(), "order.filled")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), NewEvent("order.filled", "pipeline", "payload")))

	select {
	case evt := <-ch:
		require.Equal(t, "order.filled", evt.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestMemoryBusWildcardMatch(t *testing.T) {
	b := NewMemoryBus(MemoryConfig{BufferSize: 10})
	defer b.Close()

	_, ch, err := b.Subscribe(context.Background(), "order.*")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), NewEvent("order.filled.partial", "pipeline", nil)))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected wildcard subscriber to receive event")
	}
}

func TestMemoryBusWildcardDoesNotMatchUnrelatedPrefix(t *testing.T) {
	b := NewMemoryBus(MemoryConfig{BufferSize: 10})
	defer b.Close()

	_, ch, err := b.Subscribe(context.Background(), "order.*")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), NewEvent("orderbook.snapshot", "adapter", nil)))

	select {
	case evt := <-ch:
		t.Fatalf("unexpected delivery for unrelated topic: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryBus(MemoryConfig{BufferSize: 10})
	defer b.Close()

	id, ch, err := b.Subscribe(context.Background(), "market.*")
	require.NoError(t, err)
	require.NoError(t, b.Unsubscribe(id))

	require.NoError(t, b.Publish(context.Background(), NewEvent("market.tick", "adapter", nil)))

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected channel closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestMemoryBusCorrelationIDThreaded(t *testing.T) {
	b := NewMemoryBus(MemoryConfig{BufferSize: 10})
	defer b.Close()

	_, ch, err := b.Subscribe(context.Background(), "signal.*")
	require.NoError(t, err)

	require.NoError(t, Emit(context.Background(), b, "signal.generated", "strategy", nil, "corr-123"))

	select {
	case evt := <-ch:
		require.Equal(t, "corr-123", evt.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"order.filled", "order.filled", true},
		{"order.filled", "order.filled.partial", false},
		{"order.*", "order.filled", true},
		{"order.*", "order.filled.partial", true},
		{"order.*", "orderbook.snapshot", false},
		{"*", "anything.goes", true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, matchTopic(tc.pattern, tc.topic), "matchTopic(%q, %q)", tc.pattern, tc.topic)
	}
}
