package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xor-engine/corebot/internal/bus"
	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
)

// recordingStrategy counts the callbacks it receives, standing in for a
// concrete strategy so the runtime's dispatch logic can be tested without a
// real strategy package.
type recordingStrategy struct {
	ticks int
	host  Host
}

func (r *recordingStrategy) ValidateParams(params map[string]any) error { return nil }
func (r *recordingStrategy) Initialize(ctx context.Context, host Host, params map[string]any) error {
	r.host = host
	return nil
}
func (r *recordingStrategy) Cleanup(ctx context.Context) error { return nil }
func (r *recordingStrategy) OnTick(ctx context.Context, ticker exchange.Ticker) error {
	r.ticks++
	return nil
}
func (r *recordingStrategy) OnCandle(ctx context.Context, candle domain.Candle) error       { return nil }
func (r *recordingStrategy) OnOrderBook(ctx context.Context, book exchange.OrderBook) error { return nil }
func (r *recordingStrategy) OnOrderFilled(ctx context.Context, order domain.Order, trade domain.Trade) error {
	return nil
}
func (r *recordingStrategy) OnPositionUpdate(ctx context.Context, position domain.Position) error {
	return nil
}

func TestRuntime_DispatchesTickToMatchingSymbol(t *testing.T) {
	const kind = domain.StrategyKind("test-recording")
	rec := &recordingStrategy{}
	Register(kind, func() Strategy { return rec })

	b := bus.NewMemoryBus(bus.MemoryConfig{})
	defer b.Close()

	rt := NewRuntime(b, NewWorkerPool(16))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rt.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, rt.StartBot(ctx, domain.Bot{ID: "bot-1", UserID: "user-1", Symbol: "BTCUSDT", Strategy: kind, Exchange: domain.ExchangeBinance}))

	ticker := exchange.Ticker{Symbol: "BTCUSDT", LastPrice: decimal.NewFromInt(100)}
	require.NoError(t, bus.Emit(ctx, b, bus.TopicMarketTick+"BTCUSDT", "test", ticker, ""))

	deadline := time.Now().Add(time.Second)
	for rec.ticks == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, rec.ticks, "expected exactly one OnTick delivery")
}

func TestWorkerPool_SerializesPerKey(t *testing.T) {
	pool := NewWorkerPool(8)
	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		pool.Submit("bot-1", func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for serialized submissions")
	}
	for i, v := range order {
		require.Equal(t, i, v, "expected in-order execution, got %v", order)
	}
}
