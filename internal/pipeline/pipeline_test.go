package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xor-engine/corebot/internal/bus"
	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
	"github.com/xor-engine/corebot/internal/risk"
	"github.com/xor-engine/corebot/internal/store"
)

type fakeAdapter struct {
	placed []exchange.PlaceOrderRequest
}

func (f *fakeAdapter) Connect(ctx context.Context) error    { return nil }
func (f *fakeAdapter) Disconnect(ctx context.Context) error { return nil }
func (f *fakeAdapter) GetTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	return exchange.Ticker{}, nil
}
func (f *fakeAdapter) GetOrderBook(ctx context.Context, symbol string, depth int) (exchange.OrderBook, error) {
	return exchange.OrderBook{}, nil
}
func (f *fakeAdapter) GetBalances(ctx context.Context) ([]exchange.Balance, error) { return nil, nil }
func (f *fakeAdapter) GetPositions(ctx context.Context) ([]exchange.ExchangePosition, error) {
	return nil, nil
}
func (f *fakeAdapter) PlaceOrder(ctx context.Context, req exchange.PlaceOrderRequest) (exchange.OrderResult, error) {
	f.placed = append(f.placed, req)
	return exchange.OrderResult{
		ClientOrderID:   req.ClientOrderID,
		ExchangeOrderID: "venue-1",
		Symbol:          req.Symbol,
		Status:          "filled",
		FilledQuantity:  req.Quantity,
		RemainingQty:    decimal.Zero,
		AvgFillPrice:    req.Price,
	}, nil
}
func (f *fakeAdapter) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	return true, nil
}
func (f *fakeAdapter) GetOrder(ctx context.Context, symbol, orderID string) (exchange.OrderResult, error) {
	return exchange.OrderResult{}, nil
}
func (f *fakeAdapter) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	return nil, nil
}
func (f *fakeAdapter) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }
func (f *fakeAdapter) SubscribeTicker(ctx context.Context, symbol string) (<-chan exchange.Ticker, error) {
	return nil, nil
}
func (f *fakeAdapter) SubscribeOrderBook(ctx context.Context, symbol string) (<-chan exchange.OrderBook, error) {
	return nil, nil
}
func (f *fakeAdapter) SubscribeTrades(ctx context.Context, symbol string) (<-chan exchange.Trade, error) {
	return nil, nil
}
func (f *fakeAdapter) SubscribeUserData(ctx context.Context) (<-chan exchange.UserDataEvent, error) {
	return nil, nil
}

var _ exchange.Adapter = (*fakeAdapter)(nil)

func newTestPipeline(t *testing.T) (*Pipeline, *fakeAdapter, *store.Store) {
	t.Helper()
	b := bus.NewMemoryBus(bus.MemoryConfig{})
	st := store.New()
	registry := risk.NewRegistry(risk.Limits{MaxOpenPositions: 10})
	adapter := &fakeAdapter{}
	resolve := func(ex domain.Exchange) (exchange.Adapter, bool) { return adapter, true }
	p := New(b, st, registry, resolve)
	return p, adapter, st
}

func TestProcessSignal_PlacesOrderWithDeterministicClientID(t *testing.T) {
	p, adapter, st := newTestPipeline(t)
	p.RegisterBot(BotConfig{
		BotID: "bot-1", UserID: "user-1", Exchange: domain.ExchangeBinance, Symbol: "BTCUSDT",
		SizingMode: SizingFixedQuote, FixedQuote: decimal.NewFromInt(100),
	})

	signal := domain.Signal{BotID: "bot-1", Symbol: "BTCUSDT", Type: domain.SignalBuy, Price: decimal.NewFromInt(50), Quantity: decimal.NewFromInt(1)}
	require.NoError(t, p.ProcessSignal(context.Background(), signal))

	require.Len(t, adapter.placed, 1)
	require.Equal(t, "bot-1:1", adapter.placed[0].ClientOrderID)

	order, ok := st.OrderByClientID("bot-1:1")
	require.True(t, ok, "expected order persisted under its client order id")
	require.Equal(t, domain.OrderStatusFilled, order.Status)

	pos, ok := st.Position("bot-1", "BTCUSDT")
	require.True(t, ok)
	require.True(t, pos.Quantity.Equal(decimal.NewFromInt(1)))
}

func TestProcessSignal_SecondSignalIncrementsCounter(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	p.RegisterBot(BotConfig{BotID: "bot-1", UserID: "user-1", Exchange: domain.ExchangeBinance, Symbol: "BTCUSDT", SizingMode: SizingFixedQuote, FixedQuote: decimal.NewFromInt(100)})

	signal := domain.Signal{BotID: "bot-1", Symbol: "BTCUSDT", Type: domain.SignalBuy, Price: decimal.NewFromInt(50), Quantity: decimal.NewFromInt(1)}
	_ = p.ProcessSignal(context.Background(), signal)
	_ = p.ProcessSignal(context.Background(), signal)

	_, ok := p.store.OrderByClientID("bot-1:2")
	require.True(t, ok, "expected second signal to produce client order id bot-1:2")
}

func TestProcessSignal_IgnoresHoldSignal(t *testing.T) {
	p, adapter, _ := newTestPipeline(t)
	p.RegisterBot(BotConfig{BotID: "bot-1", UserID: "user-1", Exchange: domain.ExchangeBinance, Symbol: "BTCUSDT"})

	require.NoError(t, p.ProcessSignal(context.Background(), domain.Signal{BotID: "bot-1", Type: domain.SignalHold}))
	require.Empty(t, adapter.placed, "expected no order for a hold signal")
}
