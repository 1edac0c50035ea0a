package grid

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
)

type fakeHost struct {
	signals []domain.Signal
}

func (h *fakeHost) BotID() string                  { return "bot-1" }
func (h *fakeHost) UserID() string                 { return "user-1" }
func (h *fakeHost) Symbol() string                 { return "BTCUSDT" }
func (h *fakeHost) LastPrice() decimal.Decimal      { return decimal.Zero }
func (h *fakeHost) BestBid() decimal.Decimal        { return decimal.Zero }
func (h *fakeHost) BestAsk() decimal.Decimal        { return decimal.Zero }
func (h *fakeHost) Position() domain.Position       { return domain.Position{} }
func (h *fakeHost) Logf(format string, args ...any) {}
func (h *fakeHost) EmitSignal(ctx context.Context, sig domain.Signal) error {
	h.signals = append(h.signals, sig)
	return nil
}

func newParams() map[string]any {
	return map[string]any{
		"upper_price": "110",
		"lower_price": "100",
		"grid_count":  10,
		"order_size":  "1",
	}
}

func tick(price float64) exchange.Ticker {
	return exchange.Ticker{LastPrice: decimal.NewFromFloat(price)}
}

func TestGrid_ArithmeticHappyPath(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	require.NoError(t, s.ValidateParams(newParams()))
	require.NoError(t, s.Initialize(context.Background(), host, newParams()))

	prices := []float64{100, 101, 102, 99, 101, 103, 108, 110}
	for _, p := range prices {
		require.NoError(t, s.OnTick(context.Background(), tick(p)))
	}

	type want struct {
		typ   domain.SignalType
		price float64
	}
	expected := []want{
		{domain.SignalBuy, 100},
		{domain.SignalBuy, 101},
		{domain.SignalBuy, 102},
		{domain.SignalSell, 101},
		{domain.SignalSell, 102},
		{domain.SignalBuy, 108},
		{domain.SignalBuy, 110},
	}

	require.Len(t, host.signals, len(expected))
	for i, w := range expected {
		require.Equal(t, w.typ, host.signals[i].Type, "signal %d type", i)
		require.True(t, host.signals[i].Price.Equal(decimal.NewFromFloat(w.price)),
			"signal %d price: expected %v, got %v", i, w.price, host.signals[i].Price)
	}
}

func TestGrid_OutsideRangeIsNoOp(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	require.NoError(t, s.Initialize(context.Background(), host, newParams()))

	require.NoError(t, s.OnTick(context.Background(), tick(150)))
	require.NoError(t, s.OnTick(context.Background(), tick(50)))
	require.Empty(t, host.signals, "ticks outside [lower, upper] must not emit")
}

func TestGrid_DormantUntilTrigger(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	params := newParams()
	params["trigger_price"] = "105"
	require.NoError(t, s.Initialize(context.Background(), host, params))

	require.NoError(t, s.OnTick(context.Background(), tick(100)))
	require.Empty(t, host.signals, "grid must stay dormant before trigger_price is reached")

	require.NoError(t, s.OnTick(context.Background(), tick(105)))
	require.NotEmpty(t, host.signals, "grid must activate and process the triggering tick")
}

func TestGrid_ReversibilityAfterCrossings(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	require.NoError(t, s.Initialize(context.Background(), host, newParams()))

	prices := []float64{100, 101, 102, 99, 101, 103, 108, 110, 105, 99}
	for _, p := range prices {
		require.NoError(t, s.OnTick(context.Background(), tick(p)))
	}

	buys, sells := 0, 0
	for _, lvl := range s.levels {
		if lvl.side == domain.OrderSideBuy {
			buys++
		} else {
			sells++
		}
	}
	require.Equal(t, len(s.levels), buys+sells, "every level must be exactly one of buy or sell")
	require.Equal(t, s.gridCount+1, len(s.levels), "grid_count+1 levels must survive any sequence of crossings")
}

func TestGrid_OnOrderFilledIsNoOp(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	require.NoError(t, s.Initialize(context.Background(), host, newParams()))
	require.NoError(t, s.OnTick(context.Background(), tick(100)))

	before := len(host.signals)
	order := domain.Order{Side: domain.OrderSideBuy, Price: decimal.NewFromInt(100)}
	require.NoError(t, s.OnOrderFilled(context.Background(), order, domain.Trade{}))
	require.Len(t, host.signals, before, "fill confirmation must not emit; the flip already happened on tick")
}
