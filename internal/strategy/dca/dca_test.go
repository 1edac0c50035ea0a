package dca

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
		"base_order_size":            "0.01",
		"safety_order_size":          "0.01",
		"max_safety_orders":          3,
		"price_deviation_percent":    "1.0",
		"take_profit_percent":        "1.5",
	}
}

func TestDCA_BaseOrderOnFirstTick(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	_ = s.Initialize(context.Background(), host, newParams())

	require.NoError(t, s.OnTick(context.Background(), exchange.Ticker{LastPrice: decimal.NewFromInt(100)}))
	require.Len(t, host.signals, 1)
	require.Equal(t, "DCA base order", host.signals[0].Reason)
}

func TestDCA_SafetyOrderTriggersOnDrop(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	_ = s.Initialize(context.Background(), host, newParams())
	_ = s.OnTick(context.Background(), exchange.Ticker{LastPrice: decimal.NewFromInt(100)})

	order := domain.Order{Side: domain.OrderSideBuy, FilledQuantity: decimal.RequireFromString("0.01"), AvgFillPrice: decimal.NewFromInt(100)}
	_ = s.OnOrderFilled(context.Background(), order, domain.Trade{})

	// Price drops 1.5%, past the 1% safety-order trigger.
	require.NoError(t, s.OnTick(context.Background(), exchange.Ticker{LastPrice: decimal.NewFromFloat(98.5)}))
	require.Len(t, host.signals, 2)
	require.Equal(t, "safety order #1", host.signals[1].Reason)
}

func TestDCA_TakeProfitClosesPosition(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	_ = s.Initialize(context.Background(), host, newParams())
	_ = s.OnTick(context.Background(), exchange.Ticker{LastPrice: decimal.NewFromInt(100)})

	order := domain.Order{Side: domain.OrderSideBuy, FilledQuantity: decimal.RequireFromString("0.01"), AvgFillPrice: decimal.NewFromInt(100)}
	_ = s.OnOrderFilled(context.Background(), order, domain.Trade{})

	require.NoError(t, s.OnTick(context.Background(), exchange.Ticker{LastPrice: decimal.NewFromFloat(102)}))
	last := host.signals[len(host.signals)-1]
	require.Equal(t, domain.SignalSell, last.Type, "expected take-profit sell signal")
	require.True(t, last.Quantity.Equal(decimal.RequireFromString("0.01")), "expected full-quantity exit")
}
