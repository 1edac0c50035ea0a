package scalping

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
		"spread_threshold":  "0.05",
		"take_profit_ticks": "5",
		"stop_loss_ticks":   "3",
	}
}

func level(price, qty float64) exchange.PriceLevel {
	return exchange.PriceLevel{Price: decimal.NewFromFloat(price), Quantity: decimal.NewFromFloat(qty)}
}

func TestScalping_EntersLongOnBidImbalance(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	_ = s.Initialize(context.Background(), host, newParams())

	book := exchange.OrderBook{
		Bids: []exchange.PriceLevel{level(99.99, 10)},
		Asks: []exchange.PriceLevel{level(100.01, 2)},
	}
	require.NoError(t, s.OnOrderBook(context.Background(), book))

	ticker := exchange.Ticker{LastPrice: decimal.NewFromFloat(100), BidPrice: decimal.NewFromFloat(99.99), AskPrice: decimal.NewFromFloat(100.01)}
	require.NoError(t, s.OnTick(context.Background(), ticker))
	require.Len(t, host.signals, 1)
	require.Equal(t, domain.SignalBuy, host.signals[0].Type)
}

func TestScalping_ExitsOnTakeProfitTicks(t *testing.T) {
	s := &Strategy{}
	host := &fakeHost{}
	_ = s.Initialize(context.Background(), host, newParams())

	book := exchange.OrderBook{Bids: []exchange.PriceLevel{level(99.99, 10)}, Asks: []exchange.PriceLevel{level(100.01, 2)}}
	_ = s.OnOrderBook(context.Background(), book)
	entryTicker := exchange.Ticker{LastPrice: decimal.NewFromFloat(100), BidPrice: decimal.NewFromFloat(99.99), AskPrice: decimal.NewFromFloat(100.01)}
	_ = s.OnTick(context.Background(), entryTicker)

	// Entry side is long at ask (100.01 under market orders); +5 ticks = +0.05.
	exitTicker := exchange.Ticker{LastPrice: decimal.NewFromFloat(100.07), BidPrice: decimal.NewFromFloat(100.06), AskPrice: decimal.NewFromFloat(100.08)}
	require.NoError(t, s.OnTick(context.Background(), exitTicker))

	last := host.signals[len(host.signals)-1]
	require.Equal(t, domain.SignalCloseLong, last.Type, "expected close-long on take profit")
}
