package strategy

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/bus"
	"github.com/xor-engine/corebot/internal/domain"
)

// instance binds one running Strategy to its bot/user identity, the shared
// bus, and the most recently observed market/position snapshot. It
// implements Host for the strategy it owns.
type instance struct {
	botID    string
	userID   string
	symbol   string
	exchange domain.Exchange

	b   bus.Bus
	str Strategy

	lastPrice atomic.Value // decimal.Decimal
	bestBid   atomic.Value
	bestAsk   atomic.Value
	position  atomic.Value // domain.Position

	stopped atomic.Bool
}

func newInstance(b bus.Bus, botID, userID, symbol string, ex domain.Exchange, str Strategy) *instance {
	in := &instance{botID: botID, userID: userID, symbol: symbol, exchange: ex, b: b, str: str}
	in.lastPrice.Store(decimal.Zero)
	in.bestBid.Store(decimal.Zero)
	in.bestAsk.Store(decimal.Zero)
	in.position.Store(domain.Position{BotID: botID, UserID: userID, Exchange: ex, Symbol: symbol, Side: domain.PositionSideFlat})
	return in
}

var _ Host = (*instance)(nil)

func (in *instance) BotID() string  { return in.botID }
func (in *instance) UserID() string { return in.userID }
func (in *instance) Symbol() string { return in.symbol }

func (in *instance) EmitSignal(ctx context.Context, signal domain.Signal) error {
	if in.stopped.Load() {
		return nil
	}
	signal.BotID = in.botID
	signal.Symbol = in.symbol
	return bus.Emit(ctx, in.b, bus.TopicSignalNew, "strategy", signal, "")
}

func (in *instance) LastPrice() decimal.Decimal { return in.lastPrice.Load().(decimal.Decimal) }
func (in *instance) BestBid() decimal.Decimal   { return in.bestBid.Load().(decimal.Decimal) }
func (in *instance) BestAsk() decimal.Decimal   { return in.bestAsk.Load().(decimal.Decimal) }

func (in *instance) Position() domain.Position { return in.position.Load().(domain.Position) }

func (in *instance) Logf(format string, args ...any) {
	log.Printf("[bot %s] "+format, append([]any{in.botID}, args...)...)
}
