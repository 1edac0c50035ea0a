// Package scalping implements a high-frequency strategy that enters on
// order-book imbalance when the bid/ask spread is tight, and exits on a
// fixed tick-based take-profit/stop-loss or a position time limit.
package scalping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
	"github.com/xor-engine/corebot/internal/strategy"
)

func init() {
	strategy.Register(domain.StrategyKindScalping, func() strategy.Strategy { return &Strategy{} })
}

const defaultTickSize = "0.01"

// Strategy scalps tight-spread conditions, sizing its stop/target in ticks
// rather than percent since the edge it hunts is a few ticks of imbalance,
// not a directional swing.
type Strategy struct {
	spreadThresholdPct   decimal.Decimal
	takeProfitTicks      decimal.Decimal
	stopLossTicks        decimal.Decimal
	imbalanceThreshold   decimal.Decimal
	positionTimeLimit    time.Duration
	useMarketOrders      bool
	tickSize             decimal.Decimal

	mu              sync.Mutex
	host            strategy.Host
	imbalance       decimal.Decimal
	hasPosition     bool
	entrySide       domain.PositionSide
	entryPrice      decimal.Decimal
	positionOpened  time.Time
}

var _ strategy.Strategy = (*Strategy)(nil)

func (s *Strategy) ValidateParams(params map[string]any) error {
	tp, err := decimalParam(params, "take_profit_ticks")
	if err != nil {
		return err
	}
	if !tp.IsPositive() {
		return fmt.Errorf("scalping: take_profit_ticks must be positive")
	}
	sl, err := decimalParam(params, "stop_loss_ticks")
	if err != nil {
		return err
	}
	if !sl.IsPositive() {
		return fmt.Errorf("scalping: stop_loss_ticks must be positive")
	}
	if _, err := decimalParam(params, "spread_threshold"); err != nil {
		return err
	}
	return nil
}

func (s *Strategy) Initialize(ctx context.Context, host strategy.Host, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.host = host
	s.spreadThresholdPct, _ = decimalParam(params, "spread_threshold")
	s.takeProfitTicks, _ = decimalParam(params, "take_profit_ticks")
	s.stopLossTicks, _ = decimalParam(params, "stop_loss_ticks")
	s.imbalanceThreshold = decimalParamOr(params, "order_book_imbalance_threshold", decimal.NewFromFloat(2.0))
	s.positionTimeLimit = time.Duration(intParamOr(params, "position_time_limit", 60)) * time.Second
	s.useMarketOrders = boolParamOr(params, "use_market_orders", true)
	s.tickSize = decimalParamOr(params, "tick_size", decimal.RequireFromString(defaultTickSize))
	s.imbalance = decimal.NewFromInt(1)
	return nil
}

func (s *Strategy) Cleanup(ctx context.Context) error { return nil }

func (s *Strategy) OnTick(ctx context.Context, ticker exchange.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, bid, ask := ticker.LastPrice, ticker.BidPrice, ticker.AskPrice
	if price.IsZero() || bid.IsZero() || ask.IsZero() {
		return nil
	}

	if s.hasPosition {
		if time.Since(s.positionOpened) >= s.positionTimeLimit {
			return s.emitClose(ctx, price, "position time limit reached")
		}
		return s.checkExitLocked(ctx, price)
	}

	spreadPct := ask.Sub(bid).Div(bid).Mul(decimal.NewFromInt(100))
	if spreadPct.LessThanOrEqual(s.spreadThresholdPct) {
		return s.checkEntryLocked(ctx, bid, ask)
	}
	return nil
}

func (s *Strategy) OnCandle(ctx context.Context, candle domain.Candle) error { return nil }

func (s *Strategy) OnOrderBook(ctx context.Context, book exchange.OrderBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bidVolume := sumTop(book.Bids, 10)
	askVolume := sumTop(book.Asks, 10)
	if askVolume.IsZero() {
		return nil
	}
	s.imbalance = bidVolume.Div(askVolume)
	return nil
}

func (s *Strategy) checkEntryLocked(ctx context.Context, bid, ask decimal.Decimal) error {
	inverse := decimal.NewFromInt(1).Div(s.imbalanceThreshold)

	switch {
	case s.imbalance.GreaterThanOrEqual(s.imbalanceThreshold):
		entryPrice := bid
		if s.useMarketOrders {
			entryPrice = ask
		}
		s.entrySide = domain.PositionSideLong
		s.entryPrice = entryPrice
		s.hasPosition = true
		s.positionOpened = time.Now().UTC()

		stopLoss := bid.Sub(s.stopLossTicks.Mul(s.tickSize))
		takeProfit := ask.Add(s.takeProfitTicks.Mul(s.tickSize))
		return s.host.EmitSignal(ctx, domain.Signal{
			Type:       domain.SignalBuy,
			Price:      entryPrice,
			Reason:     fmt.Sprintf("orderbook imbalance: %s", s.imbalance.StringFixed(2)),
			StopLoss:   &stopLoss,
			TakeProfit: &takeProfit,
			Indicators: map[string]decimal.Decimal{"imbalance": s.imbalance},
		})

	case s.imbalance.LessThanOrEqual(inverse):
		entryPrice := ask
		if s.useMarketOrders {
			entryPrice = bid
		}
		s.entrySide = domain.PositionSideShort
		s.entryPrice = entryPrice
		s.hasPosition = true
		s.positionOpened = time.Now().UTC()

		stopLoss := ask.Add(s.stopLossTicks.Mul(s.tickSize))
		takeProfit := bid.Sub(s.takeProfitTicks.Mul(s.tickSize))
		return s.host.EmitSignal(ctx, domain.Signal{
			Type:       domain.SignalSell,
			Price:      entryPrice,
			Reason:     fmt.Sprintf("orderbook imbalance: %s", s.imbalance.StringFixed(2)),
			StopLoss:   &stopLoss,
			TakeProfit: &takeProfit,
			Indicators: map[string]decimal.Decimal{"imbalance": s.imbalance},
		})
	}
	return nil
}

func (s *Strategy) checkExitLocked(ctx context.Context, price decimal.Decimal) error {
	var pnlTicks decimal.Decimal
	if s.entrySide == domain.PositionSideLong {
		pnlTicks = price.Sub(s.entryPrice).Div(s.tickSize)
	} else {
		pnlTicks = s.entryPrice.Sub(price).Div(s.tickSize)
	}

	switch {
	case pnlTicks.GreaterThanOrEqual(s.takeProfitTicks):
		return s.emitClose(ctx, price, fmt.Sprintf("take profit: %s ticks", pnlTicks.StringFixed(0)))
	case pnlTicks.LessThanOrEqual(s.stopLossTicks.Neg()):
		return s.emitClose(ctx, price, fmt.Sprintf("stop loss: %s ticks", pnlTicks.StringFixed(0)))
	}
	return nil
}

func (s *Strategy) emitClose(ctx context.Context, price decimal.Decimal, reason string) error {
	signalType := domain.SignalCloseLong
	if s.entrySide == domain.PositionSideShort {
		signalType = domain.SignalCloseShort
	}
	s.hasPosition = false
	return s.host.EmitSignal(ctx, domain.Signal{Type: signalType, Price: price, Reason: reason})
}

func (s *Strategy) OnOrderFilled(ctx context.Context, order domain.Order, trade domain.Trade) error {
	return nil
}

func (s *Strategy) OnPositionUpdate(ctx context.Context, position domain.Position) error { return nil }

func sumTop(levels []exchange.PriceLevel, n int) decimal.Decimal {
	total := decimal.Zero
	for i, lvl := range levels {
		if i >= n {
			break
		}
		total = total.Add(lvl.Quantity)
	}
	return total
}

func decimalParam(params map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := params[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("scalping: missing param %q", key)
	}
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("scalping: param %q is not a valid number: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("scalping: param %q has unsupported type %T", key, raw)
	}
}

func decimalParamOr(params map[string]any, key string, def decimal.Decimal) decimal.Decimal {
	d, err := decimalParam(params, key)
	if err != nil {
		return def
	}
	return d
}

func intParamOr(params map[string]any, key string, def int) int {
	raw, ok := params[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func boolParamOr(params map[string]any, key string, def bool) bool {
	raw, ok := params[key]
	if !ok {
		return def
	}
	if b, ok := raw.(bool); ok {
		return b
	}
	return def
}
