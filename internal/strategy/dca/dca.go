// Package dca implements a dollar-cost-averaging strategy: a base order
// followed by a ladder of safety orders at increasing price deviations,
// taking profit (or cutting loss) once price recovers above the blended
// average entry.
package dca

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
	"github.com/xor-engine/corebot/internal/strategy"
)

func init() {
	strategy.Register(domain.StrategyKindDCA, func() strategy.Strategy { return &Strategy{} })
}

// safetyOrder is one rung of the safety-order ladder.
type safetyOrder struct {
	num          int
	deviationPct decimal.Decimal
	size         decimal.Decimal
	triggerPrice decimal.Decimal
	filled       bool
}

// Strategy places a base order on the first tick, then safety orders as
// price falls further below entry (each deeper than the last and scaled in
// size by safety_order_volume_scale, which defaults to 1.0, i.e. equal
// sizes), closing the whole position once the size-weighted average entry
// is beaten by takeProfitPct.
type Strategy struct {
	baseOrderSize    decimal.Decimal
	safetyOrderSize  decimal.Decimal
	maxSafetyOrders  int
	priceDeviation   decimal.Decimal
	stepScale        decimal.Decimal
	volumeScale      decimal.Decimal
	takeProfitPct    decimal.Decimal
	stopLossPct      decimal.Decimal
	hasStopLoss      bool

	mu              sync.Mutex
	host            strategy.Host
	safetyOrders    []*safetyOrder
	baseOrderFilled bool
	averageEntry    decimal.Decimal
	totalQuantity   decimal.Decimal
	totalInvested   decimal.Decimal
}

var _ strategy.Strategy = (*Strategy)(nil)

func (s *Strategy) ValidateParams(params map[string]any) error {
	base, err := decimalParam(params, "base_order_size")
	if err != nil {
		return err
	}
	if !base.IsPositive() {
		return fmt.Errorf("dca: base_order_size must be positive")
	}
	safety, err := decimalParam(params, "safety_order_size")
	if err != nil {
		return err
	}
	if !safety.IsPositive() {
		return fmt.Errorf("dca: safety_order_size must be positive")
	}
	tp := decimalParamOr(params, "take_profit_percent", decimal.NewFromFloat(1.5))
	if !tp.IsPositive() {
		return fmt.Errorf("dca: take_profit_percent must be positive")
	}
	return nil
}

func (s *Strategy) Initialize(ctx context.Context, host strategy.Host, params map[string]any) error {
	base, _ := decimalParam(params, "base_order_size")
	safety, _ := decimalParam(params, "safety_order_size")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = host
	s.baseOrderSize = base
	s.safetyOrderSize = safety
	s.maxSafetyOrders = intParamOr(params, "max_safety_orders", 5)
	s.priceDeviation = decimalParamOr(params, "price_deviation_percent", decimal.NewFromFloat(1.0))
	s.stepScale = decimalParamOr(params, "safety_order_step_scale", decimal.NewFromFloat(1.0))
	s.volumeScale = decimalParamOr(params, "safety_order_volume_scale", decimal.NewFromFloat(1.0))
	s.takeProfitPct = decimalParamOr(params, "take_profit_percent", decimal.NewFromFloat(1.5))
	if raw, ok := params["stop_loss_percent"]; ok {
		d, err := decimalParam(map[string]any{"stop_loss_percent": raw}, "stop_loss_percent")
		if err == nil {
			s.stopLossPct = d
			s.hasStopLoss = true
		}
	}

	s.buildSafetyOrdersLocked()
	return nil
}

func (s *Strategy) Cleanup(ctx context.Context) error { return nil }

func (s *Strategy) buildSafetyOrdersLocked() {
	s.safetyOrders = s.safetyOrders[:0]
	deviation := s.priceDeviation
	size := s.safetyOrderSize
	for i := 1; i <= s.maxSafetyOrders; i++ {
		s.safetyOrders = append(s.safetyOrders, &safetyOrder{num: i, deviationPct: deviation, size: size})
		deviation = deviation.Add(s.priceDeviation.Mul(s.stepScale))
		size = size.Mul(s.volumeScale)
	}
}

func (s *Strategy) updateSafetyTriggersLocked(entry decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	for _, so := range s.safetyOrders {
		factor := decimal.NewFromInt(1).Sub(so.deviationPct.Div(hundred))
		so.triggerPrice = entry.Mul(factor)
	}
}

func (s *Strategy) OnTick(ctx context.Context, ticker exchange.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := ticker.LastPrice
	if price.IsZero() {
		return nil
	}

	if !s.baseOrderFilled {
		s.baseOrderFilled = true
		s.updateSafetyTriggersLocked(price)
		return s.host.EmitSignal(ctx, domain.Signal{
			Type:     domain.SignalBuy,
			Price:    price,
			Quantity: s.baseOrderSize,
			Reason:   "DCA base order",
		})
	}

	if s.totalQuantity.IsPositive() {
		pnlPct := price.Sub(s.averageEntry).Div(s.averageEntry).Mul(decimal.NewFromInt(100))

		if pnlPct.GreaterThanOrEqual(s.takeProfitPct) {
			return s.host.EmitSignal(ctx, domain.Signal{
				Type:     domain.SignalSell,
				Price:    price,
				Quantity: s.totalQuantity,
				Reason:   fmt.Sprintf("take profit at %s%%", pnlPct.StringFixed(2)),
			})
		}
		if s.hasStopLoss && pnlPct.LessThanOrEqual(s.stopLossPct.Neg()) {
			return s.host.EmitSignal(ctx, domain.Signal{
				Type:     domain.SignalSell,
				Price:    price,
				Quantity: s.totalQuantity,
				Reason:   fmt.Sprintf("stop loss at %s%%", pnlPct.StringFixed(2)),
			})
		}
	}

	for _, so := range s.safetyOrders {
		if so.filled {
			continue
		}
		if price.LessThanOrEqual(so.triggerPrice) {
			so.filled = true
			return s.host.EmitSignal(ctx, domain.Signal{
				Type:     domain.SignalBuy,
				Price:    price,
				Quantity: so.size,
				Reason:   fmt.Sprintf("safety order #%d", so.num),
			})
		}
	}
	return nil
}

func (s *Strategy) OnCandle(ctx context.Context, candle domain.Candle) error       { return nil }
func (s *Strategy) OnOrderBook(ctx context.Context, book exchange.OrderBook) error { return nil }

func (s *Strategy) OnOrderFilled(ctx context.Context, order domain.Order, trade domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.Side == domain.OrderSideSell {
		// Take-profit/stop-loss exit: reset the ladder for the next cycle.
		s.totalQuantity = decimal.Zero
		s.totalInvested = decimal.Zero
		s.averageEntry = decimal.Zero
		s.baseOrderFilled = false
		s.buildSafetyOrdersLocked()
		return nil
	}

	s.totalQuantity = s.totalQuantity.Add(order.FilledQuantity)
	s.totalInvested = s.totalInvested.Add(order.FilledQuantity.Mul(order.AvgFillPrice))
	if !s.totalQuantity.IsZero() {
		s.averageEntry = s.totalInvested.Div(s.totalQuantity)
	}
	return nil
}

func (s *Strategy) OnPositionUpdate(ctx context.Context, position domain.Position) error { return nil }

func decimalParam(params map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := params[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("dca: missing param %q", key)
	}
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("dca: param %q is not a valid number: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("dca: param %q has unsupported type %T", key, raw)
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
