// Package grid implements a grid trading strategy: a ladder of levels
// between a lower and upper price bound, each level alternating between a
// buy and a sell intent as price sweeps back and forth across it.
package grid

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
	"github.com/xor-engine/corebot/internal/strategy"
)

func init() {
	strategy.Register(domain.StrategyKindGrid, func() strategy.Strategy { return &Strategy{} })
}

const (
	gridTypeArithmetic = "arithmetic"
	gridTypeGeometric  = "geometric"
)

// level is one rung of the grid: a fixed price and the side currently
// outstanding there. A level never holds more than one outstanding
// position at a time; it flips side every time it fires.
type level struct {
	price decimal.Decimal
	side  domain.OrderSide
}

// Strategy builds gridCount+1 levels between lowerPrice and upperPrice at
// initialization and, on each in-range tick, walks outward from the last
// level that fired toward the new price, firing the first level whose
// current side's crossing condition the price now satisfies. Dormant until
// price first reaches triggerPrice, if one is configured.
type Strategy struct {
	gridType     string
	upperPrice   decimal.Decimal
	lowerPrice   decimal.Decimal
	gridCount    int
	orderSize    decimal.Decimal
	triggerPrice *decimal.Decimal

	mu        sync.Mutex
	host      strategy.Host
	levels    []*level
	lastIndex int // index of the level that fired most recently, -1 if none yet
	active    bool
}

var _ strategy.Strategy = (*Strategy)(nil)

func (s *Strategy) ValidateParams(params map[string]any) error {
	upper, err := decimalParam(params, "upper_price")
	if err != nil {
		return err
	}
	lower, err := decimalParam(params, "lower_price")
	if err != nil {
		return err
	}
	if !upper.GreaterThan(lower) {
		return fmt.Errorf("grid: upper_price must be greater than lower_price")
	}
	if !lower.IsPositive() {
		return fmt.Errorf("grid: lower_price must be positive")
	}
	if _, err := decimalParam(params, "order_size"); err != nil {
		return err
	}
	count, ok := intParam(params, "grid_count")
	if !ok || count < 2 {
		return fmt.Errorf("grid: grid_count must be an integer >= 2")
	}
	switch gridTypeOr(params, gridTypeArithmetic) {
	case gridTypeArithmetic, gridTypeGeometric:
	default:
		return fmt.Errorf("grid: grid_type must be %q or %q", gridTypeArithmetic, gridTypeGeometric)
	}
	return nil
}

func (s *Strategy) Initialize(ctx context.Context, host strategy.Host, params map[string]any) error {
	upper, _ := decimalParam(params, "upper_price")
	lower, _ := decimalParam(params, "lower_price")
	size, _ := decimalParam(params, "order_size")
	count, _ := intParam(params, "grid_count")
	kind := gridTypeOr(params, gridTypeArithmetic)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = host
	s.gridType = kind
	s.upperPrice = upper
	s.lowerPrice = lower
	s.gridCount = count
	s.orderSize = size
	s.lastIndex = -1

	if trig, err := decimalParam(params, "trigger_price"); err == nil {
		s.triggerPrice = &trig
		s.active = false
	} else {
		s.active = true
	}

	s.levels = buildLevels(kind, lower, upper, count)
	return nil
}

func (s *Strategy) Cleanup(ctx context.Context) error { return nil }

// buildLevels lays out gridCount+1 levels between lower and upper,
// arithmetic spacing by a fixed step or geometric spacing by a fixed
// ratio, every level starting with a buy intent.
func buildLevels(kind string, lower, upper decimal.Decimal, count int) []*level {
	levels := make([]*level, 0, count+1)
	if kind == gridTypeGeometric {
		lowerF, _ := lower.Float64()
		upperF, _ := upper.Float64()
		ratio := math.Pow(upperF/lowerF, 1/float64(count))
		for i := 0; i <= count; i++ {
			price := lowerF * math.Pow(ratio, float64(i))
			levels = append(levels, &level{price: decimal.NewFromFloat(price), side: domain.OrderSideBuy})
		}
		return levels
	}

	step := upper.Sub(lower).Div(decimal.NewFromInt(int64(count)))
	for i := 0; i <= count; i++ {
		price := lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
		levels = append(levels, &level{price: price, side: domain.OrderSideBuy})
	}
	return levels
}

func (s *Strategy) OnTick(ctx context.Context, ticker exchange.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := ticker.LastPrice
	if price.IsZero() {
		return nil
	}

	if !s.active {
		if s.triggerPrice != nil && price.GreaterThanOrEqual(*s.triggerPrice) {
			s.active = true
		} else {
			return nil
		}
	}

	if price.LessThan(s.lowerPrice) || price.GreaterThan(s.upperPrice) {
		return nil
	}

	return s.crossLevelLocked(ctx, price)
}

// crossLevelLocked finds the first level whose current side the price has
// crossed and fires it. On the very first active tick it scans the whole
// ladder ascending; afterward it walks outward from the level that fired
// last, toward whichever direction price has moved, so only the nearest
// newly-crossed level fires per tick.
func (s *Strategy) crossLevelLocked(ctx context.Context, price decimal.Decimal) error {
	if s.lastIndex < 0 {
		for i, lvl := range s.levels {
			if crossed(lvl, price) {
				return s.fireLevelLocked(ctx, i, price)
			}
		}
		return nil
	}

	cur := s.levels[s.lastIndex].price
	switch {
	case price.GreaterThan(cur):
		for i := s.lastIndex + 1; i < len(s.levels); i++ {
			if crossed(s.levels[i], price) {
				return s.fireLevelLocked(ctx, i, price)
			}
		}
	case price.LessThan(cur):
		for i := s.lastIndex - 1; i >= 0; i-- {
			if crossed(s.levels[i], price) {
				return s.fireLevelLocked(ctx, i, price)
			}
		}
	}
	return nil
}

// crossed reports whether price has reached lvl's current intent: a buy
// level crosses when price falls to or below it, a sell level crosses when
// price rises to or above it.
func crossed(lvl *level, price decimal.Decimal) bool {
	if lvl.side == domain.OrderSideBuy {
		return price.LessThanOrEqual(lvl.price)
	}
	return price.GreaterThanOrEqual(lvl.price)
}

func (s *Strategy) fireLevelLocked(ctx context.Context, idx int, price decimal.Decimal) error {
	lvl := s.levels[idx]
	sigType := signalTypeFor(lvl.side)

	err := s.host.EmitSignal(ctx, domain.Signal{
		Type:     sigType,
		Price:    lvl.price,
		Quantity: s.orderSize,
		Reason:   fmt.Sprintf("grid %s at %s", lvl.side, lvl.price),
		Indicators: map[string]decimal.Decimal{
			"grid_level": lvl.price,
		},
	})
	if err != nil {
		return err
	}

	lvl.side = opposite(lvl.side)
	s.lastIndex = idx
	return nil
}

func opposite(side domain.OrderSide) domain.OrderSide {
	if side == domain.OrderSideBuy {
		return domain.OrderSideSell
	}
	return domain.OrderSideBuy
}

func signalTypeFor(side domain.OrderSide) domain.SignalType {
	if side == domain.OrderSideSell {
		return domain.SignalSell
	}
	return domain.SignalBuy
}

func (s *Strategy) OnCandle(ctx context.Context, candle domain.Candle) error       { return nil }
func (s *Strategy) OnOrderBook(ctx context.Context, book exchange.OrderBook) error { return nil }

// OnOrderFilled is a no-op: a level's side flips as soon as its signal
// fires (see fireLevelLocked), since the grid reacts to ticks rather than
// waiting on exchange fill confirmation.
func (s *Strategy) OnOrderFilled(ctx context.Context, order domain.Order, trade domain.Trade) error {
	return nil
}

func (s *Strategy) OnPositionUpdate(ctx context.Context, position domain.Position) error { return nil }

func decimalParam(params map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := params[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("grid: missing param %q", key)
	}
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("grid: param %q is not a valid number: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("grid: param %q has unsupported type %T", key, raw)
	}
}

func intParam(params map[string]any, key string) (int, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func gridTypeOr(params map[string]any, def string) string {
	raw, ok := params["grid_type"]
	if !ok {
		return def
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return def
	}
	return s
}
