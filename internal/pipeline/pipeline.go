// Package pipeline converts strategy signals into exchange orders: it
// derives an order quantity, clears the signal through the risk engine,
// persists the order under a deterministic client order id, dispatches it
// to the venue adapter, and folds fills back into position state.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/bus"
	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
	"github.com/xor-engine/corebot/internal/risk"
	"github.com/xor-engine/corebot/internal/store"
)

// SizingMode selects how a signal's quantity is derived when the strategy
// does not specify one outright.
type SizingMode string

const (
	// SizingFixedQuote sizes every order at a fixed quote-currency amount
	// divided by the signal price.
	SizingFixedQuote SizingMode = "fixed_quote"
	// SizingPercentPortfolio sizes the order at a percentage of the
	// account's current equity.
	SizingPercentPortfolio SizingMode = "percent_portfolio"
)

// BotConfig is the per-bot sizing and venue configuration the pipeline
// needs to turn a signal into an order.
type BotConfig struct {
	BotID        string
	UserID       string
	Exchange     domain.Exchange
	Symbol       string
	SizingMode   SizingMode
	FixedQuote   decimal.Decimal
	SizingPct    decimal.Decimal
	DefaultType  domain.OrderType
	TimeInForce  domain.TimeInForce
}

// AdapterResolver returns the configured exchange.Adapter for a venue, so
// the pipeline never holds adapter references directly.
type AdapterResolver func(ex domain.Exchange) (exchange.Adapter, bool)

// Pipeline owns signal ingestion and order submission for every bot
// registered with it. One Pipeline instance serves the whole process;
// per-bot isolation comes from the monotonic counter and store, not from
// separate goroutines per bot.
type Pipeline struct {
	b         bus.Bus
	store     *store.Store
	risk      *risk.Registry
	resolve   AdapterResolver

	configs map[string]BotConfig // botID -> config
	counter map[string]*atomic.Uint64
}

// New constructs a Pipeline wired to the shared bus, order/position store,
// per-user risk registry, and adapter resolver.
func New(b bus.Bus, st *store.Store, registry *risk.Registry, resolve AdapterResolver) *Pipeline {
	return &Pipeline{
		b:       b,
		store:   st,
		risk:    registry,
		resolve: resolve,
		configs: make(map[string]BotConfig),
		counter: make(map[string]*atomic.Uint64),
	}
}

// RegisterBot makes the pipeline aware of a bot's sizing/venue config so it
// can process signals emitted under that bot id.
func (p *Pipeline) RegisterBot(cfg BotConfig) {
	p.configs[cfg.BotID] = cfg
	p.counter[cfg.BotID] = &atomic.Uint64{}
}

// UnregisterBot removes a bot's config; signals for it are ignored after.
func (p *Pipeline) UnregisterBot(botID string) {
	delete(p.configs, botID)
	delete(p.counter, botID)
}

// Run subscribes to signal.new and processes signals until ctx is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	_, ch, err := p.b.Subscribe(ctx, bus.TopicSignalNew)
	if err != nil {
		return fmt.Errorf("subscribe signals: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			signal, ok := evt.Data.(domain.Signal)
			if !ok {
				continue
			}
			if err := p.ProcessSignal(ctx, signal); err != nil {
				_ = bus.Emit(ctx, p.b, bus.TopicBotError, "pipeline", err.Error(), evt.CorrelationID)
			}
		}
	}
}

// ProcessSignal derives quantity, clears risk, submits the order, and
// persists it. It is exported directly so tests and a synchronous caller
// don't need to round-trip through the bus.
func (p *Pipeline) ProcessSignal(ctx context.Context, signal domain.Signal) error {
	if !signal.IsActionable() {
		return nil
	}
	cfg, ok := p.configs[signal.BotID]
	if !ok {
		return fmt.Errorf("signal for unregistered bot %s", signal.BotID)
	}

	adapter, ok := p.resolve(cfg.Exchange)
	if !ok {
		return fmt.Errorf("no adapter configured for exchange %s", cfg.Exchange)
	}

	quantity := signal.Quantity
	if quantity.IsZero() {
		equity := p.risk.ManagerFor(cfg.UserID, decimal.Zero, "").Equity()
		quantity = deriveQuantity(cfg, signal.Price, equity)
	}
	if quantity.IsZero() || signal.Price.IsZero() && signal.Type != domain.SignalCloseLong && signal.Type != domain.SignalCloseShort {
		return fmt.Errorf("signal for bot %s produced zero quantity", signal.BotID)
	}

	side := sideFor(signal.Type)
	manager := p.risk.ManagerFor(cfg.UserID, decimal.Zero, "")
	if err := manager.ValidateOrder(signal.Symbol, side, quantity, signal.Price, 1); err != nil {
		return fmt.Errorf("risk check rejected signal: %w", err)
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		ClientOrderID: p.nextClientOrderID(cfg.BotID),
		BotID:         cfg.BotID,
		UserID:        cfg.UserID,
		Exchange:      cfg.Exchange,
		Symbol:        signal.Symbol,
		Side:          side,
		Type:          orderTypeFor(cfg, signal),
		TIF:           cfg.TimeInForce,
		Price:         signal.Price,
		Quantity:      quantity,
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	p.store.PutOrder(order)

	req := exchange.PlaceOrderRequest{
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Type:          string(order.Type),
		TimeInForce:   string(order.TIF),
		Price:         order.Price,
		Quantity:      order.Quantity,
		ClientOrderID: order.ClientOrderID,
	}

	start := time.Now()
	result, err := adapter.PlaceOrder(ctx, req)
	latency := time.Since(start)

	if err != nil {
		_ = order.Transition(domain.OrderStatusRejected)
		order.RejectReason = err.Error()
		p.store.PutOrder(order)
		_ = bus.Emit(ctx, p.b, bus.TopicOrderRejected, "pipeline", order, "")
		return fmt.Errorf("place order (after %s): %w", latency, err)
	}

	order.ExchangeOrderID = result.ExchangeOrderID
	_ = order.Transition(domain.OrderStatusSubmitted)
	_ = order.Transition(domain.OrderStatusOpen)
	p.store.PutOrder(order)
	_ = bus.Emit(ctx, p.b, bus.TopicOrderSubmitted, "pipeline", order, "")

	if result.FilledQuantity.IsPositive() {
		p.applyFill(ctx, &order, result.FilledQuantity, result.AvgFillPrice, manager)
	}
	return nil
}

// ApplyExchangeFill folds a venue fill report into order and position
// state for fills that happen asynchronously after PlaceOrder returns
// (partial fills, maker fills). The Reconciler calls it when the venue
// reports more filled quantity than the local order record; nothing in the
// module feeds it from the user-data stream.
func (p *Pipeline) ApplyExchangeFill(ctx context.Context, orderID string, filledQty, avgPrice decimal.Decimal) error {
	order, ok := p.store.Order(orderID)
	if !ok {
		return fmt.Errorf("fill for unknown order %s", orderID)
	}
	cfg, ok := p.configs[order.BotID]
	if !ok {
		return fmt.Errorf("fill for unregistered bot %s", order.BotID)
	}
	manager := p.risk.ManagerFor(cfg.UserID, decimal.Zero, "")
	p.applyFill(ctx, &order, filledQty, avgPrice, manager)
	return nil
}

func (p *Pipeline) applyFill(ctx context.Context, order *domain.Order, filledQty, avgPrice decimal.Decimal, manager *risk.Manager) {
	order.FilledQuantity = order.FilledQuantity.Add(filledQty)
	order.AvgFillPrice = avgPrice
	if order.FilledQuantity.GreaterThanOrEqual(order.Quantity) {
		_ = order.Transition(domain.OrderStatusFilled)
	} else {
		_ = order.Transition(domain.OrderStatusPartial)
	}
	p.store.PutOrder(*order)

	trade := domain.Trade{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		BotID:      order.BotID,
		UserID:     order.UserID,
		Exchange:   order.Exchange,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Price:      avgPrice,
		Quantity:   filledQty,
		ExecutedAt: time.Now().UTC(),
	}
	p.store.PutTrade(trade)

	position, hasPos := p.store.Position(order.BotID, order.Symbol)
	if !hasPos {
		position = domain.Position{ID: uuid.NewString(), BotID: order.BotID, UserID: order.UserID, Exchange: order.Exchange, Symbol: order.Symbol, Side: domain.PositionSideFlat, OpenedAt: time.Now().UTC()}
	}
	prevRealized := position.RealizedPnL
	position.ApplyFill(order.Side, filledQty, avgPrice, time.Now().UTC())
	p.store.PutPosition(position)

	realizedDelta := position.RealizedPnL.Sub(prevRealized)
	manager.ApplyFill(order.Symbol, order.Side, filledQty, avgPrice, realizedDelta, time.Now().UTC())

	_ = bus.Emit(ctx, p.b, bus.TopicOrderFilled, "pipeline", *order, "")
	_ = bus.Emit(ctx, p.b, bus.TopicPositionUpdate, "pipeline", position, "")
}

func (p *Pipeline) nextClientOrderID(botID string) string {
	counter, ok := p.counter[botID]
	if !ok {
		counter = &atomic.Uint64{}
		p.counter[botID] = counter
	}
	return fmt.Sprintf("%s:%d", botID, counter.Add(1))
}

func deriveQuantity(cfg BotConfig, price, equity decimal.Decimal) decimal.Decimal {
	switch cfg.SizingMode {
	case SizingPercentPortfolio:
		if price.IsZero() {
			return decimal.Zero
		}
		notional := equity.Mul(cfg.SizingPct).Div(decimal.NewFromInt(100))
		return notional.Div(price)
	default:
		if price.IsZero() {
			return decimal.Zero
		}
		return cfg.FixedQuote.Div(price)
	}
}

func sideFor(t domain.SignalType) domain.OrderSide {
	switch t {
	case domain.SignalBuy, domain.SignalCloseShort:
		return domain.OrderSideBuy
	default:
		return domain.OrderSideSell
	}
}

func orderTypeFor(cfg BotConfig, signal domain.Signal) domain.OrderType {
	if cfg.DefaultType != "" {
		return cfg.DefaultType
	}
	if signal.Price.IsZero() {
		return domain.OrderTypeMarket
	}
	return domain.OrderTypeLimit
}
