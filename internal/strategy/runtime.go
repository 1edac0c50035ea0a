package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/xor-engine/corebot/internal/bus"
	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
)

// Runtime owns every running strategy instance, keyed by bot ID, and fans
// bus events out to the instances subscribed to each symbol. One Runtime
// serves all tenants; isolation between bots is index-based, not
// goroutine-based, except where WorkerPool below serializes callbacks.
type Runtime struct {
	b bus.Bus

	mu        sync.RWMutex
	instances map[string]*instance          // botID -> instance
	bySymbol  map[string]map[string]*instance // symbol -> botID -> instance

	pool *WorkerPool

	cancel context.CancelFunc
}

// NewRuntime constructs a Runtime that will dispatch bus events through pool
// (per-bot serialized callback delivery).
func NewRuntime(b bus.Bus, pool *WorkerPool) *Runtime {
	return &Runtime{
		b:         b,
		instances: make(map[string]*instance),
		bySymbol:  make(map[string]map[string]*instance),
		pool:      pool,
	}
}

// StartBot constructs and initializes a strategy instance for bot and wires
// it into the dispatch index. It does not subscribe to the bus itself;
// Run does that once for all symbols via wildcard subscriptions.
func (r *Runtime) StartBot(ctx context.Context, b domain.Bot) error {
	str, ok := New(b.Strategy)
	if !ok {
		return fmt.Errorf("unknown strategy kind %q", b.Strategy)
	}
	if err := str.ValidateParams(b.Params); err != nil {
		return fmt.Errorf("validate params: %w", err)
	}

	in := newInstance(r.b, b.ID, b.UserID, b.Symbol, b.Exchange, str)
	if err := str.Initialize(ctx, in, b.Params); err != nil {
		return fmt.Errorf("initialize strategy: %w", err)
	}

	r.mu.Lock()
	r.instances[b.ID] = in
	if r.bySymbol[b.Symbol] == nil {
		r.bySymbol[b.Symbol] = make(map[string]*instance)
	}
	r.bySymbol[b.Symbol][b.ID] = in
	r.mu.Unlock()

	_ = bus.Emit(ctx, r.b, bus.TopicBotStarted, "strategy-runtime", b, "")
	return nil
}

// StopBot tears down a running instance, calling Strategy.Cleanup.
func (r *Runtime) StopBot(ctx context.Context, botID string) error {
	r.mu.Lock()
	in, ok := r.instances[botID]
	if ok {
		delete(r.instances, botID)
		if syms, ok := r.bySymbol[in.symbol]; ok {
			delete(syms, botID)
		}
		in.stopped.Store(true)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("bot %s not running", botID)
	}
	if err := in.str.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup strategy: %w", err)
	}
	_ = bus.Emit(ctx, r.b, bus.TopicBotStopped, "strategy-runtime", botID, "")
	return nil
}

// Run subscribes to market data and fill/position topics and dispatches
// them to interested instances until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	topics := []string{
		bus.TopicMarketTick + "*",
		bus.TopicMarketCandle + "*",
		bus.TopicMarketOrderBook + "*",
		bus.TopicOrderFilled,
		bus.TopicPositionUpdate,
	}
	for _, topic := range topics {
		_, ch, err := r.b.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		go r.consume(ctx, ch)
	}
	<-ctx.Done()
	return nil
}

// Stop halts event dispatch; running instances are left in place, use
// StopBot to tear down individual bots.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runtime) consume(ctx context.Context, ch <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			r.dispatch(ctx, evt)
		}
	}
}

func (r *Runtime) dispatch(ctx context.Context, evt bus.Event) {
	symbol, ok := symbolFromEvent(evt)
	if !ok {
		return
	}
	r.mu.RLock()
	targets := make([]*instance, 0, len(r.bySymbol[symbol]))
	for _, in := range r.bySymbol[symbol] {
		targets = append(targets, in)
	}
	r.mu.RUnlock()

	for _, in := range targets {
		in := in
		r.pool.Submit(in.botID, func() {
			r.deliver(ctx, in, evt)
		})
	}
}

func (r *Runtime) deliver(ctx context.Context, in *instance, evt bus.Event) {
	var err error
	switch evt.Topic {
	case bus.TopicOrderFilled:
		if payload, ok := evt.Data.(domain.Order); ok {
			err = in.str.OnOrderFilled(ctx, payload, domain.Trade{})
		}
	case bus.TopicPositionUpdate:
		if pos, ok := evt.Data.(domain.Position); ok {
			in.position.Store(pos)
			err = in.str.OnPositionUpdate(ctx, pos)
		}
	default:
		switch data := evt.Data.(type) {
		case exchange.Ticker:
			in.lastPrice.Store(data.LastPrice)
			in.bestBid.Store(data.BidPrice)
			in.bestAsk.Store(data.AskPrice)
			err = in.str.OnTick(ctx, data)
		case domain.Candle:
			err = in.str.OnCandle(ctx, data)
		case exchange.OrderBook:
			if len(data.Bids) > 0 {
				in.bestBid.Store(data.Bids[0].Price)
			}
			if len(data.Asks) > 0 {
				in.bestAsk.Store(data.Asks[0].Price)
			}
			err = in.str.OnOrderBook(ctx, data)
		}
	}
	if err != nil {
		in.Logf("strategy callback error on topic %s: %v", evt.Topic, err)
		_ = bus.Emit(ctx, r.b, bus.TopicBotError, "strategy-runtime", err.Error(), evt.CorrelationID)
		_ = r.StopBot(ctx, in.botID)
	}
}

// symbolFromEvent extracts the subject symbol from an event's payload,
// falling back to the topic's dot-path suffix for market-data events
// published as "market.tick.BTCUSDT".
func symbolFromEvent(evt bus.Event) (string, bool) {
	switch data := evt.Data.(type) {
	case exchange.Ticker:
		return data.Symbol, true
	case exchange.OrderBook:
		return data.Symbol, true
	case domain.Candle:
		return data.Symbol, true
	case domain.Order:
		return data.Symbol, true
	case domain.Position:
		return data.Symbol, true
	}
	if idx := lastDot(evt.Topic); idx >= 0 {
		return evt.Topic[idx+1:], true
	}
	return "", false
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
