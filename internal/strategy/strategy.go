// Package strategy defines the pluggable trading-strategy contract and the
// runtime that hosts one instance per (bot, user) pair, dispatching market
// and account events to it from the event bus.
package strategy

import (
	"context"

	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
)

// Strategy is the contract every trading strategy implementation satisfies.
// A strategy is stateless with respect to infrastructure: it receives market
// data and fill notifications through the methods below and expresses its
// intent by emitting Signals through the Host it was initialized with. It
// never talks to the exchange or event bus directly.
type Strategy interface {
	// ValidateParams checks a proposed parameter set before a bot is
	// created or updated, returning a descriptive error for the first
	// invalid field found.
	ValidateParams(params map[string]any) error

	// Initialize is called once when the bot starts, before any market
	// data arrives. The Host is valid for the lifetime of the strategy.
	Initialize(ctx context.Context, host Host, params map[string]any) error

	// Cleanup is called once when the bot stops, successfully or not.
	Cleanup(ctx context.Context) error

	OnTick(ctx context.Context, ticker exchange.Ticker) error
	OnCandle(ctx context.Context, candle domain.Candle) error
	OnOrderBook(ctx context.Context, book exchange.OrderBook) error
	OnOrderFilled(ctx context.Context, order domain.Order, trade domain.Trade) error
	OnPositionUpdate(ctx context.Context, position domain.Position) error
}

// Factory constructs a fresh Strategy instance for a given kind.
type Factory func() Strategy

// registry of known strategy factories, populated by each strategy
// package's init().
var registry = map[domain.StrategyKind]Factory{}

// Register adds a strategy kind to the global registry. Called from the
// init() of each concrete strategy package (grid, dca, scalping).
func Register(kind domain.StrategyKind, factory Factory) {
	registry[kind] = factory
}

// New constructs a fresh Strategy for kind, or reports it unknown.
func New(kind domain.StrategyKind) (Strategy, bool) {
	factory, ok := registry[kind]
	if !ok {
		return nil, false
	}
	return factory(), true
}
