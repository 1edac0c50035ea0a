// Package exchange defines the uniform adapter surface implemented by each
// supported venue (binance, bybit), plus the wire types and error taxonomy
// shared across them.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is a best bid/ask/last-price snapshot.
type Ticker struct {
	Symbol    string
	LastPrice decimal.Decimal
	BidPrice  decimal.Decimal
	AskPrice  decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
}

// PriceLevel is one rung of an order book.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is a depth snapshot, best level first.
type OrderBook struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Sequence  uint64
	Timestamp time.Time
}

// Trade is a single executed trade reported by the venue's public feed.
type Trade struct {
	Symbol    string
	Side      string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp time.Time
}

// Balance is one asset's free/locked balance.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// ExchangePosition is the venue's own view of an open position, used by
// reconciliation to detect drift against the local store.
type ExchangePosition struct {
	Symbol     string
	Side       string
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	Leverage   int
}

// PlaceOrderRequest carries everything needed to submit an order.
type PlaceOrderRequest struct {
	Symbol        string
	Side          string // "buy" | "sell"
	Type          string // "limit" | "market"
	TimeInForce   string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	ClientOrderID string
}

// OrderResult is the venue's acknowledgement or current view of an order.
type OrderResult struct {
	ClientOrderID   string
	ExchangeOrderID string
	Symbol          string
	Status          string
	FilledQuantity  decimal.Decimal
	RemainingQty    decimal.Decimal
	AvgFillPrice    decimal.Decimal
	Timestamp       time.Time
}

// UserDataEvent is a private-stream notification: order updates, fills, or
// balance deltas, tagged by Kind so callers can type-switch on Payload.
type UserDataEvent struct {
	Kind      string // "order" | "balance"
	Payload   any
	Timestamp time.Time
}

// Adapter is the uniform capability surface every supported venue
// implements. All blocking calls accept a context for deadline/cancellation.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
	GetBalances(ctx context.Context) ([]Balance, error)
	GetPositions(ctx context.Context) ([]ExchangePosition, error)

	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (bool, error)
	GetOrder(ctx context.Context, symbol, orderID string) (OrderResult, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	SubscribeTicker(ctx context.Context, symbol string) (<-chan Ticker, error)
	SubscribeOrderBook(ctx context.Context, symbol string) (<-chan OrderBook, error)
	SubscribeTrades(ctx context.Context, symbol string) (<-chan Trade, error)
	SubscribeUserData(ctx context.Context) (<-chan UserDataEvent, error)
}
