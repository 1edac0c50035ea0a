package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a single fill applied against an Order.
type Trade struct {
	ID         string
	OrderID    string
	BotID      string
	UserID     string
	Exchange   Exchange
	Symbol     string
	Side       OrderSide
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Fee        decimal.Decimal
	FeeAsset   string
	ExecutedAt time.Time
}

// Clone returns a value copy, safe for cross-goroutine reads.
func (t *Trade) Clone() Trade {
	return *t
}
