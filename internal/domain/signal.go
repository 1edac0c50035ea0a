package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType enumerates the trading intents a strategy can emit.
type SignalType string

const (
	SignalBuy       SignalType = "buy"
	SignalSell      SignalType = "sell"
	SignalCloseLong SignalType = "close_long"
	SignalCloseShort SignalType = "close_short"
	SignalHold      SignalType = "hold"
)

// Signal is the output of a strategy callback: a trading intent that the
// pipeline may turn into an order, carrying enough context for risk checks
// and for audit/telemetry downstream.
type Signal struct {
	BotID      string
	Symbol     string
	Type       SignalType
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Confidence float64
	Reason     string
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Indicators map[string]decimal.Decimal
	Timestamp  time.Time
}

// IsActionable reports whether the signal should be converted into an order.
func (s Signal) IsActionable() bool {
	switch s.Type {
	case SignalBuy, SignalSell, SignalCloseLong, SignalCloseShort:
		return true
	default:
		return false
	}
}
