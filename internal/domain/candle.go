package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar for a symbol at a given interval.
type Candle struct {
	Symbol    string
	Interval  string
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	OpenTime  time.Time
	CloseTime time.Time
}
