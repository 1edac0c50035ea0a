package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide is the net direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
	PositionSideFlat  PositionSide = "flat"
)

// Position tracks the net exposure for one bot on one symbol. Quantity is
// always non-negative; Side carries the direction. Entry is the
// quantity-weighted average entry price of the currently open quantity.
type Position struct {
	ID            string
	BotID         string
	UserID        string
	Exchange      Exchange
	Symbol        string
	Side          PositionSide
	Quantity      decimal.Decimal
	EntryPrice    decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      int
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// Clone returns a value copy, safe for cross-goroutine reads.
func (p *Position) Clone() Position {
	return *p
}

// ApplyFill folds a fill into the position, applying weighted-average entry
// on same-direction adds and FIFO-equivalent realized PnL on reductions
// (a single aggregate lot is kept per bot/symbol, so "FIFO" degenerates to
// realizing pro-rata against the current average entry).
func (p *Position) ApplyFill(side OrderSide, qty, price decimal.Decimal, now time.Time) {
	fillSide := PositionSideLong
	if side == OrderSideSell {
		fillSide = PositionSideShort
	}

	switch {
	case p.Quantity.IsZero() || p.Side == PositionSideFlat:
		p.Side = fillSide
		p.Quantity = qty
		p.EntryPrice = price
	case p.Side == fillSide:
		// Same-direction add: weighted-average entry.
		totalCost := p.EntryPrice.Mul(p.Quantity).Add(price.Mul(qty))
		p.Quantity = p.Quantity.Add(qty)
		if !p.Quantity.IsZero() {
			p.EntryPrice = totalCost.Div(p.Quantity)
		}
	default:
		// Opposite-direction fill: reduces (or flips) the position.
		closing := decimal.Min(qty, p.Quantity)
		pnlPerUnit := price.Sub(p.EntryPrice)
		if p.Side == PositionSideShort {
			pnlPerUnit = p.EntryPrice.Sub(price)
		}
		p.RealizedPnL = p.RealizedPnL.Add(pnlPerUnit.Mul(closing))
		p.Quantity = p.Quantity.Sub(closing)

		leftover := qty.Sub(closing)
		if p.Quantity.IsZero() {
			if leftover.IsPositive() {
				p.Side = fillSide
				p.Quantity = leftover
				p.EntryPrice = price
			} else {
				p.Side = PositionSideFlat
				p.EntryPrice = decimal.Zero
			}
		}
	}

	p.UpdatedAt = now
}

// MarkToMarket recomputes UnrealizedPnL against the supplied mark price.
func (p *Position) MarkToMarket(mark decimal.Decimal) {
	if p.Quantity.IsZero() || p.Side == PositionSideFlat {
		p.UnrealizedPnL = decimal.Zero
		return
	}
	diff := mark.Sub(p.EntryPrice)
	if p.Side == PositionSideShort {
		diff = p.EntryPrice.Sub(mark)
	}
	p.UnrealizedPnL = diff.Mul(p.Quantity)
}

// NotionalValue returns quantity * entry price, the exposure the risk engine
// measures position-size-percent and leverage against.
func (p *Position) NotionalValue() decimal.Decimal {
	return p.Quantity.Mul(p.EntryPrice)
}
