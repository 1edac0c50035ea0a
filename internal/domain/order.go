package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType enumerates the order types the pipeline can submit.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce enumerates supported time-in-force policies.
type TimeInForce string

const (
	TIFGoodTilCancel   TimeInForce = "GTC"
	TIFImmediateOrCancel TimeInForce = "IOC"
	TIFFillOrKill      TimeInForce = "FOK"
)

// OrderStatus is the order lifecycle state, per the state machine:
// pending -> submitted -> open -> {partial* -> filled | cancelled | rejected | expired}.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusExpired   OrderStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// validOrderTransitions enumerates the state machine edges. A transition not
// present here is rejected by Order.Transition.
var validOrderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusSubmitted: true, OrderStatusRejected: true},
	OrderStatusSubmitted: {OrderStatusOpen: true, OrderStatusRejected: true, OrderStatusCancelled: true, OrderStatusFilled: true},
	OrderStatusOpen:      {OrderStatusPartial: true, OrderStatusFilled: true, OrderStatusCancelled: true, OrderStatusExpired: true},
	OrderStatusPartial:   {OrderStatusPartial: true, OrderStatusFilled: true, OrderStatusCancelled: true, OrderStatusExpired: true},
}

// Order is the engine's own record of an order submitted to an exchange,
// keyed by a deterministic client order id so that reconciliation after a
// reconnect can recognize orders it already knows about.
type Order struct {
	ID              string
	ClientOrderID   string
	ExchangeOrderID string
	BotID           string
	UserID          string
	Exchange        Exchange
	Symbol          string
	Side            OrderSide
	Type            OrderType
	TIF             TimeInForce
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FilledQuantity  decimal.Decimal
	AvgFillPrice    decimal.Decimal
	Status          OrderStatus
	RejectReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Remaining returns the quantity still outstanding.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Transition moves the order to the next status, enforcing the lifecycle
// state machine. It returns an error if the edge is not permitted.
func (o *Order) Transition(next OrderStatus) error {
	if o.Status == next {
		return nil
	}
	edges, ok := validOrderTransitions[o.Status]
	if !ok || !edges[next] {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// InvalidTransitionError reports a rejected order state transition.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return "invalid order transition from " + string(e.From) + " to " + string(e.To)
}

// Clone returns a value copy of the order, safe to hand to a reader outside
// the owning worker.
func (o *Order) Clone() Order {
	return *o
}
