// Package store holds the engine's in-memory projections of orders,
// positions, and trades. It is the single writer-of-record for the
// pipeline's per-bot worker; every read returns a value-copy snapshot so
// callers on other goroutines never observe a partially updated struct.
package store

import (
	"sync"

	"github.com/xor-engine/corebot/internal/domain"
)

// Store holds order/position/trade projections keyed by ID, with a
// secondary index from (bot, symbol) to the open position for that pair.
type Store struct {
	mu sync.RWMutex

	orders    map[string]*domain.Order
	positions map[string]*domain.Position
	trades    map[string]*domain.Trade

	// positionKey is "botID:symbol" -> positionID, letting the pipeline look
	// up a bot's position without scanning.
	positionKey map[string]string
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		orders:      make(map[string]*domain.Order),
		positions:   make(map[string]*domain.Position),
		trades:      make(map[string]*domain.Trade),
		positionKey: make(map[string]string),
	}
}

func posKey(botID, symbol string) string { return botID + ":" + symbol }

// PutOrder inserts or replaces an order record.
func (s *Store) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := o
	s.orders[o.ID] = &clone
}

// Order returns a snapshot copy of the order, or false if unknown.
func (s *Store) Order(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return o.Clone(), true
}

// OrderByClientID scans for an order with the given client order id. Orders
// are few enough per bot that a linear scan under the read lock is fine;
// the pipeline is the only heavy writer and reconciliation the only heavy
// reader.
func (s *Store) OrderByClientID(clientOrderID string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ClientOrderID == clientOrderID {
			return o.Clone(), true
		}
	}
	return domain.Order{}, false
}

// OpenOrders returns a snapshot of every non-terminal order for a bot.
func (s *Store) OpenOrders(botID string) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.BotID == botID && !o.Status.Terminal() {
			out = append(out, o.Clone())
		}
	}
	return out
}

// PutPosition inserts, replaces, or (when flat and zero-quantity) removes
// the position for bot/symbol.
func (s *Store) PutPosition(p domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := posKey(p.BotID, p.Symbol)
	if p.Quantity.IsZero() {
		if id, ok := s.positionKey[key]; ok {
			delete(s.positions, id)
			delete(s.positionKey, key)
		}
		return
	}
	clone := p
	s.positions[p.ID] = &clone
	s.positionKey[key] = p.ID
}

// Position returns a snapshot of the open position for bot/symbol, or
// false if the bot is flat.
func (s *Store) Position(botID, symbol string) (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.positionKey[posKey(botID, symbol)]
	if !ok {
		return domain.Position{}, false
	}
	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return p.Clone(), true
}

// Positions returns a snapshot of every open position for a bot.
func (s *Store) Positions(botID string) []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Position
	for _, p := range s.positions {
		if p.BotID == botID {
			out = append(out, p.Clone())
		}
	}
	return out
}

// PutTrade appends a trade record.
func (s *Store) PutTrade(t domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := t
	s.trades[t.ID] = &clone
}

// Trades returns a snapshot of every trade recorded for an order.
func (s *Store) Trades(orderID string) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.OrderID == orderID {
			out = append(out, t.Clone())
		}
	}
	return out
}
