package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xor-engine/corebot/internal/domain"
)

func TestStore_OrderRoundTrip(t *testing.T) {
	s := New()
	o := domain.Order{ID: "o1", ClientOrderID: "bot-1:1", BotID: "bot-1", Status: domain.OrderStatusOpen}
	s.PutOrder(o)

	got, ok := s.Order("o1")
	require.True(t, ok)
	require.Equal(t, "bot-1:1", got.ClientOrderID)

	got.ClientOrderID = "mutated"
	original, _ := s.Order("o1")
	require.NotEqual(t, "mutated", original.ClientOrderID, "Order() must return an independent copy")
}

func TestStore_OpenOrdersExcludesTerminal(t *testing.T) {
	s := New()
	s.PutOrder(domain.Order{ID: "o1", BotID: "bot-1", Status: domain.OrderStatusOpen})
	s.PutOrder(domain.Order{ID: "o2", BotID: "bot-1", Status: domain.OrderStatusFilled})

	open := s.OpenOrders("bot-1")
	require.Len(t, open, 1)
	require.Equal(t, "o1", open[0].ID)
}

func TestStore_PutPositionRemovesWhenFlat(t *testing.T) {
	s := New()
	s.PutPosition(domain.Position{ID: "p1", BotID: "bot-1", Symbol: "BTCUSDT", Quantity: decimal.NewFromInt(1)})
	_, ok := s.Position("bot-1", "BTCUSDT")
	require.True(t, ok, "expected position present after insert")

	s.PutPosition(domain.Position{ID: "p1", BotID: "bot-1", Symbol: "BTCUSDT", Quantity: decimal.Zero})
	_, ok = s.Position("bot-1", "BTCUSDT")
	require.False(t, ok, "expected position removed once quantity reaches zero")
}
