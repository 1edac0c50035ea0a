package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
)

type reconcileAdapter struct {
	fakeAdapter
	openOrders []exchange.OrderResult
}

func (r *reconcileAdapter) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	return r.openOrders, nil
}

func TestReconciler_MarksOrderFilledWhenVenueNoLongerListsIt(t *testing.T) {
	p, _, st := newTestPipeline(t)
	p.RegisterBot(BotConfig{BotID: "bot-1", UserID: "user-1", Exchange: domain.ExchangeBinance, Symbol: "BTCUSDT"})

	st.PutOrder(domain.Order{ID: "o1", ClientOrderID: "bot-1:1", BotID: "bot-1", Symbol: "BTCUSDT", Status: domain.OrderStatusOpen, Quantity: decimal.NewFromInt(1)})

	adapter := &reconcileAdapter{}
	p.resolve = func(ex domain.Exchange) (exchange.Adapter, bool) { return adapter, true }

	r := NewReconciler(p, 0)
	r.ReconcileNow(context.Background())

	order, ok := st.Order("o1")
	require.True(t, ok, "expected order still present")
	require.Equal(t, domain.OrderStatusFilled, order.Status)
}

func TestReconciler_AppliesMissedPartialFill(t *testing.T) {
	p, _, st := newTestPipeline(t)
	p.RegisterBot(BotConfig{BotID: "bot-1", UserID: "user-1", Exchange: domain.ExchangeBinance, Symbol: "BTCUSDT"})

	st.PutOrder(domain.Order{ID: "o1", ClientOrderID: "bot-1:1", BotID: "bot-1", Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Status: domain.OrderStatusOpen, Quantity: decimal.NewFromInt(2), FilledQuantity: decimal.NewFromInt(1)})

	adapter := &reconcileAdapter{openOrders: []exchange.OrderResult{
		{ClientOrderID: "bot-1:1", FilledQuantity: decimal.NewFromInt(2), AvgFillPrice: decimal.NewFromInt(100)},
	}}
	p.resolve = func(ex domain.Exchange) (exchange.Adapter, bool) { return adapter, true }

	r := NewReconciler(p, 0)
	r.ReconcileNow(context.Background())

	order, _ := st.Order("o1")
	require.Equal(t, domain.OrderStatusFilled, order.Status, "filled=%s", order.FilledQuantity)
}
