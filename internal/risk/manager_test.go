package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xor-engine/corebot/internal/domain"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestManager_ValidateOrder_LeverageBreach(t *testing.T) {
	m := NewManager("user-1", Limits{MaxLeverage: 5, OrderThrottle: 100, OrderBurst: 10}, d("10000"), "confirm")

	err := m.ValidateOrder("BTC-USDT", domain.OrderSideBuy, d("1"), d("100"), 10)
	var breach *BreachError
	require.True(t, errors.As(err, &breach))
	require.Equal(t, BreachTypeLeverage, breach.Type)
}

func TestManager_ValidateOrder_KillSwitchBlocksAllOrders(t *testing.T) {
	m := NewManager("user-1", Limits{OrderThrottle: 100, OrderBurst: 10}, d("10000"), "confirm")
	m.KillSwitch.Activate(TriggerManual, "operator halt")

	err := m.ValidateOrder("BTC-USDT", domain.OrderSideBuy, d("1"), d("100"), 1)
	var breach *BreachError
	require.True(t, errors.As(err, &breach))
	require.Equal(t, BreachTypeKillSwitch, breach.Type)
}

func TestManager_ValidateOrder_PositionSizePercent(t *testing.T) {
	m := NewManager("user-1", Limits{MaxPositionSizePercent: d("10"), OrderThrottle: 100, OrderBurst: 10}, d("1000"), "confirm")

	// 200 notional against 1000 equity = 20%, above the 10% cap.
	err := m.ValidateOrder("BTC-USDT", domain.OrderSideBuy, d("2"), d("100"), 1)
	var breach *BreachError
	require.True(t, errors.As(err, &breach))
	require.Equal(t, BreachTypePositionSize, breach.Type)
}

func TestManager_ValidateOrder_MaxOpenPositions(t *testing.T) {
	m := NewManager("user-1", Limits{MaxOpenPositions: 1, OrderThrottle: 100, OrderBurst: 10}, d("100000"), "confirm")
	m.ApplyFill("BTC-USDT", domain.OrderSideBuy, d("1"), d("100"), decimal.Zero, time.Now())

	err := m.ValidateOrder("ETH-USDT", domain.OrderSideBuy, d("1"), d("100"), 1)
	var breach *BreachError
	require.True(t, errors.As(err, &breach))
	require.Equal(t, BreachTypeMaxOpenPositions, breach.Type)

	// Adding to the already-open symbol should not count as a new position.
	require.NoError(t, m.ValidateOrder("BTC-USDT", domain.OrderSideBuy, d("1"), d("100"), 1))
}

func TestManager_ApplyFill_DrawdownEngagesKillSwitch(t *testing.T) {
	m := NewManager("user-1", Limits{MaxDrawdownPercent: d("5")}, d("1000"), "confirm")

	m.ApplyFill("BTC-USDT", domain.OrderSideBuy, d("1"), d("100"), d("-60"), time.Now())

	require.True(t, m.KillSwitch.Engaged(), "expected kill switch to engage once drawdown exceeds 5%")
}

func TestManager_CalculatePortfolioRisk_PeakEquityMonotonic(t *testing.T) {
	m := NewManager("user-1", Limits{}, d("1000"), "confirm")

	m.ApplyFill("BTC-USDT", domain.OrderSideBuy, d("1"), d("100"), d("500"), time.Now())
	risk1 := m.CalculatePortfolioRisk()
	require.True(t, risk1.PeakEquity.Equal(d("1500")))

	m.ApplyFill("BTC-USDT", domain.OrderSideSell, d("0"), d("100"), d("-400"), time.Now())
	risk2 := m.CalculatePortfolioRisk()
	require.True(t, risk2.PeakEquity.Equal(d("1500")), "peak equity must not decrease after a loss")
	require.True(t, risk2.Equity.Equal(d("1100")))
}

func TestKillSwitch_DeactivateRequiresConfirmationCode(t *testing.T) {
	k := NewKillSwitch("secret")
	k.Activate(TriggerManual, "test")

	require.Error(t, k.Deactivate("wrong"))
	require.True(t, k.Engaged(), "kill switch should remain engaged after failed deactivation")

	require.NoError(t, k.Deactivate("secret"))
	require.False(t, k.Engaged(), "kill switch should be disengaged after correct deactivation")
}
