package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/xor-engine/corebot/internal/domain"
)

// Limits defines the per-user risk parameters enforced by Manager.
type Limits struct {
	MaxLeverage            int
	MaxPositionSizePercent decimal.Decimal // percent of account equity a single position may occupy
	MaxOpenPositions       int
	MaxDailyLossPercent    decimal.Decimal // percent of day-start equity
	MaxDrawdownPercent     decimal.Decimal // percent of peak equity
	OrderThrottle          float64
	OrderBurst             int
}

// PositionRisk is a snapshot of one open position's exposure.
type PositionRisk struct {
	Symbol        string
	Side          domain.PositionSide
	Quantity      decimal.Decimal
	EntryPrice    decimal.Decimal
	NotionalValue decimal.Decimal
	Leverage      int
}

// PortfolioRisk is a point-in-time snapshot of a user's aggregate exposure.
type PortfolioRisk struct {
	Equity           decimal.Decimal
	PeakEquity       decimal.Decimal
	DayStartEquity   decimal.Decimal
	RealizedPnLToday decimal.Decimal
	DailyLossPercent decimal.Decimal
	DrawdownPercent  decimal.Decimal
	OpenPositions    int
	Positions        []PositionRisk
}

// Manager is the per-user risk accountant: it validates proposed orders
// against Limits, tracks open positions and equity, and owns a latching
// KillSwitch. Checks run in a fixed order (spec): kill switch, leverage,
// position-size-percent, max-open-positions, daily-loss, drawdown.
type Manager struct {
	userID string
	limits Limits

	mu            sync.RWMutex
	limiter       *rate.Limiter
	positions     map[string]*domain.Position
	equity        decimal.Decimal
	peakEquity    decimal.Decimal
	dayStartEquity decimal.Decimal
	realizedToday decimal.Decimal
	currentDay    int

	KillSwitch *KillSwitch
}

// NewManager constructs a risk manager for a single user.
func NewManager(userID string, limits Limits, startEquity decimal.Decimal, confirmationCode string) *Manager {
	burst := limits.OrderBurst
	if burst <= 0 {
		burst = 1
	}
	now := time.Now().UTC()
	return &Manager{
		userID:         userID,
		limits:         limits,
		limiter:        rate.NewLimiter(rate.Limit(limits.OrderThrottle), burst),
		positions:      make(map[string]*domain.Position),
		equity:         startEquity,
		peakEquity:     startEquity,
		dayStartEquity: startEquity,
		currentDay:     now.YearDay(),
		KillSwitch:     NewKillSwitch(confirmationCode),
	}
}

// ValidateOrder runs the fixed-order check sequence against a proposed
// order, returning a *BreachError describing the first failing check.
// It does no I/O and holds the lock only for the duration of the checks,
// per the "validate, release the lock, then submit" discipline the
// pipeline relies on.
func (m *Manager) ValidateOrder(symbol string, side domain.OrderSide, quantity, price decimal.Decimal, leverage int) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.KillSwitch.Engaged() {
		breach := newBreachError(BreachTypeKillSwitch, "kill switch engaged", nil)
		breach.KillSwitchEngaged = true
		breach.Err = ErrKillSwitchEngaged
		return breach
	}

	if m.limits.MaxLeverage > 0 && leverage > m.limits.MaxLeverage {
		return newBreachError(BreachTypeLeverage, "requested leverage exceeds maximum", map[string]string{
			"requested": fmt.Sprintf("%d", leverage),
			"max":       fmt.Sprintf("%d", m.limits.MaxLeverage),
		})
	}

	if m.limits.MaxPositionSizePercent.IsPositive() && m.equity.IsPositive() {
		notional := quantity.Mul(price)
		existing := decimal.Zero
		if pos, ok := m.positions[symbol]; ok {
			existing = pos.NotionalValue()
		}
		projectedPercent := existing.Add(notional).Div(m.equity).Mul(decimal.NewFromInt(100))
		if projectedPercent.GreaterThan(m.limits.MaxPositionSizePercent) {
			return newBreachError(BreachTypePositionSize, "projected position size exceeds percent-of-equity limit", map[string]string{
				"projected_percent": projectedPercent.StringFixed(4),
				"max_percent":       m.limits.MaxPositionSizePercent.String(),
				"symbol":            symbol,
			})
		}
	}

	if m.limits.MaxOpenPositions > 0 {
		_, alreadyOpen := m.positions[symbol]
		if !alreadyOpen && len(m.positions) >= m.limits.MaxOpenPositions {
			return newBreachError(BreachTypeMaxOpenPositions, "max open positions reached", map[string]string{
				"open": fmt.Sprintf("%d", len(m.positions)),
				"max":  fmt.Sprintf("%d", m.limits.MaxOpenPositions),
			})
		}
	}

	if breach := m.checkDailyLossLocked(); breach != nil {
		return breach
	}
	if breach := m.checkDrawdownLocked(); breach != nil {
		return breach
	}

	return nil
}

func (m *Manager) checkDailyLossLocked() error {
	if m.limits.MaxDailyLossPercent.IsPositive() && m.dayStartEquity.IsPositive() && m.realizedToday.IsNegative() {
		lossPercent := m.realizedToday.Neg().Div(m.dayStartEquity).Mul(decimal.NewFromInt(100))
		if lossPercent.GreaterThanOrEqual(m.limits.MaxDailyLossPercent) {
			return newBreachError(BreachTypeDailyLoss, "daily loss limit reached", map[string]string{
				"loss_percent": lossPercent.StringFixed(4),
				"max_percent":  m.limits.MaxDailyLossPercent.String(),
			})
		}
	}
	return nil
}

func (m *Manager) checkDrawdownLocked() error {
	if m.limits.MaxDrawdownPercent.IsPositive() && m.peakEquity.IsPositive() {
		drawdown := m.peakEquity.Sub(m.equity).Div(m.peakEquity).Mul(decimal.NewFromInt(100))
		if drawdown.GreaterThanOrEqual(m.limits.MaxDrawdownPercent) {
			return newBreachError(BreachTypeDrawdown, "max drawdown reached", map[string]string{
				"drawdown_percent": drawdown.StringFixed(4),
				"max_percent":      m.limits.MaxDrawdownPercent.String(),
			})
		}
	}
	return nil
}

// WaitThrottle blocks the caller until the per-user order-submission rate
// limit admits another order. It is intentionally the only context-bound
// operation on Manager, kept apart from ValidateOrder so that ValidateOrder
// itself never blocks while holding the lock. The pipeline does not call it.
func (m *Manager) WaitThrottle(ctx context.Context) error {
	return m.limiter.Wait(ctx)
}

// ApplyFill folds an execution into the tracked position and equity,
// updating peak equity monotonically and re-checking the kill switch
// conditions. Call this after every fill report, regardless of outcome.
func (m *Manager) ApplyFill(symbol string, side domain.OrderSide, qty, price decimal.Decimal, realizedDelta decimal.Decimal, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeRolloverDayLocked(now)

	pos, ok := m.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol, Side: domain.PositionSideFlat}
		m.positions[symbol] = pos
	}
	pos.ApplyFill(side, qty, price, now)
	if pos.Quantity.IsZero() {
		delete(m.positions, symbol)
	}

	m.equity = m.equity.Add(realizedDelta)
	m.realizedToday = m.realizedToday.Add(realizedDelta)
	if m.equity.GreaterThan(m.peakEquity) {
		m.peakEquity = m.equity
	}

	dailyLossPct := decimal.Zero
	if m.dayStartEquity.IsPositive() && m.realizedToday.IsNegative() {
		dailyLossPct = m.realizedToday.Neg().Div(m.dayStartEquity).Mul(decimal.NewFromInt(100))
	}
	drawdownPct := decimal.Zero
	if m.peakEquity.IsPositive() {
		drawdownPct = m.peakEquity.Sub(m.equity).Div(m.peakEquity).Mul(decimal.NewFromInt(100))
	}

	dailyLossF, _ := dailyLossPct.Float64()
	drawdownF, _ := drawdownPct.Float64()
	maxDailyF, _ := m.limits.MaxDailyLossPercent.Float64()
	maxDrawdownF, _ := m.limits.MaxDrawdownPercent.Float64()
	m.KillSwitch.CheckConditions(drawdownF, maxDrawdownF, dailyLossF, maxDailyF, true)
}

// CalculatePortfolioRisk returns a snapshot of the user's aggregate exposure.
// PeakEquity only ever increases (tracked as max(peak, equity) on every
// update), independent of when this snapshot is requested.
func (m *Manager) CalculatePortfolioRisk() PortfolioRisk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := PortfolioRisk{
		Equity:         m.equity,
		PeakEquity:     m.peakEquity,
		DayStartEquity: m.dayStartEquity,
		RealizedPnLToday: m.realizedToday,
		OpenPositions:  len(m.positions),
	}
	if m.dayStartEquity.IsPositive() && m.realizedToday.IsNegative() {
		snapshot.DailyLossPercent = m.realizedToday.Neg().Div(m.dayStartEquity).Mul(decimal.NewFromInt(100))
	}
	if m.peakEquity.IsPositive() {
		snapshot.DrawdownPercent = m.peakEquity.Sub(m.equity).Div(m.peakEquity).Mul(decimal.NewFromInt(100))
	}
	for symbol, pos := range m.positions {
		snapshot.Positions = append(snapshot.Positions, PositionRisk{
			Symbol:        symbol,
			Side:          pos.Side,
			Quantity:      pos.Quantity,
			EntryPrice:    pos.EntryPrice,
			NotionalValue: pos.NotionalValue(),
			Leverage:      pos.Leverage,
		})
	}
	return snapshot
}

// maybeRolloverDayLocked resets daily tracking exactly once per UTC calendar
// day. Callers must hold m.mu for writing; it is only invoked from ApplyFill,
// which already takes the write lock for the fill itself.
func (m *Manager) maybeRolloverDayLocked(now time.Time) {
	today := now.UTC().YearDay()
	if today == m.currentDay {
		return
	}
	m.currentDay = today
	m.dayStartEquity = m.equity
	m.realizedToday = decimal.Zero
}

// ResetDailyTracking rolls the day-start equity baseline forward under a
// write lock. Nothing in the module calls it on a schedule; ApplyFill rolls
// the day over by itself through maybeRolloverDayLocked.
func (m *Manager) ResetDailyTracking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayStartEquity = m.equity
	m.realizedToday = decimal.Zero
	m.currentDay = time.Now().UTC().YearDay()
}

// Equity returns the current tracked equity.
func (m *Manager) Equity() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.equity
}
