package risk

import (
	"fmt"
	"sync"
	"time"
)

// KillSwitchTrigger enumerates the reasons a kill switch can be engaged.
type KillSwitchTrigger string

const (
	TriggerManual             KillSwitchTrigger = "manual"
	TriggerMaxDrawdown        KillSwitchTrigger = "max_drawdown"
	TriggerDailyLoss          KillSwitchTrigger = "daily_loss"
	TriggerExchangeError      KillSwitchTrigger = "exchange_error"
	TriggerPositionLiquidation KillSwitchTrigger = "position_liquidation"
	TriggerAbnormalVolatility KillSwitchTrigger = "abnormal_volatility"
	TriggerConnectionLoss     KillSwitchTrigger = "connection_loss"
	TriggerSystemError        KillSwitchTrigger = "system_error"
)

// KillSwitchEvent records a single activation or deactivation.
type KillSwitchEvent struct {
	Trigger   KillSwitchTrigger
	Reason    string
	Timestamp time.Time
	Activated bool
}

// KillSwitch is a latching halt: once engaged it stays engaged until an
// explicit Deactivate call supplies the matching confirmation code. It never
// clears itself on a timer or on the next successful check.
type KillSwitch struct {
	mu            sync.Mutex
	engaged       bool
	trigger       KillSwitchTrigger
	reason        string
	engagedAt     time.Time
	confirmation  string
	history       []KillSwitchEvent
}

// NewKillSwitch constructs a disengaged kill switch. confirmationCode is the
// value Deactivate must be called with to clear it.
func NewKillSwitch(confirmationCode string) *KillSwitch {
	return &KillSwitch{confirmation: confirmationCode}
}

// Activate latches the kill switch. A second Activate call while already
// engaged is a no-op (the first trigger reason is preserved).
func (k *KillSwitch) Activate(trigger KillSwitchTrigger, reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.engaged {
		return
	}
	k.engaged = true
	k.trigger = trigger
	k.reason = reason
	k.engagedAt = time.Now().UTC()
	k.history = append(k.history, KillSwitchEvent{Trigger: trigger, Reason: reason, Timestamp: k.engagedAt, Activated: true})
}

// Deactivate clears the kill switch, requiring the confirmation code to
// guard against an accidental or automated clear.
func (k *KillSwitch) Deactivate(confirmationCode string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.engaged {
		return nil
	}
	if confirmationCode == "" || confirmationCode != k.confirmation {
		return fmt.Errorf("risk: kill switch deactivation requires a valid confirmation code")
	}
	k.engaged = false
	k.history = append(k.history, KillSwitchEvent{Trigger: k.trigger, Reason: "deactivated", Timestamp: time.Now().UTC(), Activated: false})
	k.trigger = ""
	k.reason = ""
	return nil
}

// Engaged reports whether the kill switch currently halts trading.
func (k *KillSwitch) Engaged() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.engaged
}

// Status returns the current halt flag, trigger and reason.
func (k *KillSwitch) Status() (engaged bool, trigger KillSwitchTrigger, reason string, since time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.engaged, k.trigger, k.reason, k.engagedAt
}

// CheckConditions evaluates the portfolio thresholds that can trip the kill
// switch automatically and activates it when breached. It is idempotent:
// calling it repeatedly while already engaged has no additional effect.
func (k *KillSwitch) CheckConditions(currentDrawdownPct, maxDrawdownPct, dailyLossPct, maxDailyLossPct float64, exchangeHealthy bool) {
	if k.Engaged() {
		return
	}
	switch {
	case maxDrawdownPct > 0 && currentDrawdownPct >= maxDrawdownPct:
		k.Activate(TriggerMaxDrawdown, fmt.Sprintf("drawdown %.4f%% reached limit %.4f%%", currentDrawdownPct, maxDrawdownPct))
	case maxDailyLossPct > 0 && dailyLossPct >= maxDailyLossPct:
		k.Activate(TriggerDailyLoss, fmt.Sprintf("daily loss %.4f%% reached limit %.4f%%", dailyLossPct, maxDailyLossPct))
	case !exchangeHealthy:
		k.Activate(TriggerConnectionLoss, "exchange connectivity degraded")
	}
}

// History returns a copy of the activation/deactivation log.
func (k *KillSwitch) History() []KillSwitchEvent {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]KillSwitchEvent, len(k.history))
	copy(out, k.history)
	return out
}
