package config

import (
	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/risk"
)

// RiskDefaults is the YAML-facing mirror of risk.Limits; decimal fields are
// strings on the wire (matching the teacher's MaxPositionSize/MaxNotionalValue
// convention) so operators can write "5" instead of worrying about YAML's
// float parsing of large precise values.
type RiskDefaults struct {
	MaxLeverage            int     `yaml:"max_leverage"`
	MaxPositionSizePercent string  `yaml:"max_position_size_percent"`
	MaxOpenPositions       int     `yaml:"max_open_positions"`
	MaxDailyLossPercent    string  `yaml:"max_daily_loss_percent"`
	MaxDrawdownPercent     string  `yaml:"max_drawdown_percent"`
	OrderThrottle          float64 `yaml:"order_throttle"`
	OrderBurst             int     `yaml:"order_burst"`
}

// ToLimits converts the YAML-facing defaults into risk.Limits, defaulting
// any unparsable or blank decimal field to zero (meaning "no limit" in
// risk.Manager's checks).
func (d RiskDefaults) ToLimits() risk.Limits {
	return risk.Limits{
		MaxLeverage:            d.MaxLeverage,
		MaxPositionSizePercent: parseDecimalOrZero(d.MaxPositionSizePercent),
		MaxOpenPositions:       d.MaxOpenPositions,
		MaxDailyLossPercent:    parseDecimalOrZero(d.MaxDailyLossPercent),
		MaxDrawdownPercent:     parseDecimalOrZero(d.MaxDrawdownPercent),
		OrderThrottle:          d.OrderThrottle,
		OrderBurst:             d.OrderBurst,
	}
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
