package strategy

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/domain"
)

// Host is the narrow capability surface a strategy is given at
// initialization. It exposes only what a strategy is allowed to do:
// emit trading signals and read its own recent market/position state. A
// strategy never holds a reference to the event bus, risk manager, or
// exchange adapter directly.
type Host interface {
	// BotID and UserID identify the strategy instance this Host was
	// created for.
	BotID() string
	UserID() string
	Symbol() string

	// EmitSignal hands a trading intent to the signal-to-order pipeline.
	// The strategy does not learn whether the resulting order is
	// accepted, rejected by risk, or filled except through the
	// OnOrderFilled/OnPositionUpdate callbacks it later receives.
	EmitSignal(ctx context.Context, signal domain.Signal) error

	// LastPrice, BestBid, and BestAsk return the most recently observed
	// market snapshot, or a zero decimal if none has arrived yet.
	LastPrice() decimal.Decimal
	BestBid() decimal.Decimal
	BestAsk() decimal.Decimal

	// Position returns the strategy's current position for Symbol, or
	// a flat zero-value Position if none is open.
	Position() domain.Position

	// Logf writes a structured log line tagged with the bot's
	// identifiers, at the same severity a plain informational log uses.
	Logf(format string, args ...any)
}
