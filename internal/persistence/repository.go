// Package persistence defines the narrow storage boundary the engine needs
// beyond its in-memory order/position store: a durable record of every
// order and fill for audit and crash recovery, backed by Postgres.
//
// The in-memory internal/store package remains the hot path the pipeline
// reads from; this package is the write-behind audit trail, not a cache
// replacement.
package persistence

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/domain"
)

// OrderRepository durably records order lifecycle and fill events.
type OrderRepository interface {
	SaveOrder(ctx context.Context, order domain.Order) error
	SaveTrade(ctx context.Context, trade domain.Trade) error
	OrdersByBot(ctx context.Context, botID string, limit int) ([]domain.Order, error)
}

// AuditEntry is one recorded engine event: a risk breach, a bot lifecycle
// transition, a manual operator action.
type AuditEntry struct {
	ID       string
	BotID    string
	UserID   string
	Kind     string
	Message  string
	Metadata map[string]any
	Amount   decimal.Decimal
	Recorded time.Time
}

// AuditLogger durably records AuditEntry rows for later operator review.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry) error
}
