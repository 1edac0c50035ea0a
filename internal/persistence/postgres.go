package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xor-engine/corebot/internal/domain"
)

// PostgresStore implements OrderRepository and AuditLogger against a pgx
// connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var (
	_ OrderRepository = (*PostgresStore)(nil)
	_ AuditLogger     = (*PostgresStore)(nil)
)

const orderUpsertSQL = `
INSERT INTO orders (
    id, client_order_id, bot_id, user_id, exchange, symbol, side, order_type,
    time_in_force, price, quantity, filled_quantity, avg_fill_price, status,
    exchange_order_id, reject_reason, created_at, updated_at
) VALUES (
    @id, @client_order_id, @bot_id, @user_id, @exchange, @symbol, @side, @order_type,
    @time_in_force, @price, @quantity, @filled_quantity, @avg_fill_price, @status,
    @exchange_order_id, @reject_reason, @created_at, @updated_at
)
ON CONFLICT (id) DO UPDATE SET
    filled_quantity = EXCLUDED.filled_quantity,
    avg_fill_price = EXCLUDED.avg_fill_price,
    status = EXCLUDED.status,
    exchange_order_id = EXCLUDED.exchange_order_id,
    reject_reason = EXCLUDED.reject_reason,
    updated_at = EXCLUDED.updated_at;
`

const tradeInsertSQL = `
INSERT INTO trades (
    id, order_id, bot_id, user_id, exchange, symbol, side, price, quantity,
    fee, fee_asset, executed_at
) VALUES (
    @id, @order_id, @bot_id, @user_id, @exchange, @symbol, @side, @price, @quantity,
    @fee, @fee_asset, @executed_at
)
ON CONFLICT (id) DO NOTHING;
`

const orderSelectByBotSQL = `
SELECT id, client_order_id, bot_id, user_id, exchange, symbol, side, order_type,
       time_in_force, price, quantity, filled_quantity, avg_fill_price, status,
       exchange_order_id, reject_reason, created_at, updated_at
FROM orders
WHERE bot_id = @bot_id
ORDER BY created_at DESC
LIMIT @limit;
`

const auditInsertSQL = `
INSERT INTO audit_log (id, bot_id, user_id, kind, message, metadata, amount, recorded_at)
VALUES (@id, @bot_id, @user_id, @kind, @message, @metadata::jsonb, @amount, @recorded_at);
`

// SaveOrder upserts an order's current lifecycle snapshot.
func (s *PostgresStore) SaveOrder(ctx context.Context, o domain.Order) error {
	args := pgx.NamedArgs{
		"id":                o.ID,
		"client_order_id":   o.ClientOrderID,
		"bot_id":            o.BotID,
		"user_id":           o.UserID,
		"exchange":          string(o.Exchange),
		"symbol":            o.Symbol,
		"side":              string(o.Side),
		"order_type":        string(o.Type),
		"time_in_force":     string(o.TIF),
		"price":             o.Price.String(),
		"quantity":          o.Quantity.String(),
		"filled_quantity":   o.FilledQuantity.String(),
		"avg_fill_price":    o.AvgFillPrice.String(),
		"status":            string(o.Status),
		"exchange_order_id": o.ExchangeOrderID,
		"reject_reason":     o.RejectReason,
		"created_at":        o.CreatedAt,
		"updated_at":        o.UpdatedAt,
	}
	if _, err := s.pool.Exec(ctx, orderUpsertSQL, args); err != nil {
		return fmt.Errorf("persistence: save order: %w", err)
	}
	return nil
}

// SaveTrade inserts a fill record; duplicate trade ids are ignored since
// the engine may redeliver the same fill on reconciliation.
func (s *PostgresStore) SaveTrade(ctx context.Context, t domain.Trade) error {
	args := pgx.NamedArgs{
		"id":          t.ID,
		"order_id":    t.OrderID,
		"bot_id":      t.BotID,
		"user_id":     t.UserID,
		"exchange":    string(t.Exchange),
		"symbol":      t.Symbol,
		"side":        string(t.Side),
		"price":       t.Price.String(),
		"quantity":    t.Quantity.String(),
		"fee":         t.Fee.String(),
		"fee_asset":   t.FeeAsset,
		"executed_at": t.ExecutedAt,
	}
	if _, err := s.pool.Exec(ctx, tradeInsertSQL, args); err != nil {
		return fmt.Errorf("persistence: save trade: %w", err)
	}
	return nil
}

// OrdersByBot returns up to limit of the most recent orders (of any order
// type) recorded for botID, newest first; limit <= 0 means 100.
func (s *PostgresStore) OrdersByBot(ctx context.Context, botID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, orderSelectByBotSQL, pgx.NamedArgs{"bot_id": botID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("persistence: orders by bot: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			id, clientOrderID, bid, uid, exch, symbol, side, otype, tif string
			price, quantity, filled, avgFill                           string
			status, exchangeOrderID, rejectReason                      string
			createdAt, updatedAt                                       time.Time
		)
		if err := rows.Scan(&id, &clientOrderID, &bid, &uid, &exch, &symbol, &side, &otype,
			&tif, &price, &quantity, &filled, &avgFill, &status,
			&exchangeOrderID, &rejectReason, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("persistence: scan order: %w", err)
		}
		order := domain.Order{
			ID: id, ClientOrderID: clientOrderID, BotID: bid, UserID: uid,
			Exchange: domain.Exchange(exch), Symbol: symbol,
			Side: domain.OrderSide(side), Type: domain.OrderType(otype), TIF: domain.TimeInForce(tif),
			Status: domain.OrderStatus(status), ExchangeOrderID: exchangeOrderID, RejectReason: rejectReason,
			CreatedAt: createdAt, UpdatedAt: updatedAt,
		}
		order.Price = parseDecimal(price)
		order.Quantity = parseDecimal(quantity)
		order.FilledQuantity = parseDecimal(filled)
		order.AvgFillPrice = parseDecimal(avgFill)
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persistence: iterate orders: %w", err)
	}
	return out, nil
}

// Record inserts an audit log row; metadata is marshalled as jsonb.
func (s *PostgresStore) Record(ctx context.Context, entry AuditEntry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("persistence: encode audit metadata: %w", err)
		}
		metadata = encoded
	}
	args := pgx.NamedArgs{
		"id":          entry.ID,
		"bot_id":      entry.BotID,
		"user_id":     entry.UserID,
		"kind":        entry.Kind,
		"message":     strings.TrimSpace(entry.Message),
		"metadata":    metadata,
		"amount":      entry.Amount.String(),
		"recorded_at": entry.Recorded,
	}
	if _, err := s.pool.Exec(ctx, auditInsertSQL, args); err != nil {
		return fmt.Errorf("persistence: record audit entry: %w", err)
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
