package bybit

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/xor-engine/corebot/internal/exchange"
)

// subscribeMessage is the V5 public-stream subscription request frame.
type subscribeMessage struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// topicEnvelope is the shape of every public-stream push after subscribing.
type topicEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// runStream dials the public websocket endpoint for the given category,
// subscribes to topic, and invokes handle for every decoded data payload,
// reconnecting with exponential backoff (base 5s, cap 60s) until ctx is
// cancelled.
func (p *Provider) runStream(ctx context.Context, topic string, handle func(json.RawMessage)) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Second
	policy.MaxInterval = 60 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.connectAndRead(ctx, topic, handle); err != nil {
			if ctx.Err() != nil {
				return
			}
			sleep := policy.NextBackOff()
			if sleep == backoff.Stop {
				sleep = policy.MaxInterval
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
			continue
		}
		policy.Reset()
	}
}

func (p *Provider) connectAndRead(ctx context.Context, topic string, handle func(json.RawMessage)) error {
	url := fmt.Sprintf("%s/%s", p.opts.wsURL(), p.opts.category())
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return exchange.ConnectionError("bybit", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sub := subscribeMessage{Op: "subscribe", Args: []string{topic}}
	if err := writeJSON(ctx, conn, sub); err != nil {
		return exchange.ConnectionError("bybit", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return exchange.ConnectionError("bybit", err)
		}
		var env topicEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Topic == "" {
			continue
		}
		handle(env.Data)
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func (p *Provider) SubscribeTicker(ctx context.Context, symbol string) (<-chan exchange.Ticker, error) {
	out := make(chan exchange.Ticker, 64)
	topic := "tickers." + symbol
	go p.runStream(ctx, topic, func(data json.RawMessage) {
		var row tickerRow
		if err := json.Unmarshal(data, &row); err != nil {
			return
		}
		select {
		case out <- exchange.Ticker{
			Symbol:    symbol,
			LastPrice: mustDecimal(row.LastPrice),
			BidPrice:  mustDecimal(row.Bid1Price),
			AskPrice:  mustDecimal(row.Ask1Price),
			Volume24h: mustDecimal(row.Volume24h),
			Timestamp: time.Now().UTC(),
		}:
		default:
		}
	})
	return out, nil
}

func (p *Provider) SubscribeOrderBook(ctx context.Context, symbol string) (<-chan exchange.OrderBook, error) {
	out := make(chan exchange.OrderBook, 64)
	topic := "orderbook.50." + symbol
	go p.runStream(ctx, topic, func(data json.RawMessage) {
		var row orderbookResult
		if err := json.Unmarshal(data, &row); err != nil {
			return
		}
		select {
		case out <- exchange.OrderBook{
			Symbol:    symbol,
			Bids:      toLevels(row.Bids),
			Asks:      toLevels(row.Asks),
			Sequence:  uint64(row.Seq),
			Timestamp: time.Now().UTC(),
		}:
		default:
		}
	})
	return out, nil
}

type publicTradeMessage struct {
	Price string `json:"p"`
	Size  string `json:"v"`
	Side  string `json:"S"`
}

func (p *Provider) SubscribeTrades(ctx context.Context, symbol string) (<-chan exchange.Trade, error) {
	out := make(chan exchange.Trade, 64)
	topic := "publicTrade." + symbol
	go p.runStream(ctx, topic, func(data json.RawMessage) {
		var rows []publicTradeMessage
		if err := json.Unmarshal(data, &rows); err != nil {
			return
		}
		for _, row := range rows {
			select {
			case out <- exchange.Trade{
				Symbol:    symbol,
				Side:      capitalizeToSide(row.Side),
				Price:     mustDecimal(row.Price),
				Quantity:  mustDecimal(row.Size),
				Timestamp: time.Now().UTC(),
			}:
			default:
			}
		}
	})
	return out, nil
}

func capitalizeToSide(s string) string {
	if s == "Buy" {
		return "buy"
	}
	return "sell"
}

// SubscribeUserData opens the private order/execution/wallet stream. Bybit's
// private stream requires an authenticated connection (a signed "auth" op
// before subscribing); that handshake is assumed pre-established by the
// caller's session manager in the full deployment.
func (p *Provider) SubscribeUserData(ctx context.Context) (<-chan exchange.UserDataEvent, error) {
	out := make(chan exchange.UserDataEvent, 64)
	go p.runStream(ctx, "order", func(data json.RawMessage) {
		select {
		case out <- exchange.UserDataEvent{Kind: "order", Payload: string(data), Timestamp: time.Now().UTC()}:
		default:
		}
	})
	return out, nil
}
