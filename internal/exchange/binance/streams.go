package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/xor-engine/corebot/internal/exchange"
)

// runStream dials the raw single-stream websocket endpoint for streamName and
// invokes handle for every decoded message, reconnecting with exponential
// backoff (base 5s, cap 60s) until ctx is cancelled.
func (p *Provider) runStream(ctx context.Context, streamName string, handle func([]byte)) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Second
	policy.MaxInterval = 60 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.connectAndRead(ctx, streamName, handle); err != nil {
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

func (p *Provider) connectAndRead(ctx context.Context, streamName string, handle func([]byte)) error {
	url := fmt.Sprintf("%s/%s", p.opts.wsURL(), streamName)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return exchange.ConnectionError("binance", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return exchange.ConnectionError("binance", err)
		}
		handle(data)
	}
}

func (p *Provider) SubscribeTicker(ctx context.Context, symbol string) (<-chan exchange.Ticker, error) {
	out := make(chan exchange.Ticker, 64)
	stream := strings.ToLower(symbol) + "@ticker"
	go p.runStream(ctx, stream, func(data []byte) {
		var msg tickerResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		select {
		case out <- exchange.Ticker{
			Symbol:    symbol,
			LastPrice: mustDecimal(msg.LastPrice),
			BidPrice:  mustDecimal(msg.BidPrice),
			AskPrice:  mustDecimal(msg.AskPrice),
			Timestamp: time.Now().UTC(),
		}:
		default:
		}
	})
	return out, nil
}

func (p *Provider) SubscribeOrderBook(ctx context.Context, symbol string) (<-chan exchange.OrderBook, error) {
	out := make(chan exchange.OrderBook, 64)
	stream := strings.ToLower(symbol) + "@depth20@100ms"
	go p.runStream(ctx, stream, func(data []byte) {
		var msg depthResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		select {
		case out <- exchange.OrderBook{
			Symbol:    symbol,
			Bids:      toLevels(msg.Bids),
			Asks:      toLevels(msg.Asks),
			Sequence:  uint64(msg.LastUpdateID),
			Timestamp: time.Now().UTC(),
		}:
		default:
		}
	})
	return out, nil
}

type tradeMessage struct {
	Price    string `json:"p"`
	Quantity string `json:"q"`
	IsBuyer  bool   `json:"m"`
}

func (p *Provider) SubscribeTrades(ctx context.Context, symbol string) (<-chan exchange.Trade, error) {
	out := make(chan exchange.Trade, 64)
	stream := strings.ToLower(symbol) + "@trade"
	go p.runStream(ctx, stream, func(data []byte) {
		var msg tradeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		side := "buy"
		if msg.IsBuyer {
			side = "sell"
		}
		select {
		case out <- exchange.Trade{
			Symbol:    symbol,
			Side:      side,
			Price:     mustDecimal(msg.Price),
			Quantity:  mustDecimal(msg.Quantity),
			Timestamp: time.Now().UTC(),
		}:
		default:
		}
	})
	return out, nil
}

// SubscribeUserData opens the private account/order-update stream. The
// listen-key lifecycle (create + keepalive) is the caller's responsibility
// in the full gateway; here the stream name is assumed pre-established.
func (p *Provider) SubscribeUserData(ctx context.Context) (<-chan exchange.UserDataEvent, error) {
	out := make(chan exchange.UserDataEvent, 64)
	go p.runStream(ctx, "userDataStream", func(data []byte) {
		var envelope struct {
			EventType string `json:"e"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return
		}
		kind := "order"
		if envelope.EventType == "balanceUpdate" || envelope.EventType == "outboundAccountPosition" {
			kind = "balance"
		}
		select {
		case out <- exchange.UserDataEvent{Kind: kind, Payload: string(data), Timestamp: time.Now().UTC()}:
		default:
		}
	})
	return out, nil
}
