package binance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/xor-engine/corebot/internal/exchange"
)

const (
	defaultBaseURL = "https://api.binance.com"
	defaultWSURL   = "wss://stream.binance.com:9443/ws"
)

// Options configures a Provider instance.
type Options struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	WSBaseURL  string
	HTTPClient *http.Client
	// RESTBudget bounds outbound REST calls per second; Binance reports
	// remaining weight in response headers, but a local token bucket keeps
	// the adapter from bursting past the exchange's own limiter.
	RESTBudget rate.Limit
}

func (o Options) baseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return defaultBaseURL
}

func (o Options) wsURL() string {
	if o.WSBaseURL != "" {
		return o.WSBaseURL
	}
	return defaultWSURL
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Provider implements exchange.Adapter for Binance spot/margin trading.
type Provider struct {
	opts    Options
	limiter *rate.Limiter

	mu        sync.Mutex
	connected bool
}

// New constructs a Binance adapter.
func New(opts Options) *Provider {
	budget := opts.RESTBudget
	if budget <= 0 {
		budget = 10
	}
	return &Provider{opts: opts, limiter: rate.NewLimiter(budget, int(budget)+1)}
}

var _ exchange.Adapter = (*Provider)(nil)

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *Provider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *Provider) GetTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.Ticker{}, exchange.ConnectionError("binance", err)
	}
	var resp tickerResponse
	if err := p.get(ctx, "/api/v3/ticker/24hr", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return exchange.Ticker{}, err
	}
	return exchange.Ticker{
		Symbol:    resp.Symbol,
		LastPrice: mustDecimal(resp.LastPrice),
		BidPrice:  mustDecimal(resp.BidPrice),
		AskPrice:  mustDecimal(resp.AskPrice),
		Volume24h: mustDecimal(resp.Volume),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (p *Provider) GetOrderBook(ctx context.Context, symbol string, depth int) (exchange.OrderBook, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.OrderBook{}, exchange.ConnectionError("binance", err)
	}
	if depth <= 0 {
		depth = 20
	}
	var resp depthResponse
	if err := p.get(ctx, "/api/v3/depth", url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(depth)}}, &resp); err != nil {
		return exchange.OrderBook{}, err
	}
	return exchange.OrderBook{
		Symbol:    symbol,
		Bids:      toLevels(resp.Bids),
		Asks:      toLevels(resp.Asks),
		Sequence:  uint64(resp.LastUpdateID),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (p *Provider) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, exchange.ConnectionError("binance", err)
	}
	var resp struct {
		Balances []balanceEntry `json:"balances"`
	}
	if err := p.getSigned(ctx, "/api/v3/account", url.Values{}, &resp); err != nil {
		return nil, err
	}
	out := make([]exchange.Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		out = append(out, exchange.Balance{Asset: b.Asset, Free: mustDecimal(b.Free), Locked: mustDecimal(b.Locked)})
	}
	return out, nil
}

// GetPositions is a no-op returning no positions: Binance spot has no
// margin/futures position concept in scope for this adapter.
func (p *Provider) GetPositions(ctx context.Context) ([]exchange.ExchangePosition, error) {
	return nil, nil
}

func (p *Provider) PlaceOrder(ctx context.Context, req exchange.PlaceOrderRequest) (exchange.OrderResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.OrderResult{}, exchange.ConnectionError("binance", err)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(req.Side))
	orderType := "MARKET"
	if req.Type == "limit" {
		orderType = "LIMIT"
	}
	params.Set("type", orderType)
	params.Set("quantity", req.Quantity.String())
	if orderType == "LIMIT" {
		params.Set("price", req.Price.String())
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	params.Set("newOrderRespType", "FULL")

	var resp orderResponse
	if err := p.postSigned(ctx, "/api/v3/order", params, &resp); err != nil {
		return exchange.OrderResult{}, err
	}

	return exchange.OrderResult{
		ClientOrderID:   resp.ClientOrderID,
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		Symbol:          resp.Symbol,
		Status:          statusToDomain(resp.Status),
		FilledQuantity:  mustDecimal(resp.ExecutedQty),
		RemainingQty:    mustDecimal(resp.OrigQty).Sub(mustDecimal(resp.ExecutedQty)),
		AvgFillPrice:    averagePrice(resp.CummulativeQuoteQty, resp.ExecutedQty),
		Timestamp:       time.UnixMilli(resp.TransactTime).UTC(),
	}, nil
}

func (p *Provider) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return false, exchange.ConnectionError("binance", err)
	}
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	var resp orderResponse
	if err := p.deleteSigned(ctx, "/api/v3/order", params, &resp); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) GetOrder(ctx context.Context, symbol, orderID string) (exchange.OrderResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.OrderResult{}, exchange.ConnectionError("binance", err)
	}
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	var resp orderResponse
	if err := p.getSigned(ctx, "/api/v3/order", params, &resp); err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		ClientOrderID:   resp.ClientOrderID,
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		Symbol:          resp.Symbol,
		Status:          statusToDomain(resp.Status),
		FilledQuantity:  mustDecimal(resp.ExecutedQty),
		RemainingQty:    mustDecimal(resp.OrigQty).Sub(mustDecimal(resp.ExecutedQty)),
		AvgFillPrice:    averagePrice(resp.CummulativeQuoteQty, resp.ExecutedQty),
	}, nil
}

func (p *Provider) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, exchange.ConnectionError("binance", err)
	}
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var resp []orderResponse
	if err := p.getSigned(ctx, "/api/v3/openOrders", params, &resp); err != nil {
		return nil, err
	}
	out := make([]exchange.OrderResult, 0, len(resp))
	for _, o := range resp {
		out = append(out, exchange.OrderResult{
			ClientOrderID:   o.ClientOrderID,
			ExchangeOrderID: strconv.FormatInt(o.OrderID, 10),
			Symbol:          o.Symbol,
			Status:          statusToDomain(o.Status),
			FilledQuantity:  mustDecimal(o.ExecutedQty),
			RemainingQty:    mustDecimal(o.OrigQty).Sub(mustDecimal(o.ExecutedQty)),
		})
	}
	return out, nil
}

// SetLeverage is unsupported on Binance spot; margin/futures leverage is out
// of scope for this adapter.
func (p *Provider) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return exchange.ErrorFromHTTP("binance", http.StatusNotImplemented, "", "leverage not supported on spot")
}

// --- REST plumbing ---

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	return p.do(ctx, http.MethodGet, path, params, false, out)
}

func (p *Provider) getSigned(ctx context.Context, path string, params url.Values, out any) error {
	return p.do(ctx, http.MethodGet, path, params, true, out)
}

func (p *Provider) postSigned(ctx context.Context, path string, params url.Values, out any) error {
	return p.do(ctx, http.MethodPost, path, params, true, out)
}

func (p *Provider) deleteSigned(ctx context.Context, path string, params url.Values, out any) error {
	return p.do(ctx, http.MethodDelete, path, params, true, out)
}

func (p *Provider) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UTC().UnixMilli(), 10))
		params.Set("recvWindow", "5000")
		params.Set("signature", sign(params, p.opts.APISecret))
	}

	var body io.Reader
	target := p.opts.baseURL() + path
	if method == http.MethodGet || method == http.MethodDelete {
		target += "?" + params.Encode()
	} else {
		body = bytes.NewReader([]byte(params.Encode()))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", p.opts.APIKey)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.opts.httpClient().Do(req)
	if err != nil {
		return exchange.ConnectionError("binance", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		return exchange.ErrorFromHTTP("binance", resp.StatusCode, strconv.FormatInt(apiErr.Code, 10), apiErr.Msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func averagePrice(quoteQty, execQty string) decimal.Decimal {
	quote := mustDecimal(quoteQty)
	exec := mustDecimal(execQty)
	if exec.IsZero() {
		return decimal.Zero
	}
	return quote.Div(exec)
}

func toLevels(rows [][]string) []exchange.PriceLevel {
	out := make([]exchange.PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, exchange.PriceLevel{Price: mustDecimal(row[0]), Quantity: mustDecimal(row[1])})
	}
	return out
}
