package bybit

import (
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
	defaultBaseURL        = "https://api.bybit.com"
	defaultTestnetBaseURL = "https://api-testnet.bybit.com"
	defaultWSPublicURL    = "wss://stream.bybit.com/v5/public"
	recvWindow            = "5000"
)

// Options configures a Provider instance.
type Options struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	BaseURL    string
	WSBaseURL  string
	// Category selects the V5 product line: "spot" or "linear" (USDT
	// perpetual futures). Positions and leverage only apply to "linear".
	Category   string
	HTTPClient *http.Client
	RESTBudget rate.Limit
}

func (o Options) baseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	if o.Testnet {
		return defaultTestnetBaseURL
	}
	return defaultBaseURL
}

func (o Options) wsURL() string {
	if o.WSBaseURL != "" {
		return o.WSBaseURL
	}
	return defaultWSPublicURL
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (o Options) category() string {
	if o.Category != "" {
		return o.Category
	}
	return "spot"
}

// Provider implements exchange.Adapter for Bybit's V5 unified API, spot or
// linear futures depending on Options.Category.
type Provider struct {
	opts    Options
	limiter *rate.Limiter

	mu        sync.Mutex
	connected bool
}

// New constructs a Bybit adapter.
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
		return exchange.Ticker{}, exchange.ConnectionError("bybit", err)
	}
	var resp tickerResult
	params := url.Values{"category": {p.opts.category()}, "symbol": {symbol}}
	if err := p.get(ctx, "/v5/market/tickers", params, &resp); err != nil {
		return exchange.Ticker{}, err
	}
	if len(resp.List) == 0 {
		return exchange.Ticker{}, exchange.ErrorFromHTTP("bybit", http.StatusNotFound, "", "empty ticker list")
	}
	row := resp.List[0]
	return exchange.Ticker{
		Symbol:    row.Symbol,
		LastPrice: mustDecimal(row.LastPrice),
		BidPrice:  mustDecimal(row.Bid1Price),
		AskPrice:  mustDecimal(row.Ask1Price),
		Volume24h: mustDecimal(row.Volume24h),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (p *Provider) GetOrderBook(ctx context.Context, symbol string, depth int) (exchange.OrderBook, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.OrderBook{}, exchange.ConnectionError("bybit", err)
	}
	if depth <= 0 {
		depth = 20
	}
	var resp orderbookResult
	params := url.Values{"category": {p.opts.category()}, "symbol": {symbol}, "limit": {strconv.Itoa(depth)}}
	if err := p.get(ctx, "/v5/market/orderbook", params, &resp); err != nil {
		return exchange.OrderBook{}, err
	}
	return exchange.OrderBook{
		Symbol:    symbol,
		Bids:      toLevels(resp.Bids),
		Asks:      toLevels(resp.Asks),
		Sequence:  uint64(resp.Seq),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (p *Provider) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, exchange.ConnectionError("bybit", err)
	}
	accountType := "SPOT"
	if p.opts.category() == "linear" {
		accountType = "UNIFIED"
	}
	var resp walletBalanceResult
	params := url.Values{"accountType": {accountType}}
	if err := p.getSigned(ctx, "/v5/account/wallet-balance", params, &resp); err != nil {
		return nil, err
	}
	var out []exchange.Balance
	for _, account := range resp.List {
		for _, coin := range account.Coin {
			total := mustDecimal(coin.WalletBalance)
			if total.IsZero() {
				continue
			}
			free := mustDecimal(coin.AvailableToWithdraw)
			out = append(out, exchange.Balance{Asset: coin.Coin, Free: free, Locked: total.Sub(free)})
		}
	}
	return out, nil
}

// GetPositions is a no-op for the spot category: Bybit spot has no position
// concept. Linear futures positions are fetched from /v5/position/list.
func (p *Provider) GetPositions(ctx context.Context) ([]exchange.ExchangePosition, error) {
	if p.opts.category() != "linear" {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, exchange.ConnectionError("bybit", err)
	}
	var resp positionListResult
	params := url.Values{"category": {"linear"}, "settleCoin": {"USDT"}}
	if err := p.getSigned(ctx, "/v5/position/list", params, &resp); err != nil {
		return nil, err
	}
	var out []exchange.ExchangePosition
	for _, row := range resp.List {
		size := mustDecimal(row.Size)
		if size.IsZero() {
			continue
		}
		leverage, _ := strconv.Atoi(row.Leverage)
		out = append(out, exchange.ExchangePosition{
			Symbol:     row.Symbol,
			Side:       strings.ToLower(row.Side),
			Quantity:   size.Abs(),
			EntryPrice: mustDecimal(row.AvgPrice),
			Leverage:   leverage,
		})
	}
	return out, nil
}

func (p *Provider) PlaceOrder(ctx context.Context, req exchange.PlaceOrderRequest) (exchange.OrderResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.OrderResult{}, exchange.ConnectionError("bybit", err)
	}

	body := map[string]string{
		"category":  p.opts.category(),
		"symbol":    req.Symbol,
		"side":      capitalize(req.Side),
		"orderType": "Market",
		"qty":       req.Quantity.String(),
	}
	if req.Type == "limit" {
		body["orderType"] = "Limit"
		body["price"] = req.Price.String()
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		body["timeInForce"] = tif
	}
	if req.ClientOrderID != "" {
		body["orderLinkId"] = req.ClientOrderID
	}

	var ack orderAckResult
	if err := p.postSigned(ctx, "/v5/order/create", body, &ack); err != nil {
		return exchange.OrderResult{}, err
	}

	return exchange.OrderResult{
		ClientOrderID:   ack.OrderLinkID,
		ExchangeOrderID: ack.OrderID,
		Symbol:          req.Symbol,
		Status:          "open",
		FilledQuantity:  decimal.Zero,
		RemainingQty:    req.Quantity,
		Timestamp:       time.Now().UTC(),
	}, nil
}

func (p *Provider) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return false, exchange.ConnectionError("bybit", err)
	}
	body := map[string]string{"category": p.opts.category(), "symbol": symbol, "orderId": orderID}
	var ack orderAckResult
	if err := p.postSigned(ctx, "/v5/order/cancel", body, &ack); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) GetOrder(ctx context.Context, symbol, orderID string) (exchange.OrderResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.OrderResult{}, exchange.ConnectionError("bybit", err)
	}
	params := url.Values{"category": {p.opts.category()}, "symbol": {symbol}, "orderId": {orderID}}
	var resp orderDetailResult
	if err := p.getSigned(ctx, "/v5/order/realtime", params, &resp); err != nil {
		return exchange.OrderResult{}, err
	}
	if len(resp.List) == 0 {
		return exchange.OrderResult{}, exchange.ErrorFromHTTP("bybit", http.StatusNotFound, "", "order not found")
	}
	return orderResultFromRow(resp.List[0]), nil
}

func (p *Provider) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, exchange.ConnectionError("bybit", err)
	}
	params := url.Values{"category": {p.opts.category()}}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var resp orderDetailResult
	if err := p.getSigned(ctx, "/v5/order/realtime", params, &resp); err != nil {
		return nil, err
	}
	out := make([]exchange.OrderResult, 0, len(resp.List))
	for _, row := range resp.List {
		out = append(out, orderResultFromRow(row))
	}
	return out, nil
}

// SetLeverage sets per-symbol leverage; only meaningful for linear futures.
func (p *Provider) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if p.opts.category() != "linear" {
		return exchange.ErrorFromHTTP("bybit", http.StatusNotImplemented, "", "leverage not supported on spot")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.ConnectionError("bybit", err)
	}
	lev := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	return p.postSigned(ctx, "/v5/position/set-leverage", body, nil)
}

func orderResultFromRow(row orderDetailRow) exchange.OrderResult {
	qty := mustDecimal(row.Qty)
	exec := mustDecimal(row.CumExecQty)
	return exchange.OrderResult{
		ClientOrderID:   row.OrderLinkID,
		ExchangeOrderID: row.OrderID,
		Symbol:          row.Symbol,
		Status:          statusToDomain(row.OrderStatus),
		FilledQuantity:  exec,
		RemainingQty:    qty.Sub(exec),
		AvgFillPrice:    mustDecimal(row.AvgPrice),
	}
}

// --- REST plumbing ---

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	return p.doGet(ctx, path, params, false, out)
}

func (p *Provider) getSigned(ctx context.Context, path string, params url.Values, out any) error {
	return p.doGet(ctx, path, params, true, out)
}

func (p *Provider) doGet(ctx context.Context, path string, params url.Values, signed bool, out any) error {
	target := p.opts.baseURL() + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if signed {
		p.signRequest(req, sortedQueryString(params))
	}
	return p.execute(req, out)
}

func (p *Provider) postSigned(ctx context.Context, path string, body map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	target := p.opts.baseURL() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.signRequest(req, string(payload))
	return p.execute(req, out)
}

// signRequest stamps the V5 auth headers, signing over the given preimage
// fragment (sorted query string for GET, raw JSON body for POST).
func (p *Provider) signRequest(req *http.Request, paramStr string) {
	timestamp := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	signature := sign(timestamp, p.opts.APIKey, recvWindow, paramStr, p.opts.APISecret)
	req.Header.Set("X-BAPI-API-KEY", p.opts.APIKey)
	req.Header.Set("X-BAPI-SIGN", signature)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
}

func (p *Provider) execute(req *http.Request, out any) error {
	resp, err := p.opts.httpClient().Do(req)
	if err != nil {
		return exchange.ConnectionError("bybit", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return exchange.ErrorFromHTTP("bybit", resp.StatusCode, strconv.FormatInt(env.RetCode, 10), env.RetMsg)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.RetCode != 0 {
		return exchange.OrderRejectedError("bybit", strconv.FormatInt(env.RetCode, 10), env.RetMsg)
	}

	if out == nil {
		return nil
	}
	var wrapper struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("decode result envelope: %w", err)
	}
	if err := json.Unmarshal(wrapper.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// sortedQueryString mirrors Bybit's required preimage shape: parameters
// sorted by key and URL-encoded, matching url.Values.Encode's own ordering.
func sortedQueryString(params url.Values) string {
	if params == nil {
		return ""
	}
	return params.Encode()
}

// capitalize maps "buy"/"sell" (any case) onto Bybit's "Buy"/"Sell" enum.
func capitalize(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
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
