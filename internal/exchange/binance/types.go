package binance

// orderResponse is the subset of Binance's order-ack JSON payload the
// adapter consumes.
type orderResponse struct {
	Symbol                 string `json:"symbol"`
	OrderID                int64  `json:"orderId"`
	ClientOrderID          string `json:"clientOrderId"`
	Price                  string `json:"price"`
	OrigQty                string `json:"origQty"`
	ExecutedQty            string `json:"executedQty"`
	CummulativeQuoteQty    string `json:"cummulativeQuoteQty"`
	Status                 string `json:"status"`
	TransactTime           int64  `json:"transactTime"`
}

// apiError is Binance's standard {"code":-1000,"msg":"..."} error envelope.
type apiError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// tickerResponse maps the 24hr ticker REST endpoint.
type tickerResponse struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	Volume    string `json:"volume"`
}

// depthResponse maps the order book depth REST endpoint.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// balanceEntry is one asset row of the account endpoint's balances array.
type balanceEntry struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// statusToDomain maps a Binance order status string onto the adapter's
// venue-agnostic status vocabulary.
func statusToDomain(status string) string {
	switch status {
	case "NEW":
		return "open"
	case "PARTIALLY_FILLED":
		return "partial"
	case "FILLED":
		return "filled"
	case "CANCELED", "PENDING_CANCEL":
		return "cancelled"
	case "REJECTED":
		return "rejected"
	case "EXPIRED":
		return "expired"
	default:
		return "open"
	}
}
