package bybit

// envelope is Bybit V5's standard {"retCode":0,"retMsg":"OK","result":{...}}
// response wrapper.
type envelope struct {
	RetCode int64  `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

type tickerResult struct {
	List []tickerRow `json:"list"`
}

type tickerRow struct {
	Symbol        string `json:"symbol"`
	LastPrice     string `json:"lastPrice"`
	Bid1Price     string `json:"bid1Price"`
	Ask1Price     string `json:"ask1Price"`
	Volume24h     string `json:"volume24h"`
}

type orderbookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	Seq    int64      `json:"seq"`
}

type walletBalanceResult struct {
	List []walletAccount `json:"list"`
}

type walletAccount struct {
	Coin []walletCoin `json:"coin"`
}

type walletCoin struct {
	Coin               string `json:"coin"`
	WalletBalance      string `json:"walletBalance"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
}

type positionListResult struct {
	List []positionRow `json:"list"`
}

type positionRow struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Size     string `json:"size"`
	AvgPrice string `json:"avgPrice"`
	Leverage string `json:"leverage"`
}

type orderAckResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type orderDetailResult struct {
	List []orderDetailRow `json:"list"`
}

type orderDetailRow struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	OrderStatus string `json:"orderStatus"`
	Qty         string `json:"qty"`
	CumExecQty  string `json:"cumExecQty"`
	AvgPrice    string `json:"avgPrice"`
}

// statusToDomain maps a Bybit V5 orderStatus string onto the adapter's
// venue-agnostic status vocabulary.
func statusToDomain(status string) string {
	switch status {
	case "New", "Untriggered":
		return "open"
	case "PartiallyFilled":
		return "partial"
	case "Filled":
		return "filled"
	case "Cancelled", "PartiallyFilledCanceled":
		return "cancelled"
	case "Rejected":
		return "rejected"
	case "Deactivated":
		return "expired"
	default:
		return "open"
	}
}
