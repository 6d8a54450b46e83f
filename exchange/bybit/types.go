package bybit

import "encoding/json"

// v5 response envelope, shared by every endpoint
type response struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

type tickersResult struct {
	Category string      `json:"category"`
	List     []rawTicker `json:"list"`
}

type rawTicker struct {
	Symbol    string `json:"symbol"`
	Bid1Price string `json:"bid1Price"`
	Ask1Price string `json:"ask1Price"`
	LastPrice string `json:"lastPrice"`
	Volume24h string `json:"volume24h"`
}

type walletResult struct {
	List []walletAccount `json:"list"`
}

type walletAccount struct {
	AccountType string    `json:"accountType"`
	Coin        []rawCoin `json:"coin"`
}

// Unified accounts report "" for availableToWithdraw on some coins, so
// each figure is tried in turn; see freeOf.
type rawCoin struct {
	Coin                string `json:"coin"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
	Free                string `json:"free"`
	WalletBalance       string `json:"walletBalance"`
}

type ordersResult struct {
	Category string     `json:"category"`
	List     []rawOrder `json:"list"`
}

type rawOrder struct {
	OrderId     string `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	OrderStatus string `json:"orderStatus"`
}

type placeResult struct {
	OrderId     string `json:"orderId"`
	OrderLinkId string `json:"orderLinkId"`
}

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}
