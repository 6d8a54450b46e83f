package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xyths/loggrid/exchange"
)

const (
	DefaultHost = "https://api.bybit.com"
	recvWindow  = "5000"
	category    = "spot"
	accountType = "UNIFIED"
)

// venue error codes worth distinguishing
const (
	codeOrderNotExists  = 110001
	codeOrderNotExists2 = 170213
)

type apiError struct {
	Code int
	Msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bybit api error %d: %s", e.Code, e.Msg)
}

// Bybit is the v5 REST gateway for spot trading.
type Bybit struct {
	Host   string
	Key    string
	Secret string

	client *http.Client
}

func New(key, secret, host string) *Bybit {
	if host == "" {
		host = DefaultHost
	}
	return &Bybit{
		Host:   host,
		Key:    key,
		Secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Bybit) Ticker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol)
	var result tickersResult
	if err := b.get(ctx, "/v5/market/tickers", params, false, &result); err != nil {
		return exchange.Ticker{}, &exchange.MarketDataError{Symbol: symbol, Err: err}
	}
	if len(result.List) == 0 {
		return exchange.Ticker{}, &exchange.MarketDataError{Symbol: symbol, Err: errors.New("empty ticker list")}
	}
	raw := result.List[0]
	ticker := exchange.Ticker{}
	var err error
	if ticker.Bid, err = parseDecimal("bid1Price", raw.Bid1Price); err == nil {
		if ticker.Ask, err = parseDecimal("ask1Price", raw.Ask1Price); err == nil {
			if ticker.Last, err = parseDecimal("lastPrice", raw.LastPrice); err == nil {
				ticker.Volume, err = parseDecimal("volume24h", raw.Volume24h)
			}
		}
	}
	if err != nil {
		return exchange.Ticker{}, &exchange.MarketDataError{Symbol: symbol, Err: err}
	}
	return ticker, nil
}

// FreeBalance returns the free figure for one coin, zero when the account
// holds none of it.
func (b *Bybit) FreeBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("accountType", accountType)
	params.Set("coin", strings.ToUpper(currency))
	var result walletResult
	if err := b.get(ctx, "/v5/account/wallet-balance", params, true, &result); err != nil {
		return decimal.Zero, err
	}
	for _, account := range result.List {
		for _, c := range account.Coin {
			if strings.EqualFold(c.Coin, currency) {
				return freeOf(c)
			}
		}
	}
	return decimal.Zero, nil
}

// freeOf is deliberately strict: a coin present in the response but with no
// parseable figure in any field is an error, never silently zero, because a
// zero here would freeze all placement for the quote currency.
func freeOf(c rawCoin) (decimal.Decimal, error) {
	for _, s := range []string{c.AvailableToWithdraw, c.Free, c.WalletBalance} {
		if s == "" {
			continue
		}
		return parseDecimal("balance", s)
	}
	return decimal.Zero, errors.Errorf("no usable balance figure for %s", c.Coin)
}

func (b *Bybit) OpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	params := url.Values{}
	params.Set("category", category)
	if symbol != "" {
		params.Set("symbol", symbol)
	} else {
		// settleCoin or symbol is mandatory for a realtime query on some
		// account types; openOnly keeps the response to resting orders
		params.Set("openOnly", "0")
	}
	var result ordersResult
	if err := b.get(ctx, "/v5/order/realtime", params, true, &result); err != nil {
		return nil, err
	}
	var orders []exchange.Order
	for _, raw := range result.List {
		o, err := toOrder(raw)
		if err != nil {
			return nil, err
		}
		if o.Status != exchange.OrderStatusOpen {
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (b *Bybit) PlaceLimitOrder(ctx context.Context, symbol, side string, amount, price decimal.Decimal) (string, error) {
	payload := map[string]string{
		"category":    category,
		"symbol":      symbol,
		"side":        strings.Title(side),
		"orderType":   "Limit",
		"qty":         amount.String(),
		"price":       price.String(),
		"timeInForce": "GTC",
	}
	var result placeResult
	if err := b.post(ctx, "/v5/order/create", payload, &result); err != nil {
		var ae *apiError
		if errors.As(err, &ae) {
			return "", &exchange.OrderRejectedError{Reason: ae.Msg}
		}
		return "", err
	}
	if result.OrderId == "" {
		return "", errors.New("order accepted but no order id returned")
	}
	return result.OrderId, nil
}

// OrderStatus looks the order up among resting orders first, then in the
// order history; an id unknown to both is ErrOrderNotFound.
func (b *Bybit) OrderStatus(ctx context.Context, orderId, symbol string) (string, error) {
	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		params := url.Values{}
		params.Set("category", category)
		params.Set("symbol", symbol)
		params.Set("orderId", orderId)
		var result ordersResult
		if err := b.get(ctx, path, params, true, &result); err != nil {
			return "", err
		}
		for _, raw := range result.List {
			if raw.OrderId == orderId {
				return normalizeStatus(raw.OrderStatus)
			}
		}
	}
	return "", exchange.ErrOrderNotFound
}

func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderId string) error {
	payload := map[string]string{
		"category": category,
		"symbol":   symbol,
		"orderId":  orderId,
	}
	err := b.post(ctx, "/v5/order/cancel", payload, nil)
	var ae *apiError
	if errors.As(err, &ae) && (ae.Code == codeOrderNotExists || ae.Code == codeOrderNotExists2) {
		return exchange.ErrOrderNotFound
	}
	return err
}

// DayCandles returns daily candles oldest first; the venue sends them
// newest first.
func (b *Bybit) DayCandles(ctx context.Context, symbol string, size int) ([]exchange.Candle, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol)
	params.Set("interval", "D")
	params.Set("limit", strconv.Itoa(size))
	var result klineResult
	if err := b.get(ctx, "/v5/market/kline", params, false, &result); err != nil {
		return nil, &exchange.MarketDataError{Symbol: symbol, Err: err}
	}
	candles := make([]exchange.Candle, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		if len(row) < 6 {
			return nil, &exchange.MarketDataError{Symbol: symbol, Err: errors.Errorf("short kline row %v", row)}
		}
		c := exchange.Candle{}
		var err error
		if c.Timestamp, err = strconv.ParseInt(row[0], 10, 64); err != nil {
			return nil, &exchange.MarketDataError{Symbol: symbol, Err: err}
		}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for j, f := range fields {
			if *f, err = strconv.ParseFloat(row[j+1], 64); err != nil {
				return nil, &exchange.MarketDataError{Symbol: symbol, Err: err}
			}
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func toOrder(raw rawOrder) (exchange.Order, error) {
	o := exchange.Order{
		Id:     raw.OrderId,
		Symbol: raw.Symbol,
		Side:   strings.ToLower(raw.Side),
	}
	var err error
	if o.Amount, err = parseDecimal("qty", raw.Qty); err != nil {
		return o, err
	}
	if o.Price, err = parseDecimal("price", raw.Price); err != nil {
		return o, err
	}
	o.Status, err = normalizeStatus(raw.OrderStatus)
	return o, err
}

// normalizeStatus maps the venue's order states onto the three the engine
// understands. Unknown states are an error, not a guess.
func normalizeStatus(s string) (string, error) {
	switch s {
	case "Created", "New", "PartiallyFilled", "Untriggered":
		return exchange.OrderStatusOpen, nil
	case "Filled":
		return exchange.OrderStatusFilled, nil
	case "Cancelled", "PartiallyFilledCanceled", "Rejected", "Deactivated", "Expired":
		return exchange.OrderStatusCancelled, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.Errorf("%s is empty", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bad %s %q", field, s)
	}
	return d, nil
}

func (b *Bybit) get(ctx context.Context, path string, params url.Values, signed bool, result interface{}) error {
	query := params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Host+path+"?"+query, nil)
	if err != nil {
		return err
	}
	if signed {
		b.sign(req, query)
	}
	return b.do(req, result)
}

func (b *Bybit) post(ctx context.Context, path string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Host+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	b.sign(req, string(body))
	return b.do(req, result)
}

// sign sets the v5 authentication headers: HMAC-SHA256 over
// timestamp + key + recvWindow + payload, where payload is the query
// string for GET and the raw body for POST.
func (b *Bybit) sign(req *http.Request, payload string) {
	ts := strconv.FormatInt(time.Now().UnixNano()/int64(time.Millisecond), 10)
	mac := hmac.New(sha256.New, []byte(b.Secret))
	mac.Write([]byte(ts + b.Key + recvWindow + payload))
	req.Header.Set("X-BAPI-API-KEY", b.Key)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
}

func (b *Bybit) do(req *http.Request, result interface{}) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var envelope response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrapf(err, "bad response %s", body)
	}
	if envelope.RetCode != 0 {
		return &apiError{Code: envelope.RetCode, Msg: envelope.RetMsg}
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, result)
}
