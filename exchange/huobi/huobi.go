package huobi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/huobirdcenter/huobi_golang/pkg/client"
	"github.com/huobirdcenter/huobi_golang/pkg/model"
	"github.com/huobirdcenter/huobi_golang/pkg/model/market"
	"github.com/huobirdcenter/huobi_golang/pkg/model/order"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xyths/loggrid/exchange"
)

const DefaultHost = "api.huobi.pro"

// Huobi adapts the REST spot API to the engine's gateway. The account id
// of the spot account is resolved once at construction.
type Huobi struct {
	Key    string
	Secret string
	Host   string

	accountId string
}

func New(key, secret, host string) (*Huobi, error) {
	if host == "" {
		host = DefaultHost
	}
	h := &Huobi{Key: key, Secret: secret, Host: host}
	ac := new(client.AccountClient).Init(key, secret, host)
	accounts, err := ac.GetAccountInfo()
	if err != nil {
		return nil, errors.Wrap(err, "get account info")
	}
	for _, acc := range accounts {
		if acc.Type == "spot" {
			h.accountId = fmt.Sprintf("%d", acc.Id)
			break
		}
	}
	if h.accountId == "" {
		return nil, errors.New("no spot account")
	}
	return h, nil
}

// Ticker reports the last traded price from the most recent 1-minute
// candle. Bid and ask are not populated; the engine keys off Last.
func (h *Huobi) Ticker(_ context.Context, symbol string) (exchange.Ticker, error) {
	mc := new(client.MarketClient).Init(h.Host)
	optional := market.GetCandlestickOptionalRequest{Period: market.MIN1, Size: 1}
	candlesticks, err := mc.GetCandlestick(strings.ToLower(symbol), optional)
	if err != nil {
		return exchange.Ticker{}, &exchange.MarketDataError{Symbol: symbol, Err: err}
	}
	if len(candlesticks) == 0 {
		return exchange.Ticker{}, &exchange.MarketDataError{Symbol: symbol, Err: errors.New("no candlestick")}
	}
	cs := candlesticks[0]
	return exchange.Ticker{
		Last:   cs.Close,
		Volume: cs.Vol,
	}, nil
}

// FreeBalance sums the trade-type entries of the spot account, leaving
// frozen amounts out.
func (h *Huobi) FreeBalance(_ context.Context, currency string) (decimal.Decimal, error) {
	ac := new(client.AccountClient).Init(h.Key, h.Secret, h.Host)
	ab, err := ac.GetAccountBalance(h.accountId)
	if err != nil {
		return decimal.Zero, err
	}
	free := decimal.Zero
	for _, b := range ab.List {
		if !strings.EqualFold(b.Currency, currency) || b.Type != "trade" {
			continue
		}
		d, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "bad balance %q for %s", b.Balance, b.Currency)
		}
		free = free.Add(d)
	}
	return free, nil
}

func (h *Huobi) OpenOrders(_ context.Context, symbol string) ([]exchange.Order, error) {
	oc := new(client.OrderClient).Init(h.Key, h.Secret, h.Host)
	request := new(model.GetRequest).Init()
	request.AddParam("account-id", h.accountId)
	if symbol != "" {
		request.AddParam("symbol", strings.ToLower(symbol))
	}
	res, err := oc.GetOpenOrders(request)
	if err != nil {
		return nil, err
	}
	if res.Status != "ok" {
		return nil, errors.Errorf("get open orders: %v %s", res.ErrorCode, res.ErrorMessage)
	}
	var orders []exchange.Order
	for _, d := range res.Data {
		o, err := toOrder(d)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// toOrder maps a venue open order onto the engine's order shape. Open
// orders are open by definition, so only the side needs classifying.
func toOrder(d order.OpenOrder) (exchange.Order, error) {
	o := exchange.Order{
		Id:     strconv.FormatInt(d.Id, 10),
		Symbol: strings.ToUpper(d.Symbol),
		Status: exchange.OrderStatusOpen,
	}
	switch {
	case strings.HasPrefix(d.Type, "buy"):
		o.Side = exchange.Buy
	case strings.HasPrefix(d.Type, "sell"):
		o.Side = exchange.Sell
	default:
		return exchange.Order{}, errors.Errorf("unknown order type %q", d.Type)
	}
	o.Amount = d.Amount
	o.Price = d.Price
	return o, nil
}

func (h *Huobi) PlaceLimitOrder(_ context.Context, symbol, side string, amount, price decimal.Decimal) (string, error) {
	oc := new(client.OrderClient).Init(h.Key, h.Secret, h.Host)
	request := order.PlaceOrderRequest{
		AccountId: h.accountId,
		Symbol:    strings.ToLower(symbol),
		Type:      side + "-limit",
		Amount:    amount.String(),
		Price:     price.String(),
		Source:    "spot-api",
	}
	res, err := oc.PlaceOrder(&request)
	if err != nil {
		return "", err
	}
	if res.Status != "ok" {
		return "", &exchange.OrderRejectedError{Reason: fmt.Sprintf("%v: %s", res.ErrorCode, res.ErrorMessage)}
	}
	return res.Data, nil
}

func (h *Huobi) OrderStatus(_ context.Context, orderId, symbol string) (string, error) {
	oc := new(client.OrderClient).Init(h.Key, h.Secret, h.Host)
	res, err := oc.GetOrderById(orderId)
	if err != nil {
		return "", err
	}
	if res.Status != "ok" {
		if strings.Contains(res.ErrorCode, "record-invalid") || strings.Contains(res.ErrorMessage, "not found") {
			return "", exchange.ErrOrderNotFound
		}
		return "", errors.Errorf("get order %s: %v %s", orderId, res.ErrorCode, res.ErrorMessage)
	}
	if res.Data == nil {
		return "", exchange.ErrOrderNotFound
	}
	return normalizeState(res.Data.State)
}

func (h *Huobi) CancelOrder(_ context.Context, _ string, orderId string) error {
	oc := new(client.OrderClient).Init(h.Key, h.Secret, h.Host)
	res, err := oc.CancelOrderById(orderId)
	if err != nil {
		return err
	}
	if res.Status != "ok" {
		if strings.Contains(res.ErrorCode, "record-invalid") {
			return exchange.ErrOrderNotFound
		}
		return errors.Errorf("cancel order %s: %v %s", orderId, res.ErrorCode, res.ErrorMessage)
	}
	return nil
}

// DayCandles returns daily candles oldest first.
func (h *Huobi) DayCandles(_ context.Context, symbol string, size int) ([]exchange.Candle, error) {
	mc := new(client.MarketClient).Init(h.Host)
	optional := market.GetCandlestickOptionalRequest{Period: market.DAY1, Size: size}
	candlesticks, err := mc.GetCandlestick(strings.ToLower(symbol), optional)
	if err != nil {
		return nil, &exchange.MarketDataError{Symbol: symbol, Err: err}
	}
	candles := make([]exchange.Candle, 0, len(candlesticks))
	for i := len(candlesticks) - 1; i >= 0; i-- {
		cs := candlesticks[i]
		open, _ := cs.Open.Float64()
		high, _ := cs.High.Float64()
		low, _ := cs.Low.Float64()
		closePrice, _ := cs.Close.Float64()
		vol, _ := cs.Vol.Float64()
		candles = append(candles, exchange.Candle{
			Timestamp: cs.Id,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    vol,
		})
	}
	return candles, nil
}

// normalizeState maps the venue's order states onto the engine's three.
func normalizeState(state string) (string, error) {
	switch state {
	case "created", "submitted", "partial-filled":
		return exchange.OrderStatusOpen, nil
	case "filled":
		return exchange.OrderStatusFilled, nil
	case "canceled", "partial-canceled":
		return exchange.OrderStatusCancelled, nil
	default:
		return "", errors.Errorf("unknown order state %q", state)
	}
}
