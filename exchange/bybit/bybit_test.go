package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xyths/loggrid/exchange"
)

func testServer(t *testing.T, handlers map[string]http.HandlerFunc) *Bybit {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New("test-key", "test-secret", srv.URL)
}

func TestTickerDecoding(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/market/tickers": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "spot", r.URL.Query().Get("category"))
			require.Equal(t, "DOGEUSDT", r.URL.Query().Get("symbol"))
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[
				{"symbol":"DOGEUSDT","bid1Price":"0.2497","ask1Price":"0.2499","lastPrice":"0.2498","volume24h":"12345.6"}
			]}}`)
		},
	})
	ticker, err := b.Ticker(context.Background(), "DOGEUSDT")
	require.NoError(t, err)
	require.Equal(t, "0.2497", ticker.Bid.String())
	require.Equal(t, "0.2499", ticker.Ask.String())
	require.Equal(t, "0.2498", ticker.Last.String())
}

func TestTickerEmptyList(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/market/tickers": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[]}}`)
		},
	})
	_, err := b.Ticker(context.Background(), "DOGEUSDT")
	var mde *exchange.MarketDataError
	require.True(t, errors.As(err, &mde))
	require.Equal(t, "DOGEUSDT", mde.Symbol)
}

func TestFreeBalanceFallbackChain(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/account/wallet-balance": func(w http.ResponseWriter, r *http.Request) {
			require.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"), "private endpoint must be signed")
			require.Equal(t, "test-key", r.Header.Get("X-BAPI-API-KEY"))
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"accountType":"UNIFIED","coin":[
				{"coin":"USDT","availableToWithdraw":"","free":"","walletBalance":"123.45"},
				{"coin":"DOGE","availableToWithdraw":"500","free":"600","walletBalance":"700"},
				{"coin":"BTC","availableToWithdraw":"","free":"","walletBalance":""}
			]}]}}`)
		},
	})
	ctx := context.Background()

	free, err := b.FreeBalance(ctx, "USDT")
	require.NoError(t, err)
	require.Equal(t, "123.45", free.String(), "empty figures fall back to walletBalance")

	free, err = b.FreeBalance(ctx, "DOGE")
	require.NoError(t, err)
	require.Equal(t, "500", free.String(), "availableToWithdraw wins when present")

	_, err = b.FreeBalance(ctx, "BTC")
	require.Error(t, err, "a held coin with no figure at all must not read as zero")

	free, err = b.FreeBalance(ctx, "XRP")
	require.NoError(t, err)
	require.True(t, free.IsZero(), "a coin absent from the account is simply zero")
}

func TestNormalizeStatus(t *testing.T) {
	for raw, want := range map[string]string{
		"New":                     exchange.OrderStatusOpen,
		"PartiallyFilled":         exchange.OrderStatusOpen,
		"Filled":                  exchange.OrderStatusFilled,
		"Cancelled":               exchange.OrderStatusCancelled,
		"PartiallyFilledCanceled": exchange.OrderStatusCancelled,
		"Rejected":                exchange.OrderStatusCancelled,
	} {
		got, err := normalizeStatus(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	_, err := normalizeStatus("SomethingNew")
	require.Error(t, err)
}

func TestOrderStatusFallsBackToHistory(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/order/realtime": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[]}}`)
		},
		"/v5/order/history": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[
				{"orderId":"abc","symbol":"DOGEUSDT","side":"Buy","qty":"40","price":"0.2475","orderStatus":"Filled"}
			]}}`)
		},
	})
	status, err := b.OrderStatus(context.Background(), "abc", "DOGEUSDT")
	require.NoError(t, err)
	require.Equal(t, exchange.OrderStatusFilled, status)
}

func TestOrderStatusNotFound(t *testing.T) {
	empty := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[]}}`)
	}
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/order/realtime": empty,
		"/v5/order/history":  empty,
	})
	_, err := b.OrderStatus(context.Background(), "nope", "DOGEUSDT")
	require.True(t, errors.Is(err, exchange.ErrOrderNotFound))
}

func TestPlaceLimitOrderRejected(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/order/create": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"retCode":170131,"retMsg":"Insufficient balance","result":{}}`)
		},
	})
	_, err := b.PlaceLimitOrder(context.Background(), "DOGEUSDT", "buy",
		decimal.NewFromInt(40), decimal.RequireFromString("0.2475"))
	var rejected *exchange.OrderRejectedError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "Insufficient balance", rejected.Reason)
}

func TestOpenOrdersFiltersAndMaps(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/order/realtime": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[
				{"orderId":"a","symbol":"DOGEUSDT","side":"Buy","qty":"40","price":"0.2475","orderStatus":"New"},
				{"orderId":"b","symbol":"DOGEUSDT","side":"Sell","qty":"40","price":"0.2525","orderStatus":"PartiallyFilled"},
				{"orderId":"c","symbol":"DOGEUSDT","side":"Buy","qty":"40","price":"0.245","orderStatus":"Filled"}
			]}}`)
		},
	})
	orders, err := b.OpenOrders(context.Background(), "DOGEUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 2, "only resting orders are returned")
	require.Equal(t, exchange.Buy, orders[0].Side)
	require.Equal(t, exchange.Sell, orders[1].Side)
	require.Equal(t, "40", orders[0].Amount.String())
}

func TestCancelUnknownOrder(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/order/cancel": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"retCode":110001,"retMsg":"order not exists or too late to cancel","result":{}}`)
		},
	})
	err := b.CancelOrder(context.Background(), "DOGEUSDT", "gone")
	require.True(t, errors.Is(err, exchange.ErrOrderNotFound))
}

func TestDayCandlesOldestFirst(t *testing.T) {
	b := testServer(t, map[string]http.HandlerFunc{
		"/v5/market/kline": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "D", r.URL.Query().Get("interval"))
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"symbol":"DOGEUSDT","list":[
				["1700092800000","0.25","0.26","0.24","0.255","1000","255"],
				["1700006400000","0.24","0.25","0.23","0.25","900","225"]
			]}}`)
		},
	})
	candles, err := b.DayCandles(context.Background(), "DOGEUSDT", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1700006400000), candles[0].Timestamp, "oldest first")
	require.Equal(t, 0.255, candles[1].Close)
}
