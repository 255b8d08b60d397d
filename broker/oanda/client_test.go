package oanda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/strategy"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-token", "001-001-1234567-001", true)
	c.baseURL = srv.URL
	return c
}

func TestGetCandles(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/instruments/EUR_USD/candles", r.URL.Path)
		assert.Equal(t, "H1", r.URL.Query().Get("granularity"))
		assert.Equal(t, "M", r.URL.Query().Get("price"))

		json.NewEncoder(w).Encode(map[string]any{
			"instrument": "EUR_USD",
			"candles": []map[string]any{
				{
					"complete": true,
					"volume":   120,
					"time":     "2024-03-01T00:00:00Z",
					"mid":      map[string]string{"o": "1.0800", "h": "1.0850", "l": "1.0790", "c": "1.0845"},
				},
				{
					"complete": false, // forming bar must be dropped
					"volume":   12,
					"time":     "2024-03-01T01:00:00Z",
					"mid":      map[string]string{"o": "1.0845", "h": "1.0850", "l": "1.0840", "c": "1.0846"},
				},
			},
		})
	}))

	candles, err := c.GetCandles(context.Background(), "EUR_USD", time.Hour,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, candles, 1, "incomplete candles are skipped")

	k := candles[0]
	assert.Equal(t, 1.08, k.Open)
	assert.Equal(t, 1.085, k.High)
	assert.Equal(t, 1.079, k.Low)
	assert.Equal(t, 1.0845, k.Close)
	assert.Equal(t, int64(120), k.Volume)
	assert.True(t, k.Complete)
}

func TestGetCurrentPrices(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/accounts/001-001-1234567-001/pricing", r.URL.Path)
		assert.Equal(t, "EUR_USD,GBP_USD", r.URL.Query().Get("instruments"))

		json.NewEncoder(w).Encode(map[string]any{
			"prices": []map[string]any{
				{"instrument": "EUR_USD", "closeoutBid": "1.0840", "closeoutAsk": "1.0850", "tradeable": true},
				{"instrument": "GBP_USD", "closeoutBid": "1.2600", "closeoutAsk": "1.2610", "tradeable": true},
			},
		})
	}))

	prices, err := c.GetCurrentPrices(context.Background(), []string{"EUR_USD", "GBP_USD"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0845, prices["EUR_USD"], 1e-9)
	assert.InDelta(t, 1.2605, prices["GBP_USD"], 1e-9)
}

func TestPlaceOrderMarket(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/accounts/001-001-1234567-001/orders", r.URL.Path)

		var body struct {
			Order map[string]any `json:"order"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "MARKET", body.Order["type"])
		assert.Equal(t, "-100", body.Order["units"], "short orders submit negative units")

		json.NewEncoder(w).Encode(map[string]any{
			"orderFillTransaction": map[string]string{
				"price": "1.0845",
				"units": "-100",
				"time":  "2024-03-01T10:00:00Z",
			},
		})
	}))

	fill, err := c.PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "EUR_USD",
		Direction:  strategy.Short,
		Quantity:   100,
	})
	require.NoError(t, err)
	assert.True(t, fill.Executed())
	assert.Equal(t, 1.0845, fill.Price)
	assert.Equal(t, 100.0, fill.Quantity, "fill quantity is reported unsigned")
}

func TestPlaceOrderCanceled(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"orderCancelTransaction": map[string]string{"reason": "FOK_ORDER_REMAINING"},
		})
	}))

	fill, err := c.PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "EUR_USD",
		Direction:  strategy.Long,
		Quantity:   100,
	})
	require.NoError(t, err)
	assert.False(t, fill.Executed(), "a canceled order is a zero-quantity fill")
}

func TestClosePositionLongSide(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"position": map[string]any{
					"long":  map[string]string{"units": "100"},
					"short": map[string]string{"units": "0"},
				},
			})
		case r.Method == http.MethodPut:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "100", body["longUnits"])
			assert.NotContains(t, body, "shortUnits")

			json.NewEncoder(w).Encode(map[string]any{
				"longOrderFillTransaction": map[string]string{
					"price": "1.0900",
					"units": "-100",
					"time":  "2024-03-01T12:00:00Z",
				},
			})
		}
	}))

	fill, err := c.ClosePosition(context.Background(), "EUR_USD", 100)
	require.NoError(t, err)
	assert.Equal(t, 1.09, fill.Price)
	assert.Equal(t, 100.0, fill.Quantity)
}

func TestClosePositionFlat(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"position": map[string]any{
				"long":  map[string]string{"units": "0"},
				"short": map[string]string{"units": "0"},
			},
		})
	}))

	_, err := c.ClosePosition(context.Background(), "EUR_USD", 100)
	assert.Error(t, err)
}

func TestServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))

	_, err := c.GetCandles(context.Background(), "EUR_USD", time.Hour, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.True(t, broker.IsTransient(err))
}

func TestClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"Invalid instrument"}`, http.StatusBadRequest)
	}))

	_, err := c.GetCandles(context.Background(), "BOGUS", time.Hour, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.False(t, broker.IsTransient(err))
}

func TestGranularityMapping(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		5 * time.Second:  "S5",
		time.Minute:      "M1",
		15 * time.Minute: "M15",
		time.Hour:        "H1",
		4 * time.Hour:    "H4",
		24 * time.Hour:   "D",
	}
	for d, want := range cases {
		assert.Equal(t, want, granularity(d), "interval %s", d)
	}
}
