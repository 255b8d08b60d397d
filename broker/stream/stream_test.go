package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/market"
)

func TestPump(t *testing.T) {
	t.Parallel()

	cache := market.NewCache()
	updates := make(chan broker.Update, 4)
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	updates <- broker.Update{
		Instrument: "EUR_USD",
		Price:      &market.Price{Instrument: "EUR_USD", Value: 1.09, Time: ts},
	}
	updates <- broker.Update{
		Instrument: "EUR_USD",
		Price:      &market.Price{Instrument: "EUR_USD", Value: 1.091, Time: ts.Add(time.Second)},
		Candle: &market.Candle{
			Open: 1.09, High: 1.092, Low: 1.089, Close: 1.091,
			Time: ts, Complete: true,
		},
	}
	// Out-of-order candle is dropped, not fatal.
	updates <- broker.Update{
		Instrument: "EUR_USD",
		Candle: &market.Candle{
			Open: 1, High: 1, Low: 1, Close: 1,
			Time: ts.Add(-time.Hour), Complete: true,
		},
	}
	close(updates)

	Pump(updates, cache, zerolog.Nop())

	p, ok := cache.Price("EUR_USD")
	require.True(t, ok)
	assert.Equal(t, 1.091, p.Value)
	assert.Len(t, cache.Candles("EUR_USD"), 1)
}

func feedServer(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Consume the subscribe message before feeding.
		var sub map[string]any
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}

		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	srv := feedServer(t,
		`{"instrument":"EUR_USD","price":1.09,"time":1709251200000}`,
		`not json`,
		`{"instrument":"EUR_USD","price":1.091,"time":1709251260000,"candle":{"open":1.09,"high":1.092,"low":1.089,"close":1.091,"volume":42,"complete":true}}`,
	)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New("ws"+strings.TrimPrefix(srv.URL, "http"), zerolog.Nop())
	updates, err := c.Subscribe(ctx, []string{"EUR_USD"})
	require.NoError(t, err)

	first := <-updates
	require.NotNil(t, first.Price)
	assert.Equal(t, "EUR_USD", first.Instrument)
	assert.Equal(t, 1.09, first.Price.Value)
	assert.Nil(t, first.Candle)

	// The malformed frame is skipped; the candle frame arrives next.
	second := <-updates
	require.NotNil(t, second.Candle)
	assert.Equal(t, 1.091, second.Candle.Close)
	assert.Equal(t, int64(42), second.Candle.Volume)
	assert.True(t, second.Candle.Complete)

	cancel()
	// Channel closes once the context ends.
	for range updates {
	}
}

func TestSubscribeRequiresInstruments(t *testing.T) {
	t.Parallel()

	c := New("ws://localhost:0", zerolog.Nop())
	_, err := c.Subscribe(context.Background(), nil)
	assert.Error(t, err)
}
