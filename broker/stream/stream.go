// Package stream implements broker.Stream over a websocket feed of
// incremental price/candle updates.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/market"
)

// envelope is one feed message. Price-only messages omit the candle block.
type envelope struct {
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Time       int64   `json:"time"` // unix milliseconds

	Candle *struct {
		Open     float64 `json:"open"`
		High     float64 `json:"high"`
		Low      float64 `json:"low"`
		Close    float64 `json:"close"`
		Volume   int64   `json:"volume"`
		Complete bool    `json:"complete"`
	} `json:"candle,omitempty"`
}

type Client struct {
	url string
	log zerolog.Logger
}

var _ broker.Stream = (*Client)(nil)

func New(url string, log zerolog.Logger) *Client {
	return &Client{url: url, log: log}
}

// Subscribe opens the feed and delivers updates until ctx is canceled.
// Disconnects reconnect with capped exponential backoff; the channel closes
// only when ctx ends.
func (c *Client) Subscribe(ctx context.Context, instruments []string) (<-chan broker.Update, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("stream: at least one instrument is required")
	}

	out := make(chan broker.Update, 256)

	go func() {
		defer close(out)

		backoff := time.Second
		const maxBackoff = 30 * time.Second

		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.consume(ctx, instruments, out); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warn().Err(err).Msg("feed disconnected, retrying")
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
				continue
			}
			return
		}
	}()

	return out, nil
}

func (c *Client) consume(ctx context.Context, instruments []string, out chan<- broker.Update) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return broker.Transient("dial feed", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"op":          "subscribe",
		"instruments": instruments,
	}); err != nil {
		return broker.Transient("subscribe", err)
	}

	c.log.Info().Strs("instruments", instruments).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()

	// Unblock the read loop as soon as the context ends.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return broker.Transient("read feed", err)
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.log.Debug().Err(err).Msg("skipping malformed feed message")
			continue
		}
		if env.Instrument == "" {
			continue
		}

		ts := time.UnixMilli(env.Time).UTC()
		up := broker.Update{
			Instrument: env.Instrument,
			Price: &market.Price{
				Instrument: env.Instrument,
				Value:      env.Price,
				Time:       ts,
			},
		}
		if env.Candle != nil {
			up.Candle = &market.Candle{
				Open:     env.Candle.Open,
				High:     env.Candle.High,
				Low:      env.Candle.Low,
				Close:    env.Candle.Close,
				Volume:   env.Candle.Volume,
				Time:     ts,
				Complete: env.Candle.Complete,
			}
		}

		select {
		case out <- up:
		case <-ctx.Done():
			return nil
		}
	}
}

// Pump copies updates from a subscription into the cache until the channel
// closes. Run it as the single writer goroutine feeding the engine's view of
// the market.
func Pump(updates <-chan broker.Update, cache *market.Cache, log zerolog.Logger) {
	for up := range updates {
		if up.Price != nil {
			cache.SetPrice(*up.Price)
		}
		if up.Candle != nil {
			if err := cache.Append(up.Instrument, *up.Candle); err != nil {
				log.Debug().Err(err).Str("instrument", up.Instrument).Msg("dropping candle")
			}
		}
	}
}
