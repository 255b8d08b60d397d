// Package oanda implements market data and order placement against the OANDA
// v20 REST API.
package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/market"
)

const (
	// PracticeURL is OANDA's practice/demo environment.
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is OANDA's live trading environment.
	LiveURL = "https://api-fxtrade.oanda.com"
)

type Client struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
}

var (
	_ broker.MarketData  = (*Client)(nil)
	_ broker.OrderPlacer = (*Client)(nil)
)

func NewClient(token, accountID string, practice bool) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}
	return &Client{
		baseURL:   baseURL,
		token:     token,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// granularity maps a candle interval onto the nearest OANDA granularity code.
func granularity(d time.Duration) string {
	switch {
	case d <= 5*time.Second:
		return "S5"
	case d <= time.Minute:
		return "M1"
	case d <= 5*time.Minute:
		return "M5"
	case d <= 15*time.Minute:
		return "M15"
	case d <= 30*time.Minute:
		return "M30"
	case d <= time.Hour:
		return "H1"
	case d <= 4*time.Hour:
		return "H4"
	case d <= 12*time.Hour:
		return "H12"
	default:
		return "D"
	}
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int64      `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid"`
}

type candlesResponse struct {
	Instrument string      `json:"instrument"`
	Candles    []apiCandle `json:"candles"`
}

// GetCandles fetches midpoint candles for the window. Incomplete candles are
// skipped so callers only ever see closed bars.
func (c *Client) GetCandles(ctx context.Context, instrument string, interval time.Duration, from, to time.Time) ([]market.Candle, error) {
	if instrument == "" {
		return nil, fmt.Errorf("oanda: instrument is required")
	}

	params := url.Values{}
	params.Set("price", "M")
	params.Set("granularity", granularity(interval))
	if !from.IsZero() {
		params.Set("from", from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		params.Set("to", to.Format(time.RFC3339))
	}

	var resp candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles?%s", instrument, params.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(resp.Candles))
	for _, ac := range resp.Candles {
		if !ac.Complete {
			continue
		}

		t, err := time.Parse(time.RFC3339, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse candle time %q: %w", ac.Time, err)
		}

		k := market.Candle{Volume: ac.Volume, Time: t, Complete: true}
		for _, f := range []struct {
			dst *float64
			src string
		}{
			{&k.Open, ac.Mid.O},
			{&k.High, ac.Mid.H},
			{&k.Low, ac.Mid.L},
			{&k.Close, ac.Mid.C},
		} {
			v, err := strconv.ParseFloat(f.src, 64)
			if err != nil {
				return nil, fmt.Errorf("oanda: parse price %q: %w", f.src, err)
			}
			*f.dst = v
		}
		candles = append(candles, k)
	}
	return candles, nil
}

type pricingResponse struct {
	Prices []struct {
		Instrument  string `json:"instrument"`
		CloseoutBid string `json:"closeoutBid"`
		CloseoutAsk string `json:"closeoutAsk"`
		Tradeable   bool   `json:"tradeable"`
	} `json:"prices"`
}

// GetCurrentPrices returns the midpoint of the current closeout bid/ask.
func (c *Client) GetCurrentPrices(ctx context.Context, instruments []string) (map[string]float64, error) {
	if len(instruments) == 0 {
		return map[string]float64{}, nil
	}

	params := url.Values{}
	params.Set("instruments", strings.Join(instruments, ","))

	var resp pricingResponse
	path := fmt.Sprintf("/v3/accounts/%s/pricing?%s", c.accountID, params.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(resp.Prices))
	for _, p := range resp.Prices {
		bid, err1 := strconv.ParseFloat(p.CloseoutBid, 64)
		ask, err2 := strconv.ParseFloat(p.CloseoutAsk, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out[p.Instrument] = (bid + ask) / 2
	}
	return out, nil
}

type orderFill struct {
	Price string `json:"price"`
	Units string `json:"units"`
	Time  string `json:"time"`
}

type orderResponse struct {
	OrderFillTransaction   *orderFill      `json:"orderFillTransaction"`
	OrderCancelTransaction json.RawMessage `json:"orderCancelTransaction"`
}

// PlaceOrder submits a market or limit order. A canceled order (for example
// an unmarketable fill-or-kill limit) returns a zero-quantity fill, not an
// error, matching the simulated venue's contract.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	units := req.Quantity * float64(req.Direction)

	order := map[string]any{
		"type":         "MARKET",
		"instrument":   req.Instrument,
		"units":        strconv.FormatFloat(units, 'f', -1, 64),
		"timeInForce":  "FOK",
		"positionFill": "DEFAULT",
	}
	if req.LimitPrice != nil {
		order["type"] = "LIMIT"
		order["timeInForce"] = "GTC"
		order["price"] = strconv.FormatFloat(*req.LimitPrice, 'f', -1, 64)
	}

	var resp orderResponse
	path := fmt.Sprintf("/v3/accounts/%s/orders", c.accountID)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"order": order}, &resp); err != nil {
		return broker.Fill{}, err
	}

	if resp.OrderFillTransaction == nil {
		return broker.Fill{Instrument: req.Instrument, Time: time.Now().UTC()}, nil
	}
	return fillFrom(req.Instrument, *resp.OrderFillTransaction)
}

type positionResponse struct {
	Position struct {
		Long struct {
			Units string `json:"units"`
		} `json:"long"`
		Short struct {
			Units string `json:"units"`
		} `json:"short"`
	} `json:"position"`
}

type closeResponse struct {
	LongOrderFillTransaction  *orderFill `json:"longOrderFillTransaction"`
	ShortOrderFillTransaction *orderFill `json:"shortOrderFillTransaction"`
}

// ClosePosition unwinds the instrument's open side at market.
func (c *Client) ClosePosition(ctx context.Context, instrument string, quantity float64) (broker.Fill, error) {
	var pos positionResponse
	path := fmt.Sprintf("/v3/accounts/%s/positions/%s", c.accountID, instrument)
	if err := c.do(ctx, http.MethodGet, path, nil, &pos); err != nil {
		return broker.Fill{}, err
	}

	body := map[string]any{}
	longUnits, _ := strconv.ParseFloat(pos.Position.Long.Units, 64)
	shortUnits, _ := strconv.ParseFloat(pos.Position.Short.Units, 64)
	switch {
	case longUnits > 0:
		body["longUnits"] = strconv.FormatFloat(quantity, 'f', -1, 64)
	case shortUnits < 0:
		body["shortUnits"] = strconv.FormatFloat(quantity, 'f', -1, 64)
	default:
		return broker.Fill{}, fmt.Errorf("oanda: no open position for %q", instrument)
	}

	var resp closeResponse
	if err := c.do(ctx, http.MethodPut, path+"/close", body, &resp); err != nil {
		return broker.Fill{}, err
	}

	fill := resp.LongOrderFillTransaction
	if fill == nil {
		fill = resp.ShortOrderFillTransaction
	}
	if fill == nil {
		return broker.Fill{Instrument: instrument, Time: time.Now().UTC()}, nil
	}
	return fillFrom(instrument, *fill)
}

func fillFrom(instrument string, f orderFill) (broker.Fill, error) {
	price, err := strconv.ParseFloat(f.Price, 64)
	if err != nil {
		return broker.Fill{}, fmt.Errorf("oanda: parse fill price %q: %w", f.Price, err)
	}
	units, err := strconv.ParseFloat(f.Units, 64)
	if err != nil {
		return broker.Fill{}, fmt.Errorf("oanda: parse fill units %q: %w", f.Units, err)
	}
	if units < 0 {
		units = -units
	}

	ts, err := time.Parse(time.RFC3339, f.Time)
	if err != nil {
		ts = time.Now().UTC()
	}

	return broker.Fill{
		Instrument: instrument,
		Price:      price,
		Quantity:   units,
		Time:       ts,
	}, nil
}

// do executes one authenticated request. Network failures, 429s, and 5xx
// responses are transient; other API errors are permanent.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return broker.Transient(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return broker.Transient(method+" "+path,
			fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("oanda: %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
