package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// CSVCandles serves historical candles from a CSV file with rows:
//
//	time,instrument,open,high,low,close,volume
//
// where time is RFC3339 or RFC3339Nano. A header row ("time,...") is
// allowed; empty/short rows are skipped. The whole file is loaded up front
// and indexed by instrument.
type CSVCandles struct {
	series map[string][]market.Candle
}

func LoadCSVCandles(path string) (*CSVCandles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	series := make(map[string][]market.Candle)
	sawFirst := false

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		instrument, c, ok, err := parseCandleRow(row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		series[instrument] = append(series[instrument], c)
	}

	for in := range series {
		s := series[in]
		sort.Slice(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	}

	return &CSVCandles{series: series}, nil
}

func (s *CSVCandles) GetCandles(_ context.Context, instrument string, _ time.Duration, from, to time.Time) ([]market.Candle, error) {
	var out []market.Candle
	for _, c := range s.series[instrument] {
		if !from.IsZero() && c.Time.Before(from) {
			continue
		}
		if !to.IsZero() && c.Time.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CSVCandles) GetCurrentPrices(_ context.Context, instruments []string) (map[string]float64, error) {
	out := make(map[string]float64, len(instruments))
	for _, in := range instruments {
		series := s.series[in]
		if len(series) == 0 {
			continue
		}
		out[in] = series[len(series)-1].Close
	}
	return out, nil
}

// Instruments lists the instruments present in the file, sorted.
func (s *CSVCandles) Instruments() []string {
	out := make([]string, 0, len(s.series))
	for in := range s.series {
		out = append(out, in)
	}
	sort.Strings(out)
	return out
}

func parseCandleRow(row []string) (string, market.Candle, bool, error) {
	// Need at least: time,instrument,open,high,low,close
	if len(row) < 6 {
		return "", market.Candle{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return "", market.Candle{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return "", market.Candle{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	instrument := strings.TrimSpace(row[1])
	if instrument == "" {
		return "", market.Candle{}, false, nil
	}

	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[2+i]), 64)
		if err != nil {
			return "", market.Candle{}, false, fmt.Errorf("bad price %q: %w", row[2+i], err)
		}
		vals[i] = v
	}

	var volume int64
	if len(row) > 6 {
		volume, _ = strconv.ParseInt(strings.TrimSpace(row[6]), 10, 64)
	}

	return instrument, market.Candle{
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   volume,
		Time:     t,
		Complete: true,
	}, true, nil
}
