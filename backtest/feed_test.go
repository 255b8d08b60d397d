package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `time,instrument,open,high,low,close,volume
2024-03-02T00:00:00Z,EUR_USD,1.08,1.09,1.07,1.085,1200
2024-03-01T00:00:00Z,EUR_USD,1.07,1.08,1.06,1.08,1000
2024-03-01T00:00:00Z,GBP_USD,1.26,1.27,1.25,1.265,800
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	return path
}

func TestLoadCSVCandles(t *testing.T) {
	t.Parallel()

	feed, err := LoadCSVCandles(writeSample(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"EUR_USD", "GBP_USD"}, feed.Instruments())

	// Rows are sorted by time regardless of file order.
	candles, err := feed.GetCandles(context.Background(), "EUR_USD", time.Hour, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Time.Before(candles[1].Time))
	assert.Equal(t, 1.08, candles[0].Close)
	assert.Equal(t, int64(1000), candles[0].Volume)
	assert.True(t, candles[0].Complete)
}

func TestCSVCandlesWindow(t *testing.T) {
	t.Parallel()

	feed, err := LoadCSVCandles(writeSample(t))
	require.NoError(t, err)

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	candles, err := feed.GetCandles(context.Background(), "EUR_USD", time.Hour, from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 1.085, candles[0].Close)
}

func TestCSVCandlesCurrentPrices(t *testing.T) {
	t.Parallel()

	feed, err := LoadCSVCandles(writeSample(t))
	require.NoError(t, err)

	prices, err := feed.GetCurrentPrices(context.Background(), []string{"EUR_USD", "UNKNOWN"})
	require.NoError(t, err)
	assert.Equal(t, 1.085, prices["EUR_USD"])
	_, ok := prices["UNKNOWN"]
	assert.False(t, ok)
}

func TestLoadCSVCandlesBadRow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path,
		[]byte("2024-03-01T00:00:00Z,EUR_USD,abc,1.08,1.06,1.08,0\n"), 0o644))

	_, err := LoadCSVCandles(path)
	assert.Error(t, err)
}
