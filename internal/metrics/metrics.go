package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradebot_signals_total", Help: "Signals generated by strategies"},
		[]string{"strategy", "instrument"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradebot_risk_rejections_total", Help: "Signals rejected by the risk gate"},
		[]string{"code"},
	)
	TradesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradebot_trades_opened_total", Help: "Trades opened"},
		[]string{"instrument", "direction"},
	)
	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradebot_trades_closed_total", Help: "Trades closed"},
		[]string{"instrument", "reason"},
	)
	OpenTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tradebot_open_trades", Help: "Currently open trades"},
	)
	TickErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradebot_tick_errors_total", Help: "Isolated failures during engine ticks"},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsTotal, RejectionsTotal, TradesOpened, TradesClosed, OpenTrades, TickErrors,
	)
}

// Serve exposes /metrics on addr in a background goroutine. Caller owns
// server shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
