package backtest

import (
	"fmt"
	"io"
	"math"
	"time"
)

// PrintResult writes a human-readable run summary.
func PrintResult(w io.Writer, strategyName string, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", strategyName)
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Metrics.Trades)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.Metrics.WinRate*100)
	fmt.Fprintf(w, "Avg P/L:       %.2f\n", r.Metrics.AvgPL)
	fmt.Fprintf(w, "Commission:    %.2f\n", r.Commission)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Total Return:  %.2f%%\n", r.Metrics.TotalReturn*100)
	fmt.Fprintf(w, "Sharpe Ratio:  %.2f\n", r.Metrics.Sharpe)
	fmt.Fprintf(w, "Sortino Ratio: %.2f\n", r.Metrics.Sortino)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.Metrics.MaxDrawdown*100)
	if math.IsInf(r.Metrics.ProfitFactor, 1) {
		fmt.Fprintf(w, "Profit Factor: inf\n")
	} else {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.Metrics.ProfitFactor)
	}

	fmt.Fprintln(w)
}
