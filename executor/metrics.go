package executor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/metrics"
)

// Domain counters the teacher's hand-rolled metrics.PrometheusExporter has
// no equivalent for (it only tracks process-wide runtime stats): these are
// registered against the default registry so cmd/execcore's --metrics flag
// can serve them with promhttp.Handler without the façade knowing anything
// about HTTP.
var (
	transactionsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "execcore",
		Subsystem: "executor",
		Name:      "transactions_total",
		Help:      "Transactions dispatched through the executor façade, by outcome.",
	}, []string{"outcome"})

	dagWavesRun = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "execcore",
		Subsystem: "executor",
		Name:      "dag_waves_total",
		Help:      "DAG-planner waves executed by dagExecuteTransactions.",
	})
)

func init() {
	prometheus.MustRegister(transactionsExecuted, dagWavesRun)
}

// txRate and gasRemaining reuse the teacher's own metrics primitives
// (metrics.Meter rides on metrics.EWMA for the 1/5/15-minute rates;
// metrics.MetricsCollector holds the gas-remaining histogram) rather than
// duplicating that bookkeeping on top of client_golang — the Prometheus
// counters above cover external scraping, these cover cheap in-process
// introspection cmd/execcore's --metrics server exposes without a scrape.
var (
	txRate       = metrics.NewMeter()
	gasRemaining = metrics.NewMetricsCollector(metrics.CollectorConfig{EnableHistograms: true})
)

// TxRate returns the 1-minute exponentially weighted transaction throughput,
// in transactions per second, since the process started.
func TxRate() float64 {
	return txRate.Rate1()
}

// GasRemainingP99 returns the 99th percentile of gas left over across all
// recorded transaction outcomes.
func GasRemainingP99() float64 {
	return gasRemaining.HistogramPercentile("gas_remaining", 0.99)
}

// outcomeLabel classifies a CallParameters result for the transactions_total
// counter's "outcome" label.
func outcomeLabel(result *types.CallParameters) string {
	switch {
	case result.IsRevert():
		return "revert"
	case result.IsFinished():
		return "finished"
	default:
		return "suspended"
	}
}

func recordTransaction(result *types.CallParameters) {
	transactionsExecuted.WithLabelValues(outcomeLabel(result)).Inc()
	txRate.Mark(1)
	gasRemaining.RecordHistogram("gas_remaining", float64(result.Gas))
}
