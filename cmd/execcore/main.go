// Command execcore drives the transaction execution core outside of any
// consensus or networking layer: it loads a batch of calls from a JSON
// file and executes them against one block (`run`), or fires a synthetic
// load of calls through the DAG planner to measure throughput (`bench`).
//
// Usage:
//
//	execcore [global flags] run   --input batch.json [--block N] [--gaslimit N]
//	execcore [global flags] bench [--txs N]
//
// Global flags:
//
//	--datadir     data directory for the durable table backend
//	--networkid   chain id presented to the EVM rules (default 1)
//	--verbosity   log level 0-5 (default 3)
//	--metrics     serve the prometheus registry over HTTP
//	--metricsaddr address the metrics server listens on
//	--workers     DAG planner worker pool size (default 4)
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/meshchain/execcore/log"
	"github.com/meshchain/execcore/metrics"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "execcore: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "execcore",
		Usage:   "drive the transaction execution core against a batch of calls",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		Flags:   globalFlags(),
		Before:  startMetricsServer,
		Commands: []*cli.Command{
			runCommand(),
			benchCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "datadir", Value: defaultDataDir(), Usage: "data directory for the durable table backend"},
		&cli.Uint64Flag{Name: "networkid", Value: 1, Usage: "chain id presented to the EVM rules"},
		&cli.IntFlag{Name: "verbosity", Value: 3, Usage: "log level 0-5 (0-1=error, 2=warn, 3=info, 4-5=debug)"},
		&cli.BoolFlag{Name: "metrics", Usage: "serve the prometheus registry over HTTP"},
		&cli.StringFlag{Name: "metricsaddr", Value: "127.0.0.1:9100", Usage: "address the metrics server listens on"},
		&cli.IntFlag{Name: "workers", Value: 4, Usage: "DAG planner worker pool size"},
	}
}

// configFromContext merges global flags into a Config, the same
// flags-into-struct pattern the teacher's cmd/eth2030/main.go uses for
// its node.Config, adapted to urfave/cli's *cli.Context lookups.
func configFromContext(c *cli.Context) Config {
	cfg := DefaultConfig()
	cfg.DataDir = c.String("datadir")
	cfg.NetworkID = c.Uint64("networkid")
	cfg.Verbosity = c.Int("verbosity")
	cfg.LogLevel = VerbosityToLogLevel(cfg.Verbosity)
	cfg.Metrics = c.Bool("metrics")
	cfg.MetricsAddr = c.String("metricsaddr")
	cfg.Workers = c.Int("workers")
	return cfg
}

// startMetricsServer launches the metrics HTTP endpoints in the
// background when --metrics is set, before either subcommand's Action
// runs: domain counters (transactions executed, DAG waves) go through
// the real client_golang registry at /metrics; process-wide runtime
// stats (goroutines, heap, GC) are served from the teacher's own
// hand-rolled exporter at /runtime-metrics, exactly as its
// PrometheusConfig.EnableRuntime was built to do; and a JSON snapshot
// combining both with executor-level throughput/gas introspection is
// served at /runtime-stats.
func startMetricsServer(c *cli.Context) error {
	if !c.Bool("metrics") {
		return nil
	}
	addr := c.String("metricsaddr")
	logger := log.Default().Module("execcore")

	runtimeExporter := metrics.NewPrometheusExporter(metrics.NewRegistry(), metrics.DefaultPrometheusConfig())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/runtime-metrics", runtimeExporter.Handler())
	mux.Handle("/runtime-stats", runtimeStatsHandler(logger))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
	return nil
}
