package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"

	"github.com/trianglesphere/gonode/components/node/engine"
	"github.com/trianglesphere/gonode/components/node/eth"
	"github.com/trianglesphere/gonode/components/node/metrics"
	"github.com/trianglesphere/gonode/components/node/rollup"
	"github.com/trianglesphere/gonode/components/node/rollup/derive"
	"github.com/trianglesphere/gonode/components/node/rollup/driver"
	"github.com/trianglesphere/gonode/components/node/sources"
	metricssrv "github.com/trianglesphere/gonode/utils/service/metrics"
)

var (
	Version   = ""
	GitCommit = ""
	GitDate   = ""
)

var (
	RollupConfigFlag = cli.StringFlag{
		Name:   "rollup.config",
		Usage:  "Path to the rollup chain configuration JSON file",
		EnvVar: "ROLLUP_CONFIG",
	}
	L1NodeAddrFlag = cli.StringFlag{
		Name:   "l1",
		Usage:  "Address of the L1 JSON-RPC endpoint to derive from",
		EnvVar: "RPC",
	}
	L1PollIntervalFlag = cli.DurationFlag{
		Name:   "l1.poll-interval",
		Usage:  "How often to poll the L1 endpoint for a new head",
		Value:  12 * time.Second,
		EnvVar: "L1_POLL_INTERVAL",
	}
	SnapshotLogFlag = cli.StringFlag{
		Name:   "snapshotlog.file",
		Usage:  "Path to a file to write rollup state snapshots to, as JSON lines. Disabled if empty.",
		EnvVar: "SNAPSHOT_LOG",
	}
	MetricsAddrFlag = cli.StringFlag{
		Name:   "metrics.addr",
		Usage:  "Metrics listening address",
		Value:  "0.0.0.0",
		EnvVar: "METRICS_ADDR",
	}
	MetricsPortFlag = cli.IntFlag{
		Name:   "metrics.port",
		Usage:  "Metrics listening port",
		Value:  7300,
		EnvVar: "METRICS_PORT",
	}
)

func main() {
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Flags = []cli.Flag{
		RollupConfigFlag,
		L1NodeAddrFlag,
		L1PollIntervalFlag,
		SnapshotLogFlag,
		MetricsAddrFlag,
		MetricsPortFlag,
	}
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "gonode"
	app.Usage = "L1-to-L2 Derivation Node"
	app.Description = "Derives L2 block candidates from L1 batcher transactions"
	app.Action = Main

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// Main wires the derivation pipeline, its L1 data source, a placeholder L2
// engine, the driver event loop, and the metrics server together, then
// blocks until interrupted.
func Main(ctx *cli.Context) error {
	logger := log.New()

	rollupConfig, err := loadRollupConfig(ctx.GlobalString(RollupConfigFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to load rollup config: %w", err)
	}
	if err := rollupConfig.Check(); err != nil {
		return fmt.Errorf("invalid rollup config: %w", err)
	}

	snapshotLogger, err := newSnapshotLogger(ctx.GlobalString(SnapshotLogFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to set up snapshot log: %w", err)
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l1NodeAddr := ctx.GlobalString(L1NodeAddrFlag.Name)
	if l1NodeAddr == "" {
		return fmt.Errorf("%s is required", L1NodeAddrFlag.Name)
	}
	l1Client, err := sources.NewL1Client(appCtx, logger, l1NodeAddr)
	if err != nil {
		return fmt.Errorf("failed to dial L1 endpoint: %w", err)
	}

	l2Engine := engine.NewLoggingEngine(logger, eth.L2BlockRef{
		Number: 0,
		Time:   rollupConfig.Genesis.L2Time,
	})

	pipelineMetrics, registry := metrics.NewMetrics()

	pipeline := derive.NewDerivation(logger, rollupConfig, l1Client, l2Engine, pipelineMetrics)
	d := driver.NewDriver(logger, snapshotLogger, rollupConfig, pipeline, pipelineMetrics)
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start driver: %w", err)
	}
	defer d.Close()

	metricsAddr := ctx.GlobalString(MetricsAddrFlag.Name)
	metricsPort := ctx.GlobalInt(MetricsPortFlag.Name)
	go func() {
		if err := metricssrv.ListenAndServe(appCtx, registry, metricsAddr, metricsPort); err != nil {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	go pollL1Head(appCtx, logger, l1NodeAddr, ctx.GlobalDuration(L1PollIntervalFlag.Name), d)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info("received interrupt, shutting down")
	return nil
}

// pollL1Head periodically fetches the L1 chain's latest header and signals
// it to the driver. A dedicated L1 head subscription would be preferable,
// but polling keeps this CLI's dependency surface to the same
// ethclient/rpc stack sources.L1Client already uses.
func pollL1Head(ctx context.Context, logger log.Logger, url string, interval time.Duration, d *driver.Driver) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		logger.Error("failed to dial L1 for head polling", "err", err)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			header, err := client.HeaderByNumber(ctx, nil)
			if err != nil {
				logger.Warn("failed to fetch L1 head", "err", err)
				continue
			}
			head := eth.L1BlockRef{
				Hash:       header.Hash(),
				Number:     header.Number.Uint64(),
				ParentHash: header.ParentHash,
				Time:       header.Time,
			}
			if err := d.OnL1Head(ctx, head); err != nil {
				logger.Warn("failed to signal L1 head", "err", err)
			}
		}
	}
}

func loadRollupConfig(path string) (*rollup.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%s is required", RollupConfigFlag.Name)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config rollup.Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func newSnapshotLogger(path string) (log.Logger, error) {
	handler := log.DiscardHandler()
	if path != "" {
		h, err := log.FileHandler(path, log.JSONFormat())
		if err != nil {
			return nil, err
		}
		handler = log.SyncHandler(h)
	}
	logger := log.New()
	logger.SetHandler(handler)
	return logger, nil
}
