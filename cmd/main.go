// Command breakscan scans an equity index (or a custom ticker list) for breakout setups.
// It prints one report to the terminal or, with --serve, keeps a web dashboard running.
//
// Usage:
//
//	breakscan --index sp500 --rules breakout,volume_spike
//	breakscan --tickers SPY,QQQ --interval 1h
//	breakscan --config config.yaml --serve
//	breakscan --wizard
//
// Optional environment variables (also read from .env):
//
//	BREAKSCAN_REDIS_ADDR, BREAKSCAN_REDIS_PASSWORD: share the index cache through redis
//	BINANCE_API_KEY, BINANCE_API_SECRET / BYBIT_API_KEY, BYBIT_API_SECRET: exchange data
//	HYPERLIQUID_PRIVATE_KEY: hyperliquid client key
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/breakscan/config"
	"github.com/vadiminshakov/breakscan/internal"
	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/report"
	"github.com/vadiminshakov/breakscan/internal/setup"
	"github.com/vadiminshakov/breakscan/internal/web"
)

const (
	exitFailure       = 1
	exitConfiguration = 2
)

func main() {
	logger, _ := zap.NewProduction()
	code := run(logger)
	_ = logger.Sync()
	os.Exit(code)
}

func run(logger *zap.Logger) int {
	conf, err := config.Get()
	if err != nil {
		logger.Error("failed to get configuration", zap.Error(err))
		return exitCode(err)
	}

	if conf.Wizard {
		path, err := setup.RunTUI()
		if err != nil {
			logger.Error("setup wizard failed", zap.Error(err))
			return exitFailure
		}
		conf, err = config.Load(append(os.Args[1:], "--config", path))
		if err != nil {
			logger.Error("failed to load generated configuration", zap.Error(err))
			return exitCode(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := internal.NewScanBot(ctx, conf, logger)
	if err != nil {
		logger.Error("failed to create scanner", zap.Error(err))
		return exitCode(err)
	}
	defer bot.Close()

	if conf.Serve {
		if err := serve(ctx, bot, conf, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dashboard stopped", zap.Error(err))
			return exitFailure
		}
		return 0
	}

	rep, err := bot.Scan(ctx, bot.DefaultRequest())
	if err != nil {
		logger.Error("scan failed", zap.Error(err))
		return exitCode(err)
	}
	if err := report.Render(os.Stdout, rep); err != nil {
		logger.Error("failed to render report", zap.Error(err))
		return exitFailure
	}
	return 0
}

// serve runs the dashboard next to the periodic scan loop until ctx is done.
func serve(ctx context.Context, bot *internal.ScanBot, conf config.Config, logger *zap.Logger) error {
	srv := web.NewServer(conf.Web.Addr, bot, bot.Reports, logger.Named("web"))
	srv.Metrics = bot.Metrics.Handler()
	srv.Defaults = bot.DefaultRequest()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(conf.Web.TLSDomains) > 0 {
			return srv.StartWithAutoTLS(ctx, conf.Web.TLSDomains, conf.Web.CertCache)
		}
		return srv.Start(ctx)
	})
	g.Go(func() error {
		return bot.Run(ctx, conf.Scan.Every)
	})

	return g.Wait()
}

func exitCode(err error) int {
	if errors.Is(err, domain.ErrConfiguration) {
		return exitConfiguration
	}
	return exitFailure
}
