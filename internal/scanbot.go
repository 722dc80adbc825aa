package internal

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/breakscan/config"
	"github.com/vadiminshakov/breakscan/internal/cache"
	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/events"
	"github.com/vadiminshakov/breakscan/internal/metrics"
	"github.com/vadiminshakov/breakscan/internal/scanner"
	"github.com/vadiminshakov/breakscan/internal/services/market/collector"
	"github.com/vadiminshakov/breakscan/internal/services/market/indicators"
	"github.com/vadiminshakov/breakscan/internal/services/market/rules"
	"github.com/vadiminshakov/breakscan/internal/services/universe"
)

// SymbolSource resolves an index name into tickers.
type SymbolSource interface {
	Symbols(ctx context.Context, index string) ([]string, error)
}

// ReportScanner runs one scan pass.
type ReportScanner interface {
	Scan(ctx context.Context, symbols []string, ruleNames []domain.RuleName) (*domain.Report, error)
}

// ScanBot wires the universe, the scanner and the report fan-out together.
// Both the terminal and the web dashboard drive scans through it.
type ScanBot struct {
	Config  config.Config
	Metrics *metrics.Metrics
	Reports *events.ReportBroadcaster

	universe SymbolSource
	scanner  ReportScanner
	closers  []io.Closer
	logger   *zap.Logger
}

// NewScanBot builds every collaborator from conf. Connections opened before a failing
// step are closed again.
func NewScanBot(ctx context.Context, conf config.Config, logger *zap.Logger) (_ *ScanBot, err error) {
	var closers []io.Closer
	defer func() {
		if err != nil {
			closeAll(closers, logger)
		}
	}()

	var store cache.Cache = cache.NewMemory()
	if conf.Universe.RedisAddr != "" {
		redis, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     conf.Universe.RedisAddr,
			Password: conf.Universe.RedisPassword,
			Prefix:   "breakscan:",
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to redis")
		}
		store = redis
		closers = append(closers, redis)
	}

	symbols := universe.NewProvider(
		universe.WithCache(store, conf.Universe.CacheTTL),
		universe.WithLogger(logger.Named("universe")),
	)

	klines, err := newKlineProvider(ctx, conf.Market)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kline provider")
	}

	fetcher, err := collector.NewFetcher(klines, conf.Market.Interval, conf.Market.Lookback,
		collector.WithTimeout(conf.Market.FetchTimeout),
		collector.WithRetries(conf.Market.Retries),
		collector.WithLogger(logger.Named("collector")),
	)
	if err != nil {
		return nil, err
	}

	osc, err := indicators.NewOscillator(conf.Scan.Oscillator)
	if err != nil {
		return nil, err
	}
	engine := indicators.NewEngine(
		indicators.WithOscillator(osc),
		indicators.WithBandMultiplier(conf.Thresholds.BandMultiplier.InexactFloat64()),
	)
	evaluator := rules.NewEvaluator(conf.RuleThresholds(osc))

	m := metrics.New()
	s, err := scanner.New(fetcher, engine, evaluator,
		scanner.WithWorkers(conf.Scan.Workers),
		scanner.WithTimeout(conf.Scan.Timeout),
		scanner.WithLogger(logger.Named("scanner")),
		scanner.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	bot := newScanBot(conf, symbols, s, logger)
	bot.Metrics = m
	bot.closers = closers
	return bot, nil
}

func newScanBot(conf config.Config, symbols SymbolSource, s ReportScanner, logger *zap.Logger) *ScanBot {
	return &ScanBot{
		Config:   conf,
		Reports:  events.NewReportBroadcaster(4),
		universe: symbols,
		scanner:  s,
		logger:   logger,
	}
}

// DefaultRequest the scan described by the configuration.
func (b *ScanBot) DefaultRequest() domain.ScanRequest {
	return domain.ScanRequest{
		Index:   b.Config.Universe.Index,
		Tickers: b.Config.Universe.Tickers,
		Rules:   b.Config.Scan.Rules,
	}
}

// Scan resolves the request's symbols, runs one pass and publishes the report.
func (b *ScanBot) Scan(ctx context.Context, req domain.ScanRequest) (*domain.Report, error) {
	symbols, err := b.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	report, err := b.scanner.Scan(ctx, symbols, req.Rules)
	if err != nil {
		return nil, err
	}

	b.Reports.Publish(report)
	return report, nil
}

func (b *ScanBot) resolve(ctx context.Context, req domain.ScanRequest) ([]string, error) {
	if len(req.Tickers) > 0 {
		return req.Tickers, nil
	}
	if req.Index == "" || req.Index == universe.IndexCustom {
		return nil, errors.Wrap(domain.ErrConfiguration, "custom index needs at least one ticker")
	}

	symbols, err := b.universe.Symbols(ctx, req.Index)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		// an unreachable listing makes the whole pass impossible
		return nil, errors.Wrapf(domain.ErrFetchFailure, "failed to load %s constituents: %v", req.Index, err)
	}
	return symbols, nil
}

// Run scans the default request now and then every period until ctx is done.
// A zero period scans once and waits for ctx.
func (b *ScanBot) Run(ctx context.Context, every time.Duration) error {
	req := b.DefaultRequest()
	b.scanLogged(ctx, req)

	if every <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	b.logger.Info("Starting scan loop", zap.String("index", req.Index), zap.Duration("every", every))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context done, stopping scan loop")
			return ctx.Err()
		case <-ticker.C:
			b.scanLogged(ctx, req)
		}
	}
}

func (b *ScanBot) scanLogged(ctx context.Context, req domain.ScanRequest) {
	report, err := b.Scan(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Error("Scan failed", zap.String("index", req.Index), zap.Error(err))
		}
		return
	}
	b.logger.Info("Scan published", zap.String("id", report.ID.String()), zap.Int("matched", report.Matched()))
}

// Close releases external connections.
func (b *ScanBot) Close() {
	closeAll(b.closers, b.logger)
}

func closeAll(closers []io.Closer, logger *zap.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close", zap.Error(err))
		}
	}
}
