// Package scanner runs the indicator engine and the setup rules over a list of symbols.
package scanner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/metrics"
	"github.com/vadiminshakov/breakscan/internal/services/market/indicators"
	"github.com/vadiminshakov/breakscan/internal/services/market/rules"
)

const (
	DefaultWorkers = 8
	DefaultTimeout = 5 * time.Minute
)

// SeriesFetcher returns one symbol's validated bar history.
type SeriesFetcher interface {
	Fetch(ctx context.Context, symbol string) (domain.Series, error)
	Interval() string
}

// Scanner evaluates a rule selection across symbols with a bounded worker pool.
// It holds no state between passes.
type Scanner struct {
	fetcher   SeriesFetcher
	engine    *indicators.Engine
	evaluator *rules.Evaluator
	workers   int
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures the Scanner.
type Option func(*Scanner)

// WithWorkers bounds how many symbols are processed concurrently.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTimeout bounds a whole pass. Symbols not fetched in time are reported as fetch failures.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithMetrics publishes pass statistics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// New creates a Scanner.
func New(fetcher SeriesFetcher, engine *indicators.Engine, evaluator *rules.Evaluator, opts ...Option) (*Scanner, error) {
	if fetcher == nil || engine == nil || evaluator == nil {
		return nil, errors.Wrap(domain.ErrConfiguration, "scanner needs a fetcher, an engine and an evaluator")
	}

	s := &Scanner{
		fetcher:   fetcher,
		engine:    engine,
		evaluator: evaluator,
		workers:   DefaultWorkers,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// outcome of one symbol; exactly one field is set when the symbol is reportable.
type outcome struct {
	result      *domain.ScanResult
	unavailable *domain.Unavailable
}

// Scan evaluates ruleNames for every symbol. Results and unavailable symbols keep input order.
// Configuration problems are returned before anything is fetched; per-symbol failures never abort the pass.
func (s *Scanner) Scan(ctx context.Context, symbols []string, ruleNames []domain.RuleName) (*domain.Report, error) {
	if len(symbols) == 0 {
		return nil, errors.Wrap(domain.ErrConfiguration, "no symbols to scan")
	}
	if len(ruleNames) == 0 {
		return nil, errors.Wrap(domain.ErrConfiguration, "no rules selected")
	}
	for _, r := range ruleNames {
		if !r.Valid() {
			return nil, errors.Wrapf(domain.ErrConfiguration, "unknown rule %q", r)
		}
	}

	report := domain.NewReport(s.fetcher.Interval(), ruleNames)
	report.Scanned = len(symbols)

	s.logger.Info("scan started",
		zap.String("id", report.ID.String()),
		zap.Int("symbols", len(symbols)),
		zap.Any("rules", ruleNames),
		zap.Int("workers", s.workers))

	passCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcomes := make([]outcome, len(symbols))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, symbol := range symbols {
		g.Go(func() error {
			outcomes[i] = s.scanSymbol(passCtx, symbol, ruleNames)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "scan cancelled")
	}

	for _, o := range outcomes {
		switch {
		case o.result != nil:
			report.Results = append(report.Results, *o.result)
		case o.unavailable != nil:
			report.Unavailable = append(report.Unavailable, *o.unavailable)
		}
	}
	report.FinishedAt = time.Now()

	s.metrics.ObserveScan(report.StartedAt, report.FinishedAt, report.Matched())
	s.logger.Info("scan finished",
		zap.String("id", report.ID.String()),
		zap.Int("matched", report.Matched()),
		zap.Int("unavailable", len(report.Unavailable)),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))

	return report, nil
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string, ruleNames []domain.RuleName) outcome {
	logger := s.logger.With(zap.String("symbol", symbol))

	started := time.Now()
	series, err := s.fetcher.Fetch(ctx, symbol)
	s.metrics.ObserveFetch(time.Since(started))
	if err != nil {
		return s.unavailable(logger, symbol, err)
	}

	set, err := s.engine.Compute(series)
	if err != nil {
		return s.unavailable(logger, symbol, err)
	}

	triggered := s.evaluator.Evaluate(series, set, ruleNames)
	if len(triggered) == 0 {
		s.metrics.ObserveSymbol("no_match")
		return outcome{}
	}

	for _, r := range triggered {
		s.metrics.ObserveSignal(string(r))
	}
	s.metrics.ObserveSymbol("matched")
	logger.Info("setup detected", zap.Any("rules", triggered))

	return outcome{result: &domain.ScanResult{
		Symbol:     symbol,
		Rules:      triggered,
		Series:     series,
		Indicators: set,
	}}
}

func (s *Scanner) unavailable(logger *zap.Logger, symbol string, err error) outcome {
	reason := domain.UnavailableFetchFailure
	if errors.Is(err, domain.ErrInsufficientData) {
		reason = domain.UnavailableInsufficientData
	}

	s.metrics.ObserveSymbol(string(reason))
	logger.Warn("symbol unavailable", zap.String("reason", string(reason)), zap.Error(err))

	return outcome{unavailable: &domain.Unavailable{
		Symbol: symbol,
		Reason: reason,
		Detail: err.Error(),
	}}
}
