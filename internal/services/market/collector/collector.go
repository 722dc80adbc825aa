// Package collector turns raw provider klines into validated bar series.
package collector

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/market/providers"
	"github.com/vadiminshakov/breakscan/pkg/retrier"
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultRetries      = 2
	defaultBackoff      = 500 * time.Millisecond
	maxBackoff          = 5 * time.Second
)

// Fetcher fetches one symbol's history from a KlineProvider with a timeout and retries.
type Fetcher struct {
	provider providers.KlineProvider
	interval string
	limit    int
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	logger   *zap.Logger
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds a whole fetch, retries included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRetries sets how many times a failed request is repeated.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a Fetcher requesting limit bars of interval.
func NewFetcher(provider providers.KlineProvider, interval string, limit int, opts ...Option) (*Fetcher, error) {
	if provider == nil {
		return nil, errors.Wrap(domain.ErrConfiguration, "kline provider is nil")
	}
	if !providers.ValidInterval(interval) {
		return nil, errors.Wrapf(domain.ErrConfiguration, "unsupported interval %q", interval)
	}
	if limit <= 0 {
		return nil, errors.Wrapf(domain.ErrConfiguration, "lookback must be > 0, got %d", limit)
	}

	f := &Fetcher{
		provider: provider,
		interval: interval,
		limit:    limit,
		timeout:  defaultFetchTimeout,
		retries:  defaultRetries,
		backoff:  defaultBackoff,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// retrierFor builds the retry policy of one fetch. Unknown symbols are never retried.
func (f *Fetcher) retrierFor(symbol string) *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(f.retries),
		retrier.WithInitialInterval(f.backoff),
		retrier.WithMaxInterval(maxBackoff),
		retrier.WithRetryIf(func(err error) bool {
			return !errors.Is(err, providers.ErrUnknownSymbol)
		}),
		retrier.WithOnRetry(func(attempt int, err error) {
			f.logger.Warn("retrying klines fetch",
				zap.String("symbol", symbol),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}),
	)
}

// Interval returns the bar interval requested from the provider.
func (f *Fetcher) Interval() string {
	return f.interval
}

// Fetch returns the symbol's series sorted by time with duplicate timestamps removed.
// Provider and timeout errors are wrapped as domain.ErrFetchFailure; an empty or malformed
// history is domain.ErrInsufficientData.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (domain.Series, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()
	bars, err := retrier.DoWithData(f.retrierFor(symbol), ctx, func(ctx context.Context) ([]domain.Bar, error) {
		return f.provider.GetKlines(ctx, symbol, f.interval, f.limit)
	})
	if err != nil {
		return domain.Series{}, errors.Wrapf(domain.ErrFetchFailure, "%s: %v", symbol, err)
	}

	f.logger.Debug("klines fetched",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Duration("took", time.Since(started)))

	series := domain.Series{
		Symbol:   symbol,
		Interval: f.interval,
		Bars:     normalize(bars),
	}
	if series.Len() == 0 {
		return series, errors.Wrapf(domain.ErrInsufficientData, "%s: no bars returned", symbol)
	}
	if err := series.Validate(); err != nil {
		return series, errors.Wrapf(domain.ErrInsufficientData, "%s: %v", symbol, err)
	}

	return series, nil
}

// normalize sorts bars ascending; for duplicate timestamps the bar returned last wins.
func normalize(bars []domain.Bar) []domain.Bar {
	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTime.Before(sorted[j].OpenTime)
	})

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].OpenTime.Equal(b.OpenTime) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
