package collector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/market/providers"
)

// mockProvider returns the configured bars, failing the first failures calls with err.
type mockProvider struct {
	bars     []domain.Bar
	err      error
	failures int32
	delay    time.Duration
	calls    atomic.Int32
}

func (m *mockProvider) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	n := m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil && (m.failures == 0 || n <= m.failures) {
		return nil, m.err
	}
	return m.bars, nil
}

func newFastFetcher(t *testing.T, provider providers.KlineProvider, retries int, opts ...Option) *Fetcher {
	f, err := NewFetcher(provider, "1d", 10, append([]Option{WithRetries(retries)}, opts...)...)
	require.NoError(t, err)
	f.backoff = time.Millisecond
	return f
}

func bar(day int, closePrice float64) domain.Bar {
	c := decimal.NewFromFloat(closePrice)
	return domain.Bar{
		OpenTime: time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
		Open:     c,
		High:     c.Add(decimal.NewFromInt(1)),
		Low:      c.Sub(decimal.NewFromInt(1)),
		Close:    c,
		Volume:   decimal.NewFromInt(100),
	}
}

func TestNewFetcher_Validation(t *testing.T) {
	_, err := NewFetcher(nil, "1d", 10)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = NewFetcher(&mockProvider{}, "2d", 10)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = NewFetcher(&mockProvider{}, "1d", 0)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestFetcher_Fetch_SortsAndDedupes(t *testing.T) {
	provider := &mockProvider{bars: []domain.Bar{bar(3, 12), bar(1, 10), bar(2, 11), bar(3, 13)}}

	f, err := NewFetcher(provider, "1d", 10)
	require.NoError(t, err)

	series, err := f.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Equal(t, 3, series.Len())
	assert.Equal(t, "AAPL", series.Symbol)
	assert.Equal(t, "1d", series.Interval)
	assert.Equal(t, "10", series.Bars[0].Close.String())
	assert.Equal(t, "11", series.Bars[1].Close.String())
	assert.Equal(t, "13", series.Bars[2].Close.String(), "later duplicate wins")
}

func TestFetcher_Fetch_RetriesTransientErrors(t *testing.T) {
	provider := &mockProvider{bars: []domain.Bar{bar(1, 10)}, err: errors.New("connection reset"), failures: 1}

	f := newFastFetcher(t, provider, 2)

	_, err := f.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestFetcher_Fetch_LogsRetries(t *testing.T) {
	provider := &mockProvider{bars: []domain.Bar{bar(1, 10)}, err: errors.New("connection reset"), failures: 2}
	core, logs := observer.New(zap.WarnLevel)

	f := newFastFetcher(t, provider, 3, WithLogger(zap.New(core)))

	_, err := f.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	entries := logs.FilterMessage("retrying klines fetch").All()
	require.Len(t, entries, 2)
	for i, e := range entries {
		fields := e.ContextMap()
		assert.Equal(t, "AAPL", fields["symbol"])
		assert.Equal(t, int64(i+1), fields["attempt"])
		assert.Equal(t, "connection reset", fields["error"])
	}
}

func TestFetcher_Fetch_UnknownSymbolNotRetried(t *testing.T) {
	provider := &mockProvider{err: errors.Wrap(providers.ErrUnknownSymbol, "ZZZZ")}

	f := newFastFetcher(t, provider, 3)

	_, err := f.Fetch(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailure))
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestFetcher_Fetch_Timeout(t *testing.T) {
	provider := &mockProvider{bars: []domain.Bar{bar(1, 10)}, delay: time.Second}

	f, err := NewFetcher(provider, "1d", 10, WithTimeout(20*time.Millisecond), WithRetries(0))
	require.NoError(t, err)

	start := time.Now()
	_, err = f.Fetch(context.Background(), "SLOW")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailure))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFetcher_Fetch_BadData(t *testing.T) {
	f, err := NewFetcher(&mockProvider{}, "1d", 10)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "EMPTY")
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	broken := bar(2, 10)
	broken.High = decimal.NewFromInt(5)
	f, err = NewFetcher(&mockProvider{bars: []domain.Bar{bar(1, 10), broken}}, "1d", 10)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "BROKEN")
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}
