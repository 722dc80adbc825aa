package internal

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/breakscan/config"
	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/market/providers"
	"github.com/vadiminshakov/breakscan/internal/services/universe"
)

type mockUniverse struct {
	symbols map[string][]string
	err     error
	calls   int
}

func (m *mockUniverse) Symbols(_ context.Context, index string) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.symbols[index], nil
}

type mockScanner struct {
	gotSymbols []string
	gotRules   []domain.RuleName
	err        error
	scans      int
}

func (m *mockScanner) Scan(_ context.Context, symbols []string, ruleNames []domain.RuleName) (*domain.Report, error) {
	m.scans++
	m.gotSymbols = symbols
	m.gotRules = ruleNames
	if m.err != nil {
		return nil, m.err
	}
	r := domain.NewReport("1d", ruleNames)
	r.Scanned = len(symbols)
	r.FinishedAt = time.Now()
	return r, nil
}

func testConfig() config.Config {
	var conf config.Config
	conf.Universe.Index = universe.IndexSP500
	conf.Scan.Rules = []domain.RuleName{domain.RuleBreakout}
	return conf
}

func TestScanBot_Scan_ResolvesIndexAndPublishes(t *testing.T) {
	u := &mockUniverse{symbols: map[string][]string{universe.IndexSP500: {"AAPL", "MSFT"}}}
	s := &mockScanner{}
	bot := newScanBot(testConfig(), u, s, zap.NewNop())

	sub := bot.Reports.Subscribe()
	defer bot.Reports.Unsubscribe(sub)

	report, err := bot.Scan(context.Background(), bot.DefaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, s.gotSymbols)
	assert.Equal(t, []domain.RuleName{domain.RuleBreakout}, s.gotRules)
	assert.Same(t, report, bot.Reports.Latest())

	select {
	case got := <-sub:
		assert.Equal(t, report.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("report was not broadcast")
	}
}

func TestScanBot_Scan_CustomTickersSkipUniverse(t *testing.T) {
	u := &mockUniverse{}
	s := &mockScanner{}
	bot := newScanBot(testConfig(), u, s, zap.NewNop())

	_, err := bot.Scan(context.Background(), domain.ScanRequest{
		Index:   universe.IndexCustom,
		Tickers: []string{"SPY", "QQQ"},
		Rules:   []domain.RuleName{domain.RuleTrend},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, u.calls)
	assert.Equal(t, []string{"SPY", "QQQ"}, s.gotSymbols)
}

func TestScanBot_Scan_Errors(t *testing.T) {
	t.Run("custom without tickers", func(t *testing.T) {
		s := &mockScanner{}
		bot := newScanBot(testConfig(), &mockUniverse{}, s, zap.NewNop())

		_, err := bot.Scan(context.Background(), domain.ScanRequest{Index: universe.IndexCustom, Rules: []domain.RuleName{domain.RuleBreakout}})
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
		assert.Equal(t, 0, s.scans)
	})

	t.Run("listing unreachable", func(t *testing.T) {
		s := &mockScanner{}
		bot := newScanBot(testConfig(), &mockUniverse{err: errors.New("connection refused")}, s, zap.NewNop())

		_, err := bot.Scan(context.Background(), bot.DefaultRequest())
		assert.True(t, errors.Is(err, domain.ErrFetchFailure))
		assert.Equal(t, 0, s.scans)
	})

	t.Run("scanner rejects request", func(t *testing.T) {
		s := &mockScanner{err: errors.Wrap(domain.ErrConfiguration, "no rules selected")}
		bot := newScanBot(testConfig(), &mockUniverse{symbols: map[string][]string{universe.IndexSP500: {"AAPL"}}}, s, zap.NewNop())

		_, err := bot.Scan(context.Background(), bot.DefaultRequest())
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
		assert.Nil(t, bot.Reports.Latest())
	})
}

func TestScanBot_Run_StopsOnContext(t *testing.T) {
	u := &mockUniverse{symbols: map[string][]string{universe.IndexSP500: {"AAPL"}}}
	s := &mockScanner{}
	bot := newScanBot(testConfig(), u, s, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	err := bot.Run(ctx, 20*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.GreaterOrEqual(t, s.scans, 2)
	assert.NotNil(t, bot.Reports.Latest())
}

func TestNewKlineProvider(t *testing.T) {
	for _, platform := range []string{providers.PlatformYahoo, providers.PlatformBinance, providers.PlatformBybit} {
		t.Run(platform, func(t *testing.T) {
			p, err := newKlineProvider(context.Background(), config.MarketConfig{Platform: platform})
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}

	_, err := newKlineProvider(context.Background(), config.MarketConfig{Platform: "kraken"})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewScanBot_ClosesRedisOnFailure(t *testing.T) {
	srv := miniredis.RunT(t)

	conf := testConfig()
	conf.Universe.RedisAddr = srv.Addr()
	conf.Market.Platform = "kraken"

	bot, err := NewScanBot(context.Background(), conf, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Nil(t, bot)

	assert.GreaterOrEqual(t, srv.TotalConnectionCount(), 1, "redis was connected before the failing step")
	assert.Eventually(t, func() bool { return srv.CurrentConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type mockCloser struct {
	err    error
	closed int
}

func (m *mockCloser) Close() error {
	m.closed++
	return m.err
}

func TestCloseAll_ContinuesPastErrors(t *testing.T) {
	first := &mockCloser{err: errors.New("broken pipe")}
	second := &mockCloser{}

	closeAll([]io.Closer{first, second}, zap.NewNop())

	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, second.closed)
}
