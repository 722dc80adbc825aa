package domain

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(ts time.Time, o, h, l, c, v float64) Bar {
	return Bar{
		OpenTime: ts,
		Open:     decimal.NewFromFloat(o),
		High:     decimal.NewFromFloat(h),
		Low:      decimal.NewFromFloat(l),
		Close:    decimal.NewFromFloat(c),
		Volume:   decimal.NewFromFloat(v),
	}
}

func TestSeries_Validate(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		bars      []Bar
		shouldErr bool
	}{
		{
			name:      "valid ascending",
			bars:      []Bar{bar(t0, 10, 11, 9, 10, 100), bar(t0.Add(24*time.Hour), 10, 12, 9, 11, 100)},
			shouldErr: false,
		},
		{
			name:      "duplicate timestamp",
			bars:      []Bar{bar(t0, 10, 11, 9, 10, 100), bar(t0, 10, 12, 9, 11, 100)},
			shouldErr: true,
		},
		{
			name:      "descending",
			bars:      []Bar{bar(t0.Add(time.Hour), 10, 11, 9, 10, 100), bar(t0, 10, 12, 9, 11, 100)},
			shouldErr: true,
		},
		{
			name:      "missing close",
			bars:      []Bar{bar(t0, 10, 11, 9, 0, 100)},
			shouldErr: true,
		},
		{
			name:      "high below low",
			bars:      []Bar{bar(t0, 10, 8, 9, 10, 100)},
			shouldErr: true,
		},
		{
			name:      "negative volume",
			bars:      []Bar{bar(t0, 10, 11, 9, 10, -1)},
			shouldErr: true,
		},
		{
			name:      "zero timestamp",
			bars:      []Bar{bar(time.Time{}, 10, 11, 9, 10, 1)},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Series{Symbol: "TEST", Bars: tt.bars}.Validate()
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSeries_Last(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := Series{Bars: []Bar{bar(t0, 1, 1, 1, 1, 1), bar(t0.Add(time.Hour), 2, 2, 2, 2, 2)}}

	b, ok := s.Last(0)
	require.True(t, ok)
	assert.True(t, b.Close.Equal(decimal.NewFromInt(2)))

	b, ok = s.Last(1)
	require.True(t, ok)
	assert.True(t, b.Close.Equal(decimal.NewFromInt(1)))

	_, ok = s.Last(2)
	assert.False(t, ok)
	_, ok = s.Last(-1)
	assert.False(t, ok)
}

func TestBar_TypicalPrice(t *testing.T) {
	b := bar(time.Now(), 10, 12, 6, 9, 1)
	assert.True(t, b.TypicalPrice().Equal(decimal.NewFromInt(9)))
}

func TestLine_At(t *testing.T) {
	l := NewLine([]float64{1, 2, math.NaN(), math.Inf(1)}, 6)
	assert.Equal(t, 2, l.Offset)
	assert.Equal(t, 6, l.Len())

	_, ok := l.At(0)
	assert.False(t, ok, "before the window is full the value is undefined")
	_, ok = l.At(1)
	assert.False(t, ok)

	v, ok := l.At(2)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = l.Last(2)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = l.Last(1)
	assert.False(t, ok, "NaN is undefined")
	_, ok = l.Last(0)
	assert.False(t, ok, "Inf is undefined")
	_, ok = l.At(6)
	assert.False(t, ok)

	points := l.Points()
	require.Len(t, points, 6)
	assert.Nil(t, points[0])
	require.NotNil(t, points[3])
	assert.Equal(t, 2.0, *points[3])
	assert.Nil(t, points[5])
}

func TestNewLine_LongerThanSeries(t *testing.T) {
	l := NewLine([]float64{1, 2, 3}, 2)
	assert.Equal(t, 0, l.Offset)
	assert.Equal(t, []float64{2, 3}, l.Values)
}

func TestNewSummary(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	series := Series{Bars: []Bar{bar(t0, 10, 11, 9, 10.456, 100)}}
	set := &IndicatorSet{
		EMAFast:   NewLine([]float64{10.123}, 1),
		EMASlow:   NewLine([]float64{9.876}, 1),
		BandUpper: NewLine(nil, 1),
	}

	s := NewSummary(series, set)
	assert.Equal(t, "10.46", s.Close.String())
	require.NotNil(t, s.EMAFast)
	assert.Equal(t, "10.12", s.EMAFast.String())
	require.NotNil(t, s.EMASlow)
	assert.Equal(t, "9.88", s.EMASlow.String())
	assert.Nil(t, s.BandUpper)
	assert.Equal(t, TrendDirectionBullish, s.Trend)
}

func TestParseRuleNames(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []RuleName
		isConfig bool
	}{
		{
			name:     "single",
			input:    []string{"breakout"},
			expected: []RuleName{RuleBreakout},
		},
		{
			name:     "comma separated with spaces and dashes",
			input:    []string{" Breakout , inside-bar", "volume_spike"},
			expected: []RuleName{RuleBreakout, RuleInsideBar, RuleVolumeSpike},
		},
		{
			name:     "duplicates dropped",
			input:    []string{"trend", "trend"},
			expected: []RuleName{RuleTrend},
		},
		{
			name:     "empty",
			input:    []string{" , "},
			isConfig: true,
		},
		{
			name:     "unknown",
			input:    []string{"moon"},
			isConfig: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseRuleNames(tt.input)
			if tt.isConfig {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rules)
		})
	}
}

func TestParsePair(t *testing.T) {
	p, ok := ParsePair("btc_usdt")
	assert.True(t, ok)
	assert.Equal(t, Pair{From: "BTC", To: "USDT"}, p)
	assert.Equal(t, "BTCUSDT", p.Symbol())
	assert.Equal(t, "BTC_USDT", p.String())

	p, ok = ParsePair("ETH/USDC")
	assert.True(t, ok)
	assert.Equal(t, "ETHUSDC", p.Symbol())

	p, ok = ParsePair("AAPL")
	assert.False(t, ok)
	assert.Equal(t, "AAPL", p.String())
}
