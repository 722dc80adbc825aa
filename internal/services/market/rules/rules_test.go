package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/market/indicators"
)

type barSpec struct {
	high, low, close, volume float64
}

func buildSeries(specs []barSpec) domain.Series {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(specs))
	for i, s := range specs {
		bars[i] = domain.Bar{
			OpenTime: t0.AddDate(0, 0, i),
			Open:     decimal.NewFromFloat(s.close),
			High:     decimal.NewFromFloat(s.high),
			Low:      decimal.NewFromFloat(s.low),
			Close:    decimal.NewFromFloat(s.close),
			Volume:   decimal.NewFromFloat(s.volume),
		}
	}
	return domain.Series{Symbol: "TEST", Interval: "1d", Bars: bars}
}

// breakoutSeries 29 bars of a gentle uptrend followed by a sharp jump on the last bar.
func breakoutSeries() domain.Series {
	specs := make([]barSpec, 30)
	for i := 0; i < 29; i++ {
		c := 100 + 0.1*float64(i)
		specs[i] = barSpec{high: c + 0.2, low: c - 1, close: c, volume: 1_000_000}
	}
	specs[29] = barSpec{high: 110.2, low: 109, close: 110, volume: 1_000_000}
	return buildSeries(specs)
}

func flatSpecs(n int) []barSpec {
	specs := make([]barSpec, n)
	for i := range specs {
		specs[i] = barSpec{high: 101, low: 99, close: 100, volume: 1000}
	}
	return specs
}

func compute(t *testing.T, series domain.Series, opts ...indicators.Option) *domain.IndicatorSet {
	t.Helper()
	set, err := indicators.NewEngine(opts...).Compute(series)
	require.NoError(t, err)
	return set
}

func TestEvaluate_BreakoutScenario(t *testing.T) {
	series := breakoutSeries()
	set := compute(t, series)

	ev := NewEvaluator(DefaultThresholds(30))
	triggered := ev.Evaluate(series, set, []domain.RuleName{
		domain.RuleBreakout,
		domain.RuleOversold,
		domain.RuleInsideBar,
		domain.RuleVolumeSpike,
	})
	assert.Equal(t, []domain.RuleName{domain.RuleBreakout}, triggered)

	withVWAP := NewEvaluator(Thresholds{VolumeSpikeK: 1.5, OversoldLevel: 30, RequireVWAP: true})
	assert.Equal(t, []domain.RuleName{domain.RuleBreakout}, withVWAP.Evaluate(series, set, []domain.RuleName{domain.RuleBreakout}))
}

func TestEvaluate_BreakoutMonotonicInMultiplier(t *testing.T) {
	series := breakoutSeries()
	ev := NewEvaluator(DefaultThresholds(30))

	set := compute(t, series, indicators.WithBandMultiplier(2))
	require.Equal(t, []domain.RuleName{domain.RuleBreakout}, ev.Evaluate(series, set, []domain.RuleName{domain.RuleBreakout}))

	for _, m := range []float64{1.5, 1, 0.5, 0} {
		set := compute(t, series, indicators.WithBandMultiplier(m))
		assert.Equal(t, []domain.RuleName{domain.RuleBreakout}, ev.Evaluate(series, set, []domain.RuleName{domain.RuleBreakout}), "multiplier %v", m)
	}
}

func TestEvaluate_BreakoutNeedsTrend(t *testing.T) {
	// downtrend with a final jump: close clears the band but EMA8 stays under EMA21
	specs := make([]barSpec, 30)
	for i := 0; i < 29; i++ {
		c := 130 - float64(i)
		specs[i] = barSpec{high: c + 0.5, low: c - 0.5, close: c, volume: 1000}
	}
	specs[29] = barSpec{high: 141, low: 139, close: 140, volume: 1000}
	series := buildSeries(specs)
	set := compute(t, series)

	upper, ok := set.BandUpper.Last(0)
	require.True(t, ok)
	require.Greater(t, 140.0, upper)

	assert.Empty(t, NewEvaluator(DefaultThresholds(30)).Evaluate(series, set, []domain.RuleName{domain.RuleBreakout}))
}

func TestEvaluate_InsideBarScenario(t *testing.T) {
	specs := flatSpecs(25)
	specs[23] = barSpec{high: 105, low: 95, close: 100, volume: 1000}
	specs[24] = barSpec{high: 104, low: 96, close: 100, volume: 1000}

	ev := NewEvaluator(DefaultThresholds(30))
	series := buildSeries(specs)
	assert.Equal(t, []domain.RuleName{domain.RuleInsideBar}, ev.Evaluate(series, compute(t, series), []domain.RuleName{domain.RuleInsideBar}))

	specs[24].high = 105
	series = buildSeries(specs)
	assert.Empty(t, ev.Evaluate(series, compute(t, series), []domain.RuleName{domain.RuleInsideBar}), "equal high is not inside")

	specs[24] = barSpec{high: 104, low: 95, close: 100, volume: 1000}
	series = buildSeries(specs)
	assert.Empty(t, ev.Evaluate(series, compute(t, series), []domain.RuleName{domain.RuleInsideBar}), "equal low is not inside")
}

func TestEvaluate_VolumeSpikeScenario(t *testing.T) {
	const base = 1000.0

	tests := []struct {
		name      string
		ratio     float64
		triggered bool
	}{
		{name: "1.4x average", ratio: 1.4, triggered: false},
		{name: "1.6x average", ratio: 1.6, triggered: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := flatSpecs(25)
			// the 10-bar average includes the last bar: x = r*(9*base+x)/10
			specs[24].volume = 9 * base * tt.ratio / (10 - tt.ratio)
			series := buildSeries(specs)
			set := compute(t, series)

			avg, ok := set.VolumeAvg.Last(0)
			require.True(t, ok)
			assert.InDelta(t, tt.ratio, specs[24].volume/avg, 1e-6)

			ev := NewEvaluator(Thresholds{VolumeSpikeK: 1.5, OversoldLevel: 30})
			got := ev.Evaluate(series, set, []domain.RuleName{domain.RuleVolumeSpike})
			if tt.triggered {
				assert.Equal(t, []domain.RuleName{domain.RuleVolumeSpike}, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestEvaluate_Oversold(t *testing.T) {
	specs := make([]barSpec, 26)
	for i := 0; i < 25; i++ {
		c := 100 - float64(i)
		specs[i] = barSpec{high: c + 0.5, low: c - 0.5, close: c, volume: 1000}
	}

	ev := NewEvaluator(DefaultThresholds(30))

	specs[25] = barSpec{high: 77, low: 76, close: 76.5, volume: 1000}
	series := buildSeries(specs)
	assert.Equal(t, []domain.RuleName{domain.RuleOversold}, ev.Evaluate(series, compute(t, series), []domain.RuleName{domain.RuleOversold}))

	specs[25] = barSpec{high: 76, low: 75, close: 75.5, volume: 1000}
	series = buildSeries(specs)
	assert.Empty(t, ev.Evaluate(series, compute(t, series), []domain.RuleName{domain.RuleOversold}), "no uptick")
}

func TestEvaluate_Trend(t *testing.T) {
	ev := NewEvaluator(DefaultThresholds(30))

	rising := make([]barSpec, 30)
	falling := make([]barSpec, 30)
	for i := range rising {
		up := 50 + float64(i)
		down := 80 - float64(i)
		rising[i] = barSpec{high: up + 1, low: up - 1, close: up, volume: 1000}
		falling[i] = barSpec{high: down + 1, low: down - 1, close: down, volume: 1000}
	}

	series := buildSeries(rising)
	assert.Equal(t, []domain.RuleName{domain.RuleTrend}, ev.Evaluate(series, compute(t, series), []domain.RuleName{domain.RuleTrend}))

	series = buildSeries(falling)
	assert.Empty(t, ev.Evaluate(series, compute(t, series), []domain.RuleName{domain.RuleTrend}))
}

func TestEvaluate_UndefinedValuesNeverTrigger(t *testing.T) {
	series := breakoutSeries()
	n := series.Len()
	empty := &domain.IndicatorSet{
		EMAFast:    domain.NewLine(nil, n),
		EMASlow:    domain.NewLine(nil, n),
		BandMiddle: domain.NewLine(nil, n),
		BandUpper:  domain.NewLine(nil, n),
		VolumeAvg:  domain.NewLine(nil, n),
		Oscillator: domain.NewLine(nil, n),
		VWAP:       domain.NewLine(nil, n),
	}

	ev := NewEvaluator(DefaultThresholds(30))
	got := ev.Evaluate(series, empty, []domain.RuleName{
		domain.RuleTrend, domain.RuleOversold, domain.RuleVolumeSpike, domain.RuleBreakout,
	})
	assert.Empty(t, got)
	assert.Empty(t, ev.Evaluate(series, nil, domain.AllRules))
}

func TestEvaluate_EmptySelectionMatchesNothing(t *testing.T) {
	series := breakoutSeries()
	set := compute(t, series)

	ev := NewEvaluator(DefaultThresholds(30))
	assert.Empty(t, ev.Evaluate(series, set, nil))
	assert.Empty(t, ev.Evaluate(series, set, []domain.RuleName{}))
}
