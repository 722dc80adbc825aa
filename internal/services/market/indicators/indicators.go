// Package indicators computes the derived series the setup rules are evaluated against.
// Moving averages and RSI come from the cinar/indicator library; the Bollinger-style band
// and the returns z-score are computed here over sample standard deviations.
package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

const (
	FastEMAPeriod    = 8
	SlowEMAPeriod    = 21
	BandPeriod       = 20
	VolumePeriod     = 10
	OscillatorPeriod = 14

	// DefaultBandMultiplier number of standard deviations above the band mean.
	DefaultBandMultiplier = 2.0

	// MinBars largest window plus one; the slow EMA is seeded by the SMA of its first 21 closes.
	MinBars = BandPeriod + 1
)

// Engine computes an IndicatorSet for a Series.
type Engine struct {
	oscillator     Oscillator
	bandMultiplier float64
}

// Option configures the Engine.
type Option func(*Engine)

// WithOscillator selects the momentum oscillator.
func WithOscillator(o Oscillator) Option {
	return func(e *Engine) {
		if o != nil {
			e.oscillator = o
		}
	}
}

// WithBandMultiplier sets the band width in standard deviations.
func WithBandMultiplier(k float64) Option {
	return func(e *Engine) {
		e.bandMultiplier = k
	}
}

// NewEngine creates an Engine using RSI(14) and a 2σ band unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		oscillator:     NewRSI(),
		bandMultiplier: DefaultBandMultiplier,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Oscillator returns the configured oscillator.
func (e *Engine) Oscillator() Oscillator {
	return e.oscillator
}

// BandMultiplier returns the configured band width.
func (e *Engine) BandMultiplier() float64 {
	return e.bandMultiplier
}

// Compute derives all indicator lines for the series.
// Series shorter than MinBars or failing validation yield domain.ErrInsufficientData.
func (e *Engine) Compute(series domain.Series) (*domain.IndicatorSet, error) {
	n := series.Len()
	if n < MinBars {
		return nil, errors.Wrapf(domain.ErrInsufficientData, "%s: need at least %d bars, got %d", series.Symbol, MinBars, n)
	}
	if err := series.Validate(); err != nil {
		return nil, errors.Wrapf(domain.ErrInsufficientData, "%s: %v", series.Symbol, err)
	}

	closes := series.Closes()

	emaFast, err := CalculateEMA(closes, FastEMAPeriod)
	if err != nil {
		return nil, errors.Wrap(err, "failed to calculate EMA8")
	}
	emaSlow, err := CalculateEMA(closes, SlowEMAPeriod)
	if err != nil {
		return nil, errors.Wrap(err, "failed to calculate EMA21")
	}
	volumeAvg, err := CalculateSMA(series.Volumes(), VolumePeriod)
	if err != nil {
		return nil, errors.Wrap(err, "failed to calculate volume average")
	}
	middle, upper, err := CalculateBand(closes, BandPeriod, e.bandMultiplier)
	if err != nil {
		return nil, errors.Wrap(err, "failed to calculate band")
	}
	osc, err := e.oscillator.Compute(closes)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to calculate %s", e.oscillator.Name())
	}

	return &domain.IndicatorSet{
		EMAFast:        domain.NewLine(emaFast, n),
		EMASlow:        domain.NewLine(emaSlow, n),
		BandMiddle:     domain.NewLine(middle, n),
		BandUpper:      domain.NewLine(upper, n),
		VolumeAvg:      domain.NewLine(volumeAvg, n),
		Oscillator:     domain.NewLine(osc, n),
		OscillatorName: e.oscillator.Name(),
		VWAP:           domain.NewLine(CalculateTypicalPrice(series.Highs(), series.Lows(), closes), n),
	}, nil
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
// The first value is the SMA of the first period closes.
func CalculateEMA(closes []float64, period int) ([]float64, error) {
	if len(closes) < period {
		return nil, errors.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes))), nil
}

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(values []float64, period int) ([]float64, error) {
	if len(values) < period {
		return nil, errors.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values))), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(closes []float64, period int) ([]float64, error) {
	if len(closes) < period+1 {
		return nil, errors.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes))), nil
}

// CalculateBand returns the rolling mean and the upper bound mean + k·σ,
// σ being the sample standard deviation of the window.
func CalculateBand(closes []float64, period int, k float64) (middle, upper []float64, err error) {
	means, stds, err := rollingMeanStd(closes, period)
	if err != nil {
		return nil, nil, err
	}

	upper = make([]float64, len(means))
	for i := range means {
		upper[i] = means[i] + k*stds[i]
	}
	return means, upper, nil
}

// CalculateTypicalPrice returns (high+low+close)/3 per bar.
func CalculateTypicalPrice(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	return out
}
