package indicators

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

const (
	OscillatorRSI    = "rsi"
	OscillatorZScore = "zscore"

	defaultRSIOversold    = 30.0
	defaultZScoreOversold = -1.5
)

// Oscillator momentum measure over a window of period-over-period returns.
// Only one oscillator is used per deployment.
type Oscillator interface {
	Name() string
	// Compute returns values aligned to the tail of closes.
	Compute(closes []float64) ([]float64, error)
	// OversoldLevel is the threshold used by the oversold rule when none is configured.
	OversoldLevel() float64
}

// NewOscillator returns the oscillator registered under name.
func NewOscillator(name string) (Oscillator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", OscillatorRSI:
		return NewRSI(), nil
	case OscillatorZScore:
		return NewReturnsZScore(), nil
	default:
		return nil, errors.Wrapf(domain.ErrConfiguration, "unknown oscillator %q", name)
	}
}

// RSI classical bounded 0-100 relative strength index with Wilder smoothing.
type RSI struct {
	period int
}

// NewRSI creates a 14-period RSI.
func NewRSI() *RSI {
	return &RSI{period: OscillatorPeriod}
}

func (r *RSI) Name() string           { return OscillatorRSI }
func (r *RSI) OversoldLevel() float64 { return defaultRSIOversold }
func (r *RSI) Compute(closes []float64) ([]float64, error) {
	return CalculateRSI(closes, r.period)
}

// ReturnsZScore mean of the last 14 returns divided by their sample standard deviation.
// Unbounded; a flat window is undefined.
type ReturnsZScore struct {
	period int
}

// NewReturnsZScore creates a 14-period returns z-score.
func NewReturnsZScore() *ReturnsZScore {
	return &ReturnsZScore{period: OscillatorPeriod}
}

func (z *ReturnsZScore) Name() string           { return OscillatorZScore }
func (z *ReturnsZScore) OversoldLevel() float64 { return defaultZScoreOversold }
func (z *ReturnsZScore) Compute(closes []float64) ([]float64, error) {
	if len(closes) < z.period+1 {
		return nil, errors.Errorf("not enough data points for z-score: need %d, got %d", z.period+1, len(closes))
	}

	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns[i-1] = closes[i]/closes[i-1] - 1
	}

	means, stds, err := rollingMeanStd(returns, z.period)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(means))
	for i := range means {
		if stds[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = means[i] / stds[i]
	}
	return out, nil
}
