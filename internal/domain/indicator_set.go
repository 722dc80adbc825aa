package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// TrendDirection qualitative direction of price action.
type TrendDirection string

const (
	TrendDirectionBullish TrendDirection = "bullish"
	TrendDirectionBearish TrendDirection = "bearish"
	TrendDirectionNeutral TrendDirection = "neutral"
)

// Title returns a human-readable representation.
func (t TrendDirection) Title() string {
	switch t {
	case TrendDirectionBullish:
		return "Bullish"
	case TrendDirectionBearish:
		return "Bearish"
	default:
		return "Neutral"
	}
}

// Line derived series aligned to the bars of its Series.
// Values[0] belongs to bar Offset; earlier bars have no value.
type Line struct {
	Values []float64
	Offset int
}

// NewLine aligns computed values to the tail of a series of total bars.
func NewLine(values []float64, total int) Line {
	offset := total - len(values)
	if offset < 0 {
		values = values[-offset:]
		offset = 0
	}
	return Line{Values: values, Offset: offset}
}

// Len returns the number of bars the line is aligned to.
func (l Line) Len() int {
	return l.Offset + len(l.Values)
}

// At returns the value for bar i. ok is false while the window is not full
// and for non-finite values.
func (l Line) At(i int) (float64, bool) {
	idx := i - l.Offset
	if idx < 0 || idx >= len(l.Values) {
		return 0, false
	}
	v := l.Values[idx]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Last returns the value back bars from the end of the line.
func (l Line) Last(back int) (float64, bool) {
	return l.At(l.Len() - 1 - back)
}

// Points returns one entry per bar, nil where undefined.
func (l Line) Points() []*float64 {
	out := make([]*float64, l.Len())
	for i := range out {
		if v, ok := l.At(i); ok {
			val := v
			out[i] = &val
		}
	}
	return out
}

// IndicatorSet derived values for one Series.
type IndicatorSet struct {
	// EMAFast is the 8-period exponential moving average of close.
	EMAFast Line
	// EMASlow is the 21-period exponential moving average of close.
	EMASlow Line
	// BandMiddle is the 20-period rolling mean of close.
	BandMiddle Line
	// BandUpper is BandMiddle plus the band multiplier times the rolling standard deviation.
	BandUpper Line
	// VolumeAvg is the 10-period rolling mean of volume.
	VolumeAvg Line
	// Oscillator is the momentum oscillator named by OscillatorName.
	Oscillator     Line
	OscillatorName string
	// VWAP is the typical-price proxy (high+low+close)/3.
	VWAP Line
}

// Summary headline values for the most recent bar, rounded to 2 decimal places.
// Undefined values are nil.
type Summary struct {
	Close      decimal.Decimal
	EMAFast    *decimal.Decimal
	EMASlow    *decimal.Decimal
	BandUpper  *decimal.Decimal
	VWAP       *decimal.Decimal
	VolumeAvg  *decimal.Decimal
	Oscillator *decimal.Decimal
	Trend      TrendDirection
}

// NewSummary builds the last-bar summary of a series and its indicators.
func NewSummary(series Series, set *IndicatorSet) Summary {
	bar, ok := series.Last(0)
	if !ok || set == nil {
		return Summary{Trend: TrendDirectionNeutral}
	}

	s := Summary{
		Close:      bar.Close.Round(2),
		EMAFast:    lastRounded(set.EMAFast),
		EMASlow:    lastRounded(set.EMASlow),
		BandUpper:  lastRounded(set.BandUpper),
		VWAP:       lastRounded(set.VWAP),
		VolumeAvg:  lastRounded(set.VolumeAvg),
		Oscillator: lastRounded(set.Oscillator),
	}
	s.Trend = determineTrendDirection(bar.Close, s.EMAFast, s.EMASlow)

	return s
}

func lastRounded(l Line) *decimal.Decimal {
	v, ok := l.Last(0)
	if !ok {
		return nil
	}
	d := decimal.NewFromFloat(v).Round(2)
	return &d
}

func determineTrendDirection(price decimal.Decimal, fast, slow *decimal.Decimal) TrendDirection {
	if fast == nil || slow == nil {
		return TrendDirectionNeutral
	}
	if price.GreaterThan(*fast) && fast.GreaterThan(*slow) {
		return TrendDirectionBullish
	} else if price.LessThan(*fast) && fast.LessThan(*slow) {
		return TrendDirectionBearish
	}
	return TrendDirectionNeutral
}
