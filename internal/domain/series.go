package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Bar single OHLCV observation.
type Bar struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// TypicalPrice returns (high+low+close)/3.
func (b Bar) TypicalPrice() decimal.Decimal {
	return b.High.Add(b.Low).Add(b.Close).Div(decimal.NewFromInt(3))
}

// Series ordered bars of one instrument at one sampling interval.
type Series struct {
	Symbol   string
	Interval string
	Bars     []Bar
}

// Len returns the number of bars.
func (s Series) Len() int {
	return len(s.Bars)
}

// Last returns the bar at offset back from the end (0 is the most recent).
func (s Series) Last(back int) (Bar, bool) {
	idx := len(s.Bars) - 1 - back
	if back < 0 || idx < 0 {
		return Bar{}, false
	}
	return s.Bars[idx], true
}

// Validate checks that timestamps strictly increase and every bar is complete.
func (s Series) Validate() error {
	for i, b := range s.Bars {
		if b.OpenTime.IsZero() {
			return errors.Errorf("bar %d has no timestamp", i)
		}
		if !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() {
			return errors.Errorf("bar %d has a missing price", i)
		}
		if b.Volume.IsNegative() {
			return errors.Errorf("bar %d has negative volume", i)
		}
		if b.High.LessThan(b.Low) {
			return errors.Errorf("bar %d has high below low", i)
		}
		if i > 0 && !b.OpenTime.After(s.Bars[i-1].OpenTime) {
			return errors.Errorf("bar %d timestamp %s is not after %s", i, b.OpenTime, s.Bars[i-1].OpenTime)
		}
	}
	return nil
}

// Closes returns close prices as float64.
func (s Series) Closes() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.Close })
}

// Highs returns high prices as float64.
func (s Series) Highs() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.High })
}

// Lows returns low prices as float64.
func (s Series) Lows() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.Low })
}

// Volumes returns volumes as float64.
func (s Series) Volumes() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.Volume })
}

func (s Series) column(get func(Bar) decimal.Decimal) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = get(b).InexactFloat64()
	}
	return out
}
