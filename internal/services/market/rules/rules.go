// Package rules evaluates setup predicates against the last one or two bars of a series.
package rules

import (
	"github.com/vadiminshakov/breakscan/internal/domain"
)

const (
	// DefaultVolumeSpikeK volume multiple of the rolling average that counts as a spike.
	DefaultVolumeSpikeK = 1.5
)

// Thresholds tunable rule parameters.
type Thresholds struct {
	// VolumeSpikeK last volume must exceed VolumeSpikeK times the rolling volume average.
	VolumeSpikeK float64
	// OversoldLevel oscillator value below which the oversold rule may fire.
	OversoldLevel float64
	// RequireVWAP makes breakout additionally demand close above the VWAP proxy.
	RequireVWAP bool
}

// DefaultThresholds returns thresholds for the given oscillator oversold level.
func DefaultThresholds(oversoldLevel float64) Thresholds {
	return Thresholds{
		VolumeSpikeK:  DefaultVolumeSpikeK,
		OversoldLevel: oversoldLevel,
	}
}

// input values a rule may look at.
type input struct {
	series domain.Series
	set    *domain.IndicatorSet
	th     Thresholds
}

type rule func(in input) bool

var registry = map[domain.RuleName]rule{
	domain.RuleTrend:       trend,
	domain.RuleOversold:    oversold,
	domain.RuleInsideBar:   insideBar,
	domain.RuleVolumeSpike: volumeSpike,
	domain.RuleBreakout:    breakout,
}

// Evaluator applies a rule selection with fixed thresholds.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{thresholds: th}
}

// Thresholds returns the configured thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate returns the triggered rules in selection order. An empty selection matches nothing.
// Rules depending on an undefined value do not trigger.
func (e *Evaluator) Evaluate(series domain.Series, set *domain.IndicatorSet, names []domain.RuleName) []domain.RuleName {
	if set == nil || series.Len() == 0 {
		return nil
	}

	in := input{series: series, set: set, th: e.thresholds}

	var triggered []domain.RuleName
	for _, name := range names {
		fn, ok := registry[name]
		if !ok {
			continue
		}
		if fn(in) {
			triggered = append(triggered, name)
		}
	}
	return triggered
}

// trend: EMA8 above EMA21 and either EMA21 rising over the last three bars or close above EMA8.
func trend(in input) bool {
	fast, ok1 := in.set.EMAFast.Last(0)
	slow, ok2 := in.set.EMASlow.Last(0)
	if !ok1 || !ok2 || fast <= slow {
		return false
	}

	if slowPrev, ok := in.set.EMASlow.Last(1); ok {
		if slowPrev2, ok := in.set.EMASlow.Last(2); ok && slow > slowPrev && slowPrev > slowPrev2 {
			return true
		}
	}

	last, _ := in.series.Last(0)
	return last.Close.InexactFloat64() > fast
}

// oversold: oscillator below the level and price ticking up from the previous bar.
func oversold(in input) bool {
	osc, ok := in.set.Oscillator.Last(0)
	if !ok || osc >= in.th.OversoldLevel {
		return false
	}

	last, ok1 := in.series.Last(0)
	prev, ok2 := in.series.Last(1)
	if !ok1 || !ok2 {
		return false
	}
	return last.Close.GreaterThan(prev.Close)
}

// insideBar: last range strictly inside the previous one.
func insideBar(in input) bool {
	last, ok1 := in.series.Last(0)
	prev, ok2 := in.series.Last(1)
	if !ok1 || !ok2 {
		return false
	}
	return last.High.LessThan(prev.High) && last.Low.GreaterThan(prev.Low)
}

// volumeSpike: last volume above k times the rolling average (which includes the last bar).
func volumeSpike(in input) bool {
	avg, ok := in.set.VolumeAvg.Last(0)
	if !ok || avg <= 0 {
		return false
	}

	last, _ := in.series.Last(0)
	return last.Volume.InexactFloat64() > in.th.VolumeSpikeK*avg
}

// breakout: close above the upper band with EMA8 above EMA21, optionally above VWAP.
func breakout(in input) bool {
	upper, ok1 := in.set.BandUpper.Last(0)
	fast, ok2 := in.set.EMAFast.Last(0)
	slow, ok3 := in.set.EMASlow.Last(0)
	if !ok1 || !ok2 || !ok3 {
		return false
	}

	last, _ := in.series.Last(0)
	closePrice := last.Close.InexactFloat64()
	if closePrice <= upper || fast <= slow {
		return false
	}

	if in.th.RequireVWAP {
		vwap, ok := in.set.VWAP.Last(0)
		if !ok || closePrice <= vwap {
			return false
		}
	}
	return true
}
