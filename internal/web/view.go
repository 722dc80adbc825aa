package web

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

// reportView JSON shape of a report. Undefined indicator values are null.
type reportView struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Interval    string            `json:"interval"`
	Rules       []string          `json:"rules"`
	Scanned     int               `json:"scanned"`
	Matched     int               `json:"matched"`
	Results     []resultView      `json:"results"`
	Unavailable []unavailableView `json:"unavailable"`
}

type resultView struct {
	Symbol     string      `json:"symbol"`
	Rules      []string    `json:"rules"`
	Signals    []string    `json:"signals"`
	Oscillator string      `json:"oscillator"`
	Summary    summaryView `json:"summary"`
	Chart      chartView   `json:"chart"`
}

type summaryView struct {
	Close      decimal.Decimal  `json:"close"`
	EMAFast    *decimal.Decimal `json:"ema_fast"`
	EMASlow    *decimal.Decimal `json:"ema_slow"`
	BandUpper  *decimal.Decimal `json:"band_upper"`
	VWAP       *decimal.Decimal `json:"vwap"`
	VolumeAvg  *decimal.Decimal `json:"volume_avg"`
	Oscillator *decimal.Decimal `json:"oscillator"`
	Trend      string           `json:"trend"`
}

type chartView struct {
	Times     []int64    `json:"times"`
	Close     []float64  `json:"close"`
	EMAFast   []*float64 `json:"ema_fast"`
	EMASlow   []*float64 `json:"ema_slow"`
	BandUpper []*float64 `json:"band_upper"`
	VWAP      []*float64 `json:"vwap"`
}

type unavailableView struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func newReportView(r *domain.Report) reportView {
	v := reportView{
		ID:          r.ID.String(),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Interval:    r.Interval,
		Rules:       ruleStrings(r.Rules),
		Scanned:     r.Scanned,
		Matched:     r.Matched(),
		Results:     make([]resultView, 0, len(r.Results)),
		Unavailable: make([]unavailableView, 0, len(r.Unavailable)),
	}

	for _, res := range r.Results {
		v.Results = append(v.Results, newResultView(res))
	}
	for _, u := range r.Unavailable {
		v.Unavailable = append(v.Unavailable, unavailableView{Symbol: u.Symbol, Reason: string(u.Reason), Detail: u.Detail})
	}

	return v
}

func newResultView(res domain.ScanResult) resultView {
	sum := res.Summary()
	v := resultView{
		Symbol: res.Symbol,
		Rules:  ruleStrings(res.Rules),
		Summary: summaryView{
			Close:      sum.Close,
			EMAFast:    sum.EMAFast,
			EMASlow:    sum.EMASlow,
			BandUpper:  sum.BandUpper,
			VWAP:       sum.VWAP,
			VolumeAvg:  sum.VolumeAvg,
			Oscillator: sum.Oscillator,
			Trend:      string(sum.Trend),
		},
	}
	for _, r := range res.Rules {
		v.Signals = append(v.Signals, r.Title())
	}

	bars := res.Series.Bars
	v.Chart.Times = make([]int64, len(bars))
	v.Chart.Close = make([]float64, len(bars))
	for i, b := range bars {
		v.Chart.Times[i] = b.OpenTime.Unix()
		v.Chart.Close[i] = b.Close.InexactFloat64()
	}

	if set := res.Indicators; set != nil {
		v.Oscillator = set.OscillatorName
		v.Chart.EMAFast = set.EMAFast.Points()
		v.Chart.EMASlow = set.EMASlow.Points()
		v.Chart.BandUpper = set.BandUpper.Points()
		v.Chart.VWAP = set.VWAP.Points()
	}

	return v
}

func ruleStrings(rules []domain.RuleName) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = string(r)
	}
	return out
}
