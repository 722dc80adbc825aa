package indicators

import (
	"math"

	"github.com/pkg/errors"
)

// rollingMeanStd returns the mean and sample standard deviation of every full window,
// aligned to the tail of values.
func rollingMeanStd(values []float64, period int) (means, stds []float64, err error) {
	if period < 2 {
		return nil, nil, errors.Errorf("period must be at least 2, got %d", period)
	}
	if len(values) < period {
		return nil, nil, errors.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	count := len(values) - period + 1
	means = make([]float64, count)
	stds = make([]float64, count)

	for i := 0; i < count; i++ {
		window := values[i : i+period]

		sum := 0.0
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		sq := 0.0
		for _, v := range window {
			d := v - mean
			sq += d * d
		}

		means[i] = mean
		stds[i] = math.Sqrt(sq / float64(period-1))
	}

	return means, stds, nil
}
