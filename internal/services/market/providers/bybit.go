package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

const bybitMaxPerRequest = 200

// BybitKlineProvider implements KlineProvider for Bybit spot markets.
type BybitKlineProvider struct {
	client *bybit.Client
	pause  time.Duration
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client, pause: 100 * time.Millisecond}
}

// GetKlines fetches kline data, walking back in pages of 200 until limit bars are collected.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	bybitInterval, err := convertIntervalToBybit(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}

	var (
		all       []bybit.V5GetKlineItem
		remaining = limit
		end       *int64
	)

	for remaining > 0 {
		batchSize := remaining
		if batchSize > bybitMaxPerRequest {
			batchSize = bybitMaxPerRequest
		}

		result, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   bybit.SymbolV5(exchangeSymbol(symbol)),
			Interval: bybit.Interval(bybitInterval),
			End:      end,
			Limit:    &batchSize,
		})
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "symbol") {
				return nil, errors.Wrapf(ErrUnknownSymbol, "bybit: %v", err)
			}
			return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", symbol)
		}
		if result == nil {
			return nil, errors.Errorf("empty result from Bybit API for %s", symbol)
		}

		klines := result.Result.List
		if len(klines) == 0 {
			break
		}
		all = append(all, klines...)

		// fewer results than requested means history is exhausted
		if len(klines) < batchSize {
			break
		}
		remaining -= len(klines)

		// list is newest first; continue before the oldest bar seen
		oldest, err := parseTimestamp(klines[len(klines)-1].StartTime)
		if err != nil {
			return nil, err
		}
		prev := oldest.UnixMilli() - 1
		end = &prev

		if remaining > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.pause):
			}
		}
	}

	if len(all) == 0 {
		return nil, errors.Errorf("no kline data returned from Bybit for %s", symbol)
	}

	bars := make([]domain.Bar, len(all))
	for i, k := range all {
		openTime, err := parseTimestamp(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}
		bar, err := parseBar(openTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline at index %d", i)
		}
		bars[i] = bar
	}

	return bars, nil
}

// convertIntervalToBybit converts standard interval format to Bybit format.
// Standard format: "1m", "5m", "15m", "1h", "4h", "1d", etc.
// Bybit format: "1", "5", "15", "60", "240", "D", etc.
func convertIntervalToBybit(interval string) (string, error) {
	if len(interval) < 2 {
		return "", fmt.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid interval number: %s", interval)
	}

	switch unit {
	case 'm':
		return strconv.FormatInt(n, 10), nil
	case 'h':
		return strconv.FormatInt(n*60, 10), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", fmt.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseTimestamp converts Bybit timestamp string (milliseconds) to time.Time.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	msec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp: %s", ts)
	}

	return time.UnixMilli(msec), nil
}
