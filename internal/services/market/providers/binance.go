package providers

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

const (
	binanceMaxLimit      = 1000
	binanceInvalidSymbol = -1121
)

// BinanceKlineProvider implements KlineProvider for Binance spot markets.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines fetches kline data from Binance.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}

	bInterval, err := convertIntervalToBinance(interval)
	if err != nil {
		return nil, err
	}

	klines, err := p.client.NewKlinesService().
		Symbol(exchangeSymbol(symbol)).
		Interval(bInterval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == binanceInvalidSymbol {
			return nil, errors.Wrapf(ErrUnknownSymbol, "binance: %s", apiErr.Message)
		}
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}

	result := make([]domain.Bar, len(klines))
	for i, k := range klines {
		bar, err := parseBar(time.UnixMilli(k.OpenTime), k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "binance kline at index %d", i)
		}
		result[i] = bar
	}

	return result, nil
}

// convertIntervalToBinance converts standard interval format to Binance format.
func convertIntervalToBinance(interval string) (string, error) {
	if !ValidInterval(interval) {
		return "", errors.Errorf("unsupported binance interval: %s", interval)
	}
	return interval, nil
}

// parseBar converts string-encoded exchange prices into a Bar.
func parseBar(openTime time.Time, open, high, low, closePrice, volume string) (domain.Bar, error) {
	o, err := decimal.NewFromString(open)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "failed to parse open price")
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "failed to parse high price")
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "failed to parse low price")
	}
	c, err := decimal.NewFromString(closePrice)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "failed to parse close price")
	}
	v, err := decimal.NewFromString(volume)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "failed to parse volume")
	}

	return domain.Bar{OpenTime: openTime.UTC(), Open: o, High: h, Low: l, Close: c, Volume: v}, nil
}
