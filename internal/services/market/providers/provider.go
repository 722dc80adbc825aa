// Package providers fetches raw OHLCV bars from market-data platforms.
package providers

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

// ErrUnknownSymbol is returned when the platform does not list the requested symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

const (
	PlatformYahoo       = "yahoo"
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
)

// Intervals supported by the scanner, translated by each provider.
var Intervals = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w"}

// KlineProvider defines the interface for fetching kline (candlestick) data.
type KlineProvider interface {
	// GetKlines fetches up to limit of the most recent bars for symbol.
	// Bars may come back in any order; callers sort and validate.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error)
}

// ValidInterval reports whether interval belongs to the supported vocabulary.
func ValidInterval(interval string) bool {
	for _, i := range Intervals {
		if i == interval {
			return true
		}
	}
	return false
}

// exchangeSymbol converts BTC_USDT or BTC/USDT into BTCUSDT, leaving plain symbols upper-cased.
func exchangeSymbol(symbol string) string {
	if pair, ok := domain.ParsePair(symbol); ok {
		return pair.Symbol()
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// baseAsset returns the coin of a pair symbol, e.g. BTC for BTC_USDT.
func baseAsset(symbol string) string {
	if pair, ok := domain.ParsePair(symbol); ok {
		return strings.ToUpper(pair.From)
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}
