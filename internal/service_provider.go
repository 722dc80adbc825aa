package internal

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/breakscan/config"
	"github.com/vadiminshakov/breakscan/internal/clients"
	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/market/providers"
)

// newKlineProvider creates the market-data provider for the configured platform.
// This is the single point of truth for dispatching to platform-specific implementations.
func newKlineProvider(ctx context.Context, conf config.MarketConfig) (providers.KlineProvider, error) {
	switch conf.Platform {
	case providers.PlatformYahoo:
		return providers.NewYahooKlineProvider(&http.Client{}, conf.YahooURL), nil
	case providers.PlatformBinance:
		return providers.NewBinanceKlineProvider(clients.NewBinanceClient(conf.APIKey, conf.APISecret)), nil
	case providers.PlatformBybit:
		return providers.NewBybitKlineProvider(clients.NewBybitClient(conf.APIKey, conf.APISecret)), nil
	case providers.PlatformHyperliquid:
		client, err := clients.NewHyperliquidClient(ctx, conf.HyperliquidKey, conf.HyperliquidURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create hyperliquid client")
		}
		return providers.NewHyperliquidKlineProvider(client.Info()), nil
	default:
		return nil, errors.Wrapf(domain.ErrConfiguration, "unsupported platform: %s", conf.Platform)
	}
}
