// Package config loads scanner settings from a yaml file, command-line flags and the environment.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/market/indicators"
	"github.com/vadiminshakov/breakscan/internal/services/market/providers"
	"github.com/vadiminshakov/breakscan/internal/services/market/rules"
	"github.com/vadiminshakov/breakscan/internal/services/universe"
)

const (
	defaultLookback     = 130
	defaultFetchTimeout = 20 * time.Second
	defaultRetries      = 2
	defaultWorkers      = 8
	defaultScanTimeout  = 5 * time.Minute
	defaultAddr         = ":8080"
	defaultCertCache    = "cert-cache"
)

// Config typed scanner settings.
type Config struct {
	Universe   UniverseConfig
	Market     MarketConfig
	Scan       ScanConfig
	Thresholds ThresholdsConfig
	Web        WebConfig

	// Serve keeps the process running with the web dashboard instead of printing one report.
	Serve bool
	// Wizard starts the interactive setup before scanning.
	Wizard bool
}

type UniverseConfig struct {
	Index         string
	Tickers       []string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
}

type MarketConfig struct {
	Platform       string
	Interval       string
	Lookback       int
	FetchTimeout   time.Duration
	Retries        int
	YahooURL       string
	HyperliquidURL string
	HyperliquidKey string
	APIKey         string
	APISecret      string
}

type ScanConfig struct {
	Rules      []domain.RuleName
	Workers    int
	Timeout    time.Duration
	Oscillator string
	// Every repeats the default scan in serve mode; zero scans once at startup.
	Every time.Duration
}

type ThresholdsConfig struct {
	VolumeSpikeK decimal.Decimal
	// OscillatorLevel nil means the oscillator's own default.
	OscillatorLevel *decimal.Decimal
	BandMultiplier  decimal.Decimal
	RequireVWAP     bool
}

type WebConfig struct {
	Addr       string
	TLSDomains []string
	CertCache  string
}

// ConfigTmp raw yaml representation; numbers that feed rule thresholds are decimal strings.
type ConfigTmp struct {
	Universe struct {
		Index     string        `yaml:"index"`
		Tickers   string        `yaml:"tickers,omitempty"`
		CacheTTL  time.Duration `yaml:"cache_ttl,omitempty"`
		RedisAddr string        `yaml:"redis_addr,omitempty"`
	} `yaml:"universe"`
	Market struct {
		Platform       string        `yaml:"platform"`
		Interval       string        `yaml:"interval"`
		Lookback       int           `yaml:"lookback,omitempty"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout,omitempty"`
		Retries        *int          `yaml:"retries,omitempty"`
		YahooURL       string        `yaml:"yahoo_url,omitempty"`
		HyperliquidURL string        `yaml:"hyperliquid_url,omitempty"`
		HyperliquidKey string        `yaml:"hyperliquid_key,omitempty"`
	} `yaml:"market"`
	Scan struct {
		Rules      []string      `yaml:"rules"`
		Workers    int           `yaml:"workers,omitempty"`
		Timeout    time.Duration `yaml:"timeout,omitempty"`
		Oscillator string        `yaml:"oscillator,omitempty"`
		Every      time.Duration `yaml:"every,omitempty"`
	} `yaml:"scan"`
	Thresholds struct {
		VolumeSpikeK    string `yaml:"volume_spike_k,omitempty"`
		OscillatorLevel string `yaml:"oscillator_level,omitempty"`
		BandMultiplier  string `yaml:"band_multiplier,omitempty"`
		RequireVWAP     bool   `yaml:"require_vwap,omitempty"`
	} `yaml:"thresholds"`
	Web struct {
		Addr       string   `yaml:"addr,omitempty"`
		TLSDomains []string `yaml:"tls_domains,omitempty"`
		CertCache  string   `yaml:"cert_cache,omitempty"`
	} `yaml:"web"`
}

// Get loads .env, then the yaml file named by --config (if any), then applies flag overrides.
func Get() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to load .env")
	}
	return Load(os.Args[1:])
}

// Load parses args the way Get does without touching .env.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("breakscan", flag.ContinueOnError)
	path := fs.String("config", "", "path to yaml config")
	wizard := fs.Bool("wizard", false, "run the interactive setup wizard")
	serve := fs.Bool("serve", false, "serve the web dashboard instead of printing one report")
	index := fs.String("index", "", "index to scan: sp500, nasdaq100 or custom")
	tickers := fs.String("tickers", "", "comma-separated tickers for the custom index, example: SPY,QQQ")
	ruleList := fs.String("rules", "", "comma-separated rules, example: breakout,volume_spike")
	interval := fs.String("interval", "", "bar interval, example: 1d")
	platform := fs.String("platform", "", "market data platform: yahoo, binance, bybit or hyperliquid")
	addr := fs.String("addr", "", "web dashboard listen address")

	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrap(domain.ErrConfiguration, err.Error())
	}

	var raw ConfigTmp
	if *path != "" {
		var err error
		raw, err = ReadYaml(*path)
		if err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "index":
			raw.Universe.Index = *index
		case "tickers":
			raw.Universe.Tickers = *tickers
			if *index == "" {
				raw.Universe.Index = universe.IndexCustom
			}
		case "rules":
			raw.Scan.Rules = []string{*ruleList}
		case "interval":
			raw.Market.Interval = *interval
		case "platform":
			raw.Market.Platform = *platform
		case "addr":
			raw.Web.Addr = *addr
		}
	})

	conf, err := Parse(raw)
	if err != nil {
		return Config{}, err
	}
	conf.Serve = *serve
	conf.Wizard = *wizard

	return conf, nil
}

// ReadYaml reads the raw configuration file.
func ReadYaml(path string) (ConfigTmp, error) {
	var raw ConfigTmp
	f, err := os.ReadFile(path)
	if err != nil {
		return raw, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(f, &raw); err != nil {
		return raw, errors.Wrapf(domain.ErrConfiguration, "invalid yaml in %s: %v", path, err)
	}
	return raw, nil
}

// WriteYaml stores raw as a yaml file.
func WriteYaml(path string, raw ConfigTmp) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to save config file %s", path)
	}
	return nil
}

// Parse validates raw settings, fills defaults and reads secrets from the environment.
// Every problem is reported as domain.ErrConfiguration.
func Parse(raw ConfigTmp) (Config, error) {
	var c Config

	// universe
	c.Universe.Index = strings.ToLower(strings.TrimSpace(raw.Universe.Index))
	if c.Universe.Index == "" {
		c.Universe.Index = universe.IndexSP500
	}
	switch c.Universe.Index {
	case universe.IndexSP500, universe.IndexNasdaq100:
	case universe.IndexCustom:
		tickers, err := universe.ParseCustom(raw.Universe.Tickers)
		if err != nil {
			return Config{}, errors.Wrap(err, "incorrect 'universe.tickers' param")
		}
		c.Universe.Tickers = tickers
	default:
		return Config{}, errors.Wrapf(domain.ErrConfiguration, "incorrect 'universe.index' param: %q", raw.Universe.Index)
	}
	c.Universe.CacheTTL = orDuration(raw.Universe.CacheTTL, universe.DefaultCacheTTL)
	c.Universe.RedisAddr = firstNonEmpty(raw.Universe.RedisAddr, os.Getenv("BREAKSCAN_REDIS_ADDR"))
	c.Universe.RedisPassword = os.Getenv("BREAKSCAN_REDIS_PASSWORD")

	// market
	c.Market.Platform = strings.ToLower(firstNonEmpty(raw.Market.Platform, providers.PlatformYahoo))
	switch c.Market.Platform {
	case providers.PlatformYahoo, providers.PlatformBinance, providers.PlatformBybit, providers.PlatformHyperliquid:
	default:
		return Config{}, errors.Wrapf(domain.ErrConfiguration, "incorrect 'market.platform' param: %q", raw.Market.Platform)
	}
	c.Market.Interval = strings.ToLower(firstNonEmpty(raw.Market.Interval, "1d"))
	if !providers.ValidInterval(c.Market.Interval) {
		return Config{}, errors.Wrapf(domain.ErrConfiguration, "incorrect 'market.interval' param: %q", raw.Market.Interval)
	}
	if c.Market.Platform == providers.PlatformYahoo && c.Market.Interval == "4h" {
		return Config{}, errors.Wrap(domain.ErrConfiguration, "yahoo does not serve 4h bars")
	}
	c.Market.Lookback = raw.Market.Lookback
	if c.Market.Lookback == 0 {
		c.Market.Lookback = defaultLookback
	}
	if c.Market.Lookback < indicators.MinBars {
		return Config{}, errors.Wrapf(domain.ErrConfiguration, "incorrect 'market.lookback' param: need at least %d bars, got %d", indicators.MinBars, c.Market.Lookback)
	}
	c.Market.FetchTimeout = orDuration(raw.Market.FetchTimeout, defaultFetchTimeout)
	c.Market.Retries = defaultRetries
	if raw.Market.Retries != nil {
		if *raw.Market.Retries < 0 {
			return Config{}, errors.Wrap(domain.ErrConfiguration, "incorrect 'market.retries' param: must be >= 0")
		}
		c.Market.Retries = *raw.Market.Retries
	}
	c.Market.YahooURL = raw.Market.YahooURL
	c.Market.HyperliquidURL = raw.Market.HyperliquidURL
	c.Market.HyperliquidKey = firstNonEmpty(raw.Market.HyperliquidKey, os.Getenv("HYPERLIQUID_PRIVATE_KEY"))
	switch c.Market.Platform {
	case providers.PlatformBinance:
		c.Market.APIKey, c.Market.APISecret = os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")
	case providers.PlatformBybit:
		c.Market.APIKey, c.Market.APISecret = os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET")
	}

	// scan
	ruleNames := raw.Scan.Rules
	if len(ruleNames) == 0 {
		ruleNames = []string{string(domain.RuleBreakout)}
	}
	parsed, err := domain.ParseRuleNames(ruleNames)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'scan.rules' param")
	}
	c.Scan.Rules = parsed
	c.Scan.Workers = raw.Scan.Workers
	if c.Scan.Workers == 0 {
		c.Scan.Workers = defaultWorkers
	}
	if c.Scan.Workers < 0 {
		return Config{}, errors.Wrap(domain.ErrConfiguration, "incorrect 'scan.workers' param: must be > 0")
	}
	c.Scan.Timeout = orDuration(raw.Scan.Timeout, defaultScanTimeout)
	if raw.Scan.Every < 0 {
		return Config{}, errors.Wrap(domain.ErrConfiguration, "incorrect 'scan.every' param: must be >= 0")
	}
	c.Scan.Every = raw.Scan.Every
	osc, err := indicators.NewOscillator(raw.Scan.Oscillator)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'scan.oscillator' param")
	}
	c.Scan.Oscillator = osc.Name()

	// thresholds
	if c.Thresholds.VolumeSpikeK, err = positiveDecimal(raw.Thresholds.VolumeSpikeK, decimal.NewFromFloat(rules.DefaultVolumeSpikeK), "thresholds.volume_spike_k"); err != nil {
		return Config{}, err
	}
	c.Thresholds.BandMultiplier = decimal.NewFromFloat(indicators.DefaultBandMultiplier)
	if raw.Thresholds.BandMultiplier != "" {
		m, err := decimal.NewFromString(raw.Thresholds.BandMultiplier)
		if err != nil || m.IsNegative() {
			return Config{}, errors.Wrapf(domain.ErrConfiguration, "incorrect 'thresholds.band_multiplier' param: %q", raw.Thresholds.BandMultiplier)
		}
		c.Thresholds.BandMultiplier = m
	}
	if raw.Thresholds.OscillatorLevel != "" {
		level, err := decimal.NewFromString(raw.Thresholds.OscillatorLevel)
		if err != nil {
			return Config{}, errors.Wrapf(domain.ErrConfiguration, "incorrect 'thresholds.oscillator_level' param: %q", raw.Thresholds.OscillatorLevel)
		}
		c.Thresholds.OscillatorLevel = &level
	}
	c.Thresholds.RequireVWAP = raw.Thresholds.RequireVWAP

	// web
	c.Web.Addr = firstNonEmpty(raw.Web.Addr, defaultAddr)
	c.Web.TLSDomains = raw.Web.TLSDomains
	c.Web.CertCache = firstNonEmpty(raw.Web.CertCache, defaultCertCache)

	return c, nil
}

// RuleThresholds converts the configured thresholds for the rule evaluator.
func (c Config) RuleThresholds(osc indicators.Oscillator) rules.Thresholds {
	level := osc.OversoldLevel()
	if c.Thresholds.OscillatorLevel != nil {
		level = c.Thresholds.OscillatorLevel.InexactFloat64()
	}
	return rules.Thresholds{
		VolumeSpikeK:  c.Thresholds.VolumeSpikeK.InexactFloat64(),
		OversoldLevel: level,
		RequireVWAP:   c.Thresholds.RequireVWAP,
	}
}

func positiveDecimal(s string, def decimal.Decimal, name string) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, errors.Wrapf(domain.ErrConfiguration, "incorrect '%s' param (must be a positive decimal): %q", name, s)
	}
	return d, nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
