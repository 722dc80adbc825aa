// Package universe resolves the list of symbols a scan runs over.
package universe

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/breakscan/internal/cache"
	"github.com/vadiminshakov/breakscan/internal/domain"
)

const (
	IndexSP500     = "sp500"
	IndexNasdaq100 = "nasdaq100"
	IndexCustom    = "custom"

	DefaultCacheTTL = 12 * time.Hour
)

// source where an index's constituents are listed and which column holds the ticker.
type source struct {
	url    string
	column string
}

var defaultSources = map[string]source{
	IndexSP500:     {url: "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies", column: "Symbol"},
	IndexNasdaq100: {url: "https://en.wikipedia.org/wiki/Nasdaq-100", column: "Ticker"},
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.^=_/-]{0,19}$`)

// Provider scrapes index constituents and caches them.
type Provider struct {
	client  *http.Client
	sources map[string]source
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// Option configures the Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for scraping.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithSourceURL overrides where an index page is fetched from.
func WithSourceURL(index, url string) Option {
	return func(p *Provider) {
		if s, ok := p.sources[index]; ok {
			s.url = url
			p.sources[index] = s
		}
	}
}

// WithCache stores scraped lists in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = c
		p.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider creates a Provider backed by an in-memory cache unless overridden.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		client:  &http.Client{Timeout: 30 * time.Second},
		sources: make(map[string]source, len(defaultSources)),
		cache:   cache.NewMemory(),
		ttl:     DefaultCacheTTL,
		logger:  zap.NewNop(),
	}
	for k, v := range defaultSources {
		p.sources[k] = v
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Indexes returns the names of the built-in indexes.
func Indexes() []string {
	return []string{IndexSP500, IndexNasdaq100}
}

// Symbols returns the constituents of index in listing order.
func (p *Provider) Symbols(ctx context.Context, index string) ([]string, error) {
	src, ok := p.sources[index]
	if !ok {
		return nil, errors.Wrapf(domain.ErrConfiguration, "unknown index %q", index)
	}

	key := "universe:" + index
	if cached, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.Warn("universe cache read failed", zap.String("index", index), zap.Error(err))
	} else if ok && len(cached) > 0 {
		return strings.Split(string(cached), "\n"), nil
	}

	symbols, err := p.scrape(ctx, src)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s constituents", index)
	}

	if err := p.cache.Set(ctx, key, []byte(strings.Join(symbols, "\n")), p.ttl); err != nil {
		p.logger.Warn("universe cache write failed", zap.String("index", index), zap.Error(err))
	}

	p.logger.Info("index constituents loaded", zap.String("index", index), zap.Int("symbols", len(symbols)))
	return symbols, nil
}

func (p *Provider) scrape(ctx context.Context, src source) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("User-Agent", "breakscan/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", src.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Errorf("unexpected status %d from %s", resp.StatusCode, src.url)
	}

	raw, err := ColumnFromHTML(resp.Body, src.column)
	if err != nil {
		return nil, err
	}

	symbols := normalize(raw)
	if len(symbols) == 0 {
		return nil, errors.Errorf("no tickers in column %q of %s", src.column, src.url)
	}
	return symbols, nil
}

// ParseCustom parses a comma-separated ticker list: trimmed, upper-cased, de-duplicated, order kept.
func ParseCustom(input string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(input, ",") {
		t := strings.ToUpper(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !tickerPattern.MatchString(t) {
			return nil, errors.Wrapf(domain.ErrConfiguration, "invalid ticker %q", t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	if len(out) == 0 {
		return nil, errors.Wrap(domain.ErrConfiguration, "no tickers given")
	}
	return out, nil
}

// normalize upper-cases scraped cells and drops blanks, duplicates and footnote junk.
func normalize(cells []string) []string {
	out := make([]string, 0, len(cells))
	seen := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		t := strings.ToUpper(strings.TrimSpace(c))
		if !tickerPattern.MatchString(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
