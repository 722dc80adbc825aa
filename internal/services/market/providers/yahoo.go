package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/breakscan/internal/domain"
)

// DefaultYahooBaseURL public chart endpoint host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// yahooRanges accepted range values and their calendar length in days, ascending.
var yahooRanges = []struct {
	name string
	days int
}{
	{"5d", 5},
	{"1mo", 31},
	{"3mo", 92},
	{"6mo", 183},
	{"1y", 366},
	{"2y", 731},
	{"5y", 1827},
	{"10y", 3653},
}

// YahooKlineProvider implements KlineProvider for US equities using the Yahoo Finance chart API.
type YahooKlineProvider struct {
	client  *http.Client
	baseURL string
}

// NewYahooKlineProvider creates a new Yahoo kline provider. An empty baseURL uses the public host.
func NewYahooKlineProvider(client *http.Client, baseURL string) *YahooKlineProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooKlineProvider{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetKlines fetches kline data from Yahoo.
func (p *YahooKlineProvider) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	yInterval, err := convertIntervalToYahoo(interval)
	if err != nil {
		return nil, err
	}

	ticker := yahooTicker(symbol)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&includePrePost=false",
		p.baseURL, url.PathEscape(ticker), yInterval, yahooRange(interval, limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build yahoo request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Yahoo for %s", ticker)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read yahoo response")
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("yahoo: status %d for %s", resp.StatusCode, ticker)
		}
		return nil, errors.Wrap(err, "failed to decode yahoo response")
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" || resp.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(ErrUnknownSymbol, "yahoo: %s", chart.Chart.Error.Description)
		}
		return nil, errors.Errorf("yahoo api error for %s: %s", ticker, chart.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("yahoo: status %d for %s", resp.StatusCode, ticker)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, errors.Errorf("yahoo: no data returned for %s", ticker)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]domain.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		// holidays and halted sessions come back as null bars
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}

		volume := decimal.Zero
		if v := at(quote.Volume, i); v != nil {
			volume = decimal.NewFromFloat(*v)
		}

		bars = append(bars, domain.Bar{
			OpenTime: time.Unix(ts, 0).UTC(),
			Open:     decimal.NewFromFloat(*o),
			High:     decimal.NewFromFloat(*h),
			Low:      decimal.NewFromFloat(*l),
			Close:    decimal.NewFromFloat(*c),
			Volume:   volume,
		})
	}

	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// yahooTicker maps class-share tickers from index listings (BRK.B) to Yahoo's form (BRK-B).
func yahooTicker(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), ".", "-")
}

// convertIntervalToYahoo converts standard interval format to Yahoo format.
func convertIntervalToYahoo(interval string) (string, error) {
	switch interval {
	case "1m", "5m", "15m", "30m", "1d":
		return interval, nil
	case "1h":
		return "60m", nil
	case "1w":
		return "1wk", nil
	default:
		return "", errors.Errorf("unsupported yahoo interval: %s", interval)
	}
}

// yahooRange picks the shortest range covering limit bars of an exchange-hours market.
func yahooRange(interval string, limit int) string {
	var days int
	switch interval {
	case "1w":
		days = limit*7 + 7
	case "1d":
		days = limit*7/5 + 10
	default:
		dur, err := parseIntervalToDuration(interval)
		if err != nil {
			return "max"
		}
		// a regular session is 390 minutes
		perDay := int((390 * time.Minute) / dur)
		if perDay < 1 {
			perDay = 1
		}
		days = (limit/perDay+1)*7/5 + 3
	}

	for _, r := range yahooRanges {
		if r.days >= days {
			return r.name
		}
	}
	return "max"
}
