package collector

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"MexcPulse/internal/calculator"
	"MexcPulse/internal/metrics"
	"MexcPulse/internal/model"
	"MexcPulse/internal/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBaseURL is the public MEXC spot REST root.
const DefaultBaseURL = "https://api.mexc.com/api/v3"

// MEXCFetcher implements Fetcher against the public MEXC spot API.
type MEXCFetcher struct {
	BaseURL    string
	Client     *http.Client
	Limiter    *ratelimit.Limiter
	MaxRetries int
	Backoff    time.Duration
	Metrics    *metrics.Recorder
	Log        zerolog.Logger
	now        func() time.Time
}

// NewMEXCFetcher creates a fetcher with a pooled transport and optional proxy.
func NewMEXCFetcher(baseURL, proxyURL string, timeout time.Duration, limiter *ratelimit.Limiter, rec *metrics.Recorder, log zerolog.Logger) *MEXCFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &MEXCFetcher{
		BaseURL:    baseURL,
		Client:     &http.Client{Timeout: timeout, Transport: transport},
		Limiter:    limiter,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
		Metrics:    rec,
		Log:        log.With().Str("component", "mexc").Logger(),
		now:        time.Now,
	}
}

func (f *MEXCFetcher) Name() string { return "mexc" }

// FetchCandle returns the latest 1m kline. Volume is the quote volume.
func (f *MEXCFetcher) FetchCandle(ctx context.Context, symbol string) (model.Candle, error) {
	var rows [][]interface{}
	params := url.Values{
		"symbol":   {model.Pair(symbol)},
		"interval": {"1m"},
		"limit":    {"1"},
	}
	if err := f.get(ctx, "klines", params, &rows); err != nil {
		return model.Candle{}, err
	}
	if len(rows) == 0 {
		return model.Candle{}, fmt.Errorf("%w: %s: empty klines", ErrNotAvailable, symbol)
	}
	row := rows[len(rows)-1]
	if len(row) < 8 {
		return model.Candle{}, fmt.Errorf("%w: %s: kline has %d fields", ErrNotAvailable, symbol, len(row))
	}

	var vals [6]float64
	for i, idx := range []int{0, 1, 2, 3, 4, 7} {
		v, err := toFloat(row[idx])
		if err != nil {
			return model.Candle{}, fmt.Errorf("%w: %s: kline field %d: %v", ErrNotAvailable, symbol, idx, err)
		}
		vals[i] = v
	}
	return model.Candle{
		OpenTime: time.UnixMilli(int64(vals[0])),
		Open:     vals[1],
		High:     vals[2],
		Low:      vals[3],
		Close:    vals[4],
		Volume:   vals[5],
	}, nil
}

type depthResponse struct {
	Bids [][]interface{} `json:"bids"`
	Asks [][]interface{} `json:"asks"`
}

// FetchSpread returns the best bid/ask spread in percent of the bid.
func (f *MEXCFetcher) FetchSpread(ctx context.Context, symbol string) (float64, error) {
	var book depthResponse
	params := url.Values{"symbol": {model.Pair(symbol)}, "limit": {"1"}}
	if err := f.get(ctx, "depth", params, &book); err != nil {
		return 0, err
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 || len(book.Bids[0]) == 0 || len(book.Asks[0]) == 0 {
		return 0, fmt.Errorf("%w: %s: empty order book", ErrNotAvailable, symbol)
	}
	bid, err := toFloat(book.Bids[0][0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: bid: %v", ErrNotAvailable, symbol, err)
	}
	ask, err := toFloat(book.Asks[0][0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: ask: %v", ErrNotAvailable, symbol, err)
	}
	if bid <= 0 {
		return 0, fmt.Errorf("%w: %s: non-positive bid %v", ErrNotAvailable, symbol, bid)
	}
	return calculator.Spread(bid, ask), nil
}

type tradeEntry struct {
	Time int64 `json:"time"`
}

// FetchTradeCount counts trades whose timestamp falls inside window.
func (f *MEXCFetcher) FetchTradeCount(ctx context.Context, symbol string, window time.Duration) (int, error) {
	var trades []tradeEntry
	params := url.Values{"symbol": {model.Pair(symbol)}, "limit": {"1000"}}
	if err := f.get(ctx, "trades", params, &trades); err != nil {
		return 0, err
	}
	cutoff := f.now().Add(-window).UnixMilli()
	n := 0
	for _, t := range trades {
		if t.Time >= cutoff {
			n++
		}
	}
	return n, nil
}

// get issues a GET with rate limiting and retries rate-limit, server and
// network errors with exponential backoff.
func (f *MEXCFetcher) get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	u := f.BaseURL + "/" + endpoint + "?" + params.Encode()
	var lastErr error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := f.Backoff << uint(attempt-1)
			f.Log.Debug().Str("endpoint", endpoint).Int("attempt", attempt+1).Dur("backoff", backoff).Err(lastErr).Msg("retrying request")
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %v", ErrNotAvailable, endpoint, ctx.Err())
			case <-time.After(backoff):
			}
		}
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrNotAvailable, endpoint, err)
			}
		}

		start := time.Now()
		retry, err := f.do(ctx, u, dest)
		f.Metrics.RecordFetch(endpoint, time.Since(start), err)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return fmt.Errorf("%w: %s %s: %v", ErrNotAvailable, endpoint, params.Get("symbol"), lastErr)
}

func (f *MEXCFetcher) do(ctx context.Context, u string, dest interface{}) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "MexcPulse/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return true, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}
	return false, nil
}

// toFloat accepts the exchange's string-encoded decimals as well as plain numbers.
func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
