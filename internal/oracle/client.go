// Package oracle provides USD asset prices from CoinGecko with a cache-first
// read path and a websocket stream that keeps the cache warm.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

// coinGeckoIDs maps ledger assets to CoinGecko coin ids.
var coinGeckoIDs = map[domain.Asset]string{
	domain.AssetETH:  "ethereum",
	domain.AssetUSDC: "usd-coin",
}

// Config holds oracle client parameters.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PriceTTL time.Duration
}

// Client implements domain.Oracle. Reads go through the price cache first;
// a cache miss or stale entry falls back to the CoinGecko REST API. Fetch
// failures degrade to a zero price with a warning, per the domain contract:
// deposits skip and re-scan, withdrawals fail closed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      domain.PriceCache
	ttl        time.Duration
	logger     *slog.Logger
}

// New creates an oracle Client. The cache may be nil, in which case every
// read hits the REST API.
func New(cfg Config, cache domain.PriceCache, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cache,
		ttl:    cfg.PriceTTL,
		logger: logger.With(slog.String("component", "oracle")),
	}
}

// GetUSDPrice returns the current USD price of one unit of the asset, or zero
// (with a nil error) when no fresh price can be obtained.
func (c *Client) GetUSDPrice(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	if _, ok := coinGeckoIDs[asset]; !ok {
		c.logger.WarnContext(ctx, "no price source for asset", slog.String("asset", string(asset)))
		return decimal.Zero, nil
	}

	if price, ok := c.cached(ctx, asset); ok {
		return price, nil
	}

	price, err := c.fetch(ctx, asset)
	if err != nil {
		c.logger.WarnContext(ctx, "price fetch failed",
			slog.String("asset", string(asset)),
			slog.String("error", err.Error()),
		)
		return decimal.Zero, nil
	}

	if c.cache != nil {
		f, _ := price.Float64()
		if err := c.cache.SetPrice(ctx, string(asset), f, time.Now().UTC()); err != nil {
			c.logger.WarnContext(ctx, "price cache write failed",
				slog.String("asset", string(asset)),
				slog.String("error", err.Error()),
			)
		}
	}
	return price, nil
}

// cached returns a fresh cached price, if one exists.
func (c *Client) cached(ctx context.Context, asset domain.Asset) (decimal.Decimal, bool) {
	if c.cache == nil {
		return decimal.Decimal{}, false
	}
	price, ts, err := c.cache.GetPrice(ctx, string(asset))
	if err != nil {
		return decimal.Decimal{}, false
	}
	if c.ttl > 0 && time.Since(ts) > c.ttl {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(price), true
}

// fetch queries the CoinGecko simple price endpoint.
func (c *Client) fetch(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	coinID := coinGeckoIDs[asset]

	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/simple/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("oracle: fetch %s: %w", coinID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Decimal{}, fmt.Errorf("oracle: fetch %s: status %d: %s", coinID, resp.StatusCode, body)
	}

	// {"ethereum": {"usd": 3012.45}}
	var payload map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("oracle: decode price response: %w", err)
	}

	quote, ok := payload[coinID]["usd"]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("oracle: no usd quote for %s", coinID)
	}
	price, err := decimal.NewFromString(quote.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("oracle: parse price %q: %w", quote, err)
	}
	return price, nil
}

// Compile-time interface check.
var _ domain.Oracle = (*Client)(nil)
