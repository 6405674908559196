package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vitos/crypto_watch/internal/domain"
	"github.com/vitos/crypto_watch/internal/infrastructure/coingecko"
)

// The backend proxies CoinGecko, so its market payloads share the public decoders.

func (c *Client) Name() string { return c.name }

func (c *Client) FetchMarkets(ctx context.Context) ([]domain.MarketEntity, error) {
	body, err := c.sendRequest(ctx, http.MethodGet, "/crypto/markets", "", nil)
	if err != nil {
		return nil, err
	}
	return coingecko.DecodeMarkets(body)
}

func (c *Client) FetchHistory(ctx context.Context, entityID string, rangeDays int) ([]domain.PricePoint, error) {
	path := "/crypto/" + url.PathEscape(entityID) + "/chart?days=" + strconv.Itoa(rangeDays)
	body, err := c.sendRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	return coingecko.DecodeChart(body)
}

// Health returns nil when GET /health answers 2xx.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.sendRequest(ctx, http.MethodGet, "/health", "", nil)
	return err
}
