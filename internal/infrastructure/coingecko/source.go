// Package coingecko is the public fallback market backend.
package coingecko

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

type Source struct {
	baseURL    string
	vsCurrency string
	perPage    int
	client     *http.Client
	logger     *zap.Logger
}

func NewSource(baseURL, vsCurrency string, perPage int, timeout time.Duration, logger *zap.Logger) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	if perPage <= 0 {
		perPage = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		baseURL:    baseURL,
		vsCurrency: vsCurrency,
		perPage:    perPage,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (s *Source) Name() string { return "coingecko" }

func (s *Source) FetchMarkets(ctx context.Context) ([]domain.MarketEntity, error) {
	q := url.Values{}
	q.Set("vs_currency", s.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(s.perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h")

	body, err := s.get(ctx, "/coins/markets?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return DecodeMarkets(body)
}

func (s *Source) FetchHistory(ctx context.Context, entityID string, rangeDays int) ([]domain.PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", s.vsCurrency)
	q.Set("days", strconv.Itoa(rangeDays))
	q.Set("interval", "daily")

	body, err := s.get(ctx, "/coins/"+url.PathEscape(entityID)+"/market_chart?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return DecodeChart(body)
}

func (s *Source) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Debug("CoinGecko non-success status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, &domain.APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("CoinGecko API error! status: %d", resp.StatusCode)}
	}
	return body, nil
}
