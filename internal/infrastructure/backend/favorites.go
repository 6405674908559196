package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_watch/internal/domain"
)

// FavoritesClient is the remote favorites tier. Every call needs a bearer
// credential; without one it fails locally with ErrAuthenticationRequired.
type FavoritesClient struct {
	client *Client
	creds  domain.CredentialSource
}

func NewFavoritesClient(client *Client, creds domain.CredentialSource) *FavoritesClient {
	return &FavoritesClient{client: client, creds: creds}
}

type favoriteDTO struct {
	ID           flexibleID       `json:"id"`
	UserID       flexibleID       `json:"user_id"`
	CryptoID     string           `json:"crypto_id"`
	Name         string           `json:"crypto_name"`
	Symbol       string           `json:"crypto_symbol"`
	Image        *string          `json:"crypto_image"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
	AddedAt      string           `json:"added_at"`
}

type addFavoriteRequest struct {
	CryptoID     string          `json:"crypto_id"`
	Name         string          `json:"crypto_name"`
	Symbol       string          `json:"crypto_symbol"`
	Image        string          `json:"crypto_image,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

func (f *FavoritesClient) token() (string, error) {
	token := ""
	if f.creds != nil {
		token = f.creds.Token()
	}
	if domain.IsAbsentValue(token) {
		return "", domain.ErrAuthenticationRequired
	}
	return token, nil
}

func (f *FavoritesClient) List(ctx context.Context) ([]domain.FavoriteRecord, error) {
	token, err := f.token()
	if err != nil {
		return nil, err
	}

	body, err := f.client.sendRequest(ctx, http.MethodGet, "/favorites", token, nil)
	if err != nil {
		return nil, mapAuthError(err)
	}

	var payload struct {
		Favorites []favoriteDTO `json:"favorites"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: favorites: %v", domain.ErrMalformedResponse, err)
	}
	if payload.Favorites == nil {
		return nil, fmt.Errorf("%w: favorites: missing favorites field", domain.ErrMalformedResponse)
	}

	records := make([]domain.FavoriteRecord, 0, len(payload.Favorites))
	for _, dto := range payload.Favorites {
		if dto.CryptoID == "" {
			continue
		}
		records = append(records, dto.toRecord())
	}
	return records, nil
}

func (f *FavoritesClient) Add(ctx context.Context, record domain.FavoriteRecord) error {
	token, err := f.token()
	if err != nil {
		return err
	}

	req := addFavoriteRequest{
		CryptoID:     record.CryptoID,
		Name:         record.Name,
		Symbol:       record.Symbol,
		Image:        record.Image,
		CurrentPrice: record.CurrentPrice,
	}
	_, err = f.client.sendRequest(ctx, http.MethodPost, "/favorites", token, req)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
		return mapAuthError(err)
	}
	return nil
}

func (f *FavoritesClient) Remove(ctx context.Context, cryptoID string) error {
	token, err := f.token()
	if err != nil {
		return err
	}

	_, err = f.client.sendRequest(ctx, http.MethodDelete, "/favorites/"+url.PathEscape(cryptoID), token, nil)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return mapAuthError(err)
	}
	return nil
}

// mapAuthError tags a rejected or expired credential as ErrAuthenticationRequired.
func mapAuthError(err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusUnprocessableEntity) {
		return fmt.Errorf("%w: %w", domain.ErrAuthenticationRequired, err)
	}
	return err
}

func (d favoriteDTO) toRecord() domain.FavoriteRecord {
	rec := domain.FavoriteRecord{
		ID:       string(d.ID),
		UserID:   string(d.UserID),
		CryptoID: d.CryptoID,
		Name:     d.Name,
		Symbol:   d.Symbol,
		AddedAt:  parseAddedAt(d.AddedAt),
	}
	if d.Image != nil {
		rec.Image = *d.Image
	}
	if d.CurrentPrice != nil {
		rec.CurrentPrice = *d.CurrentPrice
	}
	return rec
}

// The backend emits isoformat() timestamps, with or without an offset.
var addedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseAddedAt(s string) time.Time {
	for _, layout := range addedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
