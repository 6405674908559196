package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FavoriteRecord links a user (empty UserID when anonymous) to a market entity.
// Display fields are copied at the time of favoriting.
type FavoriteRecord struct {
	ID           string          `json:"id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	CryptoID     string          `json:"crypto_id"`
	Name         string          `json:"crypto_name"`
	Symbol       string          `json:"crypto_symbol"`
	Image        string          `json:"crypto_image,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	AddedAt      time.Time       `json:"added_at"`
}

func NewFavoriteRecord(entity MarketEntity, userID string, now time.Time) FavoriteRecord {
	return FavoriteRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		CryptoID:     entity.ID,
		Name:         entity.Name,
		Symbol:       entity.Symbol,
		Image:        entity.Image,
		CurrentPrice: entity.CurrentPrice,
		AddedAt:      now.UTC(),
	}
}
