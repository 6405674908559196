package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketEntity is one tracked asset as of the last successful fetch.
type MarketEntity struct {
	ID                       string          `json:"id"`
	Name                     string          `json:"name"`
	Symbol                   string          `json:"symbol"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	PriceChangePercentage24h float64         `json:"price_change_percentage_24h"`
	MarketCap                float64         `json:"market_cap"`
	TotalVolume              float64         `json:"total_volume"`
	MarketCapRank            *int            `json:"market_cap_rank,omitempty"`
	Image                    string          `json:"image"`
	CirculatingSupply        float64         `json:"circulating_supply"`
	MaxSupply                *float64        `json:"max_supply,omitempty"`
}

type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}
