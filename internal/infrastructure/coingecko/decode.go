package coingecko

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_watch/internal/domain"
)

// marketRow mirrors /coins/markets. Numeric fields are nullable on the public API.
type marketRow struct {
	ID                       string           `json:"id"`
	Name                     string           `json:"name"`
	Symbol                   string           `json:"symbol"`
	Image                    string           `json:"image"`
	CurrentPrice             *decimal.Decimal `json:"current_price"`
	PriceChangePercentage24h *float64         `json:"price_change_percentage_24h"`
	MarketCap                *float64         `json:"market_cap"`
	TotalVolume              *float64         `json:"total_volume"`
	MarketCapRank            *int             `json:"market_cap_rank"`
	CirculatingSupply        *float64         `json:"circulating_supply"`
	MaxSupply                *float64         `json:"max_supply"`
}

// DecodeMarkets normalizes a markets payload. The payload must be a JSON array
// and every row must carry an id and a non-negative price.
func DecodeMarkets(body []byte) ([]domain.MarketEntity, error) {
	var rows []marketRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: markets: %v", domain.ErrMalformedResponse, err)
	}

	entities := make([]domain.MarketEntity, 0, len(rows))
	for i, r := range rows {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: markets: row %d has no id", domain.ErrMalformedResponse, i)
		}
		e := domain.MarketEntity{
			ID:                       r.ID,
			Name:                     r.Name,
			Symbol:                   r.Symbol,
			Image:                    r.Image,
			PriceChangePercentage24h: deref(r.PriceChangePercentage24h),
			MarketCap:                deref(r.MarketCap),
			TotalVolume:              deref(r.TotalVolume),
			CirculatingSupply:        deref(r.CirculatingSupply),
			MaxSupply:                r.MaxSupply,
		}
		if r.CurrentPrice != nil {
			if r.CurrentPrice.IsNegative() {
				return nil, fmt.Errorf("%w: markets: %s has negative price", domain.ErrMalformedResponse, r.ID)
			}
			e.CurrentPrice = *r.CurrentPrice
		}
		if r.MarketCapRank != nil && *r.MarketCapRank > 0 {
			rank := *r.MarketCapRank
			e.MarketCapRank = &rank
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// DecodeChart normalizes a market_chart payload into points ordered by time.
func DecodeChart(body []byte) ([]domain.PricePoint, error) {
	var payload struct {
		Prices [][]json.Number `json:"prices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: chart: %v", domain.ErrMalformedResponse, err)
	}
	if payload.Prices == nil {
		return nil, fmt.Errorf("%w: chart: missing prices", domain.ErrMalformedResponse)
	}

	points := make([]domain.PricePoint, 0, len(payload.Prices))
	for i, pair := range payload.Prices {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: chart: point %d has %d values", domain.ErrMalformedResponse, i, len(pair))
		}
		ms, err := pair[0].Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: chart: point %d timestamp: %v", domain.ErrMalformedResponse, i, err)
		}
		price, err := decimal.NewFromString(pair[1].String())
		if err != nil {
			return nil, fmt.Errorf("%w: chart: point %d price: %v", domain.ErrMalformedResponse, i, err)
		}
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(int64(ms)).UTC(),
			Price:     price,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
