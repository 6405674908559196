package domain

import "context"

// MarketSource is one backend able to answer market-data requests.
type MarketSource interface {
	Name() string
	FetchMarkets(ctx context.Context) ([]MarketEntity, error)
	FetchHistory(ctx context.Context, entityID string, rangeDays int) ([]PricePoint, error)
}

// HealthChecker probes whether a backend is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// FavoritesBackend is one tier able to persist favorites.
// Add returns ErrConflict for a duplicate, Remove returns ErrNotFound for a missing id.
type FavoritesBackend interface {
	List(ctx context.Context) ([]FavoriteRecord, error)
	Add(ctx context.Context, record FavoriteRecord) error
	Remove(ctx context.Context, cryptoID string) error
}

// Authenticator exchanges credentials for an identity with a bearer token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*Identity, error)
	Register(ctx context.Context, email, password string) (*Identity, error)
}

// CredentialSource yields the current bearer credential, empty when anonymous.
type CredentialSource interface {
	Token() string
}

// KeyValueStore is the durable local storage shared by identity and favorites.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
