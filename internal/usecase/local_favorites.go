package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/zap"
)

// LocalFavorites keeps anonymous favorites as one JSON list in the local store.
// Each write replaces the whole list.
type LocalFavorites struct {
	store  domain.KeyValueStore
	logger *zap.Logger
	mu     sync.Mutex
}

func NewLocalFavorites(store domain.KeyValueStore, logger *zap.Logger) *LocalFavorites {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalFavorites{store: store, logger: logger}
}

func (l *LocalFavorites) List(ctx context.Context) ([]domain.FavoriteRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

func (l *LocalFavorites) Add(ctx context.Context, record domain.FavoriteRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.CryptoID == record.CryptoID {
			return fmt.Errorf("%w: %s", domain.ErrConflict, record.CryptoID)
		}
	}
	return l.write(ctx, append(records, record))
}

func (l *LocalFavorites) Remove(ctx context.Context, cryptoID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read(ctx)
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if r.CryptoID != cryptoID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, cryptoID)
	}
	return l.write(ctx, kept)
}

func (l *LocalFavorites) read(ctx context.Context) ([]domain.FavoriteRecord, error) {
	raw, ok, err := l.store.Get(ctx, domain.KeyFavorites)
	if err != nil {
		return nil, fmt.Errorf("failed to read local favorites: %w", err)
	}
	if !ok || domain.IsAbsentValue(raw) {
		return []domain.FavoriteRecord{}, nil
	}

	var records []domain.FavoriteRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		l.logger.Warn("Local favorites unreadable, treating as empty", zap.Error(err))
		return []domain.FavoriteRecord{}, nil
	}

	valid := records[:0]
	for _, r := range records {
		if r.CryptoID != "" {
			valid = append(valid, r)
		}
	}
	return valid, nil
}

func (l *LocalFavorites) write(ctx context.Context, records []domain.FavoriteRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode local favorites: %w", err)
	}
	if err := l.store.Set(ctx, domain.KeyFavorites, string(raw)); err != nil {
		return fmt.Errorf("failed to save local favorites: %w", err)
	}
	return nil
}
