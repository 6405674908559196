package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// FavoritesStore is the in-memory favorites set for the current identity.
// Writes go to the remote backend when signed in and to the local one
// otherwise; the set changes only once the backend has accepted a write.
type FavoritesStore struct {
	identity IdentityReader
	remote   domain.FavoritesBackend
	local    domain.FavoritesBackend
	logger   *zap.Logger
	locks    *keyedMutex

	mu      sync.RWMutex
	records map[string]domain.FavoriteRecord
	pending map[string]int
	epoch   uint64
	err     error

	// seq counts applied mutations; touched holds the seq of the last one per id.
	seq     uint64
	touched map[string]uint64

	timeNow func() time.Time
}

func NewFavoritesStore(identity IdentityReader, remote, local domain.FavoritesBackend, logger *zap.Logger) *FavoritesStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoritesStore{
		identity: identity,
		remote:   remote,
		local:    local,
		logger:   logger,
		locks:    newKeyedMutex(),
		records:  make(map[string]domain.FavoriteRecord),
		pending:  make(map[string]int),
		touched:  make(map[string]uint64),
		timeNow:  time.Now,
	}
}

type backendSnapshot struct {
	backend domain.FavoritesBackend
	userID  string
	epoch   uint64
}

func (s *FavoritesStore) backend() backendSnapshot {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	if id := s.identity.Current(); id != nil {
		return backendSnapshot{backend: s.remote, userID: id.UserID, epoch: epoch}
	}
	return backendSnapshot{backend: s.local, epoch: epoch}
}

// OnIdentityChange discards the set and reloads it from the backend matching id.
// It has the signature of an IdentityContext listener.
func (s *FavoritesStore) OnIdentityChange(ctx context.Context, id *domain.Identity) {
	s.mu.Lock()
	s.epoch++
	s.records = make(map[string]domain.FavoriteRecord)
	s.touched = make(map[string]uint64)
	s.err = nil
	s.mu.Unlock()

	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("Favorites reload after identity change failed", zap.Error(err))
	}
}

// Reload replaces the set with the backend's list. Ids mutated while the list
// was in flight keep their current state. On failure the set is kept and the
// error is also reported by Err.
func (s *FavoritesStore) Reload(ctx context.Context) error {
	b := s.backend()
	s.mu.RLock()
	startSeq := s.seq
	s.mu.RUnlock()

	records, err := b.backend.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.epoch != s.epoch {
		s.logger.Debug("Discarding favorites reload from previous identity")
		return nil
	}
	if err != nil {
		s.err = err
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	next := make(map[string]domain.FavoriteRecord, len(records))
	for _, r := range records {
		if s.touched[r.CryptoID] <= startSeq {
			next[r.CryptoID] = r
		}
	}
	for id, seq := range s.touched {
		if seq <= startSeq {
			continue
		}
		if r, ok := s.records[id]; ok {
			next[id] = r
		}
	}
	s.records = next
	s.err = nil
	return nil
}

// Err returns the error of the last failed reload, nil after a successful one.
func (s *FavoritesStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ListFavorites returns the set newest first.
func (s *FavoritesStore) ListFavorites() []domain.FavoriteRecord {
	s.mu.RLock()
	list := make([]domain.FavoriteRecord, 0, len(s.records))
	for _, r := range s.records {
		list = append(list, r)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].AddedAt.Equal(list[j].AddedAt) {
			return list[i].AddedAt.After(list[j].AddedAt)
		}
		return list[i].CryptoID < list[j].CryptoID
	})
	return list
}

func (s *FavoritesStore) IDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.records))
	for id := range s.records {
		ids[id] = struct{}{}
	}
	return ids
}

func (s *FavoritesStore) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Pending reports whether a mutation for id is in flight.
func (s *FavoritesStore) Pending(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[id] > 0
}

func (s *FavoritesStore) begin(id string) func() {
	unlock := s.locks.Lock(id)
	s.mu.Lock()
	s.pending[id]++
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if s.pending[id]--; s.pending[id] <= 0 {
			delete(s.pending, id)
		}
		s.mu.Unlock()
		unlock()
	}
}

func (s *FavoritesStore) Add(ctx context.Context, entity domain.MarketEntity) error {
	if entity.ID == "" {
		return fmt.Errorf("add favorite: empty crypto id")
	}
	done := s.begin(entity.ID)
	defer done()
	return s.add(ctx, entity)
}

func (s *FavoritesStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("remove favorite: empty crypto id")
	}
	done := s.begin(id)
	defer done()
	return s.remove(ctx, id)
}

// Toggle flips membership of entity and returns whether it is now a favorite.
func (s *FavoritesStore) Toggle(ctx context.Context, entity domain.MarketEntity) (bool, error) {
	if entity.ID == "" {
		return false, fmt.Errorf("toggle favorite: empty crypto id")
	}
	done := s.begin(entity.ID)
	defer done()

	if s.IsFavorite(entity.ID) {
		if err := s.remove(ctx, entity.ID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := s.add(ctx, entity); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FavoritesStore) markLocked(id string) {
	s.seq++
	s.touched[id] = s.seq
}

func (s *FavoritesStore) add(ctx context.Context, entity domain.MarketEntity) error {
	if s.IsFavorite(entity.ID) {
		return nil
	}

	b := s.backend()
	record := domain.NewFavoriteRecord(entity, b.userID, s.timeNow())

	err := b.backend.Add(ctx, record)
	if errors.Is(err, domain.ErrConflict) {
		s.logger.Debug("Favorite already stored", zap.String("crypto_id", entity.ID))
		err = nil
	}
	if err != nil {
		s.logger.Warn("Failed to add favorite", zap.String("crypto_id", entity.ID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b.epoch == s.epoch {
		s.records[entity.ID] = record
		s.markLocked(entity.ID)
	}
	return nil
}

func (s *FavoritesStore) remove(ctx context.Context, id string) error {
	b := s.backend()

	err := b.backend.Remove(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("Favorite already absent", zap.String("crypto_id", id))
		err = nil
	}
	if err != nil {
		s.logger.Warn("Failed to remove favorite", zap.String("crypto_id", id), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b.epoch == s.epoch {
		delete(s.records, id)
		s.markLocked(id)
	}
	return nil
}

// MergeAnonymous copies the anonymous favorites into the signed-in account,
// then reloads. It returns how many records the remote accepted.
func (s *FavoritesStore) MergeAnonymous(ctx context.Context) (int, error) {
	id := s.identity.Current()
	if id == nil {
		return 0, domain.ErrAuthenticationRequired
	}

	records, err := s.local.List(ctx)
	if err != nil {
		return 0, err
	}

	var (
		merged int
		errs   error
	)
	for _, r := range records {
		r.ID = ""
		r.UserID = id.UserID
		err := s.remote.Add(ctx, r)
		switch {
		case err == nil:
			merged++
		case errors.Is(err, domain.ErrConflict):
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.CryptoID, err))
		}
	}

	s.logger.Info("Merged anonymous favorites",
		zap.String("user_id", id.UserID),
		zap.Int("merged", merged),
		zap.Int("total", len(records)),
	)

	if err := s.Reload(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return merged, errs
}
