package web

import (
	"fmt"
	"net/http"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/zap"
)

type favoritesResponse struct {
	Favorites []domain.FavoriteRecord `json:"favorites"`
	Count     int                     `json:"count"`
	Error     string                  `json:"error,omitempty"`
}

type favoriteRequest struct {
	CryptoID string `json:"crypto_id" validate:"required"`
}

type favoriteStateResponse struct {
	CryptoID   string `json:"crypto_id"`
	IsFavorite bool   `json:"is_favorite"`
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	list := s.favorites.ListFavorites()
	resp := favoritesResponse{Favorites: list, Count: len(list)}
	if err := s.favorites.Err(); err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	entity, ok := s.poller.Find(req.CryptoID)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s is not in the market snapshot", domain.ErrNotFound, req.CryptoID))
		return
	}
	if err := s.favorites.Add(r.Context(), entity); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, favoriteStateResponse{CryptoID: entity.ID, IsFavorite: true})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.favorites.Remove(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, favoriteStateResponse{CryptoID: id, IsFavorite: false})
}

// handleToggleFavorite accepts ids missing from the snapshot only when they
// are already favorites, so a stale entry can still be removed.
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entity, ok := s.poller.Find(id)
	if !ok {
		if !s.favorites.IsFavorite(id) {
			s.writeError(w, r, fmt.Errorf("%w: %s is not in the market snapshot", domain.ErrNotFound, id))
			return
		}
		entity = domain.MarketEntity{ID: id}
	}

	now, err := s.favorites.Toggle(r.Context(), entity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, favoriteStateResponse{CryptoID: id, IsFavorite: now})
}

func (s *Server) handleMergeFavorites(w http.ResponseWriter, r *http.Request) {
	merged, err := s.favorites.MergeAnonymous(r.Context())
	if err != nil {
		if merged == 0 {
			s.writeError(w, r, err)
			return
		}
		s.logger.Warn("Partial favorites merge", zap.Int("merged", merged), zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"merged": merged})
}
