package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/crypto_watch/internal/domain"
	"github.com/vitos/crypto_watch/internal/usecase"
)

type marketView struct {
	domain.MarketEntity
	IsFavorite bool `json:"is_favorite"`
}

type marketsResponse struct {
	Markets     []marketView       `json:"markets"`
	Status      usecase.PollStatus `json:"status"`
	Source      string             `json:"source,omitempty"`
	LastUpdated *time.Time         `json:"last_updated,omitempty"`
}

type marketFilter struct {
	onlyFavorites bool
	query         string
}

func (f marketFilter) match(e domain.MarketEntity, fav bool) bool {
	if f.onlyFavorites && !fav {
		return false
	}
	if f.query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), f.query) ||
		strings.Contains(strings.ToLower(e.Symbol), f.query)
}

// handleMarkets serves the snapshot annotated with favorite flags.
// ?favorites=true narrows it to the favorites set, ?q= to names or symbols
// containing the term, case-insensitively.
func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	onlyFavorites, _ := strconv.ParseBool(q.Get("favorites"))
	filter := marketFilter{
		onlyFavorites: onlyFavorites,
		query:         strings.ToLower(strings.TrimSpace(q.Get("q"))),
	}
	s.writeJSON(w, http.StatusOK, s.marketsPayload(filter))
}

func (s *Server) marketsPayload(filter marketFilter) marketsResponse {
	state := s.poller.State()
	ids := s.favorites.IDs()

	views := make([]marketView, 0, len(state.Snapshot))
	for _, e := range state.Snapshot {
		_, fav := ids[e.ID]
		if !filter.match(e, fav) {
			continue
		}
		views = append(views, marketView{MarketEntity: e, IsFavorite: fav})
	}

	resp := marketsResponse{Markets: views, Status: state.Status, Source: state.Source}
	if !state.LastUpdated.IsZero() {
		t := state.LastUpdated
		resp.LastUpdated = &t
	}
	return resp
}

func (s *Server) handleRefreshMarkets(w http.ResponseWriter, r *http.Request) {
	if err := s.poller.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.marketsPayload(marketFilter{}))
}

type chartResponse struct {
	ID     string              `json:"id"`
	Days   int                 `json:"days"`
	Source string              `json:"source"`
	Prices []domain.PricePoint `json:"prices"`
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 365 {
			s.badRequest(w, "days must be an integer between 1 and 365")
			return
		}
		days = n
	}

	res, err := s.resolver.FetchHistoricalSeries(r.Context(), id, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chartResponse{ID: id, Days: days, Source: res.Source, Prices: res.Data})
}

type statusResponse struct {
	Market         usecase.PollStatus   `json:"market"`
	Source         string               `json:"source,omitempty"`
	LastUpdated    *time.Time           `json:"last_updated,omitempty"`
	Connectivity   usecase.Connectivity `json:"connectivity,omitempty"`
	CheckedAt      *time.Time           `json:"connectivity_checked_at,omitempty"`
	BackendError   string               `json:"connectivity_error,omitempty"`
	Authenticated  bool                 `json:"authenticated"`
	Favorites      int                  `json:"favorites"`
	FavoritesError string               `json:"favorites_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.poller.State()
	resp := statusResponse{
		Market:        state.Status,
		Source:        state.Source,
		Authenticated: s.identity.Current() != nil,
		Favorites:     len(s.favorites.IDs()),
	}
	if !state.LastUpdated.IsZero() {
		t := state.LastUpdated
		resp.LastUpdated = &t
	}
	if s.monitor != nil {
		resp.Connectivity = s.monitor.State()
		if at := s.monitor.CheckedAt(); !at.IsZero() {
			resp.CheckedAt = &at
		}
		if err := s.monitor.LastError(); err != nil {
			resp.BackendError = err.Error()
		}
	}
	if err := s.favorites.Err(); err != nil {
		resp.FavoritesError = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
