package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_watch/internal/domain"
	"github.com/vitos/crypto_watch/internal/infrastructure/storage"
	"github.com/vitos/crypto_watch/internal/usecase"
)

type stubSource struct {
	mu  sync.Mutex
	err error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchMarkets(ctx context.Context) ([]domain.MarketEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []domain.MarketEntity{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", CurrentPrice: decimal.NewFromInt(65000)},
		{ID: "ethereum", Name: "Ethereum", Symbol: "eth", CurrentPrice: decimal.NewFromInt(3200)},
	}, nil
}

func (s *stubSource) FetchHistory(ctx context.Context, entityID string, rangeDays int) ([]domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []domain.PricePoint{{Timestamp: time.Unix(1700000000, 0).UTC(), Price: decimal.NewFromInt(64000)}}, nil
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubAuth struct{}

func (stubAuth) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	if password != "secret1" {
		return nil, &domain.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid email or password"}
	}
	return &domain.Identity{UserID: "42", Email: email, Token: "jwt-42"}, nil
}

func (stubAuth) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	return &domain.Identity{UserID: "43", Email: email, Token: "jwt-43"}, nil
}

type stubRemote struct {
	mu      sync.Mutex
	records map[string]domain.FavoriteRecord
}

func (s *stubRemote) List(ctx context.Context) ([]domain.FavoriteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.FavoriteRecord{}
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubRemote) Add(ctx context.Context, record domain.FavoriteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.CryptoID]; ok {
		return domain.ErrConflict
	}
	s.records[record.CryptoID] = record
	return nil
}

func (s *stubRemote) Remove(ctx context.Context, cryptoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[cryptoID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.records, cryptoID)
	return nil
}

type testEnv struct {
	server *Server
	source *stubSource
	poller *usecase.MarketPoller
	remote *stubRemote
	hub    *Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	kv, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	source := &stubSource{}
	resolver := usecase.NewSourceResolver([]domain.MarketSource{source}, time.Second, nil)
	poller := usecase.NewMarketPoller(resolver, usecase.PollerConfig{Interval: time.Hour}, nil)

	identity, err := usecase.NewIdentityContext(ctx, stubAuth{}, kv, nil)
	require.NoError(t, err)

	remote := &stubRemote{records: map[string]domain.FavoriteRecord{
		"ethereum": {CryptoID: "ethereum", Name: "Ethereum", UserID: "42"},
	}}
	favorites := usecase.NewFavoritesStore(identity, remote, usecase.NewLocalFavorites(kv, nil), nil)
	identity.OnChange(favorites.OnIdentityChange)
	require.NoError(t, favorites.Reload(ctx))

	hub := NewHub(nil)
	hubCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go hub.Run(hubCtx)
	poller.OnUpdate(hub.PublishSnapshot)

	srv := NewServer(0, Deps{
		Poller:    poller,
		Resolver:  resolver,
		Identity:  identity,
		Favorites: favorites,
		Hub:       hub,
	}, nil)

	return &testEnv{server: srv, source: source, poller: poller, remote: remote, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestMarkets_LoadingThenReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/markets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[marketsResponse](t, rec)
	assert.Equal(t, usecase.PhaseLoading, resp.Status.Phase)
	assert.Empty(t, resp.Markets)
	assert.Nil(t, resp.LastUpdated)

	rec = env.do(t, http.MethodPost, "/api/markets/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[marketsResponse](t, rec)
	assert.Equal(t, usecase.PhaseReady, resp.Status.Phase)
	assert.Equal(t, "stub", resp.Source)
	require.Len(t, resp.Markets, 2)
	assert.NotNil(t, resp.LastUpdated)
}

func TestMarkets_RefreshFailureKeepsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.poller.Refresh(context.Background()))

	env.source.fail(domain.ErrTransport)
	rec := env.do(t, http.MethodPost, "/api/markets/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decode[marketsResponse](t, env.do(t, http.MethodGet, "/api/markets", ""))
	assert.Equal(t, usecase.PhaseFailed, resp.Status.Phase)
	assert.NotEmpty(t, resp.Status.Reason)
	assert.Len(t, resp.Markets, 2)
}

func TestChart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/markets/bitcoin/chart?days=30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[chartResponse](t, rec)
	assert.Equal(t, "bitcoin", resp.ID)
	assert.Equal(t, 30, resp.Days)
	require.Len(t, resp.Prices, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/markets/bitcoin/chart?days=abc", "").Code)

	env.source.fail(domain.ErrMalformedResponse)
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodGet, "/api/markets/bitcoin/chart", "").Code)
}

func TestFavorites_AnonymousFlow(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.poller.Refresh(context.Background()))

	rec := env.do(t, http.MethodPost, "/api/favorites", `{"crypto_id":"bitcoin"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/favorites", `{"crypto_id":"bitcoin"}`).Code)

	list := decode[favoritesResponse](t, env.do(t, http.MethodGet, "/api/favorites", ""))
	assert.Equal(t, 1, list.Count)

	markets := decode[marketsResponse](t, env.do(t, http.MethodGet, "/api/markets?favorites=true", ""))
	require.Len(t, markets.Markets, 1)
	assert.Equal(t, "bitcoin", markets.Markets[0].ID)
	assert.True(t, markets.Markets[0].IsFavorite)

	state := decode[favoriteStateResponse](t, env.do(t, http.MethodPost, "/api/favorites/bitcoin/toggle", ""))
	assert.False(t, state.IsFavorite)
	state = decode[favoriteStateResponse](t, env.do(t, http.MethodPost, "/api/favorites/bitcoin/toggle", ""))
	assert.True(t, state.IsFavorite)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/favorites/bitcoin", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/favorites/bitcoin", "").Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/favorites", `{"crypto_id":"dogecoin"}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/favorites/dogecoin/toggle", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/favorites", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/favorites", `not json`).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/favorites/merge", "").Code)
}

func TestAuth_LoginSwitchesFavorites(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.poller.Refresh(context.Background()))
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/favorites", `{"crypto_id":"bitcoin"}`).Code)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/auth/login", `{"email":"nope","password":"secret1"}`).Code)

	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.co","password":"wrong12"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")

	rec = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.co","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "jwt-42")
	assert.Equal(t, "42", decode[userResponse](t, rec).User.UserID)

	list := decode[favoritesResponse](t, env.do(t, http.MethodGet, "/api/favorites", ""))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "ethereum", list.Favorites[0].CryptoID)

	merged := decode[map[string]int](t, env.do(t, http.MethodPost, "/api/favorites/merge", ""))
	assert.Equal(t, 1, merged["merged"])
	assert.Equal(t, 2, decode[favoritesResponse](t, env.do(t, http.MethodGet, "/api/favorites", "")).Count)

	status := decode[statusResponse](t, env.do(t, http.MethodGet, "/api/status", ""))
	assert.True(t, status.Authenticated)
	assert.Equal(t, 2, status.Favorites)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/auth/logout", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", "").Code)

	list = decode[favoritesResponse](t, env.do(t, http.MethodGet, "/api/favorites", ""))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "bitcoin", list.Favorites[0].CryptoID)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/register", `{"email":"n@b.co","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "43", decode[userResponse](t, rec).User.UserID)
}

func TestHub_PushesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.poller.Refresh(context.Background()))
	require.Eventually(t, func() bool { return env.hub.Latest() != nil }, time.Second, 5*time.Millisecond)

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string              `json:"type"`
		Payload usecase.PollerState `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "market_snapshot", msg.Type)
	assert.Equal(t, usecase.PhaseReady, msg.Payload.Status.Phase)
	assert.Len(t, msg.Payload.Snapshot, 2)
}

func TestMarkets_SearchFilter(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.poller.Refresh(context.Background()))

	byName := decode[marketsResponse](t, env.do(t, http.MethodGet, "/api/markets?q=BitC", ""))
	require.Len(t, byName.Markets, 1)
	assert.Equal(t, "bitcoin", byName.Markets[0].ID)

	bySymbol := decode[marketsResponse](t, env.do(t, http.MethodGet, "/api/markets?q=+eth+", ""))
	require.Len(t, bySymbol.Markets, 1)
	assert.Equal(t, "ethereum", bySymbol.Markets[0].ID)

	none := decode[marketsResponse](t, env.do(t, http.MethodGet, "/api/markets?q=doge", ""))
	assert.Empty(t, none.Markets)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/favorites", `{"crypto_id":"bitcoin"}`).Code)
	favs := decode[marketsResponse](t, env.do(t, http.MethodGet, "/api/markets?favorites=true&q=eth", ""))
	assert.Empty(t, favs.Markets)
	favs = decode[marketsResponse](t, env.do(t, http.MethodGet, "/api/markets?favorites=true&q=btc", ""))
	require.Len(t, favs.Markets, 1)
	assert.True(t, favs.Markets[0].IsFavorite)
}

type stubHealth struct{ err error }

func (s stubHealth) Health(ctx context.Context) error { return s.err }

func TestStatus_ReportsConnectivity(t *testing.T) {
	env := newTestEnv(t)

	resp := decode[statusResponse](t, env.do(t, http.MethodGet, "/api/status", ""))
	assert.Empty(t, resp.Connectivity)
	assert.Nil(t, resp.CheckedAt)

	monitor := usecase.NewConnectivityMonitor(stubHealth{err: domain.ErrTransport}, usecase.MonitorConfig{}, nil)
	env.server.monitor = monitor
	require.Equal(t, usecase.ConnectivityDisconnected, monitor.Check(context.Background()))

	resp = decode[statusResponse](t, env.do(t, http.MethodGet, "/api/status", ""))
	assert.Equal(t, usecase.ConnectivityDisconnected, resp.Connectivity)
	require.NotNil(t, resp.CheckedAt)
	assert.Contains(t, resp.BackendError, domain.ErrTransport.Error())
	assert.False(t, resp.Authenticated)
	assert.Equal(t, usecase.PhaseLoading, resp.Market.Phase)
}
