package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vitos/crypto_watch/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	poller    *usecase.MarketPoller
	resolver  *usecase.SourceResolver
	identity  *usecase.IdentityContext
	favorites *usecase.FavoritesStore
	monitor   *usecase.ConnectivityMonitor
	hub       *Hub
	validate  *validator.Validate
	logger    *zap.Logger
}

// Deps groups the services the HTTP surface reads from. Monitor and Hub may be nil.
type Deps struct {
	Poller    *usecase.MarketPoller
	Resolver  *usecase.SourceResolver
	Identity  *usecase.IdentityContext
	Favorites *usecase.FavoritesStore
	Monitor   *usecase.ConnectivityMonitor
	Hub       *Hub
}

func NewServer(port int, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    http.NewServeMux(),
		poller:    deps.Poller,
		resolver:  deps.Resolver,
		identity:  deps.Identity,
		favorites: deps.Favorites,
		monitor:   deps.Monitor,
		hub:       deps.Hub,
		validate:  validator.New(),
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Markets
	s.router.HandleFunc("GET /api/markets", s.handleMarkets)
	s.router.HandleFunc("POST /api/markets/refresh", s.handleRefreshMarkets)
	s.router.HandleFunc("GET /api/markets/{id}/chart", s.handleChart)

	// Status
	s.router.HandleFunc("GET /api/status", s.handleStatus)

	// Favorites
	s.router.HandleFunc("GET /api/favorites", s.handleListFavorites)
	s.router.HandleFunc("POST /api/favorites", s.handleAddFavorite)
	s.router.HandleFunc("DELETE /api/favorites/{id}", s.handleRemoveFavorite)
	s.router.HandleFunc("POST /api/favorites/{id}/toggle", s.handleToggleFavorite)
	s.router.HandleFunc("POST /api/favorites/merge", s.handleMergeFavorites)

	// Auth
	s.router.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.router.HandleFunc("GET /api/auth/me", s.handleMe)

	// Live snapshot push
	if s.hub != nil {
		s.router.HandleFunc("GET /ws", s.hub.HandleWS)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
