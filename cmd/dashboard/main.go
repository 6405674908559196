package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/crypto_watch/internal/app"
	"github.com/vitos/crypto_watch/internal/config"
	"github.com/vitos/crypto_watch/internal/infrastructure/backend"
	"github.com/vitos/crypto_watch/internal/infrastructure/logger"
	"github.com/vitos/crypto_watch/internal/usecase"
	"github.com/vitos/crypto_watch/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.New(logger.Options{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
		File:     cfg.Logging.File,
	})
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Init Storage
	store, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	// 4. Market sources
	clients := app.BackendClients(cfg, log)
	primary := clients[0]
	resolver := usecase.NewSourceResolver(app.MarketSources(cfg, clients, log), cfg.Polling.SourceTimeout(), log)
	log.Info("Market sources configured", zap.Strings("sources", resolver.Sources()))

	// 5. Identity and favorites
	identity, err := usecase.NewIdentityContext(ctx, backend.NewAuthClient(primary), store, log)
	if err != nil {
		log.Fatal("Failed to restore identity", zap.Error(err))
	}
	favorites := usecase.NewFavoritesStore(
		identity,
		backend.NewFavoritesClient(primary, identity),
		usecase.NewLocalFavorites(store, log),
		log,
	)
	identity.OnChange(favorites.OnIdentityChange)
	if err := favorites.Reload(ctx); err != nil {
		log.Warn("Initial favorites load failed", zap.Error(err))
	}

	// 6. Background loops
	hub := web.NewHub(log)
	go hub.Run(ctx)

	poller := usecase.NewMarketPoller(resolver, usecase.PollerConfig{Interval: cfg.Polling.MarketRefresh()}, log)
	poller.OnUpdate(hub.PublishSnapshot)
	poller.Start(ctx)

	monitor := usecase.NewConnectivityMonitor(primary, usecase.MonitorConfig{
		Interval: cfg.Polling.HealthCheck(),
		Timeout:  cfg.Polling.HealthTimeout(),
	}, log)
	monitor.Start(ctx)

	// 7. Web Server
	server := web.NewServer(cfg.Server.Port, web.Deps{
		Poller:    poller,
		Resolver:  resolver,
		Identity:  identity,
		Favorites: favorites,
		Monitor:   monitor,
		Hub:       hub,
	}, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	// 8. Wait for Shutdown
	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := poller.Stop(shutdownCtx); err != nil {
		log.Error("Poller stop failed", zap.Error(err))
	}
	if err := monitor.Stop(shutdownCtx); err != nil {
		log.Error("Monitor stop failed", zap.Error(err))
	}
}
