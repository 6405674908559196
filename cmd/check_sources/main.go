package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/crypto_watch/internal/app"
	"github.com/vitos/crypto_watch/internal/config"
	"github.com/vitos/crypto_watch/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	coin := flag.String("coin", "bitcoin", "entity id used for the history check")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	clients := app.BackendClients(cfg, nil)
	sources := app.MarketSources(cfg, clients, nil)

	fmt.Printf("Checking %d market sources...\n", len(sources))
	for _, c := range clients {
		if err := c.Health(ctx); err != nil {
			fmt.Printf("❌ %s health (%s): %v\n", c.Name(), c.BaseURL(), err)
		} else {
			fmt.Printf("✅ %s health (%s)\n", c.Name(), c.BaseURL())
		}
	}

	for _, src := range sources {
		start := time.Now()
		entities, err := src.FetchMarkets(ctx)
		if err != nil {
			fmt.Printf("❌ %s markets: %v\n", src.Name(), err)
			continue
		}
		fmt.Printf("✅ %s markets: %d entities in %s\n", src.Name(), len(entities), time.Since(start).Round(time.Millisecond))
		if len(entities) > 0 {
			top := entities[0]
			fmt.Printf("   %s (%s): %s\n", top.Name, top.Symbol, top.CurrentPrice.String())
		}

		points, err := src.FetchHistory(ctx, *coin, 7)
		if err != nil {
			fmt.Printf("❌ %s history %s: %v\n", src.Name(), *coin, err)
		} else {
			fmt.Printf("✅ %s history %s: %d points\n", src.Name(), *coin, len(points))
		}
	}

	resolver := usecase.NewSourceResolver(sources, cfg.Polling.SourceTimeout(), nil)
	res, err := resolver.FetchMarketSnapshot(ctx)
	if err != nil {
		fmt.Printf("❌ Resolver: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Resolver answered from %s\n", res.Source)
}
