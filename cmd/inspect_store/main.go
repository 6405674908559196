package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/crypto_watch/internal/app"
	"github.com/vitos/crypto_watch/internal/config"
	"github.com/vitos/crypto_watch/internal/domain"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		fmt.Printf("Failed to open %s store: %v\n", cfg.Storage.Driver, err)
		os.Exit(1)
	}
	defer store.Close()

	token, ok, err := store.Get(ctx, domain.KeyToken)
	switch {
	case err != nil:
		fmt.Printf("❌ Failed to read token: %v\n", err)
	case !ok || domain.IsAbsentValue(token):
		fmt.Printf("⚠️ No credential stored (raw=%q)\n", token)
	default:
		fmt.Printf("✅ Credential stored (%d chars)\n", len(token))
	}

	user, ok, err := store.Get(ctx, domain.KeyUser)
	if err == nil && ok {
		var id domain.Identity
		if err := json.Unmarshal([]byte(user), &id); err != nil {
			fmt.Printf("❌ Stored user unreadable: %v\n", err)
		} else {
			fmt.Printf("✅ User: id=%s email=%s\n", id.UserID, id.Email)
		}
	}

	raw, ok, err := store.Get(ctx, domain.KeyFavorites)
	if err != nil {
		fmt.Printf("❌ Failed to read favorites: %v\n", err)
		os.Exit(1)
	}
	if !ok || domain.IsAbsentValue(raw) {
		fmt.Println("No anonymous favorites stored")
		return
	}

	var records []domain.FavoriteRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		fmt.Printf("❌ Anonymous favorites corrupt: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d anonymous favorites:\n", len(records))
	for _, r := range records {
		fmt.Printf("- %s (%s) price=%s added=%s\n", r.CryptoID, r.Symbol, r.CurrentPrice.String(), r.AddedAt.Format("2006-01-02 15:04"))
	}
}
