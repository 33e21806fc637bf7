package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/account"
	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/common"
	"github.com/noah-isme/bookstore/internal/config"
)

type demoAccount struct {
	username, password string
	id                 int
}

var demoAccounts = []demoAccount{
	{"gold", "gold123", 5},
	{"diamond", "diamond123", 250},
	{"reader", "reader123", 1500},
}

func main() {
	force := flag.Bool("force", false, "overwrite an existing book file")
	demo := flag.Bool("demo", false, "also create one account per buyer tier")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	seedCatalog(cfg, *force)
	seedAccounts(cfg, *demo)

	log.Println("Seeding completed successfully!")
}

func seedCatalog(cfg *config.Config, force bool) {
	store := catalog.NewFileStore(cfg.Path(cfg.BookDataFile), zerolog.Nop())
	if _, err := os.Stat(store.Path()); err == nil && !force {
		log.Printf("Book file %s exists, skipping (use -force to overwrite)", store.Path())
		return
	}
	books := catalog.DefaultBooks()
	if err := store.Save(books); err != nil {
		log.Fatalf("Failed to write books: %v", err)
	}
	log.Printf("Wrote %d books to %s", len(books), store.Path())
}

func seedAccounts(cfg *config.Config, demo bool) {
	registry, err := account.NewRegistry(account.RegistryConfig{
		Store:    account.NewFileStore(cfg.Path(cfg.UserDataFile), zerolog.Nop()),
		Sessions: account.NewSessionLog(cfg.Path(cfg.SessionDataFile)),
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		log.Fatalf("Failed to open accounts: %v", err)
	}
	defer registry.Close()

	ctx := context.Background()
	if err := registry.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	log.Printf("Admin account %q ready", cfg.AdminUsername)

	if !demo {
		return
	}
	for _, a := range demoAccounts {
		_, err := registry.Register(ctx, a.username, a.password, a.id)
		switch {
		case errors.Is(err, common.ErrDuplicate):
			log.Printf("Account %q exists, skipping", a.username)
		case err != nil:
			log.Fatalf("Failed to create %q: %v", a.username, err)
		default:
			log.Printf("Created account %q (id %d)", a.username, a.id)
		}
	}
}
