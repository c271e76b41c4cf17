// Package wire provides dependency injection for the surveyforge CLI.
// It creates singleton infrastructure with lazy initialization.
package wire

import (
	"log"
	"os"
	"sync"

	"github.com/example/surveyforge/internal/adapters/httpstore"
	"github.com/example/surveyforge/internal/adapters/sqlite"
	"github.com/example/surveyforge/internal/config"
	"github.com/example/surveyforge/internal/db"
	"github.com/example/surveyforge/internal/ports/secondary"
)

var (
	cfg        *config.Config
	draftStore secondary.DraftStore
	draftRepo  *sqlite.DraftRepository
	once       sync.Once
)

// Config returns the singleton configuration, loaded from the current
// directory (config file plus environment overrides).
func Config() *config.Config {
	once.Do(initInfra)
	return cfg
}

// DraftStore returns the singleton DraftStore. When store_url is
// configured the remote HTTP store is used; otherwise the local SQLite
// database.
func DraftStore() secondary.DraftStore {
	once.Do(initInfra)
	return draftStore
}

// DraftRepository returns the concrete SQLite repository for local
// housekeeping operations (list, purge) that are not part of the
// DraftStore port. Nil when a remote store is configured.
func DraftRepository() *sqlite.DraftRepository {
	once.Do(initInfra)
	return draftRepo
}

// Scope returns the owner scope from configuration.
func Scope() secondary.OwnerScope {
	once.Do(initInfra)
	return secondary.OwnerScope{UserID: cfg.UserID, CompanyID: cfg.CompanyID}
}

// initInfra initializes configuration and the draft store.
// This is called once via sync.Once.
func initInfra() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to determine working directory: %v", err)
	}

	cfg, err = config.LoadConfig(cwd)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.StoreURL != "" {
		draftStore = httpstore.NewClient(cfg.StoreURL)
		return
	}

	if cfg.DBPath != "" {
		db.SetPath(cfg.DBPath)
	}
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	draftRepo = sqlite.NewDraftRepository(database)
	draftStore = draftRepo
}
