package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"mediakit/internal/config"
	"mediakit/internal/domain"
	"mediakit/internal/persistence"
	"mediakit/internal/secret"
	"mediakit/internal/storage"
	"mediakit/internal/storage/mongostore"
)

// OpenDocumentStore opens the backend store named by cfg.Driver.
func OpenDocumentStore(ctx context.Context, cfg config.BackendConfig, logger *log.Logger) (domain.DocumentStore, error) {
	switch cfg.Driver {
	case storage.DriverSQLite, storage.DriverMySQL, storage.DriverPostgres:
		db, err := storage.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return storage.NewDocumentStore(db, cfg.MaxRevisions, logger), nil
	case "mongodb":
		return mongostore.Open(ctx, cfg.DSN, cfg.Database, cfg.MaxRevisions, logger)
	default:
		return nil, fmt.Errorf("open document store: unsupported driver %q", cfg.Driver)
	}
}

// openDrafts opens the local draft store, always sqlite, one revision deep.
func openDrafts(path, documentID string, logger *log.Logger) (*persistence.DraftStore, error) {
	db, err := storage.Open(storage.DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open drafts: %w", err)
	}
	return persistence.NewDraftStore(storage.NewDocumentStore(db, 1, logger), documentID), nil
}

// resolveSecrets expands env: and keychain: references in the credential
// fields of cfg.
func resolveSecrets(cfg *config.Config, store secret.SecretStore) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"persistence.security_token", &cfg.Persistence.SecurityToken},
		{"backend.token", &cfg.Backend.Token},
		{"backend.dsn", &cfg.Backend.DSN},
	}
	for _, f := range fields {
		v, err := secret.Resolve(*f.ptr, store)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.ptr = v
	}
	return nil
}
