// Package store persists the user's meals, groups and bypassed spikes
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// Default file names inside the config directory
const (
	DefaultJSONFile   = "meals.json"
	DefaultSQLiteFile = "glucose-spikes.db"
)

// Repository loads and saves whole snapshots. Callers mutate the loaded
// value and save it back.
type Repository interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
	Close() error
}

// Open returns the repository selected by cfg. An empty path resolves to
// the backend's default file in the config directory.
func Open(cfg models.StorageConfig, logger *slog.Logger) (Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := cfg.Path
	if path == "" {
		dir, err := models.GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving store path: %w", err)
		}
		name := DefaultJSONFile
		if cfg.Backend == "sqlite" {
			name = DefaultSQLiteFile
		}
		path = filepath.Join(dir, name)
	}

	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(path, logger)
	case "json", "":
		return NewJSON(path, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
