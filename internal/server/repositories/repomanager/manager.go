// Package repomanager builds the storage backend selected in configuration
// and hands out the repositories that live on it.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/jwtauth/internal/server/config"
	"github.com/dmitrijs2005/jwtauth/internal/server/repositories/users"
)

// RepositoryManager owns a storage connection and the repositories on top of it.
type RepositoryManager interface {
	// RunMigrations prepares the backend for use (schema, connectivity).
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Close() error
}

// New opens the backend named by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		return OpenPostgres(cfg.DatabaseDSN)
	case config.BackendRedis:
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
	case config.BackendMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
