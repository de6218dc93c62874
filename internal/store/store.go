// Package store provides intake.Store implementations.
package store

import (
	"context"
	"fmt"
	"io"

	"github.com/Skufu/medintake/internal/config"
	"github.com/Skufu/medintake/internal/intake"
)

// Closer is an intake.Store that holds external resources.
type Closer interface {
	intake.Store
	io.Closer
}

var (
	_ Closer       = (*PostgresStore)(nil)
	_ Closer       = (*SQLiteStore)(nil)
	_ intake.Store = (*MemoryStore)(nil)
)

type nopCloser struct{ intake.Store }

func (nopCloser) Close() error { return nil }

// New builds the store selected by cfg.StoreDriver.
func New(ctx context.Context, cfg *config.Config) (Closer, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		return nopCloser{NewMemoryStore()}, nil
	case config.StorePostgres:
		return ConnectPostgres(ctx, cfg.DatabaseURL)
	case config.StoreSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
