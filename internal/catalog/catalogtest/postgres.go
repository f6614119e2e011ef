// Package catalogtest starts a migrated PostgreSQL catalog for integration tests.
package catalogtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"catalog_chat/internal/catalog/repository"
	"catalog_chat/migrations"
	"catalog_chat/platform/config"
	"catalog_chat/platform/container"
	"catalog_chat/platform/db"
)

// Catalog is a migrated, empty products database.
type Catalog struct {
	Pool *pgxpool.Pool
	Repo *repository.Repo
}

// Start provisions the database, or skips the test under -short or without Docker.
func Start(t *testing.T) *Catalog {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := &config.Config{
		PostgresImage:    "postgres:17-alpine",
		PostgresDatabase: "catalog",
		PostgresUser:     "catalog",
		PostgresPassword: "catalog",
	}
	pg, err := container.StartPostgres(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	pool, err := db.NewPool(ctx, pg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.RunMigrations(ctx, pool, migrations.FS)
	require.NoError(t, err)

	return &Catalog{Pool: pool, Repo: repository.New(pool)}
}

// Reset empties the products table and restarts IDs.
func (c *Catalog) Reset(t *testing.T) {
	t.Helper()
	_, err := c.Pool.Exec(context.Background(), "TRUNCATE products RESTART IDENTITY")
	require.NoError(t, err)
}
