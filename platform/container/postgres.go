// Package container provisions the disposable PostgreSQL instance the catalog lives in.
// This is part of the platform layer and contains no business logic.
package container

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"catalog_chat/platform/config"
)

// Postgres is a running database container.
type Postgres struct {
	container *postgres.PostgresContainer
	url       string
}

// StartPostgres starts a PostgreSQL container and waits until it accepts connections.
func StartPostgres(ctx context.Context, cfg config.ContainerConfig) (*Postgres, error) {
	ctr, err := postgres.Run(ctx, cfg.GetPostgresImage(),
		postgres.WithDatabase(cfg.GetPostgresDatabase()),
		postgres.WithUsername(cfg.GetPostgresUser()),
		postgres.WithPassword(cfg.GetPostgresPassword()),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		if ctr != nil {
			_ = testcontainers.TerminateContainer(ctr)
		}
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	return &Postgres{container: ctr, url: url}, nil
}

// ConnectionString returns the URL of the database inside the container.
func (p *Postgres) ConnectionString() string { return p.url }

// GetDatabaseURL implements config.DatabaseConfig.
func (p *Postgres) GetDatabaseURL() string { return p.url }

// Terminate stops and removes the container.
func (p *Postgres) Terminate(ctx context.Context) error {
	return p.container.Terminate(ctx)
}
