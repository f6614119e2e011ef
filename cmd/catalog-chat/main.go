package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"catalog_chat/internal/catalog/cache"
	"catalog_chat/internal/catalog/repository"
	"catalog_chat/internal/catalog/seed"
	"catalog_chat/internal/catalog/tool"
	"catalog_chat/internal/chat/agent"
	"catalog_chat/internal/chat/repl"
	"catalog_chat/migrations"
	"catalog_chat/platform/ai/openai"
	"catalog_chat/platform/config"
	"catalog_chat/platform/container"
	"catalog_chat/platform/db"
	"catalog_chat/platform/events"
	"catalog_chat/platform/logger"
	"catalog_chat/platform/tracing"
	"catalog_chat/platform/validator"
)

var productsFlag int

var rootCmd = &cobra.Command{
	Use:          "catalog-chat",
	Short:        "Chat with an AI assistant about a seeded product catalog",
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.Flags().IntVarP(&productsFlag, "products", "n", 0, "number of products to seed (asked interactively when unset)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Env)
	log.Info("starting catalog chat", "env", cfg.Env, "provider", cfg.LLMProvider, "model", cfg.LLMModel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdin := bufio.NewReader(cmd.InOrStdin())
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	count, err := productCount(cmd, cfg, stdin, stdout)
	if err != nil {
		return err
	}

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if cfg.ShowDockerState() {
		container.PrintDockerState(ctx, stdout, "Docker state before provisioning")
	}

	var (
		traces *tracing.Provider
		pg     *container.Postgres
	)
	// Both outlive setup, so they get the process context rather than a group context.
	var g errgroup.Group
	g.Go(func() error {
		spans := io.Discard
		if strings.EqualFold(cfg.Env, "development") {
			spans = stderr
		}
		p, err := tracing.New(ctx, cfg, spans)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		traces = p
		return nil
	})
	if cfg.GetDatabaseURL() == "" {
		g.Go(func() error {
			p, err := container.StartPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			pg = p
			return nil
		})
	}
	waitErr := g.Wait()

	// Cleanup runs in reverse order even when setup only partly succeeded.
	if pg != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := pg.Terminate(shutdownCtx); err != nil {
				log.Error("failed to terminate database container", "error", err)
			}
		}()
	}
	if traces != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := traces.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to flush traces", "error", err)
			}
		}()
	}
	if waitErr != nil {
		return waitErr
	}
	log.Info("tracing initialized", "exporter", traces.Exporter())

	var dbCfg config.DatabaseConfig = cfg
	if pg != nil {
		dbCfg = pg
		fmt.Fprintf(stdout, "Connection string: %s\n", pg.ConnectionString())
	}
	if cfg.ShowDockerState() {
		container.PrintDockerState(ctx, stdout, "Docker state after provisioning")
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, time.Second, func() error {
		p, err := db.NewPool(ctx, dbCfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		return err
	}
	defer pool.Close()
	log.Info("database connection established")

	versions, err := db.RunMigrations(ctx, pool, migrations.FS)
	if err != nil {
		log.Error("failed to run database migrations", "error", err)
		return err
	}
	log.Info("database migrations complete", "applied", len(versions))

	// ========================================================================
	// Catalog
	// ========================================================================

	repo := repository.New(pool)
	bus := events.NewInMemoryBus(log)

	var reader repository.ProductReader = repo
	if cfg.IsCacheEnabled() {
		client, err := cache.NewClient(ctx, cfg)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return err
		}
		defer client.Close()

		cached := cache.NewReader(repo, client, cfg.GetCacheTTL(), log)
		cached.Subscribe(bus, seed.SeededEventName)
		reader = cached
		log.Info("product cache enabled", "ttl", cfg.GetCacheTTL())
	}

	written, err := seed.Seed(ctx, log, repo, seed.NewGenerator(cfg.GetSeedRandom()), count)
	if err != nil {
		log.DatabaseError("seed products", err)
		return err
	}
	log.Info("catalog seeded", "products", written)
	if err := bus.Publish(ctx, seed.NewSeeded(written)); err != nil {
		log.Warn("catalog seeded handlers failed", "error", err)
	}

	all, err := repo.FindProducts(ctx, repository.ProductFilter{})
	if err != nil {
		log.DatabaseError("list products", err)
		return err
	}
	if err := seed.PrintTable(stdout, all); err != nil {
		return err
	}

	// ========================================================================
	// Agent
	// ========================================================================

	llm, err := openai.NewModel(openai.ConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize chat model: %w", err)
	}

	products := tool.NewProductTool(reader, validator.New(), log)
	assistant, err := agent.New(cfg, llm, log, products)
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	err = repl.New(assistant, stdin, stdout, log, repl.WithErrorOutput(stderr)).Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("interrupted, shutting down")
		return nil
	}
	return err
}

// productCount resolves how many products to seed: flag, then configuration, then the operator.
func productCount(cmd *cobra.Command, cfg config.SeedConfig, in *bufio.Reader, out io.Writer) (int, error) {
	if cmd.Flags().Changed("products") {
		if productsFlag < 1 {
			return 0, fmt.Errorf("--products must be a positive integer, got %d", productsFlag)
		}
		return productsFlag, nil
	}
	if n := cfg.GetSeedProducts(); n > 0 {
		return n, nil
	}
	return askProductCount(in, out)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
