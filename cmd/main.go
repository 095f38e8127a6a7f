/**
 * @description
 * This is the main entry point for the bank-service. It exposes two subcommands:
 * `serve` initializes configuration, the database pool, Redis, RabbitMQ, the
 * application services, the ledger audit scheduler and the HTTP server; `migrate`
 * applies the embedded schema migrations and exits.
 *
 * @dependencies
 * - github.com/spf13/cobra: Subcommand handling.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/config, internal/store: Configuration and data access.
 */

package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/transfa/bank-service/internal/config"
	"github.com/transfa/bank-service/internal/store"
)

func main() {
	// Load .env for local development; deployed environments set real variables.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bank-service",
		Short: "Back-office banking service: accounts, reference data and transfers",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing an optional .env file")

	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newMigrateCommand(&configPath))
	return rootCmd
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}

			dbpool, err := openPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbpool.Close()

			applied, err := store.Migrate(cmd.Context(), dbpool)
			if err != nil {
				return err
			}
			log.Printf("level=info component=migrate msg=\"migrations complete\" applied=%d", applied)
			return nil
		},
	}
}

// openPool establishes the PostgreSQL connection pool and verifies it with a ping.
func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = cfg.DatabaseMaxConns
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to stay compatible with transaction poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, err
	}
	log.Println("level=info component=bootstrap msg=\"database connected\"")
	return dbpool, nil
}
