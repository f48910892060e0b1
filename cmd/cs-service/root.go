package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sgahotel/cs-service/internal/config"
	"github.com/sgahotel/cs-service/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cs-service",
	Short: "Hotel customer service backend",
	Long:  `Guest registration, WhatsApp conversation sessions and service orders for hotel front desks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Setup(config.App.LogLevel, config.App.IsProduction())
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $CS_CONFIG_PATH or ./config/dev.config.yaml)")
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required")
	}
	pg, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pg.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	pg.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	pg.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := pg.PingContext(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// Set timezone to UTC for consistent time handling
	if _, err := pg.ExecContext(ctx, "SET TIME ZONE 'UTC'"); err != nil {
		log.Warn().Err(err).Msg("failed to set database timezone to UTC")
	}
	log.Info().Msg("connected to database")
	return pg, nil
}

// openRedis returns nil when no URL is configured or the server is unreachable.
func openRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Info().Msg("redis not configured, webhook dedup is per process")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn().Err(err).Msg("invalid redis url, webhook dedup is per process")
		return nil
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, webhook dedup is per process")
		rdb.Close()
		return nil
	}
	log.Info().Msg("connected to redis")
	return rdb
}
