package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sgahotel/cs-service/internal/config"
	"github.com/sgahotel/cs-service/repository"
	"github.com/sgahotel/cs-service/router"
	"github.com/sgahotel/cs-service/workers"
)

var withSweeper bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&withSweeper, "with-sweeper", true, "Also run the idle session sweeper in this process")
}

func runServe(parent context.Context) error {
	cfg := config.App
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctxOrBackground(parent), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pg.Close()

	rdb := openRedis(ctx, cfg.RedisURL)
	if rdb != nil {
		defer rdb.Close()
	}

	engine, cleanup := router.NewGinRouter(cfg, pg, rdb)
	defer cleanup()

	if withSweeper {
		sweeper := workers.NewSessionWorker(repository.NewStore(pg), cfg.Session.IdleTimeout, cfg.Session.SweepInterval)
		go sweeper.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
