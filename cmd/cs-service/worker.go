package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sgahotel/cs-service/internal/config"
	"github.com/sgahotel/cs-service/repository"
	"github.com/sgahotel/cs-service/workers"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the idle session sweeper",
	Long:  `Terminates open sessions idle longer than session.idle_timeout. Run it when serve uses --with-sweeper=false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(ctxOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := config.App
		pg, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer pg.Close()

		workers.NewSessionWorker(repository.NewStore(pg), cfg.Session.IdleTimeout, cfg.Session.SweepInterval).Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
