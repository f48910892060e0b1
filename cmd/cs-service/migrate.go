package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sgahotel/cs-service/internal/config"
	"github.com/sgahotel/cs-service/migrations"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded database migrations",
	Long: `Apply the SQL migrations compiled into the binary, each in its own transaction.

Examples:
  cs-service migrate            # apply pending migrations
  cs-service migrate --dry-run  # list pending migrations without applying`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd.Context())
		pg, err := openDB(ctx, config.App)
		if err != nil {
			return err
		}
		defer pg.Close()

		if dryRun {
			pending, err := migrations.Pending(ctx, pg)
			if err != nil {
				return err
			}
			for _, m := range pending {
				fmt.Println(m.Version)
			}
			log.Info().Int("pending", len(pending)).Msg("dry run, nothing applied")
			return nil
		}

		n, err := migrations.Up(ctx, pg)
		if err != nil {
			return err
		}
		log.Info().Int("applied", n).Msg("migrations complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
}
