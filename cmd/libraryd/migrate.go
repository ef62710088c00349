package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-service/config"
	"library-service/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				cfg = config.Default()
			}

			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			return st.Migrate(cmd.Context())
		},
	}
}
