package main

import (
	"github.com/spf13/cobra"

	"github.com/researchly/marketscout/config"
	srv "github.com/researchly/marketscout/internal/server"
)

func migrateCMD() *cobra.Command {
	var cfgPath, dir, direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Apply archive database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Migrate(dir, cfg.Archive.URL, direction, steps)
		},
	}
	migrate.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.json)")

	return migrate
}
