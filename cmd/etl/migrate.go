package main

import (
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *etl) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			const component = "Migrate"
			if _, err := e.storage(); err != nil {
				return err
			}
			if err := store.Migrate(e.database.DB); err != nil {
				return err
			}
			e.appLogger.Info(component, "Schema is up to date")
			return nil
		},
	}
}
