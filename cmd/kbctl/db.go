package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	initCmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the store runs the idempotent schema bootstrap
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", e.cfg.DBDriver)
			return nil
		},
	}
	rootCmd.AddCommand(initCmd)
}
