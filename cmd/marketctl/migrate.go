package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfkit/shelfkit/internal/repository"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			applied, err := repo.Migrate(cmd.Context())
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			version, err := repo.MigrateDown(cmd.Context())
			if err != nil {
				return err
			}
			if version == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", version)
			return nil
		},
	})

	return cmd
}

func openRepository(cmd *cobra.Command) (*repository.Repository, error) {
	url, err := databaseURL(cmd)
	if err != nil {
		return nil, err
	}
	repo, err := repository.New(cmd.Context(), url)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return repo, nil
}
