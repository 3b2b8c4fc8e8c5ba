// Command marketctl is the operator tool: schema migrations, account
// bootstrap and signed test events.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "Operate a shelfkit deployment",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")

	root.AddCommand(migrateCmd())
	root.AddCommand(accountsCmd())
	root.AddCommand(eventsCmd())
	return root
}

func databaseURL(cmd *cobra.Command) (string, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		return "", fmt.Errorf("DATABASE_URL or --database-url is required")
	}
	return url, nil
}
