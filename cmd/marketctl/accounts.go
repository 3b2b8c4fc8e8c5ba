package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfkit/shelfkit/internal/auth"
	"github.com/shelfkit/shelfkit/internal/payments"
	"github.com/shelfkit/shelfkit/internal/service"
)

type accountOutput struct {
	AccountID    string `json:"account_id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Key          string `json:"key"`
	ClaimsLinked int    `json:"claims_linked"`
	PayeeID      string `json:"payee_id,omitempty"`
}

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage accounts",
	}
	cmd.AddCommand(accountsCreateCmd())
	return cmd
}

func accountsCreateCmd() *cobra.Command {
	var (
		email    string
		username string
		name     string
		env      string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an account and print its API key",
		Long: `Register an account the same way POST /accounts does, including
linking pending purchases made with the same email.

The payout account is created only when PAYMENTS_SECRET_KEY is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "plain" && format != "json" {
				return fmt.Errorf("invalid format %q; use plain or json", format)
			}
			if env != auth.EnvLive && env != auth.EnvTest {
				return fmt.Errorf("invalid key env %q; use live or test", env)
			}

			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

			var payees service.PayeeProvider
			if secret := os.Getenv("PAYMENTS_SECRET_KEY"); secret != "" {
				opts := []payments.Option{payments.WithLogger(logger)}
				if base := os.Getenv("PAYMENTS_API_URL"); base != "" {
					opts = append(opts, payments.WithBaseURL(base))
				}
				payees = payments.NewClient(secret, opts...)
			}

			accounts := service.NewAccountService(repo, payees, os.Getenv("BASE_URL"), env, logger, nil)
			reg, err := accounts.Register(cmd.Context(), service.RegisterInput{
				Email:    email,
				Username: username,
				Name:     name,
			})
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}

			return writeAccount(cmd.OutOrStdout(), format, accountOutput{
				AccountID:    reg.Account.ID,
				Email:        reg.Account.Email,
				Username:     reg.Account.Username,
				Key:          reg.APIKey,
				ClaimsLinked: reg.ClaimsLinked,
				PayeeID:      reg.Account.PayeeID,
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&env, "env", auth.EnvLive, "API key environment (live or test)")
	cmd.Flags().StringVar(&format, "format", "plain", "output format: plain or json")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func writeAccount(w io.Writer, format string, out accountOutput) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintln(w, out.Key)
	return err
}
