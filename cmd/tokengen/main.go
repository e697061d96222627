// Package main provides a CLI for minting and inspecting bearer tokens for
// local development. Tokens are signed with the key from the server config,
// which defaults to the development key.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"credledger/internal/auth"
	"credledger/internal/platform/config"
)

const programName = "tokengen"

var globalFlags = struct {
	configFile string
	jsonOutput bool
}{}

type tokenOutput struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
	Usage     string    `json:"usage"`
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           programName,
		Short:         "Mint and inspect credledger bearer tokens for local development",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "server YAML config file (signing key, issuer, TTL)")
	cmd.PersistentFlags().BoolVar(&globalFlags.jsonOutput, "json", false, "output as JSON")

	cmd.AddCommand(tokenCommand(), verifyCommand())
	return cmd
}

func loadAuthenticator(ttl time.Duration) (*auth.Authenticator, config.Config, error) {
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return nil, config.Config{}, err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}
	return auth.New(cfg.Auth.SigningKey, cfg.Auth.Issuer, ttl), cfg, nil
}

func tokenCommand() *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an email subject",
		Example: `  tokengen token --email registrar@example.com
  tokengen token --email ada@example.com --name Ada --ttl 1h --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cfg, err := loadAuthenticator(ttl)
			if err != nil {
				return err
			}
			token, expiresAt, err := a.IssueToken(cmd.Context(), email, name)
			if err != nil {
				return err
			}
			out := tokenOutput{
				Token:     token,
				Subject:   email,
				ExpiresAt: expiresAt,
				Usage:     "Authorization: Bearer <token>",
			}
			if cfg.IsProduction() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: minting a token with the production signing key")
			}
			return render(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "Subject:    %s\n", out.Subject)
				fmt.Fprintf(w, "Expires At: %s\n\n", out.ExpiresAt.Format(time.RFC3339))
				fmt.Fprintln(w, out.Token)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "token subject (required)")
	cmd.Flags().StringVar(&name, "name", "", "optional display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to the configured TTL)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a bearer token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadAuthenticator(0)
			if err != nil {
				return err
			}
			claims, err := a.VerifyToken(args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), claims, func(w io.Writer) {
				fmt.Fprintf(w, "Subject:    %s\n", claims.Subject)
				if claims.Name != "" {
					fmt.Fprintf(w, "Name:       %s\n", claims.Name)
				}
				fmt.Fprintf(w, "Issuer:     %s\n", claims.Issuer)
				fmt.Fprintf(w, "Token ID:   %s\n", claims.ID)
				fmt.Fprintf(w, "Expires At: %s\n", claims.ExpiresAt.Format(time.RFC3339))
			})
		},
	}
}

func render(w io.Writer, v any, text func(io.Writer)) error {
	if !globalFlags.jsonOutput {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
