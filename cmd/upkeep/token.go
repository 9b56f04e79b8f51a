package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oakline/upkeep/internal/approval"
)

func newTokenCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "token <token>",
		Short: "Inspect a consent token",
		Long:  "Verifies a token's signature and prints its claims. Prompts for the signing secret unless --secret or UPKEEP_APPROVAL_SECRET is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, args[0], secret)
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (prefer the prompt or the environment)")
	return cmd
}

func runToken(cmd *cobra.Command, token, secret string) error {
	if secret == "" {
		secret = os.Getenv("UPKEEP_APPROVAL_SECRET")
	}
	if secret == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Signing secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		secret = strings.TrimSpace(string(raw))
	}
	if secret == "" {
		return fmt.Errorf("a signing secret is required")
	}

	claims, err := approval.Decode(secret, token)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Appointment: %s\n", claims.AppointmentID)
	fmt.Fprintf(out, "Org:         %s\n", claims.OrgID)
	fmt.Fprintf(out, "Issued:      %s\n", claims.IssuedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "Expires:     %s", claims.ExpiresAt.UTC().Format(time.RFC3339))
	if time.Now().After(claims.ExpiresAt) {
		fmt.Fprint(out, " (lapsed)")
	}
	fmt.Fprintln(out)
	return nil
}
