package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"onsalenow/internal/services"
	"onsalenow/internal/validate"
)

var inviteCmd = &cobra.Command{
	Use:   "invite <email>",
	Short: "Mint a single-use admin invitation",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvite,
}

func init() {
	inviteCmd.Flags().Duration("ttl", 0, "Invitation lifetime (default from $INVITE_TTL)")
	rootCmd.AddCommand(inviteCmd)
}

func runInvite(cmd *cobra.Command, args []string) error {
	email, ok := validate.Email(args[0])
	if !ok {
		return fmt.Errorf("invalid email %q", args[0])
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")

	// Minting needs only the secret; no store is opened.
	invites := services.NewInviteService(cfg.InviteSecret, cfg.InviteTTL, nil)
	token, exp, err := invites.Mint(email, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires %s\n", token, exp.Format(time.RFC3339))
	return nil
}
