package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/shelfkeeper/internal/core/auth"
	"github.com/solatis/shelfkeeper/internal/core/config"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Issue an API key for a user",
	Long:  `Issues an API key signed with SK_HMAC_SECRET. The key is printed once and cannot be recovered.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		secretID, secret, err := config.PrimaryHMACSecret()
		if err != nil {
			return err
		}

		conn, store, err := rt.openStore(cmd, true)
		if err != nil {
			return err
		}
		defer conn.Close()

		user, err := store.GetUserByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		keyID, key, err := auth.IssueAPIKey(cmd.Context(), store.Queries(), secretID, secret, user.ID, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "api key %s for %s:\n%s\n", keyID, user.Username, key)
		return nil
	},
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		conn, store, err := rt.openStore(cmd, false)
		if err != nil {
			return err
		}
		defer conn.Close()

		return auth.RevokeAPIKey(cmd.Context(), store.Queries(), args[0])
	},
}

func init() {
	apikeyCreateCmd.Flags().String("name", "cli", "label stored with the key")
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)
	rootCmd.AddCommand(apikeyCmd)
}
