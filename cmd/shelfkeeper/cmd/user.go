package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and library access",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		conn, store, err := rt.openStore(cmd, true)
		if err != nil {
			return err
		}
		defer conn.Close()

		admin, _ := cmd.Flags().GetBool("admin")
		catalog, _ := cmd.Flags().GetBool("catalog-access")
		user, err := store.CreateUser(cmd.Context(), args[0], admin, catalog)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %q created with id %d\n", user.Username, user.ID)
		return nil
	},
}

var libraryCreateCmd = &cobra.Command{
	Use:   "library <name>",
	Short: "Create a library and grant it to users",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		conn, store, err := rt.openStore(cmd, true)
		if err != nil {
			return err
		}
		defer conn.Close()

		libraryID, err := store.CreateLibrary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		grants, _ := cmd.Flags().GetStringSlice("grant")
		for _, name := range grants {
			user, err := store.GetUserByName(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("grant to %q: %w", name, err)
			}
			if err := store.GrantLibrary(cmd.Context(), user.ID, libraryID); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "library %q created with id %d\n", args[0], libraryID)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().Bool("admin", false, "grant administrator rights (all libraries)")
	userCreateCmd.Flags().Bool("catalog-access", true, "allow reading other users' public shelves")
	libraryCreateCmd.Flags().StringSlice("grant", nil, "usernames to grant access to")
	userCmd.AddCommand(userCreateCmd, libraryCreateCmd)
	rootCmd.AddCommand(userCmd)
}
