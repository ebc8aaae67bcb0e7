package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/shelfkeeper/internal/core/shelves"
	"github.com/solatis/shelfkeeper/internal/rules"
	"github.com/solatis/shelfkeeper/internal/types"
)

var shelfCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Inspect magic shelves",
}

var shelfBooksCmd = &cobra.Command{
	Use:   "books <shelf-id>",
	Short: "List the books on a shelf as seen by a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseShelfID(args[0])
		if err != nil {
			return fmt.Errorf("invalid shelf id: %w", err)
		}
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")

		return withService(cmd, func(svc *shelves.Service, userID int64) error {
			listing, err := svc.Books(cmd.Context(), userID, id, types.Page{Number: page, Size: size})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLIBRARY\tTITLE")
			for _, b := range listing.Books {
				title := ""
				if b.Title != nil {
					title = *b.Title
				}
				fmt.Fprintf(w, "%d\t%d\t%s\n", b.ID, b.LibraryID, title)
			}
			fmt.Fprintf(w, "\n%d of %d books\n", len(listing.Books), listing.Total)
			return w.Flush()
		})
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Work with shelf rule trees",
}

var rulesExplainCmd = &cobra.Command{
	Use:   "explain <filter.json>",
	Short: "Print the SQL a filter compiles to for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if !json.Valid(filter) {
			return fmt.Errorf("%s: %w", args[0], types.ErrInvalidFilter)
		}

		return withService(cmd, func(svc *shelves.Service, userID int64) error {
			ex, err := svc.Explain(cmd.Context(), userID, filter, types.Page{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "-- predicate\n%s\n\n", rules.Format(ex.Predicate))
			fmt.Fprintf(out, "-- listing\n%s\n\n-- count\n%s\n\n-- args\n", ex.ListSQL, ex.CountSQL)
			for i, a := range ex.Args {
				fmt.Fprintf(out, "%d: %v\n", i+1, a)
			}
			return nil
		})
	},
}

// withService opens the store and runs fn as the --user flag's account.
func withService(cmd *cobra.Command, fn func(svc *shelves.Service, userID int64) error) error {
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

	username, _ := cmd.Flags().GetString("user")
	user, err := store.GetUserByName(cmd.Context(), username)
	if err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}

	svc := shelves.NewService(store, rules.NewEngine(rt.logger), rt.cfg.Shelves, rt.logger)
	return fn(svc, user.ID)
}

func init() {
	for _, c := range []*cobra.Command{shelfBooksCmd, rulesExplainCmd} {
		c.Flags().String("user", "", "username to evaluate the shelf for")
		c.MarkFlagRequired("user")
	}
	shelfBooksCmd.Flags().Int("page", 0, "page number, starting at 0")
	shelfBooksCmd.Flags().Int("size", 0, "page size (0 for the configured default)")

	shelfCmd.AddCommand(shelfBooksCmd)
	rulesCmd.AddCommand(rulesExplainCmd)
	rootCmd.AddCommand(shelfCmd, rulesCmd)
}
