package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/playhub/lobby/internal/core/data"
	"github.com/playhub/lobby/internal/leaderboard"
)

var LimitFlag int

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Prints the current leaderboard straight from the database",
	Args:  cobra.NoArgs,
	RunE:  LeaderboardCommand,
}

func LeaderboardCommand(cmd *cobra.Command, _ []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer data.Close(db)

	accounts, err := data.RankedAccounts(db)
	if err != nil {
		return fmt.Errorf("error loading accounts: %w", err)
	}
	entries := leaderboard.Rank(accounts)
	if LimitFlag > 0 && len(entries) > LimitFlag {
		entries = entries[:LimitFlag]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSERNAME\tWINS\tPLAYED")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", e.Rank, e.Username, e.Wins, e.Played)
	}
	return w.Flush()
}
