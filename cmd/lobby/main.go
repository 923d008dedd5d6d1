// The lobby command runs the session broker and carries a few tools for
// managing its database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/playhub/lobby/internal"
	"github.com/playhub/lobby/internal/core"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "lobby",
		Short: "Multiplayer lobby server and related tools",
		RunE:  ServerCommand,
		// Errors past flag parsing are runtime failures, not misuse.
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the directory containing config.yaml")
	rootCmd.PersistentFlags().String("log-level", "info", "Overrides logging.log_level")
	rootCmd.Flags().Int("lobby-port", 5555, "Overrides lobby.port")
	rootCmd.Flags().Int("http-port", 0, "Overrides web.http_port")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	accountAddCmd.Flags().StringVarP(&RoleFlag, "role", "r", "player", "Role of the new account (player or developer)")
	accountDeleteCmd.Flags().BoolVar(&PermanentFlag, "permanent", false, "Permanently delete the account (as opposed to a soft delete)")
	leaderboardCmd.Flags().IntVarP(&LimitFlag, "limit", "n", 10, "Number of entries to print (0 for all)")

	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(leaderboardCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config directory, letting any override flag set on cmd win.
func loadConfig(cmd *cobra.Command) (*core.Config, error) {
	return core.LoadConfig(ConfigFlag, cmd.Flags())
}

// ServerCommand runs every server until SIGINT or SIGTERM.
func ServerCommand(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fmt.Println("using configuration directory:", ConfigFlag)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		fmt.Println("waiting to shut down gracefully...")
	}()

	controller := &internal.Controller{Config: config}
	if err := controller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("shut down")
	return nil
}
