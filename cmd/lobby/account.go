package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/playhub/lobby/internal/core/auth"
	"github.com/playhub/lobby/internal/core/data"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management tools",
}

var accountAddCmd = &cobra.Command{
	Use:   "add [username] [password]",
	Short: "Registers a new account in the database",
	Args:  cobra.MaximumNArgs(2),
	RunE:  AccountAddCommand,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete [username]",
	Short: "Deletes an account from the database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  AccountDeleteCommand,
}

var (
	RoleFlag      string
	PermanentFlag bool
)

func initDB(cmd *cobra.Command) (*gorm.DB, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return data.Open(config)
}

// Token lifetime is irrelevant here; the CLI never issues tokens.
func directory(db *gorm.DB) *auth.Directory {
	return auth.NewDirectory(db, time.Minute)
}

func AccountAddCommand(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer data.Close(db)

	var username, password string
	username, args = popArg(args, "Username")
	password, _ = popArg(args, "Password")

	account, err := directory(db).Register(username, password, RoleFlag)
	if errors.Is(err, auth.ErrUsernameTaken) {
		fmt.Printf("account '%s' already exists; skipping\n", username)
		return nil
	} else if err != nil {
		return fmt.Errorf("error creating account: %w", err)
	}
	fmt.Printf("created %s account for '%s' (ID: %d)\n", account.Role, account.Username, account.ID)
	return nil
}

func AccountDeleteCommand(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer data.Close(db)

	username, _ := popArg(args, "Username")
	if err := directory(db).DeleteAccount(strings.TrimSpace(username), PermanentFlag); err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}
	fmt.Println("deleted account")
	return nil
}

// popArg returns the first argument, prompting for it on stdin if none is left.
func popArg(args []string, prompt string) (string, []string) {
	if len(args) == 1 {
		return args[0], nil
	} else if len(args) > 1 {
		return args[0], args[1:]
	}

	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return scanner.Text(), args
}
