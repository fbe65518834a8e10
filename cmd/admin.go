/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tecnm-sys/apiserver/config"
	"github.com/tecnm-sys/apiserver/internal/auth"
	"github.com/tecnm-sys/apiserver/internal/db"
	"github.com/tecnm-sys/apiserver/internal/services"
	"github.com/tecnm-sys/apiserver/internal/store"
	"github.com/tecnm-sys/apiserver/types"
)

// adminCmd groups account administration commands.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage user accounts",
}

var adminPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin role to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd, args[0], types.RoleAdmin)
	},
}

var adminDemoteCmd = &cobra.Command{
	Use:   "demote <email>",
	Short: "Revoke the admin role from a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd, args[0], types.RoleUser)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminPromoteCmd)
	adminCmd.AddCommand(adminDemoteCmd)
}

func setRole(cmd *cobra.Command, email string, role types.Role) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	users, err := newUserService(cfg, conn)
	if err != nil {
		return err
	}
	if err := users.SetRole(cmd.Context(), email, role); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", email, role)
	return nil
}

// newUserService builds a UserService signing with the configured secret.
func newUserService(cfg config.Config, conn *sql.DB) (*services.UserService, error) {
	secret, _, err := cfg.ResolveJWTSecret()
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(secret, auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return nil, err
	}
	return services.NewUserService(
		store.NewUserRepository(conn),
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		tokens,
	), nil
}
