package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ecoindex/internal/auth"
)

// adminPasswordEnv supplies the password when --password is omitted.
const adminPasswordEnv = "ECOINDEX_ADMIN_PASSWORD"

// NewCreateAdminCommand creates the create-admin command.
func NewCreateAdminCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		email    string
		password string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account directly in the credential store.

This is the only way to create a SUPER_ADMIN; the API never assigns it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := rootOpts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if password == "" {
				password = getenv(rootOpts)(adminPasswordEnv)
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			if !r.AtLeast(auth.RoleAdmin) {
				return fmt.Errorf("role must be ADMIN or SUPER_ADMIN, got %s", r)
			}

			db, err := openStore(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			users, err := newUserService(cfg, db, logger)
			if err != nil {
				return err
			}
			user, err := users.CreateUser(cmd.Context(), email, password, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with id %d\n", user.Email, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $"+adminPasswordEnv+")")
	cmd.Flags().StringVar(&role, "role", strings.ToLower(string(auth.RoleSuperAdmin)), "ADMIN or SUPER_ADMIN")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
