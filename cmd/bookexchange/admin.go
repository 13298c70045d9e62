package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bookexchange/internal/app"
	"bookexchange/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()
		// Opening the store already ran the migrations.
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var superuserFlags struct {
	username string
	email    string
	password string
}

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create the admin account if it does not exist",
	Long: `Create an admin account and its profile. Credentials come from flags,
then BOOKEX_SUPERUSER_USERNAME, BOOKEX_SUPERUSER_EMAIL and
BOOKEX_SUPERUSER_PASSWORD, then development defaults. Running it again for an
existing username only makes sure the profile exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		su := config.LoadSuperuser()
		if superuserFlags.username != "" {
			su.Username = superuserFlags.username
		}
		if superuserFlags.email != "" {
			su.Email = superuserFlags.email
		}
		if superuserFlags.password != "" {
			su.Password = superuserFlags.password
		}

		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		user, created, err := d.app.CreateSuperuser(cmd.Context(), su.Username, su.Email, su.Password)
		if err != nil {
			return fmt.Errorf("create superuser: %w", err)
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "superuser %q created\n", user.Username)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "superuser %q already exists\n", user.Username)
		}
		return nil
	},
}

var deleteUserCmd = &cobra.Command{
	Use:   "deleteuser <username>",
	Short: "Delete a user and everything they own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.app.DeleteUserByUsername(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, app.ErrNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %q deleted\n", args[0])
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&superuserFlags.username, "username", "", "Admin username")
	createSuperuserCmd.Flags().StringVar(&superuserFlags.email, "email", "", "Admin email")
	createSuperuserCmd.Flags().StringVar(&superuserFlags.password, "password", "", "Admin password")
}
