package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/ams-auth/internal/auth"
)

func newUserCommand(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCommand(configPath), newUserActivateCommand(configPath))
	return cmd
}

func newUserCreateCommand(configPath func() string) *cobra.Command {
	var (
		req   auth.NewUser
		perms []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an active account (all permissions unless --permission is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := parsePermissions(perms)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, log, err := loadConfig(configPath())
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // Exiting

			user, err := auth.ProvisionUser(ctx, st.users, req, keys)
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringSliceVar(&perms, "permission", nil, "permission key, repeatable")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserActivateCommand(configPath func() string) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate an account created through signup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(configPath())
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // Exiting

			user, err := st.users.FindByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("finding %s: %w", email, err)
			}
			if err := st.users.SetStatus(ctx, user.ID, true); err != nil {
				return fmt.Errorf("activating %s: %w", email, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated user %s\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// parsePermissions converts flag values to permission keys. No values means
// every known permission.
func parsePermissions(values []string) ([]auth.PermissionKey, error) {
	if len(values) == 0 {
		return auth.AllPermissions(), nil
	}

	keys := make([]auth.PermissionKey, 0, len(values))
	var errs []error
	for _, v := range values {
		key := auth.PermissionKey(strings.TrimSpace(v))
		if !auth.IsValidPermission(key) {
			errs = append(errs, fmt.Errorf("unknown permission %q", v))
			continue
		}
		keys = append(keys, key)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return keys, nil
}
