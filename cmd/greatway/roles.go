package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greatway/greatway/internal/core/domain"
	"github.com/greatway/greatway/internal/core/service"
	"github.com/greatway/greatway/internal/infrastructure/config"
	"github.com/greatway/greatway/pkg/logger"
)

func newRolesCmd() *cobra.Command {
	rolesCmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect and grant user roles in the credential store",
	}

	rolesCmd.AddCommand(
		&cobra.Command{
			Use:   "grant <username> <role>",
			Short: "Grant a role (Admin, User or Guest) to a user",
			Long: `Grant a role to an existing user. Granting a role the user already
holds is a no-op. Tokens issued before the grant keep their old roles until
they expire.`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				role, err := domain.ParseRole(args[1])
				if err != nil {
					return err
				}
				return withAuthService(cmd.Context(), func(ctx context.Context, auth *service.AuthService) error {
					if err := auth.GrantRole(ctx, args[0], role); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s\n", role, args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list <username>",
			Short: "List the roles held by a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAuthService(cmd.Context(), func(ctx context.Context, auth *service.AuthService) error {
					roles, err := auth.RolesOf(ctx, args[0])
					if err != nil {
						return err
					}
					names := make([]string, len(roles))
					for i, r := range roles {
						names[i] = string(r)
					}
					fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
					return nil
				})
			},
		},
	)
	return rolesCmd
}

// withAuthService opens the configured store for the duration of fn. Token
// issuing is not needed for role administration.
func withAuthService(ctx context.Context, fn func(context.Context, *service.AuthService) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sc, err := config.LoadStore(ctx)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, sc)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer store.Close()

	return fn(ctx, service.NewAuthService(store, nil, logger.Get()))
}
