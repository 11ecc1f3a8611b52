package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bivex/paygate/internal/application/middleware"
	"github.com/bivex/paygate/internal/infrastructure/config"
	"github.com/bivex/paygate/internal/infrastructure/logging"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and revoke API access tokens",
	}
	cmd.AddCommand(tokenIssueCmd())
	cmd.AddCommand(tokenRevokeCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue [user-id]",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			admin, _ := cmd.Flags().GetBool("admin")

			jwtMiddleware, closeFn, err := newJWT()
			if err != nil {
				return err
			}
			defer closeFn()

			role := ""
			if admin {
				role = middleware.RoleAdmin
			}
			token, jti, err := jwtMiddleware.GenerateAccessToken(userID.String(), role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "jti:   %s\ntoken: %s\n", jti, token)
			return nil
		},
	}
	cmd.Flags().Bool("admin", false, "Grant the admin role")
	return cmd
}

func tokenRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke [jti]",
		Short: "Revoke an access token before it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")

			jwtMiddleware, closeFn, err := newJWT()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := jwtMiddleware.RevokeToken(cmd.Context(), args[0], ttl); err != nil {
				return fmt.Errorf("failed to revoke token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 15*time.Minute, "How long the revocation is kept; at least the token's remaining lifetime")
	return cmd
}

func newJWT() (*middleware.JWTMiddleware, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	jwtMiddleware := middleware.NewJWTMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer, client, cfg.JWT.AccessTTL, logging.Logger)
	return jwtMiddleware, func() { _ = client.Close() }, nil
}
