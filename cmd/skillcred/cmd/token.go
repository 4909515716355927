package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "skillcred/internal/jwt_token"
	id "skillcred/pkg/domain"
)

func newTokenCmd() *cobra.Command {
	var (
		reviewer string
		ttl      time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Issue a reviewer bearer token for the resolve endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reviewerID, err := id.ParseReviewerID(reviewer)
			if err != nil {
				return err
			}
			svc := jwttoken.NewJWTService(cfg.Auth.ReviewerSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := svc.GenerateReviewerToken(reviewerID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	c.Flags().StringVar(&reviewer, "reviewer", "", "reviewer id (UUID)")
	c.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("reviewer")
	return c
}
