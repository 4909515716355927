package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"skillcred/internal/app"
	id "skillcred/pkg/domain"
)

func newBlacklistCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "blacklist",
		Short: "Query the subject blacklist",
	}
	c.AddCommand(&cobra.Command{
		Use:   "check <subject_id>",
		Short: "Report whether a subject is blacklisted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subjectID, err := id.ParseSubjectID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				status, err := a.Reviews.IsBlacklisted(ctx, subjectID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	})
	return c
}
