package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"skillcred/internal/app"
	"skillcred/internal/review/models"
	id "skillcred/pkg/domain"
)

func newReviewCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve review cases",
	}
	c.AddCommand(newReviewListCmd(), newReviewResolveCmd())
	return c
}

func newReviewListCmd() *cobra.Command {
	var (
		status  string
		subject string
		limit   int
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List review cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := models.Filter{
				Status: models.Status(strings.ToUpper(status)),
				Limit:  limit,
			}
			if subject != "" {
				subjectID, err := id.ParseSubjectID(subject)
				if err != nil {
					return err
				}
				f.SubjectID = subjectID
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cases, err := a.Reviews.List(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cases)
			})
		},
	}
	c.Flags().StringVar(&status, "status", "", "PENDING, APPROVED, REJECTED or ESCALATED")
	c.Flags().StringVar(&subject, "subject", "", "only cases for this subject")
	c.Flags().IntVar(&limit, "limit", 50, "maximum number of cases")
	return c
}

func newReviewResolveCmd() *cobra.Command {
	var (
		decision  string
		notes     string
		reviewer  string
		expiresIn time.Duration
	)
	c := &cobra.Command{
		Use:   "resolve <review_id>",
		Short: "Resolve a pending review case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewID, err := id.ParseReviewID(args[0])
			if err != nil {
				return err
			}
			reviewerID, err := id.ParseReviewerID(reviewer)
			if err != nil {
				return err
			}
			status, ok := models.ParseResolution(strings.ToUpper(decision))
			if !ok {
				return fmt.Errorf("--decision must be APPROVED, REJECTED or ESCALATED")
			}
			res := models.Resolution{
				Decision:   status,
				Notes:      notes,
				ReviewerID: reviewerID.String(),
			}
			if expiresIn > 0 {
				if status != models.StatusRejected {
					return fmt.Errorf("--expires-in only applies to REJECTED")
				}
				at := time.Now().Add(expiresIn).UTC()
				res.BlacklistExpiry = &at
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.Reviews.Resolve(ctx, reviewID, res)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	c.Flags().StringVar(&decision, "decision", "", "APPROVED, REJECTED or ESCALATED")
	c.Flags().StringVar(&notes, "notes", "", "reviewer notes")
	c.Flags().StringVar(&reviewer, "reviewer", "", "reviewer id (UUID)")
	c.Flags().DurationVar(&expiresIn, "expires-in", 0, "blacklist expiry for REJECTED, 0 for none")
	_ = c.MarkFlagRequired("decision")
	_ = c.MarkFlagRequired("reviewer")
	return c
}
