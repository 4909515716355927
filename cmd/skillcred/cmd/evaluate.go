package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"skillcred/internal/app"
	"skillcred/internal/decision/models"
	id "skillcred/pkg/domain"
)

func newEvaluateCmd() *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one intake envelope and print the decision",
		Long: `Reads an intake envelope ({"subject_id", "records", "protected", "assessment"})
from --file or stdin and runs it through the configured pipeline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := readIntake(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				d, err := a.Decisions.Evaluate(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			})
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "-", "intake JSON file, - for stdin")
	return c
}

func readIntake(stdin io.Reader, file string) (models.Intake, error) {
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return models.Intake{}, err
		}
		defer f.Close()
		r = f
	}

	var in models.Intake
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return models.Intake{}, fmt.Errorf("decode intake: %w", err)
	}
	subjectID, err := id.ParseSubjectID(in.SubjectID.String())
	if err != nil {
		return models.Intake{}, err
	}
	in.SubjectID = subjectID
	return in, nil
}
