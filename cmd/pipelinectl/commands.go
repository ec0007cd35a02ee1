package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"talentflow/internal/app"
	"talentflow/internal/bootstrap"
	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/funnel"
	"talentflow/internal/http/response"
)

type containerOpener func(ctx context.Context) (*bootstrap.Container, func(), error)

type actorFlags struct {
	userID string
	orgID  string
}

func (f actorFlags) actor() (app.Actor, error) {
	userID, err := common.ParseUUID(f.userID)
	if err != nil {
		return app.Actor{}, fmt.Errorf("--as must be a user uuid: %w", err)
	}
	orgID, err := common.ParseUUID(f.orgID)
	if err != nil {
		return app.Actor{}, fmt.Errorf("--org must be an organization uuid: %w", err)
	}
	return app.Actor{UserID: userID, Role: application.RoleHRReviewer, OrganizationID: orgID}, nil
}

func newRootCmd(open containerOpener) *cobra.Command {
	root := &cobra.Command{
		Use:   "pipelinectl",
		Short: "Operate the application pipeline",
		Long: `pipelinectl runs pipeline operations against the configured stores.

Examples:
  pipelinectl funnel --job <job-id>
  pipelinectl funnel --org <org-id> --refresh
  pipelinectl transition <application-id> interviewing --as <user-id> --org <org-id>
  pipelinectl bulk --stage rejected --ids <id>,<id> --as <user-id> --org <org-id>`,
		SilenceUsage: true,
	}
	root.AddCommand(newFunnelCmd(open), newTransitionCmd(open), newBulkCmd(open))
	return root
}

func newFunnelCmd(open containerOpener) *cobra.Command {
	var jobID, orgID string
	var refresh, asJSON bool
	cmd := &cobra.Command{
		Use:   "funnel",
		Short: "Print the funnel snapshot of a job or organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := scopeFromFlags(jobID, orgID)
			if err != nil {
				return err
			}
			container, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			var snapshot *funnel.Snapshot
			if refresh {
				snapshot, err = container.Funnels.Refresh(cmd.Context(), scope)
			} else {
				snapshot, err = container.Funnels.Compute(cmd.Context(), scope)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), funnelOutput{Snapshot: *snapshot, Conversions: snapshot.Conversions()})
			}
			printFunnel(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	cmd.Flags().StringVar(&orgID, "org", "", "organization id")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the funnel cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	cmd.MarkFlagsMutuallyExclusive("job", "org")
	cmd.MarkFlagsOneRequired("job", "org")
	return cmd
}

func newTransitionCmd(open containerOpener) *cobra.Command {
	var flags actorFlags
	var note string
	cmd := &cobra.Command{
		Use:   "transition <application-id> <stage>",
		Short: "Move one application to a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := flags.actor()
			if err != nil {
				return err
			}
			id, err := common.ParseUUID(args[0])
			if err != nil {
				return fmt.Errorf("invalid application id: %w", err)
			}
			stage, err := application.ParseStage(args[1])
			if err != nil {
				return err
			}
			container, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			result, err := container.Pipeline.Transition(cmd.Context(), app.TransitionRequest{ApplicationID: id, Stage: stage, Actor: actor, Note: note})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s (version %d)\n", result.Application.ID, result.Application.Stage, result.Application.Version)
			if result.Warning != nil {
				fmt.Fprintf(out, "warning: %s\n", result.Warning.Error())
			}
			return nil
		},
	}
	bindActorFlags(cmd, &flags)
	cmd.Flags().StringVar(&note, "note", "", "note stored with the stage change")
	return cmd
}

func newBulkCmd(open containerOpener) *cobra.Command {
	var flags actorFlags
	var stageValue string
	var ids []string
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Move many applications to the same stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := flags.actor()
			if err != nil {
				return err
			}
			stage, err := application.ParseStage(stageValue)
			if err != nil {
				return err
			}
			parsed := make([]common.UUID, 0, len(ids))
			for _, raw := range ids {
				id, err := common.ParseUUID(strings.TrimSpace(raw))
				if err != nil {
					return fmt.Errorf("invalid application id %q: %w", raw, err)
				}
				parsed = append(parsed, id)
			}
			container, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			failed := 0
			out := cmd.OutOrStdout()
			for _, outcome := range container.Pipeline.BulkTransition(cmd.Context(), parsed, stage, actor) {
				if outcome.Err != nil {
					failed++
					_, body := response.Describe(outcome.Err)
					fmt.Fprintf(out, "%s\terror\t%s\t%s\n", outcome.ApplicationID, body.Code, body.Message)
					continue
				}
				fmt.Fprintf(out, "%s\tok\t%s\n", outcome.ApplicationID, outcome.Result.Application.Stage)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d transitions failed", failed, len(parsed))
			}
			return nil
		},
	}
	bindActorFlags(cmd, &flags)
	cmd.Flags().StringVar(&stageValue, "stage", "", "target stage")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "comma separated application ids")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("ids")
	return cmd
}

func bindActorFlags(cmd *cobra.Command, flags *actorFlags) {
	cmd.Flags().StringVar(&flags.userID, "as", "", "acting reviewer user id")
	cmd.Flags().StringVar(&flags.orgID, "org", "", "acting reviewer organization id")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("org")
}

func scopeFromFlags(jobID, orgID string) (application.Scope, error) {
	if jobID != "" {
		id, err := common.ParseUUID(jobID)
		if err != nil {
			return application.Scope{}, fmt.Errorf("invalid job id: %w", err)
		}
		return application.Scope{JobID: id}, nil
	}
	id, err := common.ParseUUID(orgID)
	if err != nil {
		return application.Scope{}, fmt.Errorf("invalid organization id: %w", err)
	}
	return application.Scope{OrganizationID: id}, nil
}

func printFunnel(out io.Writer, snapshot *funnel.Snapshot) {
	fmt.Fprintf(out, "scope %s, %d applications, computed %s\n", funnel.ScopeKey(snapshot.Scope), snapshot.Total, snapshot.ComputedAt.Format("2006-01-02 15:04:05"))
	for _, stage := range application.Stages {
		fmt.Fprintf(out, "  %-16s %5d  %6.1f days\n", stage.Label(), snapshot.StageCounts[stage], snapshot.AverageDaysInStage[stage])
	}
	for _, conversion := range snapshot.Conversions() {
		rate := conversion.Percent()
		if !conversion.Defined {
			rate = "no data"
		}
		fmt.Fprintf(out, "  %-32s %s\n", conversion.From.Label()+" -> "+conversion.To.Label(), rate)
	}
}

type funnelOutput struct {
	funnel.Snapshot
	Conversions []funnel.Conversion `json:"conversions"`
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
