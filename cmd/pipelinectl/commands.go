package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/submissions-pipeline/internal/app"
	"github.com/joseph-ayodele/submissions-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/submissions-pipeline/internal/services/processing"
)

var (
	reprocess bool
	outPath   string
	folderURL string
)

func init() {
	createCmd := &cobra.Command{
		Use:   "create-project <name>",
		Short: "Create a draft project for a Drive folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Processing.CreateProject(ctx, processing.CreateProjectRequest{Name: args[0], DriveFolderURL: folderURL})
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	createCmd.Flags().StringVar(&folderURL, "folder", "", "Drive folder link (required)")
	_ = createCmd.MarkFlagRequired("folder")

	scanCmd := &cobra.Command{
		Use:   "scan <project-id>",
		Short: "Register new documents from the project's folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Processing.ScanProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	processCmd := &cobra.Command{
		Use:   "process <project-id>",
		Short: "Process every pending submission of a project and wait for the batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return runBatch(ctx, a, args[0])
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <project-id>",
		Short: "Put every submission back to pending and delete its slides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Processing.ResetProject(ctx, args[0], false)
				if err != nil {
					return err
				}
				if err := printJSON(res); err != nil {
					return err
				}
				if !reprocess {
					return nil
				}
				return runBatch(ctx, a, args[0])
			})
		},
	}
	resetCmd.Flags().BoolVar(&reprocess, "reprocess", false, "process the project again after the reset")

	retryCmd := &cobra.Command{
		Use:   "retry <project-id>",
		Short: "Re-run failed submissions whose fetch job still has retries left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid project id: %w", err)
				}
				n, err := a.Submissions.RequeueRetryable(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "requeued %d submissions\n", n)
				return runBatch(ctx, a, args[0])
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show submission and job state for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				st, err := a.Processing.ProjectStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(st)
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write the project's slides to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return exportTo(ctx, a, args[0], outPath)
			})
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default project-<id>.xlsx)")

	runCmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Create a project for a folder, scan it, process it and export the result",
		Long: "run does the whole flow in one process. Combined with --inmem it needs no database " +
			"and leaves only the exported workbook behind.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Processing.CreateProject(ctx, processing.CreateProjectRequest{Name: args[0], DriveFolderURL: folderURL})
				if err != nil {
					return err
				}
				projectID := p.ID.String()
				if _, err := a.Processing.ScanProject(ctx, projectID); err != nil {
					return err
				}
				if err := runBatch(ctx, a, projectID); err != nil {
					return err
				}
				return exportTo(ctx, a, projectID, outPath)
			})
		},
	}
	runCmd.Flags().StringVar(&folderURL, "folder", "", "Drive folder link (required)")
	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default project-<id>.xlsx)")
	_ = runCmd.MarkFlagRequired("folder")

	rootCmd.AddCommand(createCmd, scanCmd, processCmd, resetCmd, retryCmd, statusCmd, exportCmd, runCmd)
}

// runBatch runs one batch in the foreground instead of through the queue so
// the command exits only once the work is done.
func runBatch(ctx context.Context, a *app.App, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid project id: %w", err)
	}
	if ok, err := a.Projects.Exists(ctx, id); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("project %s not found", id)
	}
	summary, err := a.Orchestrator.ProcessBatch(ctx, id)
	if err != nil {
		return err
	}
	if err := printJSON(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		printFailures(summary)
	}
	return nil
}

func printFailures(summary pipeline.BatchSummary) {
	for _, f := range summary.Failures {
		printError("failed: %s at %s: %s\n", f.SubmissionID, f.Stage, f.Error)
	}
}

func exportTo(ctx context.Context, a *app.App, rawID, out string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid project id: %w", err)
	}
	data, err := a.Export.ProjectSlidesXLSX(ctx, id)
	if err != nil {
		return err
	}
	if out == "" {
		out = fmt.Sprintf("project-%s.xlsx", id)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", out, len(data))
	return nil
}
