package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/reqjourney-go/internal/db"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

var (
	jobsStage  string
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect recorded stage jobs",
	Long: `List recorded stage jobs or inspect one by ID. Requires SURREALDB_URL.

Examples:
  reqjourney jobs                      # Most recent jobs
  reqjourney jobs --stage fitGap       # Only fit-gap runs
  reqjourney jobs --status failed
  reqjourney jobs 3f2a91c0             # Show details for one job`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStage, "stage", "", "filter by stage")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (pending, running, succeeded, failed)")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "maximum number of jobs")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return showJob(ctx, out, client, args[0])
	}

	filter := db.JobFilter{Status: jobsStatus, Limit: jobsLimit}
	if jobsStage != "" {
		stage, err := models.ParseStage(jobsStage)
		if err != nil {
			return err
		}
		filter.Stage = string(stage)
	}
	return listJobs(ctx, out, client, filter)
}

func listJobs(ctx context.Context, out io.Writer, client *db.Client, filter db.JobFilter) error {
	jobs, err := client.ListJobs(ctx, filter)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "%-10s %-14s %-10s %-8s %s\n", "ID", "STAGE", "STATUS", "PROGRESS", "STARTED")
	fmt.Fprintln(out, "------------------------------------------------------------------------")
	for _, job := range jobs {
		fmt.Fprintln(out, formatJobLine(job))
	}
	return nil
}

func showJob(ctx context.Context, out io.Writer, client *db.Client, id string) error {
	job, err := client.GetJob(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	printJob(out, job)
	return nil
}

func printJob(out io.Writer, job *models.AnalysisJob) {
	fmt.Fprintf(out, "Job: %s\n", job.JobID())
	fmt.Fprintf(out, "  Stage: %s\n", job.Stage)
	fmt.Fprintf(out, "  Context: %s\n", job.ContextID)
	fmt.Fprintf(out, "  Status: %s\n", job.Status)
	fmt.Fprintf(out, "  Progress: %d%%\n", job.Progress)
	fmt.Fprintf(out, "  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	if job.DurationMs != nil {
		fmt.Fprintf(out, "  Duration: %s\n", (time.Duration(*job.DurationMs) * time.Millisecond).Round(time.Millisecond))
	}
	if job.Status == "succeeded" {
		fmt.Fprintf(out, "  Entries: %d\n", job.Entries)
	}
	if job.Discarded {
		fmt.Fprintln(out, "  Result discarded: the artifact or system pair changed while it ran")
	}
	if job.Error != nil && *job.Error != "" {
		kind := ""
		if job.ErrorKind != nil {
			kind = " (" + *job.ErrorKind + ")"
		}
		fmt.Fprintf(out, "  Error%s: %s\n", kind, *job.Error)
	}
}
