package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/reqjourney-go/internal/config"
	"github.com/raphaelgruber/reqjourney-go/internal/db"
	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

var (
	analyzeType   string
	analyzeSource string
	analyzeDest   string
	analyzeStages string
	analyzeDemo   bool
	analyzeRemote string
	analyzeJSON   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Run analysis stages on a document or recording",
	Long: `Run one or more analysis stages on FILE, in dependency order, and print
the results.

Examples:
  reqjourney analyze spec.pdf
  reqjourney analyze spec.pdf --stages requirements
  reqjourney analyze standup.mp3 --type Audio --stages requirements,userStories
  reqjourney analyze spec.pdf --source "Oracle ERP" --dest "D365 F&O" --json
  reqjourney analyze spec.pdf --demo`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeType, "type", "t", string(models.InputBRD), "input type: BRD, Audio or Video")
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", models.DefaultSystemPair.Source, "source system for fit-gap")
	analyzeCmd.Flags().StringVar(&analyzeDest, "dest", models.DefaultSystemPair.Destination, "destination system for fit-gap")
	analyzeCmd.Flags().StringVarP(&analyzeStages, "stages", "s", "requirements,userStories,fitGap", "comma-separated stages to run")
	analyzeCmd.Flags().BoolVar(&analyzeDemo, "demo", false, "use canned demo results instead of a model")
	analyzeCmd.Flags().StringVar(&analyzeRemote, "remote", "", "base URL of a reqjourney server to run extraction on")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print results as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stages, err := parseStages(analyzeStages)
	if err != nil {
		return err
	}
	inputType, err := models.ParseInputType(analyzeType)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	catalog, err := config.LoadSystems(cfg.SystemsFile)
	if err != nil {
		return err
	}
	client, err := newExtractionClient(ctx)
	if err != nil {
		return err
	}

	var observers []service.JobObserver
	if recorder := openRecorder(ctx); recorder != nil {
		observers = append(observers, recorder)
		defer recorder.close()
	}

	o := service.NewOrchestrator(client,
		service.WithLogger(logger),
		service.WithCatalog(catalog),
		service.WithValidator(service.NewArtifactValidator(limitsFromConfig(cfg))),
		service.WithJobTimeout(cfg.JobTimeout),
		service.WithCascadeOnRerun(cfg.CascadeOnRerun),
		service.WithObservers(observers...),
	)
	// Jobs ignore cancellation, so only wait for them to report when the
	// run was not interrupted.
	defer func() {
		if ctx.Err() == nil && !errors.Is(err, errInterrupted) {
			o.Wait()
		}
	}()

	o.SetArtifact(models.NewArtifact(args[0], inputType, data))
	if err := o.ValidateArtifact(); err != nil {
		return err
	}
	if slices.Contains(stages, models.StageFitGap) {
		if err := o.SetSystemPair(models.SystemPair{Source: analyzeSource, Destination: analyzeDest}); err != nil {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(catalog.Systems(), ", "))
		}
	}

	out := cmd.OutOrStdout()
	interactive := !analyzeJSON && isTerminal(os.Stdout)
	var envelopes []models.ResultEnvelope

	for _, stage := range stages {
		result, err := runStage(ctx, o, stage, interactive, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if analyzeJSON {
			envelopes = append(envelopes, models.EncodeResult(result))
			continue
		}
		renderResult(out, defaultTheme, result)
	}

	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(envelopes)
	}
	return nil
}

// runStage starts stage, shows its progress and returns the cached result.
func runStage(ctx context.Context, o *service.Orchestrator, stage models.Stage, interactive bool, progressOut io.Writer) (models.Result, error) {
	job, err := o.RunStage(ctx, stage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	if interactive {
		if err := RunJobProgress(job); err != nil {
			return nil, err
		}
	} else {
		done := make(chan struct{})
		go func() {
			defer close(done)
			printJobProgress(progressOut, job)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, errInterrupted
		}
	}

	snap := job.Snapshot()
	if snap.Status == service.JobStatusFailed {
		return nil, fmt.Errorf("%s: %w", stage, job.Err())
	}
	result, ok := o.Result(stage)
	if !ok {
		return nil, fmt.Errorf("%s: result was discarded", stage)
	}
	return result, nil
}

// parseStages splits a comma-separated list and orders it by dependency.
func parseStages(s string) ([]models.Stage, error) {
	var stages []models.Stage
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		stage, err := models.ParseStage(part)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(stages, stage) {
			stages = append(stages, stage)
		}
	}
	if len(stages) == 0 {
		return nil, errors.New("no stages given")
	}
	slices.SortFunc(stages, func(a, b models.Stage) int {
		return slices.Index(models.Stages, a) - slices.Index(models.Stages, b)
	})
	return stages, nil
}

func newExtractionClient(ctx context.Context) (extraction.Client, error) {
	switch {
	case analyzeDemo:
		return extraction.NewDemoClient(), nil
	case analyzeRemote != "":
		return extraction.NewRemoteClient(analyzeRemote, cfg.JobTimeout), nil
	}
	return extraction.FromConfig(ctx, cfg, nil, logger)
}

func limitsFromConfig(c config.Config) service.Limits {
	return service.Limits{BRDMB: c.MaxBRDMB, AudioMB: c.MaxAudioMB, VideoMB: c.MaxVideoMB}
}

// jobRecorder persists CLI runs to the history database.
type jobRecorder struct {
	*db.JobRecorder
	client *db.Client
}

func (r *jobRecorder) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.JobRecorder.Close(ctx); err != nil {
		logger.Warn("job history not flushed", "error", err)
	}
	_ = r.client.Close(ctx)
}

// openRecorder returns nil when history is disabled or unreachable.
func openRecorder(ctx context.Context) *jobRecorder {
	if cfg.SurrealDBURL == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := connectDB(connectCtx)
	if err != nil {
		logger.Warn("job history unavailable", "error", err)
		return nil
	}
	return &jobRecorder{JobRecorder: db.NewJobRecorder(client, logger), client: client}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
