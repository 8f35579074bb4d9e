package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arrowgate/docdedupe/internal/analyser"
	"github.com/arrowgate/docdedupe/internal/config"
	"github.com/arrowgate/docdedupe/internal/jobs"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/progress"
)

type analyzeOptions struct {
	force      bool
	noProgress bool
}

// newAnalyzeCmd creates the analyze subcommand: one Analyser pass over the
// documents synced so far, using the persisted DedupConfig (spec.md §4.9,
// §4.11).
func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Cluster synced documents into duplicate groups",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAnalyze(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Reset status and primary of groups found again to their fresh defaults")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

func runAnalyze(opts *analyzeOptions) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	rt, err := newRuntime(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	dedupCfg, err := config.New(rt.store).Get(context.Background())
	if err != nil {
		return fmt.Errorf("load dedup config: %w", err)
	}
	cfg := analyser.Config{
		Permutations:        dedupCfg.NumPermutations,
		Bands:               dedupCfg.NumBands,
		NgramSize:           dedupCfg.NgramSize,
		MinWords:            dedupCfg.MinWords,
		SimilarityThreshold: dedupCfg.SimilarityThreshold,
		Weights:             dedupCfg.Weights,
		FuzzySampleSize:     dedupCfg.FuzzySampleSize,
	}

	an := analyser.New(rt.store, analyser.WithRecorder(rt.recorder))

	bar := progress.NewBar(!opts.noProgress)
	handle, err := rt.worker.Launch(context.Background(), model.JobTypeAnalysis, jobs.AnalysisRun(an, cfg, opts.force))
	if err != nil {
		return fmt.Errorf("launch analysis job: %w", err)
	}
	handle.Wait()
	bar.Finish("analyze")

	job, err := jobs.NewManager(rt.store).Load(context.Background(), handle.JobID)
	if err != nil {
		return fmt.Errorf("load job result: %w", err)
	}
	if job.Status == model.JobFailed {
		return fmt.Errorf("analysis job failed: %s", job.ErrorMessage)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return fmt.Errorf("decode analysis result: %w", err)
	}

	fmt.Printf(
		"analyze complete: %s documents considered, %s signatures generated, %s reused, %s candidate pairs, %s groups formed (%s created, %s updated, %s removed)\n",
		humanize.Comma(int64(result.DocumentsConsidered)),
		humanize.Comma(int64(result.SignaturesGenerated)),
		humanize.Comma(int64(result.SignaturesReused)),
		humanize.Comma(int64(result.CandidatePairs)),
		humanize.Comma(int64(result.GroupsFormed)),
		humanize.Comma(int64(result.Reconcile.Created)),
		humanize.Comma(int64(result.Reconcile.Updated)),
		humanize.Comma(int64(result.Reconcile.Removed)),
	)
	return nil
}
