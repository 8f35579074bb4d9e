package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arrowgate/docdedupe/internal/jobs"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/progress"
	"github.com/arrowgate/docdedupe/internal/syncengine"
)

type syncOptions struct {
	forceFull  bool
	noProgress bool
}

// newSyncCmd creates the sync subcommand: one SyncEngine pass against the
// configured upstream, run through the same Worker/JobManager path a
// long-running server would use (spec.md §4.8, §4.10).
func newSyncCmd() *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull documents from upstream and persist what changed",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSync(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.forceFull, "force-full", false, "Ignore prior sync state and refetch every document")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

func runSync(opts *syncOptions) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	rt, err := newRuntime(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	engine := syncengine.New(rt.store, env.client(), syncengine.WithRecorder(rt.recorder))

	bar := progress.NewBar(!opts.noProgress)
	handle, err := rt.worker.Launch(context.Background(), model.JobTypeSync, jobs.SyncRun(engine, opts.forceFull))
	if err != nil {
		return fmt.Errorf("launch sync job: %w", err)
	}
	handle.Wait()
	bar.Finish("sync")

	job, err := jobs.NewManager(rt.store).Load(context.Background(), handle.JobID)
	if err != nil {
		return fmt.Errorf("load job result: %w", err)
	}
	if job.Status == model.JobFailed {
		return fmt.Errorf("sync job failed: %s", job.ErrorMessage)
	}

	var result model.SyncResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return fmt.Errorf("decode sync result: %w", err)
	}

	fmt.Printf(
		"sync complete: %s type, %s fetched, %s inserted, %s updated, %s skipped, %s failed, %s backfilled, took %s\n",
		result.Type,
		humanize.Comma(int64(result.Fetched)),
		humanize.Comma(int64(result.Inserted)),
		humanize.Comma(int64(result.Updated)),
		humanize.Comma(int64(result.Skipped)),
		humanize.Comma(int64(result.Failed)),
		progress.FormatBytes(result.BytesBackfilled),
		result.Duration.Round(time.Millisecond),
	)
	for _, e := range result.Errors {
		fmt.Println("  error:", e)
	}
	return nil
}
