package main

import (
	"context"
	"fmt"

	"github.com/arrowgate/docdedupe/internal/jobs"
	"github.com/arrowgate/docdedupe/internal/logging"
	"github.com/arrowgate/docdedupe/internal/metrics"
	"github.com/arrowgate/docdedupe/internal/store"
)

// runtime bundles the handles every subcommand needs: a Store, a recorder
// reporting through internal/metrics, and a Worker over a fresh Manager.
// internal/jobs.Manager holds no in-memory state, so build one per
// runtime rather than sharing it across commands.
type runtime struct {
	store    *store.Store
	recorder *metrics.PrometheusRecorder
	worker   *jobs.Worker
}

// newRuntime opens the Store named by env, recovers any job left running
// by a crashed prior process (spec.md §4.10 "Recovery on process start"),
// and wires a Worker reporting through a fresh PrometheusRecorder.
func newRuntime(e *environment) (*runtime, error) {
	e.initLogging()

	st, err := store.Open(e.databasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if n, err := jobs.NewManager(st).RecoverInterrupted(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		logging.WithComponent("cli").Warn().Int("count", n).Msg("marked interrupted jobs failed")
	}

	recorder := metrics.NewPrometheusRecorder()
	worker := jobs.NewWorker(jobs.NewManager(st)).WithRecorder(recorder)

	return &runtime{store: st, recorder: recorder, worker: worker}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}
