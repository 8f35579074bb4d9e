package jobs

import (
	"context"
	"encoding/json"

	"github.com/arrowgate/docdedupe/internal/analyser"
	"github.com/arrowgate/docdedupe/internal/progress"
	"github.com/arrowgate/docdedupe/internal/syncengine"
)

// SyncRun adapts a syncengine.Engine run into a RunFunc, marshalling its
// model.SyncResult as the job's result payload (spec.md §4.8, §4.10).
func SyncRun(engine *syncengine.Engine, forceFull bool) RunFunc {
	return func(ctx context.Context, reporter progress.Reporter) ([]byte, error) {
		result, err := engine.Run(ctx, reporter, forceFull)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}
}

// AnalysisRun adapts an analyser.Analyser run into a RunFunc, marshalling
// its model.AnalysisResult as the job's result payload (spec.md §4.9,
// §4.10).
func AnalysisRun(an *analyser.Analyser, cfg analyser.Config, force bool) RunFunc {
	return func(ctx context.Context, reporter progress.Reporter) ([]byte, error) {
		result, err := an.Run(ctx, reporter, cfg, force)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}
}
