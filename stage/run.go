package stage

import (
	"context"
	"fmt"

	"discord-marketing/pipeline/errkind"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/runctx"
)

// Run dispatches to the named stage's implementation. name must be
// one of filter, categorize, summarize, extract, format.
func Run(ctx context.Context, rc *runctx.Context, name models.Stage, opts Options) (*Result, error) {
	switch name {
	case models.StageFilter:
		return RunFilter(ctx, rc, opts)
	case models.StageCategorize:
		return RunCategorize(ctx, rc, opts)
	case models.StageSummarize:
		return RunSummarizeAll(ctx, rc, opts)
	case models.StageExtract:
		return RunExtractAll(ctx, rc, opts)
	case models.StageFormat:
		return RunFormat(ctx, rc, opts)
	default:
		return nil, errkind.New(errkind.Configuration, fmt.Sprintf("unknown stage %q", name))
	}
}

// order is the fixed dependency order stages must run in for "all" mode.
var order = []models.Stage{
	models.StageFilter,
	models.StageCategorize,
	models.StageSummarize,
	models.StageExtract,
	models.StageFormat,
}

// RunAll runs every enabled stage in fixed dependency order. A
// failing stage does not stop the others; each stage's Result (or
// error) is returned keyed by stage name.
func RunAll(ctx context.Context, rc *runctx.Context, enabled map[string]bool, opts Options) map[models.Stage]*Result {
	results := make(map[models.Stage]*Result, len(order))
	for _, st := range order {
		if enabled != nil && !enabled[string(st)] {
			continue
		}
		res, err := Run(ctx, rc, st, opts)
		if err != nil {
			res = newResult()
			res.Errors = append(res.Errors, BatchError{Error: err.Error()})
		}
		results[st] = res
	}
	return results
}
