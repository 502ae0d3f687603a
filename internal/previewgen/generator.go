package previewgen

import "context"

// ProgressFunc reports 0..100 progress within the current stage boundary,
// mirroring internal/worker.ProgressFunc's shape so a submitted job can pass
// its reporter straight through.
type ProgressFunc func(percent float64, stageLabel string)

// Generate runs either procedural or image-driven mode depending on whether
// req.Image is set, polling cancelled at every stage boundary (spec.md
// §4.14: "a cancellation predicate is polled at every stage boundary,
// cooperative only").
func Generate(ctx context.Context, req Request, report ProgressFunc, cancelled func() bool) (*Grid, error) {
	if report == nil {
		report = func(float64, string) {}
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	wrap := func(percent int, stage string) { report(float64(percent), stage) }

	if len(req.Image) > 0 {
		return runImageDriven(ctx, req, wrap, cancelled)
	}
	return runProcedural(ctx, req, wrap, cancelled)
}
