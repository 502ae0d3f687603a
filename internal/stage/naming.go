package stage

import "time"

// RunNaming implements stage 12 (spec §4.13): deliberately a placeholder.
// It reports progress on a fixed schedule, updates the ledger via its
// successful return, and emits no artifact. Display names for duchies and
// kingdoms are instead assigned during Clustering (see names.go).
func RunNaming(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	for _, p := range []int{0, 25, 50, 75, 100} {
		progress(p)
		time.Sleep(time.Millisecond)
	}
	return nil
}
