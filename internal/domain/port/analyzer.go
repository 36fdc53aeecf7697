package port

import (
	"context"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

// Evidence is what the analyzer gets to look at. FramePaths is empty in
// light mode; the declared filename is always present.
type Evidence struct {
	Filename   string
	FramePaths []string
}

// Analyzer produces the SAFE/FLAGGED verdict for a job. Implementations
// must be deterministic and side-effect free so the pipeline can be tested
// without a real classifier.
type Analyzer interface {
	Analyze(ctx context.Context, ev Evidence) (entity.Status, error)
}
