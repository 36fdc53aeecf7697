package analysis

import (
	"context"
	"strings"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/port"
)

const DefaultMarkerToken = "flag"

// MarkerAnalyzer is the placeholder sensitivity classifier: a record is
// FLAGGED iff its declared filename contains the marker token,
// case-insensitive. A real classifier replaces this type behind the
// port.Analyzer interface without touching the pipeline.
type MarkerAnalyzer struct {
	token string
}

func NewMarkerAnalyzer(token string) *MarkerAnalyzer {
	if token == "" {
		token = DefaultMarkerToken
	}
	return &MarkerAnalyzer{token: strings.ToLower(token)}
}

func (a *MarkerAnalyzer) Analyze(_ context.Context, ev port.Evidence) (entity.Status, error) {
	if strings.Contains(strings.ToLower(ev.Filename), a.token) {
		return entity.StatusFlagged, nil
	}
	// An empty frame set (light mode, or a zero-length video) is not an
	// error: nothing observable means nothing to flag.
	return entity.StatusSafe, nil
}
