package port

import "context"

type ExtractionResult struct {
	FramePaths    []string
	VideoDuration float64
}

// FrameExtractor pulls representative still frames from a media file into
// outputDir, creating the directory if needed. It never retries on its own;
// failures surface to the pipeline, which owns the terminal-failure policy.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, sourcePath, outputDir string, frameCount int) (*ExtractionResult, error)
}
