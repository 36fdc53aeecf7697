package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/port"
)

const DefaultFrameCount = 3

// Extractor samples still frames at fixed proportional offsets of the
// media's duration. Binary paths are configurable so the same code runs
// against system ffmpeg, a static build, or a test double.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	format      string
	logger      *zap.Logger
}

type ExtractorConfig struct {
	FFmpegPath  string
	FFprobePath string
	Format      string
}

func NewExtractor(cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Format == "" {
		cfg.Format = "jpg"
	}
	return &Extractor{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		format:      cfg.Format,
		logger:      logger,
	}
}

func (e *Extractor) ExtractFrames(ctx context.Context, sourcePath, outputDir string, frameCount int) (*port.ExtractionResult, error) {
	if frameCount <= 0 {
		frameCount = DefaultFrameCount
	}

	// A missing output directory is auto-remedied, not an error.
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	duration, err := e.probeDuration(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	e.logger.Info("frame extraction started",
		zap.String("source", sourcePath),
		zap.Float64("duration_secs", duration),
		zap.Int("frame_count", frameCount),
	)

	framePaths := make([]string, 0, frameCount)
	for i, offset := range SampleOffsets(frameCount) {
		framePath := filepath.Join(outputDir, fmt.Sprintf("frame_%02d.%s", i+1, e.format))
		seek := duration * offset

		cmd := exec.CommandContext(ctx, e.ffmpegPath,
			"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
			"-i", sourcePath,
			"-frames:v", "1",
			"-q:v", "2",
			"-y",
			framePath,
		)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg at offset %.0f%%: %w, output: %s", offset*100, err, string(output))
		}
		if _, err := os.Stat(framePath); err != nil {
			return nil, fmt.Errorf("frame not written at offset %.0f%%: %w", offset*100, err)
		}

		framePaths = append(framePaths, framePath)
		e.logger.Debug("frame extraction progress",
			zap.Int("percent", (i+1)*100/frameCount),
			zap.String("frame", framePath),
		)
	}

	e.logger.Info("frame extraction finished",
		zap.Int("count", len(framePaths)),
		zap.Float64("duration_secs", duration),
	)

	return &port.ExtractionResult{
		FramePaths:    framePaths,
		VideoDuration: duration,
	}, nil
}

// SampleOffsets returns n proportional sample points spread evenly inside
// (0,1): (i+1)/(n+1), so n=3 yields 25%/50%/75%.
func SampleOffsets(n int) []float64 {
	offsets := make([]float64, n)
	for i := range offsets {
		offsets[i] = float64(i+1) / float64(n+1)
	}
	return offsets
}

func (e *Extractor) probeDuration(ctx context.Context, sourcePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		sourcePath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}
