package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/analysis"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/port"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/metrics"
)

const (
	defaultExtractTimeout  = 2 * time.Minute
	defaultPersistAttempts = 3
	defaultPersistBackoff  = 200 * time.Millisecond

	// The settle delay simulates classifier latency in deployments without
	// a real one. It is hard-capped: detached or not, a job must reach a
	// terminal status within single-digit seconds of its verdict.
	maxSettleDelay = 9 * time.Second
)

// Submission identifies one analysis job. The record must already exist
// in the store with status PROCESSING.
type Submission struct {
	RecordID         string
	SourceLocator    string
	DeclaredFilename string
}

// Options tune a single run. Zero values fall back to pipeline defaults.
type Options struct {
	// LightMode skips source fetch and frame extraction entirely; the
	// analyzer sees metadata only. A deployment switch, not a fallback.
	LightMode bool
	// MarkerToken overrides the placeholder classifier's token.
	MarkerToken    string
	FrameCount     int
	ExtractTimeout time.Duration
}

type Config struct {
	TempDir         string
	SettleDelay     time.Duration
	FrameCount      int
	ExtractTimeout  time.Duration
	PersistAttempts int
	PersistBackoff  time.Duration
}

// Pipeline drives a job from accepted to terminal: fetch + extract
// (optional), analyze, persist via compare-and-set, then broadcast. At
// most one run per record id is active at a time, and the submitting
// caller never blocks on any of the work.
type Pipeline struct {
	store     port.RecordStore
	fetcher   port.SourceFetcher
	extractor port.FrameExtractor
	analyzer  port.Analyzer
	arena     workdirArena
	cfg       Config
	logger    *zap.Logger

	runCtx context.Context
	stop   context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

func New(
	store port.RecordStore,
	fetcher port.SourceFetcher,
	extractor port.FrameExtractor,
	analyzer port.Analyzer,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.FrameCount <= 0 {
		cfg.FrameCount = 3
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = defaultExtractTimeout
	}
	if cfg.PersistAttempts <= 0 {
		cfg.PersistAttempts = defaultPersistAttempts
	}
	if cfg.PersistBackoff <= 0 {
		cfg.PersistBackoff = defaultPersistBackoff
	}
	if cfg.SettleDelay > maxSettleDelay {
		cfg.SettleDelay = maxSettleDelay
	}

	runCtx, stop := context.WithCancel(context.Background())

	return &Pipeline{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		analyzer:  analyzer,
		arena:     workdirArena{root: cfg.TempDir},
		cfg:       cfg,
		logger:    logger,
		runCtx:    runCtx,
		stop:      stop,
		inFlight:  make(map[string]struct{}),
	}
}

// Submit validates the submission synchronously and, on acceptance,
// starts the run detached. It returns before any extraction, analysis,
// settle delay, or notification happens.
func (p *Pipeline) Submit(ctx context.Context, sub Submission, sink port.NotificationSink, opts Options) error {
	if sub.RecordID == "" {
		return ErrEmptyRecordID
	}

	rec, err := p.store.Get(ctx, sub.RecordID)
	if err != nil {
		return fmt.Errorf("look up record %q: %w", sub.RecordID, err)
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("record %q is %s: %w", sub.RecordID, rec.Status, ErrAlreadyTerminal)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	if _, exists := p.inFlight[sub.RecordID]; exists {
		p.mu.Unlock()
		return fmt.Errorf("record %q: %w", sub.RecordID, ErrAlreadyInFlight)
	}
	p.inFlight[sub.RecordID] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(sub, sink, opts)
	return nil
}

// Shutdown stops accepting submissions and waits for in-flight runs.
// When ctx expires first, remaining runs are cancelled outright.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.stop()
		return nil
	case <-ctx.Done():
		p.stop()
		return ctx.Err()
	}
}

func (p *Pipeline) release(recordID string) {
	p.mu.Lock()
	delete(p.inFlight, recordID)
	p.mu.Unlock()
	p.wg.Done()
}

func (p *Pipeline) run(sub Submission, sink port.NotificationSink, opts Options) {
	defer p.release(sub.RecordID)

	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(p.runCtx, "pipeline.run")
	span.SetAttributes(
		attribute.String("record.id", sub.RecordID),
		attribute.Bool("light_mode", opts.LightMode),
	)
	defer span.End()

	log := p.logger.With(zap.String("record_id", sub.RecordID), zap.Bool("light_mode", opts.LightMode))
	log.Info("analysis run started", zap.String("filename", sub.DeclaredFilename))

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()
	totalTimer := time.Now()

	// Advisory progress event; observers do not need it for correctness.
	if err := sink.Publish(ctx, entity.StatusChangeEvent{RecordID: sub.RecordID, Status: entity.StatusProcessing}); err != nil {
		log.Debug("progress publish failed", zap.Error(err))
	}

	if !p.settle(ctx, log) {
		return
	}

	verdict, diag := p.computeVerdict(ctx, sub, opts, log)

	persisted := p.persistTerminal(ctx, sub.RecordID, verdict, diag, log)
	if !persisted {
		return
	}

	ev := entity.StatusChangeEvent{RecordID: sub.RecordID, Status: verdict, Error: diag}
	if err := sink.Publish(ctx, ev); err != nil {
		log.Error("terminal event publish failed", zap.Error(err))
	}

	metrics.JobsProcessedTotal.WithLabelValues(string(verdict)).Inc()
	metrics.JobStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	log.Info("analysis run finished",
		zap.String("verdict", string(verdict)),
		zap.String("last_error", diag),
	)
}

func (p *Pipeline) settle(ctx context.Context, log *zap.Logger) bool {
	if p.cfg.SettleDelay <= 0 {
		return true
	}
	select {
	case <-time.After(p.cfg.SettleDelay):
		return true
	case <-ctx.Done():
		log.Warn("run aborted during settle delay", zap.Error(ctx.Err()))
		return false
	}
}

// computeVerdict runs the evidence-gathering and decision stages. Any
// failure degrades to FLAGGED with a diagnostic, never to an unresolved
// job: inability to verify is treated as non-safe.
func (p *Pipeline) computeVerdict(ctx context.Context, sub Submission, opts Options, log *zap.Logger) (entity.Status, string) {
	tracer := otel.Tracer("pipeline")

	analyzer := p.analyzer
	if opts.MarkerToken != "" {
		analyzer = analysis.NewMarkerAnalyzer(opts.MarkerToken)
	}

	evidence := port.Evidence{Filename: sub.DeclaredFilename}

	if !opts.LightMode {
		workDir, err := p.arena.create(sub.RecordID)
		if err != nil {
			log.Error("workdir allocation failed", zap.Error(err))
			return entity.StatusFlagged, "allocate workdir: " + err.Error()
		}
		defer func() {
			if err := p.arena.remove(workDir); err != nil {
				log.Warn("workdir cleanup failed", zap.String("dir", workDir), zap.Error(err))
			}
		}()

		timeout := opts.ExtractTimeout
		if timeout <= 0 {
			timeout = p.cfg.ExtractTimeout
		}
		exCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		fetchStart := time.Now()
		exCtx2, spanFetch := tracer.Start(exCtx, "fetch_source")
		sourcePath := filepath.Join(workDir, "source"+filepath.Ext(sub.DeclaredFilename))
		err = p.fetcher.Fetch(exCtx2, sub.SourceLocator, sourcePath)
		spanFetch.End()
		if err != nil {
			log.Error("source fetch failed", zap.Error(err))
			return entity.StatusFlagged, "fetch source: " + err.Error()
		}
		metrics.JobStageDuration.WithLabelValues("fetch").Observe(time.Since(fetchStart).Seconds())

		frameCount := opts.FrameCount
		if frameCount <= 0 {
			frameCount = p.cfg.FrameCount
		}

		exStart := time.Now()
		exCtx3, spanEx := tracer.Start(exCtx, "extract_frames")
		result, err := p.extractor.ExtractFrames(exCtx3, sourcePath, filepath.Join(workDir, "frames"), frameCount)
		spanEx.End()
		if err != nil {
			log.Error("frame extraction failed", zap.Error(err))
			return entity.StatusFlagged, "extract frames: " + err.Error()
		}
		metrics.JobStageDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())
		metrics.FramesExtractedTotal.Add(float64(len(result.FramePaths)))

		evidence.FramePaths = result.FramePaths
	}

	anCtx, spanAn := tracer.Start(ctx, "analyze")
	verdict, err := analyzer.Analyze(anCtx, evidence)
	spanAn.End()
	if err != nil {
		log.Error("analysis failed", zap.Error(err))
		return entity.StatusFlagged, "analyze: " + err.Error()
	}
	return verdict, ""
}

// persistTerminal writes the terminal status with bounded retries.
// Persistence strictly precedes notification: a false return means the
// caller must not broadcast, either because another writer already moved
// the record out of PROCESSING or because the store kept failing.
func (p *Pipeline) persistTerminal(ctx context.Context, recordID string, verdict entity.Status, diag string, log *zap.Logger) bool {
	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "persist_status")
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= p.cfg.PersistAttempts; attempt++ {
		ok, err := p.store.CompareAndSetStatus(ctx, recordID, entity.StatusProcessing, verdict, diag)
		if err == nil {
			if !ok {
				log.Warn("record no longer PROCESSING, suppressing broadcast",
					zap.String("verdict", string(verdict)))
				return false
			}
			return true
		}

		lastErr = err
		metrics.PersistRetriesTotal.Inc()
		log.Warn("persist attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.PersistAttempts),
			zap.Error(err),
		)

		if attempt == p.cfg.PersistAttempts {
			break
		}
		select {
		case <-time.After(p.cfg.PersistBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			log.Error("persist aborted", zap.Error(ctx.Err()))
			return false
		}
	}

	// Surfaced on the operator channel; the record stays un-broadcast
	// rather than observers seeing a status the store does not hold.
	metrics.PersistFailuresTotal.Inc()
	log.Error("terminal status not persisted after retries",
		zap.String("verdict", string(verdict)),
		zap.Error(lastErr),
	)
	return false
}
