package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/analysis"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/port"
)

const eventWait = 5 * time.Second

// callSequence records persist/notify ordering across fakes.
type callSequence struct {
	mu    sync.Mutex
	calls []string
}

func (s *callSequence) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *callSequence) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*entity.MediaRecord
	casCalls int
	casErr   error   // returned by every CAS call when set
	casFalse bool    // force stale-write result
	seq      *callSequence
}

func newFakeStore(seq *callSequence) *fakeStore {
	return &fakeStore{records: map[string]*entity.MediaRecord{}, seq: seq}
}

func (s *fakeStore) put(rec *entity.MediaRecord) {
	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
}

func (s *fakeStore) Get(_ context.Context, recordID string) (*entity.MediaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, entity.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) CompareAndSetStatus(_ context.Context, recordID string, expected, next entity.Status, lastError string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.casErr != nil {
		return false, s.casErr
	}
	if s.casFalse {
		return false, nil
	}
	rec, ok := s.records[recordID]
	if !ok || rec.Status != expected {
		return false, nil
	}
	rec.Status = next
	rec.LastError = lastError
	if s.seq != nil {
		s.seq.record("persist:" + recordID)
	}
	return true, nil
}

func (s *fakeStore) status(recordID string) entity.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[recordID].Status
}

type fakeSink struct {
	events chan entity.StatusChangeEvent
	seq    *callSequence
}

func newFakeSink(seq *callSequence) *fakeSink {
	return &fakeSink{events: make(chan entity.StatusChangeEvent, 16), seq: seq}
}

func (f *fakeSink) Publish(_ context.Context, ev entity.StatusChangeEvent) error {
	if f.seq != nil && ev.Status.Terminal() {
		f.seq.record("notify:" + ev.RecordID)
	}
	f.events <- ev
	return nil
}

// terminal blocks until the sink sees a terminal event, skipping progress.
func (f *fakeSink) terminal(t *testing.T) entity.StatusChangeEvent {
	t.Helper()
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-f.events:
			if ev.Status.Terminal() {
				return ev
			}
		case <-deadline:
			t.Fatal("timeout waiting for terminal event")
		}
	}
}

func (f *fakeSink) noTerminal(t *testing.T, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case ev := <-f.events:
			if ev.Status.Terminal() {
				t.Fatalf("unexpected terminal event: %+v", ev)
			}
		case <-deadline:
			return
		}
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _, destPath string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, []byte("media"), 0o644)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractor struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{} // extraction waits here when non-nil
	workdir string
}

func (f *fakeExtractor) ExtractFrames(ctx context.Context, _, outputDir string, frameCount int) (*port.ExtractionResult, error) {
	f.mu.Lock()
	f.calls++
	f.workdir = filepath.Dir(outputDir)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		p := filepath.Join(outputDir, fmt.Sprintf("frame_%02d.jpg", i+1))
		if err := os.WriteFile(p, []byte("jpg"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return &port.ExtractionResult{FramePaths: paths, VideoDuration: 12.5}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	store     *fakeStore
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	sink      *fakeSink
	seq       *callSequence
	pipeline  *Pipeline
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	seq := &callSequence{}
	store := newFakeStore(seq)
	fetcher := &fakeFetcher{}
	extractor := &fakeExtractor{}
	if cfg.TempDir == "" {
		cfg.TempDir = t.TempDir()
	}
	if cfg.PersistBackoff == 0 {
		cfg.PersistBackoff = time.Millisecond
	}
	p := New(store, fetcher, extractor, analysis.NewMarkerAnalyzer(""), cfg, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventWait)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return &fixture{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		sink:      newFakeSink(seq),
		seq:       seq,
		pipeline:  p,
	}
}

func (f *fixture) submit(t *testing.T, recordID, filename string, opts Options) {
	t.Helper()
	f.store.put(entity.NewMediaRecord(recordID, filename, "uploads/"+filename))
	err := f.pipeline.Submit(context.Background(), Submission{
		RecordID:         recordID,
		SourceLocator:    "uploads/" + filename,
		DeclaredFilename: filename,
	}, f.sink, opts)
	require.NoError(t, err)
}

func TestLightModeSafeVerdict(t *testing.T) {
	f := newFixture(t, Config{})
	f.submit(t, "v1", "holiday.mp4", Options{LightMode: true})

	ev := f.sink.terminal(t)
	assert.Equal(t, "v1", ev.RecordID)
	assert.Equal(t, entity.StatusSafe, ev.Status)
	assert.Empty(t, ev.Error)

	assert.Equal(t, entity.StatusSafe, f.store.status("v1"))
	assert.Zero(t, f.fetcher.callCount(), "light mode must not fetch")
	assert.Zero(t, f.extractor.callCount(), "light mode must not extract")
}

func TestLightModeFlaggedVerdict(t *testing.T) {
	f := newFixture(t, Config{})
	f.submit(t, "v2", "FLAGGED_clip.mov", Options{LightMode: true})

	ev := f.sink.terminal(t)
	assert.Equal(t, "v2", ev.RecordID)
	assert.Equal(t, entity.StatusFlagged, ev.Status)
	assert.Empty(t, ev.Error, "a genuine verdict carries no error")
	assert.Equal(t, entity.StatusFlagged, f.store.status("v2"))
}

func TestExtractionFailureFlagsWithError(t *testing.T) {
	f := newFixture(t, Config{})
	f.extractor.err = errors.New("unsupported codec")
	f.submit(t, "v3", "holiday.mp4", Options{})

	ev := f.sink.terminal(t)
	assert.Equal(t, entity.StatusFlagged, ev.Status)
	assert.NotEmpty(t, ev.Error)
	assert.Contains(t, ev.Error, "unsupported codec")
	assert.Equal(t, entity.StatusFlagged, f.store.status("v3"))

	rec, err := f.store.Get(context.Background(), "v3")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.LastError)
}

func TestFullModeSuccessCleansWorkdir(t *testing.T) {
	f := newFixture(t, Config{})
	f.submit(t, "v4", "holiday.mp4", Options{})

	ev := f.sink.terminal(t)
	assert.Equal(t, entity.StatusSafe, ev.Status)
	assert.Equal(t, 1, f.fetcher.callCount())
	assert.Equal(t, 1, f.extractor.callCount())

	require.NotEmpty(t, f.extractor.workdir)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(f.extractor.workdir)
		return os.IsNotExist(err)
	}, eventWait, 10*time.Millisecond, "workdir must be reclaimed on terminal transition")
}

func TestFailureAlsoCleansWorkdir(t *testing.T) {
	f := newFixture(t, Config{})
	f.extractor.err = errors.New("corrupt input")
	f.submit(t, "v5", "holiday.mp4", Options{})

	f.sink.terminal(t)
	require.NotEmpty(t, f.extractor.workdir)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(f.extractor.workdir)
		return os.IsNotExist(err)
	}, eventWait, 10*time.Millisecond)
}

func TestPersistPrecedesNotify(t *testing.T) {
	f := newFixture(t, Config{})
	f.submit(t, "v6", "holiday.mp4", Options{LightMode: true})
	f.sink.terminal(t)

	calls := f.seq.snapshot()
	require.Equal(t, []string{"persist:v6", "notify:v6"}, calls)
}

func TestDuplicateSubmissionRejectedWhileInFlight(t *testing.T) {
	f := newFixture(t, Config{})
	f.extractor.block = make(chan struct{})
	f.submit(t, "v7", "holiday.mp4", Options{})

	// Wait until the first run reaches extraction.
	require.Eventually(t, func() bool { return f.extractor.callCount() == 1 }, eventWait, time.Millisecond)

	err := f.pipeline.Submit(context.Background(), Submission{
		RecordID:         "v7",
		SourceLocator:    "uploads/holiday.mp4",
		DeclaredFilename: "holiday.mp4",
	}, f.sink, Options{})
	assert.ErrorIs(t, err, ErrAlreadyInFlight)

	close(f.extractor.block)
	ev := f.sink.terminal(t)
	assert.Equal(t, entity.StatusSafe, ev.Status)

	// Exactly one terminal event overall.
	f.sink.noTerminal(t, 200*time.Millisecond)
	assert.Equal(t, 1, f.extractor.callCount())
}

func TestUnknownRecordRejected(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.pipeline.Submit(context.Background(), Submission{
		RecordID:         "missing",
		DeclaredFilename: "x.mp4",
	}, f.sink, Options{})
	assert.ErrorIs(t, err, entity.ErrRecordNotFound)
}

func TestTerminalRecordRejected(t *testing.T) {
	f := newFixture(t, Config{})
	rec := entity.NewMediaRecord("done", "x.mp4", "uploads/x.mp4")
	rec.Status = entity.StatusSafe
	f.store.put(rec)

	err := f.pipeline.Submit(context.Background(), Submission{
		RecordID:         "done",
		DeclaredFilename: "x.mp4",
	}, f.sink, Options{})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestEmptyRecordIDRejected(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.pipeline.Submit(context.Background(), Submission{}, f.sink, Options{})
	assert.ErrorIs(t, err, ErrEmptyRecordID)
}

func TestStaleCASSuppressesBroadcast(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.casFalse = true
	f.submit(t, "v8", "holiday.mp4", Options{LightMode: true})

	f.sink.noTerminal(t, 300*time.Millisecond)
}

func TestPersistRetriesThenGivesUp(t *testing.T) {
	f := newFixture(t, Config{PersistAttempts: 3})
	f.store.casErr = errors.New("connection refused")
	f.submit(t, "v9", "holiday.mp4", Options{LightMode: true})

	f.sink.noTerminal(t, 500*time.Millisecond)

	f.store.mu.Lock()
	calls := f.store.casCalls
	f.store.mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestMarkerTokenOverride(t *testing.T) {
	f := newFixture(t, Config{})
	f.submit(t, "v10", "flagpole.mp4", Options{LightMode: true, MarkerToken: "nsfw"})

	ev := f.sink.terminal(t)
	assert.Equal(t, entity.StatusSafe, ev.Status, "override token replaces the default")
}

func TestSubmitReturnsBeforeRunFinishes(t *testing.T) {
	f := newFixture(t, Config{})
	f.extractor.block = make(chan struct{})

	start := time.Now()
	f.submit(t, "v11", "holiday.mp4", Options{})
	elapsed := time.Since(start)
	assert.Less(t, elapsed, time.Second, "submit must not block on the run")

	close(f.extractor.block)
	f.sink.terminal(t)
}

func TestSettleDelayClamped(t *testing.T) {
	seq := &callSequence{}
	p := New(newFakeStore(seq), &fakeFetcher{}, &fakeExtractor{}, analysis.NewMarkerAnalyzer(""),
		Config{TempDir: t.TempDir(), SettleDelay: time.Hour}, zap.NewNop())
	assert.Equal(t, maxSettleDelay, p.cfg.SettleDelay)
}

func TestSubmitAfterShutdownRejected(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), eventWait)
	defer cancel()
	require.NoError(t, f.pipeline.Shutdown(ctx))

	f.store.put(entity.NewMediaRecord("v12", "x.mp4", "uploads/x.mp4"))
	err := f.pipeline.Submit(context.Background(), Submission{
		RecordID:         "v12",
		DeclaredFilename: "x.mp4",
	}, f.sink, Options{})
	assert.ErrorIs(t, err, ErrPipelineClosed)
}
