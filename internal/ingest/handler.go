package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/port"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/metrics"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/pipeline"
)

// RecordCreator is the store-side bootstrap used when a submission
// arrives for a record the upload service has not written yet.
type RecordCreator interface {
	Create(ctx context.Context, rec *entity.MediaRecord) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}

// Handler bridges the analysis.request queue to the pipeline: decode,
// bootstrap the record row if missing, submit. Malformed messages and
// permanently unprocessable submissions go to the DLQ and are acked.
type Handler struct {
	store    port.RecordStore
	creator  RecordCreator
	pipeline *pipeline.Pipeline
	sink     port.NotificationSink
	dlq      DLQPublisher
	opts     pipeline.Options
	logger   *zap.Logger
}

func NewHandler(
	store port.RecordStore,
	creator RecordCreator,
	p *pipeline.Pipeline,
	sink port.NotificationSink,
	dlq DLQPublisher,
	opts pipeline.Options,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:    store,
		creator:  creator,
		pipeline: p,
		sink:     sink,
		dlq:      dlq,
		opts:     opts,
		logger:   logger,
	}
}

func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var msg entity.AnalysisRequestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("failed to unmarshal submission", zap.Error(err), zap.ByteString("body", body))
		metrics.SubmissionsRejectedTotal.WithLabelValues("malformed").Inc()
		_ = h.dlq.PublishToDLQ(ctx, body, "unmarshal_error: "+err.Error())
		return nil
	}

	log := h.logger.With(zap.String("record_id", msg.RecordID))

	if _, err := h.store.Get(ctx, msg.RecordID); errors.Is(err, entity.ErrRecordNotFound) {
		rec := entity.NewMediaRecord(msg.RecordID, msg.Filename, msg.SourceLocator)
		rec.MimeType = msg.MimeType
		rec.Size = msg.FileSize
		if err := h.creator.Create(ctx, rec); err != nil {
			log.Error("failed to bootstrap record", zap.Error(err))
			return fmt.Errorf("bootstrap record: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("look up record: %w", err)
	}

	err := h.pipeline.Submit(ctx, pipeline.Submission{
		RecordID:         msg.RecordID,
		SourceLocator:    msg.SourceLocator,
		DeclaredFilename: msg.Filename,
	}, h.sink, h.opts)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrAlreadyInFlight), errors.Is(err, pipeline.ErrAlreadyTerminal):
		// Duplicate deliveries are expected with at-least-once intake;
		// the in-flight run (or the terminal record) already covers them.
		log.Warn("duplicate submission dropped", zap.Error(err))
		metrics.SubmissionsRejectedTotal.WithLabelValues("duplicate").Inc()
		return nil
	case errors.Is(err, entity.ErrRecordNotFound), errors.Is(err, pipeline.ErrEmptyRecordID):
		log.Error("unprocessable submission", zap.Error(err))
		metrics.SubmissionsRejectedTotal.WithLabelValues("unprocessable").Inc()
		_ = h.dlq.PublishToDLQ(ctx, body, "unprocessable: "+err.Error())
		return nil
	default:
		return err
	}
}
