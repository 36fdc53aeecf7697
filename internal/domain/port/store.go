package port

import (
	"context"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

// RecordStore is the durable keyed store for media records. The pipeline
// only ever moves a record forward with CompareAndSetStatus, so racing
// terminal writes degrade to a harmless false return.
type RecordStore interface {
	Get(ctx context.Context, recordID string) (*entity.MediaRecord, error)

	// CompareAndSetStatus atomically sets the record's status (and optional
	// diagnostic) only if it is still in expected. Returns false, without
	// error, when the record was in a different status.
	CompareAndSetStatus(ctx context.Context, recordID string, expected, next entity.Status, lastError string) (bool, error)
}
