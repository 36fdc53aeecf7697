package port

import (
	"context"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

// NotificationSink receives status-change events for one job. Delivery is
// fire-and-forget: errors are logged by the pipeline, never retried, and
// never affect the job's outcome.
type NotificationSink interface {
	Publish(ctx context.Context, ev entity.StatusChangeEvent) error
}
