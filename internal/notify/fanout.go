package notify

import (
	"context"
	"errors"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/port"
)

type fanoutSink struct {
	sinks []port.NotificationSink
}

// Fanout combines sinks into one: every event goes to each of them.
// Per-sink failures are joined but never short-circuit the others.
func Fanout(sinks ...port.NotificationSink) port.NotificationSink {
	return &fanoutSink{sinks: sinks}
}

func (f *fanoutSink) Publish(ctx context.Context, ev entity.StatusChangeEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
