package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

type recordingSink struct {
	events []entity.StatusChangeEvent
	err    error
}

func (r *recordingSink) Publish(_ context.Context, ev entity.StatusChangeEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	sink := Fanout(a, b)

	ev := entity.StatusChangeEvent{RecordID: "v1", Status: entity.StatusSafe}
	require.NoError(t, sink.Publish(context.Background(), ev))

	assert.Equal(t, []entity.StatusChangeEvent{ev}, a.events)
	assert.Equal(t, []entity.StatusChangeEvent{ev}, b.events)
}

func TestFanoutFailureDoesNotShortCircuit(t *testing.T) {
	a := &recordingSink{err: errors.New("amqp down")}
	b := &recordingSink{}
	sink := Fanout(a, b)

	ev := entity.StatusChangeEvent{RecordID: "v1", Status: entity.StatusFlagged}
	err := sink.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.Len(t, b.events, 1, "second sink still receives the event")
}
