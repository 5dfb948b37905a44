package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emissions/internal/platform/logger"
	"emissions/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	sink := NewMemorySink()
	pub := NewPublisher(sink)
	defer pub.Close()

	err := pub.Emit(context.Background(), Event{Action: EventVehicleRegistered.String(), Subject: "B1234XY"})
	require.NoError(t, err)

	events := sink.ListBySubject("B1234XY")
	require.Len(t, events, 1)
	assert.Equal(t, EventVehicleRegistered.String(), events[0].Action)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
}

func TestPublisher_EnrichesFromContext(t *testing.T) {
	sink := NewMemorySink()
	pub := NewPublisher(sink)

	operator := requestcontext.Principal{UserID: uuid.New(), Username: "siti", Role: "operator"}
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithOperator(context.Background(), operator)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithTime(ctx, fixed)
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.9",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	require.NoError(t, pub.Emit(ctx, Event{Action: EventInspectionRecorded.String(), Subject: "B1234XY"}))

	events := sink.List()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "10.0.0.9", e.ClientIP)
	assert.Equal(t, operator.UserID.String(), e.ActorID)
	assert.Equal(t, "siti", e.ActorName)
	assert.Contains(t, e.Device, "Chrome")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	sink := NewMemorySink()
	pub := NewPublisher(sink)

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), Event{Action: "x", Timestamp: customTime}))
	assert.Equal(t, customTime, sink.List()[0].Timestamp)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	sink := NewMemorySink()
	pub := NewPublisher(sink, WithAsyncBuffer(100), WithPublisherLogger(logger.Discard()))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: EventUserCreated.String()}))
	}
	pub.Close()

	assert.Len(t, sink.List(), 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterCloseIsSynchronous(t *testing.T) {
	sink := NewMemorySink()
	pub := NewPublisher(sink, WithAsyncBuffer(4), WithPublisherLogger(logger.Discard()))
	pub.Close()
	pub.Close()

	require.NoError(t, pub.Emit(context.Background(), Event{Action: "late"}))
	assert.Len(t, sink.List(), 1)
}

type blockingSink struct {
	release chan struct{}
	MemorySink
}

func (b *blockingSink) Append(ctx context.Context, e Event) error {
	<-b.release
	return b.MemorySink.Append(ctx, e)
}

func TestPublisher_BufferFullDropsEvent(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	pub := NewPublisher(sink, WithAsyncBuffer(1), WithPublisherLogger(logger.Discard()))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, pub.Emit(context.Background(), Event{Action: "burst"}))
		}()
	}
	wg.Wait()
	close(sink.release)
	pub.Close()

	// one in flight with the worker plus one buffered at most
	assert.LessOrEqual(t, len(sink.List()), 2)
	assert.GreaterOrEqual(t, len(sink.List()), 1)
}

func TestDeviceLabel(t *testing.T) {
	assert.Empty(t, DeviceLabel(""))
	assert.Equal(t, "bot", DeviceLabel("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	label := DeviceLabel("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Contains(t, label, "Chrome on ")
}

func TestFanOut(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	require.NoError(t, FanOut{a, b}.Append(context.Background(), Event{Action: "x"}))
	assert.Len(t, a.List(), 1)
	assert.Len(t, b.List(), 1)
}
