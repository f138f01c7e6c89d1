package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func newTestPublisher(t *testing.T) (*Publisher, *Repository, *docstore.MemoryCollection[Event]) {
	t.Helper()
	events := docstore.NewMemoryCollection[Event]("outbox")
	repo := NewRepository(events)
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pub := NewPublisher(repo, logger, PublisherConfig{Brokers: "localhost:9092", PollEvery: 10 * time.Millisecond, BatchSize: 2})
	return pub, repo, events
}

func insert(t *testing.T, repo *Repository, aggregateID string) {
	t.Helper()
	evt, err := NewEvent("appointment", aggregateID, EventAppointmentBooked, map[string]string{"appointmentId": aggregateID})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), evt))
}

func TestPublishBatch(t *testing.T) {
	pub, repo, _ := newTestPublisher(t)
	ctx := context.Background()
	insert(t, repo, "a1")
	insert(t, repo, "a2")
	insert(t, repo, "a3")

	w := &fakeWriter{}
	n, err := pub.publishBatch(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, EventAppointmentBooked, w.msgs[0].Topic)
	assert.Equal(t, "a1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"appointmentId":"a1"}`, string(w.msgs[0].Value))
	assert.NotEmpty(t, kafkax.HeaderValue(w.msgs[0].Headers, kafkax.HeaderEventID))

	n, err = pub.publishBatch(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "a3", string(w.msgs[2].Key))

	left, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPublishBatchWriteFailureKeepsEvents(t *testing.T) {
	pub, repo, _ := newTestPublisher(t)
	ctx := context.Background()
	insert(t, repo, "a1")

	_, err := pub.publishBatch(ctx, &fakeWriter{err: errors.New("broker down")})
	require.Error(t, err)

	left, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.False(t, left[0].Published)
}

func TestRunStopsOnCancel(t *testing.T) {
	pub, repo, _ := newTestPublisher(t)
	insert(t, repo, "a1")

	ctx, cancel := context.WithCancel(context.Background())
	w := &fakeWriter{}
	done := make(chan struct{})
	go func() {
		pub.run(ctx, w)
		close(done)
	}()

	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
	assert.True(t, w.closed)
}

func TestPublisherDisabledWithoutBrokers(t *testing.T) {
	pub := NewPublisher(NewRepository(docstore.NewMemoryCollection[Event]("outbox")), slog.New(slog.NewJSONHandler(io.Discard, nil)), PublisherConfig{})
	assert.False(t, pub.Enabled())
	pub.Run(context.Background())
}
