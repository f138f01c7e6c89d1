package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
)

type Repository struct {
	events docstore.Collection[Event]
	now    func() time.Time
}

func NewRepository(events docstore.Collection[Event]) *Repository {
	return &Repository{events: events, now: time.Now}
}

// Insert stores evt as unpublished, capturing the caller's trace context.
func (r *Repository) Insert(ctx context.Context, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	evt.ID = uuid.NewString()
	evt.Traceparent = traceparent
	evt.Tracestate = tracestate
	evt.Published = false
	evt.PublishedAt = nil
	evt.CreatedAt = r.now().UTC()
	_, err := r.events.Create(ctx, evt)
	return err
}

// FetchUnpublished returns up to limit unpublished events, oldest first.
func (r *Repository) FetchUnpublished(ctx context.Context, limit int) ([]Event, error) {
	q := docstore.Where("published", docstore.OpEq, false).
		Order("createdAt", false).
		Page(limit, 0)
	return r.events.GetAll(ctx, q)
}

func (r *Repository) MarkPublished(ctx context.Context, ids []string) error {
	at := r.now().UTC()
	for _, id := range ids {
		if err := r.events.Update(ctx, id, map[string]any{"published": true, "publishedAt": at}); err != nil {
			return err
		}
	}
	return nil
}
