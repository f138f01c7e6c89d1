// Package booking implements the availability and booking core: validating a booking request,
// committing it against freshly computed availability, and answering open-slot queries.
//
// There is no transactional guard between the availability re-check and the write. Two
// requests for the same slot that pass validation concurrently are both persisted.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EventWriter records domain events. Failures are logged, never returned to the caller.
type EventWriter interface {
	Insert(ctx context.Context, evt outbox.Event) error
}

type Engine struct {
	store    *storage.Store
	events   EventWriter
	logger   *slog.Logger
	now      func() time.Time
	tracer   trace.Tracer
	validate *validator.Validate

	// background tracks best-effort work started by a booking (customer timezone patches).
	background sync.WaitGroup
}

type Option func(*Engine)

// WithClock overrides time.Now for past-time checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithEvents(w EventWriter) Option {
	return func(e *Engine) { e.events = w }
}

func NewEngine(store *storage.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		logger:   logger,
		now:      time.Now,
		tracer:   otelx.Tracer("booking-service/booking"),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wait blocks until background work started by earlier bookings has finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
	}
	span.End()
}

func (e *Engine) emit(ctx context.Context, evt outbox.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Insert(ctx, evt); err != nil {
		e.logger.Error("outbox insert failed", "event_type", evt.EventType, "aggregate_id", evt.AggregateID, "err", err)
	}
}

// load fetches id from c, translating a miss into a *NotFoundError for entity.
func load[T any](ctx context.Context, c docstore.Collection[T], entity, id string) (T, error) {
	v, err := c.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return v, &NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return v, fmt.Errorf("load %s: %w", entity, err)
	}
	return v, nil
}
