package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/idempotency"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cancelAfterClaim cancels the request context as soon as the key is claimed, like a client
// disconnecting or REQUEST_TIMEOUT firing mid-booking.
type cancelAfterClaim struct {
	idempotency.Store
	cancel context.CancelFunc
}

func (c *cancelAfterClaim) Claim(ctx context.Context, key string) (*idempotency.Response, error) {
	resp, err := c.Store.Claim(ctx, key)
	c.cancel()
	return resp, err
}

// cancelAfterCreate cancels the request context right after the appointment is written.
type cancelAfterCreate struct {
	docstore.Collection[model.Appointment]
	cancel context.CancelFunc
}

func (c *cancelAfterCreate) Create(ctx context.Context, doc model.Appointment) (string, error) {
	id, err := c.Collection.Create(ctx, doc)
	c.cancel()
	return id, err
}

func TestIdempotencyKeySurvivesCancelledRequest(t *testing.T) {
	tests := []struct {
		name      string
		wire      func(s *testServer, redisStore idempotency.Store, cancel context.CancelFunc) idempotency.Store
		firstCode int
		replayed  bool
	}{
		{
			name: "booking fails, claim is released",
			wire: func(_ *testServer, redisStore idempotency.Store, cancel context.CancelFunc) idempotency.Store {
				return &cancelAfterClaim{Store: redisStore, cancel: cancel}
			},
			firstCode: http.StatusInternalServerError,
		},
		{
			name: "booking commits, response is stored",
			wire: func(s *testServer, redisStore idempotency.Store, cancel context.CancelFunc) idempotency.Store {
				s.store.Appointments = &cancelAfterCreate{Collection: s.store.Appointments, cancel: cancel}
				return redisStore
			},
			firstCode: http.StatusCreated,
			replayed:  true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })

			s := newTestServer(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			idem := tc.wire(s, idempotency.NewRedisStore(rdb, 24*time.Hour, "test:idem:"), cancel)

			clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
			engine := booking.NewEngine(s.store, runtime.Discard(), booking.WithClock(func() time.Time { return clock }))
			h := NewBookingHandler(engine, idem, runtime.Discard())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", bytes.NewBufferString(bookBody("2026-03-02T10:00:00Z")))
			req = req.WithContext(ctx)
			req.Header.Set(IdempotencyKeyHeader, "retry-me")
			rec := httptest.NewRecorder()
			h.Create(rec, req)
			require.Equal(t, tc.firstCode, rec.Code, rec.Body.String())

			retry := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", bytes.NewBufferString(bookBody("2026-03-02T10:00:00Z")))
			retry.Header.Set(IdempotencyKeyHeader, "retry-me")
			rec = httptest.NewRecorder()
			NewBookingHandler(engine, idempotency.NewRedisStore(rdb, 24*time.Hour, "test:idem:"), runtime.Discard()).Create(rec, retry)

			assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			if tc.replayed {
				assert.Equal(t, "true", rec.Header().Get(IdempotentReplayHeader))
			} else {
				assert.Empty(t, rec.Header().Get(IdempotentReplayHeader))
			}
			assert.True(t, mr.Exists("test:idem:org-1:retry-me"))
			assert.Equal(t, 24*time.Hour, mr.TTL("test:idem:org-1:retry-me"))
		})
	}
}
