package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/idempotency"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replayed"
	OrganizationIDHeader    = "X-Organization-Id"
	maxIdempotencyKeyLength = 255

	idempotencyFinishTimeout = 5 * time.Second
)

type BookingHandler struct {
	engine *booking.Engine
	idem   idempotency.Store
	logger *slog.Logger
}

// NewBookingHandler serves the public slot and booking endpoints plus appointment
// management. idem may be nil to disable Idempotency-Key handling.
func NewBookingHandler(engine *booking.Engine, idem idempotency.Store, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, idem: idem, logger: logger}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Create)
	mux.HandleFunc("/api/v1/appointments", h.List)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
}

type cancelResponse struct {
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelledAt"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	slots, err := h.engine.Timeslots(r.Context(), booking.TimeslotQuery{
		ServiceID:      q.Get("service_id"),
		Date:           q.Get("date"),
		OrganizationID: q.Get("organization_id"),
		AssigneeID:     q.Get("assignee_id"),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req booking.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	ctx := r.Context()
	idemKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(idemKey) > maxIdempotencyKeyLength {
		http.Error(w, "Idempotency-Key too long", http.StatusBadRequest)
		return
	}
	if idemKey != "" && h.idem != nil {
		idemKey = strings.TrimSpace(req.OrganizationID) + ":" + idemKey
		stored, err := h.idem.Claim(ctx, idemKey)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			http.Error(w, "a request with this Idempotency-Key is in progress", http.StatusConflict)
			return
		case err != nil:
			h.logger.Error("idempotency claim failed", "request_id", httpx.RequestIDFromContext(ctx), "err", err)
			http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
			return
		case stored != nil:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(IdempotentReplayHeader, "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	} else {
		idemKey = ""
	}

	conf, err := h.engine.Book(ctx, req)
	code, body := http.StatusCreated, any(conf)
	if err != nil {
		var eb errorResponse
		code, eb = errorBody(err)
		body = eb
		if code == http.StatusInternalServerError {
			h.logger.Error("booking failed", "request_id", httpx.RequestIDFromContext(ctx), "err", err)
		}
	}

	var buf bytes.Buffer
	if encErr := json.NewEncoder(&buf).Encode(body); encErr != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}

	if idemKey != "" {
		h.finishIdempotent(ctx, idemKey, code, buf.Bytes())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

// finishIdempotent records or releases the claim on key even when the request context is
// already cancelled. Transient failures are not remembered so the client can retry.
func (h *BookingHandler) finishIdempotent(ctx context.Context, key string, code int, body []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyFinishTimeout)
	defer cancel()
	if code == http.StatusInternalServerError {
		if err := h.idem.Release(ctx, key); err != nil {
			h.logger.Error("idempotency release failed", "err", err)
		}
		return
	}
	if err := h.idem.Complete(ctx, key, idempotency.Response{StatusCode: code, Body: body}); err != nil {
		h.logger.Error("idempotency complete failed", "err", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req booking.CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.OrganizationID == "" {
		req.OrganizationID = r.Header.Get(OrganizationIDHeader)
	}

	appt, err := h.engine.Cancel(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	resp := cancelResponse{AppointmentID: appt.ID, Status: string(appt.Status)}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	orgID := strings.TrimSpace(r.Header.Get(OrganizationIDHeader))
	if orgID == "" {
		orgID = q.Get("organization_id")
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}

	appts, err := h.engine.List(r.Context(), booking.ListQuery{
		OrganizationID: orgID,
		CalendarID:     q.Get("calendar_id"),
		Status:         model.AppointmentStatus(q.Get("status")),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": appts})
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
