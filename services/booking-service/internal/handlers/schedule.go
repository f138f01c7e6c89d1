package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
)

// ScheduleHandler administers the data availability is computed from: organizations,
// services, calendars and time-off.
type ScheduleHandler struct {
	engine *booking.Engine
	logger *slog.Logger
}

func NewScheduleHandler(engine *booking.Engine, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{engine: engine, logger: logger}
}

func (h *ScheduleHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/organizations", h.CreateOrganization)
	mux.HandleFunc("/api/v1/services", h.CreateService)
	mux.HandleFunc("/api/v1/calendars", h.PutCalendar)
	mux.HandleFunc("/api/v1/time-off", h.CreateTimeOff)
}

func (h *ScheduleHandler) PutCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in booking.CalendarInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	cal, err := h.engine.UpsertCalendar(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (h *ScheduleHandler) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in booking.TimeOffInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	off, err := h.engine.CreateTimeOff(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, off)
}

func (h *ScheduleHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in booking.OrganizationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	org, err := h.engine.CreateOrganization(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (h *ScheduleHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in booking.ServiceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	svc, err := h.engine.CreateService(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}
