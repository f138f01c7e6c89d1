package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind"`
	Fields    map[string]string `json:"fields,omitempty"`
	Conflicts []string          `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the booking error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrPastTime), errors.Is(err, booking.ErrOutsideBusinessHours):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrSlotUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorBody renders err for clients. Internal errors never leak their message.
func errorBody(err error) (int, errorResponse) {
	code := statusFor(err)
	body := errorResponse{Error: err.Error(), Kind: booking.Kind(err)}
	if code == http.StatusInternalServerError {
		body.Error = "internal error"
		return code, body
	}
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	var cerr *booking.ConflictError
	if errors.As(err, &cerr) {
		for _, a := range cerr.Appointments {
			body.Conflicts = append(body.Conflicts, a.ID)
		}
	}
	return code, body
}

func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	code, body := errorBody(err)
	if code == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, body)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &booking.ValidationError{Msg: "invalid json body"}
	}
	return nil
}
