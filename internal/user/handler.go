package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"taskboard/internal/apperror"
	"taskboard/internal/auth"
)

// Handler serves the user lookup surface. The admin-only listing is enforced
// by the role guard at wiring time, not here.
type Handler struct {
	users auth.UserStore
}

func NewHandler(users auth.UserStore) *Handler {
	return &Handler{users: users}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		apperror.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		apperror.Write(w, apperror.BadRequest("invalid user id"))
		return
	}

	found, ok, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			sentry.CaptureException(err)
		}
		apperror.Write(w, err)
		return
	}
	if !ok {
		apperror.Write(w, apperror.NotFound("user not found"))
		return
	}

	writeJSON(w, http.StatusOK, found)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
