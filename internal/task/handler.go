package task

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"taskboard/internal/apperror"
	"taskboard/internal/auth"
)

const (
	maxJSONBodyBytes = 1 << 20
	maxTitleLen      = 200
	maxDescLen       = 1000
	maxPageLimit     = 100
	defaultLimit     = 10
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperror.Write(w, apperror.Unauthorized("not authenticated"))
		return
	}

	query, ok := parseListQuery(w, r)
	if !ok {
		return
	}

	tasks, total, err := h.store.List(r.Context(), identity, query)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	totalPages := (total + query.Limit - 1) / query.Limit
	writeJSON(w, http.StatusOK, Page{
		Data: tasks,
		Meta: PageMeta{
			Page:       query.Page,
			Limit:      query.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperror.Write(w, apperror.Unauthorized("not authenticated"))
		return
	}

	input, ok := parseInput(w, r, true)
	if !ok {
		return
	}

	created, err := h.store.Create(r.Context(), input, identity.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := requireIdentityAndID(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), id, identity)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := requireIdentityAndID(w, r)
	if !ok {
		return
	}

	input, ok := parseInput(w, r, false)
	if !ok {
		return
	}

	t, err := h.store.Update(r.Context(), id, input, identity)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := requireIdentityAndID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id, identity); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func requireIdentityAndID(w http.ResponseWriter, r *http.Request) (auth.Identity, string, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperror.Write(w, apperror.Unauthorized("not authenticated"))
		return auth.Identity{}, "", false
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		apperror.Write(w, apperror.BadRequest("invalid task id"))
		return auth.Identity{}, "", false
	}

	return identity, id, true
}

func parseListQuery(w http.ResponseWriter, r *http.Request) (ListQuery, bool) {
	query := ListQuery{Page: 1, Limit: defaultLimit, Sort: "createdAt", Order: "desc"}
	values := r.URL.Query()

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			apperror.Write(w, apperror.BadRequest("page must be a positive integer"))
			return ListQuery{}, false
		}
		query.Page = page
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			apperror.Write(w, apperror.BadRequest("limit must be 1-100"))
			return ListQuery{}, false
		}
		query.Limit = limit
	}
	if raw := values.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			apperror.Write(w, apperror.BadRequest("status must be TODO, IN_PROGRESS or DONE"))
			return ListQuery{}, false
		}
		query.Status = status
	}
	if raw := values.Get("sort"); raw != "" {
		if _, ok := sortColumns[raw]; !ok {
			apperror.Write(w, apperror.BadRequest("sort must be createdAt, updatedAt or title"))
			return ListQuery{}, false
		}
		query.Sort = raw
	}
	if raw := values.Get("order"); raw != "" {
		if raw != "asc" && raw != "desc" {
			apperror.Write(w, apperror.BadRequest("order must be asc or desc"))
			return ListQuery{}, false
		}
		query.Order = raw
	}

	return query, true
}

func parseInput(w http.ResponseWriter, r *http.Request, requireTitle bool) (Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input Input
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		apperror.Write(w, apperror.BadRequest("invalid json body"))
		return Input{}, false
	}

	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		input.Title = &trimmed
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		input.Description = &trimmed
	}

	if requireTitle && (input.Title == nil || *input.Title == "") {
		apperror.Write(w, apperror.BadRequest("title is required"))
		return Input{}, false
	}
	if input.Title != nil {
		if *input.Title == "" || !utf8.ValidString(*input.Title) || utf8.RuneCountInString(*input.Title) > maxTitleLen {
			apperror.Write(w, apperror.BadRequest("title is invalid"))
			return Input{}, false
		}
	}
	if input.Description != nil {
		if !utf8.ValidString(*input.Description) || utf8.RuneCountInString(*input.Description) > maxDescLen {
			apperror.Write(w, apperror.BadRequest("description is invalid"))
			return Input{}, false
		}
	}
	if input.Status != nil && !input.Status.Valid() {
		apperror.Write(w, apperror.BadRequest("status must be TODO, IN_PROGRESS or DONE"))
		return Input{}, false
	}

	return input, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		sentry.CaptureException(err)
	}
	apperror.Write(w, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
