package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"

	"taskboard/internal/apperror"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	maxJSONBodyBytes = 1 << 20
	minPasswordLen   = 8
	maxPasswordLen   = 200
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !validCredentials(w, body.Email, body.Password) {
		return
	}

	user, err := h.service.Register(r.Context(), body.Email, body.Password, body.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !validCredentials(w, body.Email, body.Password) {
		return
	}

	user, pair, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.RefreshToken) == "" {
		apperror.Write(w, apperror.BadRequest("refresh token is required"))
		return
	}

	pair, err := h.service.Rotate(r.Context(), body.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.RefreshToken) == "" {
		apperror.Write(w, apperror.BadRequest("refresh token is required"))
		return
	}

	if err := h.service.Logout(r.Context(), body.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// Me echoes the request identity attached by the middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		apperror.Write(w, apperror.Unauthorized("not authenticated"))
		return
	}

	writeJSON(w, http.StatusOK, identity)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		apperror.Write(w, apperror.BadRequest("invalid json body"))
		return false
	}

	return true
}

func validCredentials(w http.ResponseWriter, email, password string) bool {
	if !emailRegex.MatchString(email) || len(email) > 254 {
		apperror.Write(w, apperror.BadRequest("email format is invalid"))
		return false
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		apperror.Write(w, apperror.BadRequest("password must be 8-200 characters"))
		return false
	}

	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
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
