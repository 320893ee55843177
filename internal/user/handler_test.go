package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/auth"
)

type fakeUserStore struct {
	users []auth.User
}

func (s *fakeUserStore) Create(_ context.Context, user auth.User) error {
	s.users = append(s.users, user)
	return nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (auth.User, bool, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return auth.User{}, false, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (auth.User, bool, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return auth.User{}, false, nil
}

func (s *fakeUserStore) List(_ context.Context) ([]auth.User, error) {
	return s.users, nil
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	id := uuid.NewString()
	store := &fakeUserStore{users: []auth.User{{
		ID:           id,
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$secret",
		Role:         auth.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}}}
	handler := NewHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{id}", handler.GetUser)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "alice@example.com")
		assert.NotContains(t, body, "argon2id", "password hash must never be serialized")
	})

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListUsers(t *testing.T) {
	t.Parallel()

	store := &fakeUserStore{users: []auth.User{
		{ID: uuid.NewString(), Email: "admin@example.com", PasswordHash: "$argon2id$a", Role: auth.RoleAdmin},
		{ID: uuid.NewString(), Email: "user@example.com", PasswordHash: "$argon2id$b", Role: auth.RoleUser},
	}}
	handler := NewHandler(store)

	w := httptest.NewRecorder()
	handler.ListUsers(w, httptest.NewRequest(http.MethodGet, "/admin/users", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "@example.com"))
	assert.NotContains(t, body, "argon2id")
}
