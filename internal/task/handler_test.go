package task

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/apperror"
	"taskboard/internal/auth"
)

// fakeStore mirrors the Postgres repository's viewer scoping: USER queries
// only see owned rows, ADMIN queries see everything.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]Task)}
}

func (s *fakeStore) visible(t Task, viewer auth.Identity) bool {
	return viewer.IsAdmin() || t.OwnerID == viewer.UserID
}

func (s *fakeStore) List(_ context.Context, viewer auth.Identity, query ListQuery) ([]Task, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Task, 0)
	for _, t := range s.tasks {
		if !s.visible(t, viewer) {
			continue
		}
		if query.Status != "" && t.Status != query.Status {
			continue
		}
		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch query.Sort {
		case "title":
			less = matched[i].Title < matched[j].Title
		case "updatedAt":
			less = matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if query.Order == "desc" {
			return !less
		}
		return less
	})

	total := len(matched)
	start := (query.Page - 1) * query.Limit
	if start > total {
		start = total
	}
	end := start + query.Limit
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func (s *fakeStore) Create(_ context.Context, input Input, ownerID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	t := Task{
		ID:        uuid.NewString(),
		Status:    StatusTodo,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Status != nil {
		t.Status = *input.Status
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *fakeStore) Get(_ context.Context, id string, viewer auth.Identity) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || !s.visible(t, viewer) {
		return Task{}, apperror.NotFound("task not found")
	}
	return t, nil
}

func (s *fakeStore) Update(_ context.Context, id string, input Input, viewer auth.Identity) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || !s.visible(t, viewer) {
		return Task{}, apperror.NotFound("task not found")
	}
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Status != nil {
		t.Status = *input.Status
	}
	t.UpdatedAt = time.Now().UTC()
	s.tasks[id] = t
	return t, nil
}

func (s *fakeStore) Delete(_ context.Context, id string, viewer auth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || !s.visible(t, viewer) {
		return apperror.NotFound("task not found")
	}
	delete(s.tasks, t.ID)
	return nil
}

var (
	aliceID = uuid.NewString()
	bobID   = uuid.NewString()
	adminID = uuid.NewString()

	alice = auth.Identity{UserID: aliceID, Role: auth.RoleUser}
	bob   = auth.Identity{UserID: bobID, Role: auth.RoleUser}
	admin = auth.Identity{UserID: adminID, Role: auth.RoleAdmin}
)

func doRequest(handler http.HandlerFunc, method, target string, body string, identity *auth.Identity) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	r := httptest.NewRequest(method, target, reader)
	if identity != nil {
		r = r.WithContext(auth.ContextWithIdentity(r.Context(), *identity))
	}
	w := httptest.NewRecorder()

	mux := http.NewServeMux()
	mux.HandleFunc(method+" /tasks", handler)
	mux.HandleFunc(method+" /tasks/{id}", handler)
	mux.ServeHTTP(w, r)
	return w
}

func TestHandler_CreateDefaultsToTodo(t *testing.T) {
	t.Parallel()

	handler := NewHandler(newFakeStore())
	w := doRequest(handler.Create, http.MethodPost, "/tasks", `{"title":"write report"}`, &alice)

	require.Equal(t, http.StatusCreated, w.Code)

	var created Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "write report", created.Title)
	assert.Equal(t, StatusTodo, created.Status)
	assert.Equal(t, aliceID, created.OwnerID)
}

func TestHandler_CreateValidation(t *testing.T) {
	t.Parallel()

	handler := NewHandler(newFakeStore())

	cases := map[string]string{
		"missing title":  `{}`,
		"blank title":    `{"title":"   "}`,
		"bad status":     `{"title":"x","status":"LATER"}`,
		"unknown field":  `{"title":"x","owner":"someone"}`,
		"not json":       `title=x`,
		"oversize title": fmt.Sprintf(`{"title":%q}`, strings.Repeat("a", 201)),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(handler.Create, http.MethodPost, "/tasks", body, &alice)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandler_TitleLimitCountsCharacters(t *testing.T) {
	t.Parallel()

	handler := NewHandler(newFakeStore())

	// 200 multi-byte characters are within the limit even though the byte
	// length is far larger.
	body := fmt.Sprintf(`{"title":%q}`, strings.Repeat("日", 200))
	w := doRequest(handler.Create, http.MethodPost, "/tasks", body, &alice)
	assert.Equal(t, http.StatusCreated, w.Code)

	body = fmt.Sprintf(`{"title":%q}`, strings.Repeat("日", 201))
	w = doRequest(handler.Create, http.MethodPost, "/tasks", body, &alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_OwnershipScoping(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	handler := NewHandler(store)

	title := "alice's task"
	created, err := store.Create(context.Background(), Input{Title: &title}, aliceID)
	require.NoError(t, err)

	t.Run("owner can read", func(t *testing.T) {
		w := doRequest(handler.Get, http.MethodGet, "/tasks/"+created.ID, "", &alice)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other user gets 404", func(t *testing.T) {
		for _, run := range []struct {
			fn     http.HandlerFunc
			method string
			body   string
		}{
			{handler.Get, http.MethodGet, ""},
			{handler.Update, http.MethodPut, `{"title":"hijacked"}`},
			{handler.Delete, http.MethodDelete, ""},
		} {
			w := doRequest(run.fn, run.method, "/tasks/"+created.ID, run.body, &bob)
			assert.Equal(t, http.StatusNotFound, w.Code)
		}
	})

	t.Run("admin bypasses ownership", func(t *testing.T) {
		w := doRequest(handler.Get, http.MethodGet, "/tasks/"+created.ID, "", &admin)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest(handler.Update, http.MethodPut, "/tasks/"+created.ID, `{"status":"DONE"}`, &admin)
		require.Equal(t, http.StatusOK, w.Code)

		var updated Task
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, StatusDone, updated.Status)
		assert.Equal(t, aliceID, updated.OwnerID)
	})

	t.Run("no identity is unauthorized", func(t *testing.T) {
		w := doRequest(handler.Get, http.MethodGet, "/tasks/"+created.ID, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandler_DeleteReturnsNoContent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	handler := NewHandler(store)

	title := "to delete"
	created, err := store.Create(context.Background(), Input{Title: &title}, aliceID)
	require.NoError(t, err)

	w := doRequest(handler.Delete, http.MethodDelete, "/tasks/"+created.ID, "", &alice)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(handler.Delete, http.MethodDelete, "/tasks/"+created.ID, "", &alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ListPaginationAndScoping(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	handler := NewHandler(store)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		title := fmt.Sprintf("alice %02d", i)
		_, err := store.Create(ctx, Input{Title: &title}, aliceID)
		require.NoError(t, err)
	}
	bobTitle := "bob's task"
	_, err := store.Create(ctx, Input{Title: &bobTitle}, bobID)
	require.NoError(t, err)

	t.Run("owner sees only own rows with meta", func(t *testing.T) {
		w := doRequest(handler.List, http.MethodGet, "/tasks?page=2&limit=10", "", &alice)
		require.Equal(t, http.StatusOK, w.Code)

		var page Page
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 12, page.Meta.Total)
		assert.Equal(t, 2, page.Meta.Page)
		assert.Equal(t, 2, page.Meta.TotalPages)
		assert.Len(t, page.Data, 2)
	})

	t.Run("admin sees all rows", func(t *testing.T) {
		w := doRequest(handler.List, http.MethodGet, "/tasks?limit=100", "", &admin)
		require.Equal(t, http.StatusOK, w.Code)

		var page Page
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 13, page.Meta.Total)
	})

	t.Run("sort by title ascending", func(t *testing.T) {
		w := doRequest(handler.List, http.MethodGet, "/tasks?sort=title&order=asc&limit=3", "", &alice)
		require.Equal(t, http.StatusOK, w.Code)

		var page Page
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		require.Len(t, page.Data, 3)
		assert.Equal(t, "alice 00", page.Data[0].Title)
		assert.Equal(t, "alice 01", page.Data[1].Title)
	})

	t.Run("bad query params rejected", func(t *testing.T) {
		for _, target := range []string{
			"/tasks?page=0",
			"/tasks?limit=101",
			"/tasks?status=LATER",
			"/tasks?sort=ownerId",
			"/tasks?order=random",
		} {
			w := doRequest(handler.List, http.MethodGet, target, "", &alice)
			assert.Equal(t, http.StatusBadRequest, w.Code, target)
		}
	})
}

func TestHandler_InvalidTaskID(t *testing.T) {
	t.Parallel()

	handler := NewHandler(newFakeStore())

	w := doRequest(handler.Get, http.MethodGet, "/tasks/not-a-uuid", "", &alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
