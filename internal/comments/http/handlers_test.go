package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	"github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
	"github.com/ShipLog-Showcase/showcase-backend/internal/users"
)

type memStore struct {
	rows  []domain.Comment
	clock time.Time
}

func (m *memStore) put(projectID, authorID string, parentID *string, content string) domain.Comment {
	m.clock = m.clock.Add(time.Minute)
	c := domain.Comment{
		ID: fmt.Sprintf("c%d", len(m.rows)+1), ProjectID: projectID, AuthorID: authorID,
		ParentID: parentID, Content: content, CreatedAt: m.clock, UpdatedAt: m.clock,
	}
	m.rows = append(m.rows, c)
	return c
}

func (m *memStore) Get(_ context.Context, id string) (domain.Comment, error) {
	for _, c := range m.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Comment{}, apperr.ErrNotFound
}

func (m *memStore) ListTopLevel(_ context.Context, projectID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for i := len(m.rows) - 1; i >= 0; i-- {
		if c := m.rows[i]; c.ProjectID == projectID && c.ParentID == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListReplies(_ context.Context, projectID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range m.rows {
		if c.ProjectID == projectID && c.ParentID != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Insert(ctx context.Context, nc domain.NewComment) (domain.Comment, error) {
	if nc.ParentID != nil {
		p, err := m.Get(ctx, *nc.ParentID)
		if err != nil {
			return domain.Comment{}, err
		}
		if p.ParentID != nil {
			return domain.Comment{}, apperr.ErrInvalidInput
		}
		nc.ProjectID = p.ProjectID
	}
	if nc.ProjectID != "p1" {
		return domain.Comment{}, apperr.ErrForeignKeyViolation
	}
	return m.put(nc.ProjectID, nc.AuthorID, nc.ParentID, nc.Content), nil
}

func (m *memStore) Update(_ context.Context, id, authorID, content string) (time.Time, error) {
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].AuthorID == authorID {
			m.clock = m.clock.Add(time.Second)
			m.rows[i].Content, m.rows[i].UpdatedAt = content, m.clock
			return m.clock, nil
		}
	}
	return time.Time{}, apperr.ErrNotFound
}

func (m *memStore) Delete(_ context.Context, id, authorID string, policy domain.DeletePolicy) error {
	found := false
	var kept []domain.Comment
	for _, c := range m.rows {
		switch {
		case c.ID == id && c.AuthorID == authorID:
			found = true
		case c.ParentID != nil && *c.ParentID == id && policy == domain.DeleteCascade:
		case c.ParentID != nil && *c.ParentID == id:
			c.ParentID = nil
			kept = append(kept, c)
		default:
			kept = append(kept, c)
		}
	}
	if !found {
		return apperr.ErrNotFound
	}
	m.rows = kept
	return nil
}

type usersByUID struct{}

func (usersByUID) EnsureUser(_ context.Context, u users.UpsertUser) (string, error) {
	return "db-" + u.FirebaseUID, nil
}

type threadResp struct {
	OK       bool             `json:"ok"`
	Error    string           `json:"error"`
	Comment  domain.Comment   `json:"comment"`
	Comments []domain.Comment `json:"comments"`
}

// seeded: c1 (top, ann) with reply c2 (bob); c3 (top, bob).
func setupRouter(t *testing.T, policy domain.DeletePolicy) (*gin.Engine, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &memStore{clock: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	c1 := store.put("p1", "db-ann", nil, "first")
	store.put("p1", "db-bob", &c1.ID, "reply")
	store.put("p1", "db-bob", nil, "second")

	h := New(store, policy)
	resolver := auth.NewResolver(session.DevProvider{}, usersByUID{}, true)
	r := gin.New()
	api := r.Group("/api/v1", resolver.WithUser())
	h.RegisterProjectRoutes(api.Group("/projects"), auth.RequireUser())
	h.Register(api.Group("/comments"), auth.RequireUser())
	return r, store
}

func call(t *testing.T, r http.Handler, method, path, user string, body any) (int, threadResp) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp threadResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func threadIDs(cs []domain.Comment) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.ID)
		for _, r := range c.Replies {
			out = append(out, "  "+r.ID)
		}
	}
	return out
}

func TestListThread(t *testing.T) {
	r, _ := setupRouter(t, domain.DeleteOrphan)

	code, resp := call(t, r, http.MethodGet, "/api/v1/projects/p1/comments", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"c3", "c1", "  c2"}, threadIDs(resp.Comments))
}

func TestAddCommentAndReply(t *testing.T) {
	r, _ := setupRouter(t, domain.DeleteOrphan)

	code, resp := call(t, r, http.MethodPost, "/api/v1/projects/p1/comments", "cat", contentReq{Content: " hello "})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "hello", resp.Comment.Content)
	assert.Equal(t, []string{"c4", "c3", "c1", "  c2"}, threadIDs(resp.Comments))

	code, resp = call(t, r, http.MethodPost, "/api/v1/comments/c3/replies", "cat", contentReq{Content: "agreed"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, []string{"c4", "c3", "  c5", "c1", "  c2"}, threadIDs(resp.Comments))

	code, resp = call(t, r, http.MethodPost, "/api/v1/comments/c2/replies", "cat", contentReq{Content: "deeper"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "replies can only be added to top-level comments", resp.Error)

	code, _ = call(t, r, http.MethodPost, "/api/v1/projects/p1/comments", "cat", contentReq{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodPost, "/api/v1/projects/missing/comments", "cat", contentReq{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, r, http.MethodPost, "/api/v1/projects/p1/comments", "", contentReq{Content: "hi"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestEditComment(t *testing.T) {
	r, _ := setupRouter(t, domain.DeleteOrphan)

	code, _ := call(t, r, http.MethodPatch, "/api/v1/comments/c2", "ann", contentReq{Content: "hijack"})
	assert.Equal(t, http.StatusNotFound, code)

	code, resp := call(t, r, http.MethodPatch, "/api/v1/comments/c2", "bob", contentReq{Content: "edited"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "edited", resp.Comment.Content)
	assert.Equal(t, "edited", resp.Comments[1].Replies[0].Content)
}

func TestDeleteComment(t *testing.T) {
	t.Run("orphan", func(t *testing.T) {
		r, _ := setupRouter(t, domain.DeleteOrphan)
		code, resp := call(t, r, http.MethodDelete, "/api/v1/comments/c1", "ann", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, []string{"c3", "c2"}, threadIDs(resp.Comments))

		_, reload := call(t, r, http.MethodGet, "/api/v1/projects/p1/comments", "", nil)
		assert.Equal(t, threadIDs(reload.Comments), threadIDs(resp.Comments))
	})

	t.Run("cascade", func(t *testing.T) {
		r, store := setupRouter(t, domain.DeleteCascade)
		code, resp := call(t, r, http.MethodDelete, "/api/v1/comments/c1", "ann", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, []string{"c3"}, threadIDs(resp.Comments))
		assert.Len(t, store.rows, 1)
	})

	t.Run("not the author", func(t *testing.T) {
		r, _ := setupRouter(t, domain.DeleteOrphan)
		code, _ := call(t, r, http.MethodDelete, "/api/v1/comments/c1", "bob", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("unknown comment", func(t *testing.T) {
		r, _ := setupRouter(t, domain.DeleteOrphan)
		code, _ := call(t, r, http.MethodDelete, "/api/v1/comments/nope", "ann", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}
