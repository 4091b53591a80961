package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	cdomain "github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
	"github.com/ShipLog-Showcase/showcase-backend/internal/events"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/domain"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/service"
	"github.com/ShipLog-Showcase/showcase-backend/internal/ranking"
	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
	"github.com/ShipLog-Showcase/showcase-backend/internal/users"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

// memStore backs both the project service and the ranking engine.
type memStore struct {
	mu       sync.Mutex
	projects []domain.Project
	votes    map[string]map[string]bool // user -> project
	voteErr  error
	seq      int
}

func newMemStore() *memStore {
	return &memStore{votes: map[string]map[string]bool{}}
}

func (m *memStore) add(p domain.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p)
}

func (m *memStore) find(id string) *domain.Project {
	for i := range m.projects {
		if m.projects[i].ID == id {
			return &m.projects[i]
		}
	}
	return nil
}

func (m *memStore) ListProjects(context.Context) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Project(nil), m.projects...), nil
}

func (m *memStore) VotedProjectIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for pid := range m.votes[userID] {
		ids = append(ids, pid)
	}
	return ids, nil
}

func (m *memStore) InsertVote(_ context.Context, userID, projectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voteErr != nil {
		return 0, m.voteErr
	}
	if m.votes[userID] == nil {
		m.votes[userID] = map[string]bool{}
	}
	if m.votes[userID][projectID] {
		return 0, apperr.ErrUniqueViolation
	}
	m.votes[userID][projectID] = true
	p := m.find(projectID)
	p.VoteCount++
	return p.VoteCount, nil
}

func (m *memStore) DeleteVote(_ context.Context, userID, projectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voteErr != nil {
		return 0, m.voteErr
	}
	p := m.find(projectID)
	if m.votes[userID][projectID] {
		delete(m.votes[userID], projectID)
		p.VoteCount--
	}
	return p.VoteCount, nil
}

// bump simulates votes cast through other instances.
func (m *memStore) bump(projectID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.find(projectID).VoteCount += n
}

func (m *memStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(id)
	if p == nil {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListVotedBy(_ context.Context, userID string) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Project
	for _, p := range m.projects {
		if m.votes[userID][p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CreateProject(_ context.Context, np domain.NewProject) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if p.URL == np.URL {
			return nil, apperr.ErrUniqueViolation
		}
	}
	m.seq++
	p := domain.Project{
		ID: fmt.Sprintf("new-%d", m.seq), OwnerID: np.OwnerID, Title: np.Title,
		Description: np.Description, URL: np.URL, MediaURLs: np.MediaURLs, CreatedAt: testNow,
	}
	m.projects = append(m.projects, p)
	return &p, nil
}

func (m *memStore) UpdateProject(_ context.Context, id, ownerID string, patch domain.ProjectPatch) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(id)
	if p == nil || p.OwnerID != ownerID {
		return nil, apperr.ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SetThumbnail(context.Context, string, string, string) error { return nil }

func (m *memStore) DeleteProject(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.projects {
		if p.ID == id && p.OwnerID == ownerID {
			m.projects = append(m.projects[:i], m.projects[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

type stubComments struct{ top, replies []cdomain.Comment }

func (s stubComments) ListTopLevel(context.Context, string) ([]cdomain.Comment, error) {
	return s.top, nil
}
func (s stubComments) ListReplies(context.Context, string) ([]cdomain.Comment, error) {
	return s.replies, nil
}
func (stubComments) Insert(context.Context, cdomain.NewComment) (cdomain.Comment, error) {
	return cdomain.Comment{}, errors.New("read only")
}
func (stubComments) Update(context.Context, string, string, string) (time.Time, error) {
	return time.Time{}, errors.New("read only")
}
func (stubComments) Delete(context.Context, string, string, cdomain.DeletePolicy) error {
	return errors.New("read only")
}

type usersByUID struct{}

func (usersByUID) EnsureUser(_ context.Context, u users.UpsertUser) (string, error) {
	return "db-" + u.FirebaseUID, nil
}

type fixture struct {
	router *gin.Engine
	store  *memStore
	redis  *redis.Client
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	store := newMemStore()
	store.add(domain.Project{ID: "p-foo", OwnerID: "db-owner", Title: "Foo", URL: "https://foo.dev", VoteCount: 3, CreatedAt: testNow.Add(-time.Hour),
		MediaURLs: []string{"https://youtu.be/dQw4w9WgXcQ", "https://drive.google.com/file/d/abc123/view"}})
	store.add(domain.Project{ID: "p-bar", OwnerID: "db-owner", Title: "Bar", URL: "https://bar.dev", VoteCount: 5, CreatedAt: testNow.AddDate(0, 0, -40)})

	views := ranking.NewViews(store, ranking.Options{VoteTimeout: time.Second, Location: time.UTC}, time.Minute)
	comments := stubComments{top: []cdomain.Comment{{ID: "c1", ProjectID: "p-foo", Content: "neat", CreatedAt: testNow}}}
	h := New(service.NewProjectService(store, nil), views, events.NewPublisher(rc), comments, cdomain.DeleteOrphan)
	h.now = func() time.Time { return testNow }

	resolver := auth.NewResolver(session.DevProvider{}, usersByUID{}, true)
	r := gin.New()
	api := r.Group("/api/v1", resolver.WithUser())
	h.Register(api.Group("/projects"), auth.RequireUser())
	h.RegisterDashboard(api, auth.RequireUser())

	return &fixture{router: r, store: store, redis: rc}
}

func (f *fixture) do(method, path, user string, body any) *httptest.ResponseRecorder {
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
	f.router.ServeHTTP(w, req)
	return w
}

type listResp struct {
	OK       bool          `json:"ok"`
	Projects []projectView `json:"projects"`
	Stale    bool          `json:"stale"`
}

type voteResp struct {
	OK    bool              `json:"ok"`
	Error string            `json:"error"`
	Vote  ranking.VoteState `json:"vote"`
}

func decodeInto[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func titles(ps []projectView) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Title)
	}
	return out
}

func TestList(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/api/v1/projects", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeInto[listResp](t, w)
	assert.Equal(t, []string{"Bar", "Foo"}, titles(resp.Projects))

	w = f.do(http.MethodGet, "/api/v1/projects?window=month", "", nil)
	assert.Equal(t, []string{"Foo"}, titles(decodeInto[listResp](t, w).Projects))

	w = f.do(http.MethodGet, "/api/v1/projects?q=BA", "", nil)
	assert.Equal(t, []string{"Bar"}, titles(decodeInto[listResp](t, w).Projects))

	w = f.do(http.MethodGet, "/api/v1/projects?window=decade", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	t.Run("media is classified for display", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/v1/projects?q=foo", "", nil)
		foo := decodeInto[listResp](t, w).Projects[0]
		require.Len(t, foo.Media, 2)
		assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", foo.Media[0].EmbedURL)
		assert.Equal(t, "https://drive.google.com/uc?export=view&id=abc123", foo.Media[1].DisplayURL)
	})
}

func TestToggleVote(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, "/api/v1/projects/p-foo/vote", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ranking.VoteState{ProjectID: "p-foo", VoteCount: 4, Voted: true}, decodeInto[voteResp](t, w).Vote)

	w = f.do(http.MethodGet, "/api/v1/projects", "alice", nil)
	for _, p := range decodeInto[listResp](t, w).Projects {
		assert.Equal(t, p.ID == "p-foo", p.Voted, p.ID)
	}

	w = f.do(http.MethodPost, "/api/v1/projects/p-foo/vote", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ranking.VoteState{ProjectID: "p-foo", VoteCount: 3, Voted: false}, decodeInto[voteResp](t, w).Vote)

	t.Run("self vote", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/projects/p-foo/vote", "owner", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "You cannot vote on your own project", decodeInto[voteResp](t, w).Error)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/projects/p-foo/vote", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown project", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/v1/projects/nope/vote", "alice", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store failure rolls back", func(t *testing.T) {
		f.store.voteErr = errors.New("connection refused")
		defer func() { f.store.voteErr = nil }()

		w := f.do(http.MethodPost, "/api/v1/projects/p-bar/vote", "bob", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		resp := decodeInto[voteResp](t, w)
		assert.Equal(t, "Failed to update vote. Please try again.", resp.Error)
		assert.Equal(t, ranking.VoteState{ProjectID: "p-bar", VoteCount: 5, Voted: false}, resp.Vote)
	})

	t.Run("project created after the engine loaded", func(t *testing.T) {
		f.store.add(domain.Project{ID: "p-late", OwnerID: "db-owner", Title: "Late", URL: "https://late.dev", CreatedAt: testNow})
		w := f.do(http.MethodPost, "/api/v1/projects/p-late/vote", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeInto[voteResp](t, w).Vote.Voted)
	})
}

func TestRemoveVoteIsIdempotent(t *testing.T) {
	f := setup(t)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/projects/p-bar/vote", "alice", nil).Code)

	for range 2 {
		w := f.do(http.MethodDelete, "/api/v1/projects/p-bar/vote", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ranking.VoteState{ProjectID: "p-bar", VoteCount: 5, Voted: false}, decodeInto[voteResp](t, w).Vote)
	}
}

func TestVotePublishesEvent(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := events.NewPublisher(f.redis).Subscribe(ctx)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/projects/p-bar/vote", "alice", nil).Code)

	select {
	case ev := <-ch:
		assert.Equal(t, "p-bar", ev.ProjectID)
		assert.Equal(t, 6, ev.VoteCount)
	case <-time.After(2 * time.Second):
		t.Fatal("no vote event")
	}
}

func TestVoteReportsStoredCount(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := events.NewPublisher(f.redis).Subscribe(ctx)
	require.NoError(t, err)

	// alice's engine loads with p-bar at 5; bob's votes land afterwards.
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/projects", "alice", nil).Code)
	f.store.bump("p-bar", 3)

	w := f.do(http.MethodPost, "/api/v1/projects/p-bar/vote", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ranking.VoteState{ProjectID: "p-bar", VoteCount: 9, Voted: true}, decodeInto[voteResp](t, w).Vote)

	select {
	case ev := <-ch:
		assert.Equal(t, "p-bar", ev.ProjectID)
		assert.Equal(t, 9, ev.VoteCount)
	case <-time.After(2 * time.Second):
		t.Fatal("no vote event")
	}
}

func TestListFiltersArePerRequest(t *testing.T) {
	f := setup(t)

	var wg sync.WaitGroup
	for i := range 40 {
		q, want := "foo", "Foo"
		if i%2 == 1 {
			q, want = "bar", "Bar"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := f.do(http.MethodGet, "/api/v1/projects?q="+q, "alice", nil)
			var resp listResp
			if assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)) {
				assert.Equal(t, []string{want}, titles(resp.Projects), q)
			}
		}()
	}
	wg.Wait()

	w := f.do(http.MethodGet, "/api/v1/projects", "alice", nil)
	assert.Equal(t, []string{"Bar", "Foo"}, titles(decodeInto[listResp](t, w).Projects))
}

func TestCreateProject(t *testing.T) {
	f := setup(t)
	body := service.UploadInput{Title: " New thing ", URL: "https://new.dev"}

	w := f.do(http.MethodPost, "/api/v1/projects", "carol", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"user_id":"db-carol"`)
	assert.Contains(t, w.Body.String(), `"title":"New thing"`)

	w = f.do(http.MethodPost, "/api/v1/projects", "carol", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "This URL has already been uploaded")

	w = f.do(http.MethodPost, "/api/v1/projects", "carol", service.UploadInput{Title: "", URL: "https://x.dev"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Title is required")

	w = f.do(http.MethodPost, "/api/v1/projects", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateAndDeleteAreOwnerScoped(t *testing.T) {
	f := setup(t)
	title := "Renamed"

	w := f.do(http.MethodPatch, "/api/v1/projects/p-foo", "mallory", updateReq{Title: &title})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPatch, "/api/v1/projects/p-foo", "owner", updateReq{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Renamed"`)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/projects/p-foo", "mallory", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/projects/p-foo", "owner", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/projects/p-foo", "", nil).Code)
}

func TestDetail(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/projects/p-foo/vote", "alice", nil).Code)

	w := f.do(http.MethodGet, "/api/v1/projects/p-foo", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeInto[struct {
		Project  projectView       `json:"project"`
		Comments []cdomain.Comment `json:"comments"`
	}](t, w)
	assert.True(t, resp.Project.Voted)
	assert.Equal(t, 4, resp.Project.VoteCount)
	require.Len(t, resp.Comments, 1)
	assert.Equal(t, "neat", resp.Comments[0].Content)
	assert.Contains(t, w.Body.String(), `"replies":[]`)
}

func TestDashboard(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/projects/p-bar/vote", "alice", nil).Code)

	w := f.do(http.MethodGet, "/api/v1/dashboard", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeInto[struct {
		Owned []projectView `json:"owned"`
		Voted []projectView `json:"voted"`
	}](t, w)
	assert.Empty(t, resp.Owned)
	require.Len(t, resp.Voted, 1)
	assert.Equal(t, "p-bar", resp.Voted[0].ID)
	assert.True(t, resp.Voted[0].Voted)

	w = f.do(http.MethodGet, "/api/v1/dashboard", "owner", nil)
	assert.Len(t, decodeInto[struct {
		Owned []projectView `json:"owned"`
	}](t, w).Owned, 2)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/dashboard", "", nil).Code)
}

func TestThumbnailDisabled(t *testing.T) {
	f := setup(t)
	var buf bytes.Buffer
	buf.WriteString("--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.png\"\r\nContent-Type: image/png\r\n\r\npng\r\n--b--\r\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/p-foo/thumbnail", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	req.Header.Set("X-User-Id", "owner")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Thumbnail uploads are not enabled")
}

func TestStream(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/projects/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": connected", lines.Text())

	require.NoError(t, events.NewPublisher(f.redis).PublishVote(ctx, events.VoteEvent{ProjectID: "p-foo", VoteCount: 9}))

	var data string
	for lines.Scan() {
		if after, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
			data = after
			break
		}
	}
	var ev events.VoteEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "p-foo", ev.ProjectID)
	assert.Equal(t, 9, ev.VoteCount)
}
