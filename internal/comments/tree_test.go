package comments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
)

// memGateway keeps comments in memory and mimics the store's ordering and
// author scoping.
type memGateway struct {
	comments []domain.Comment
	clock    time.Time
	seq      int
	fail     error
	calls    int
}

func newMemGateway() *memGateway {
	return &memGateway{clock: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
}

func (g *memGateway) seed(projectID, authorID string, parentID *string, content string) domain.Comment {
	g.seq++
	g.clock = g.clock.Add(time.Minute)
	c := domain.Comment{
		ID:        fmt.Sprintf("c%d", g.seq),
		ProjectID: projectID,
		AuthorID:  authorID,
		ParentID:  parentID,
		Content:   content,
		CreatedAt: g.clock,
		UpdatedAt: g.clock,
	}
	g.comments = append(g.comments, c)
	return c
}

func (g *memGateway) ListTopLevel(_ context.Context, projectID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for i := len(g.comments) - 1; i >= 0; i-- {
		c := g.comments[i]
		if c.ProjectID == projectID && c.ParentID == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *memGateway) ListReplies(_ context.Context, projectID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range g.comments {
		if c.ProjectID == projectID && c.ParentID != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *memGateway) Insert(_ context.Context, nc domain.NewComment) (domain.Comment, error) {
	g.calls++
	if g.fail != nil {
		return domain.Comment{}, g.fail
	}
	if nc.ParentID != nil {
		p := g.get(*nc.ParentID)
		if p == nil {
			return domain.Comment{}, apperr.ErrNotFound
		}
		if p.ParentID != nil {
			return domain.Comment{}, apperr.ErrInvalidInput
		}
		nc.ProjectID = p.ProjectID
	}
	return g.seed(nc.ProjectID, nc.AuthorID, nc.ParentID, nc.Content), nil
}

func (g *memGateway) Update(_ context.Context, id, authorID, content string) (time.Time, error) {
	g.calls++
	if g.fail != nil {
		return time.Time{}, g.fail
	}
	c := g.get(id)
	if c == nil || c.AuthorID != authorID {
		return time.Time{}, apperr.ErrNotFound
	}
	g.clock = g.clock.Add(time.Second)
	c.Content, c.UpdatedAt = content, g.clock
	return g.clock, nil
}

func (g *memGateway) Delete(_ context.Context, id, authorID string, policy domain.DeletePolicy) error {
	g.calls++
	if g.fail != nil {
		return g.fail
	}
	c := g.get(id)
	if c == nil || c.AuthorID != authorID {
		return apperr.ErrNotFound
	}
	kept := g.comments[:0]
	for _, x := range g.comments {
		switch {
		case x.ID == id:
		case x.ParentID != nil && *x.ParentID == id && policy == domain.DeleteCascade:
		case x.ParentID != nil && *x.ParentID == id:
			x.ParentID = nil
			kept = append(kept, x)
		default:
			kept = append(kept, x)
		}
	}
	g.comments = kept
	return nil
}

func (g *memGateway) get(id string) *domain.Comment {
	for i := range g.comments {
		if g.comments[i].ID == id {
			return &g.comments[i]
		}
	}
	return nil
}

func ptr(s string) *string { return &s }

func ids(cs []domain.Comment) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

// reloaded returns the thread a fresh Load would produce.
func reloaded(t *testing.T, g *memGateway, projectID string, policy domain.DeletePolicy) []domain.Comment {
	t.Helper()
	fresh := NewTree(g, policy)
	require.NoError(t, fresh.Load(context.Background(), projectID))
	return fresh.Comments()
}

func TestTree_Load(t *testing.T) {
	g := newMemGateway()
	a := g.seed("p1", "u1", nil, "first")
	b := g.seed("p1", "u2", nil, "second")
	r1 := g.seed("p1", "u2", ptr(a.ID), "reply one")
	r2 := g.seed("p1", "u3", ptr(a.ID), "reply two")
	g.seed("p2", "u1", nil, "elsewhere")

	tree := NewTree(g, "")
	require.NoError(t, tree.Load(context.Background(), "p1"))

	got := tree.Comments()
	assert.Equal(t, []string{b.ID, a.ID}, ids(got))
	assert.Equal(t, []string{r1.ID, r2.ID}, ids(got[1].Replies))
	assert.NotNil(t, got[0].Replies)
	assert.Empty(t, got[0].Replies)
	assert.Equal(t, 4, tree.Len())
}

func TestTree_AddCommentAndReply(t *testing.T) {
	g := newMemGateway()
	old := g.seed("p1", "u1", nil, "old")
	tree := NewTree(g, "")
	ctx := context.Background()
	require.NoError(t, tree.Load(ctx, "p1"))

	c, err := tree.AddComment(ctx, "p1", "u2", "  new comment  ")
	require.NoError(t, err)
	assert.Equal(t, "new comment", c.Content)

	r, err := tree.AddReply(ctx, old.ID, "u2", "a reply")
	require.NoError(t, err)
	require.NotNil(t, r.ParentID)

	got := tree.Comments()
	assert.Equal(t, []string{c.ID, old.ID}, ids(got))
	assert.Equal(t, []string{r.ID}, ids(got[1].Replies))
	assert.Equal(t, ids(reloaded(t, g, "p1", domain.DeleteOrphan)), ids(got))

	t.Run("reply to a reply is refused locally", func(t *testing.T) {
		before := g.calls
		_, err := tree.AddReply(ctx, r.ID, "u1", "deeper")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		assert.Equal(t, before, g.calls)
	})

	t.Run("blank text", func(t *testing.T) {
		before := g.calls
		_, err := tree.AddComment(ctx, "p1", "u1", "   ")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		assert.Equal(t, before, g.calls)
	})

	t.Run("missing author", func(t *testing.T) {
		_, err := tree.AddComment(ctx, "p1", "", "hi")
		assert.ErrorIs(t, err, apperr.ErrRequiresAuthentication)
	})
}

func TestTree_GatewayFailureLeavesTreeUnchanged(t *testing.T) {
	g := newMemGateway()
	a := g.seed("p1", "u1", nil, "hello")
	tree := NewTree(g, "")
	ctx := context.Background()
	require.NoError(t, tree.Load(ctx, "p1"))
	before := tree.Comments()

	g.fail = errors.New("connection reset")

	_, err := tree.AddComment(ctx, "p1", "u2", "x")
	assert.ErrorIs(t, err, apperr.ErrCommentMutationFailed)
	_, err = tree.AddReply(ctx, a.ID, "u2", "x")
	assert.ErrorIs(t, err, apperr.ErrCommentMutationFailed)
	_, err = tree.EditComment(ctx, a.ID, "u1", "x")
	assert.ErrorIs(t, err, apperr.ErrCommentMutationFailed)
	err = tree.DeleteComment(ctx, a.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrCommentMutationFailed)

	assert.Equal(t, before, tree.Comments())
}

func TestTree_EditComment(t *testing.T) {
	g := newMemGateway()
	a := g.seed("p1", "u1", nil, "top")
	r := g.seed("p1", "u2", ptr(a.ID), "reply")
	tree := NewTree(g, "")
	ctx := context.Background()
	require.NoError(t, tree.Load(ctx, "p1"))

	edited, err := tree.EditComment(ctx, r.ID, "u2", " fixed typo ")
	require.NoError(t, err)
	assert.Equal(t, "fixed typo", edited.Content)

	got, ok := tree.Find(r.ID)
	require.True(t, ok)
	assert.Equal(t, "fixed typo", got.Content)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	t.Run("only the author may edit", func(t *testing.T) {
		_, err := tree.EditComment(ctx, a.ID, "u2", "hijack")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.NotErrorIs(t, err, apperr.ErrCommentMutationFailed)
		c, _ := tree.Find(a.ID)
		assert.Equal(t, "top", c.Content)
	})
}

func TestTree_DeleteComment(t *testing.T) {
	ctx := context.Background()

	build := func(policy domain.DeletePolicy) (*memGateway, *Tree, []domain.Comment) {
		g := newMemGateway()
		a := g.seed("p1", "u1", nil, "a")
		r1 := g.seed("p1", "u2", ptr(a.ID), "r1")
		b := g.seed("p1", "u3", nil, "b")
		r2 := g.seed("p1", "u3", ptr(a.ID), "r2")
		tree := NewTree(g, policy)
		require.NoError(t, tree.Load(ctx, "p1"))
		return g, tree, []domain.Comment{a, r1, b, r2}
	}

	t.Run("reply", func(t *testing.T) {
		g, tree, cs := build(domain.DeleteOrphan)
		require.NoError(t, tree.DeleteComment(ctx, cs[1].ID, "u2"))
		_, ok := tree.Find(cs[1].ID)
		assert.False(t, ok)
		assert.Equal(t, reloaded(t, g, "p1", domain.DeleteOrphan), tree.Comments())
	})

	t.Run("orphan promotes replies like a reload", func(t *testing.T) {
		g, tree, cs := build(domain.DeleteOrphan)
		require.NoError(t, tree.DeleteComment(ctx, cs[0].ID, "u1"))

		got := tree.Comments()
		assert.Equal(t, []string{cs[3].ID, cs[2].ID, cs[1].ID}, ids(got))
		for _, c := range got {
			assert.Nil(t, c.ParentID)
		}
		assert.Equal(t, ids(reloaded(t, g, "p1", domain.DeleteOrphan)), ids(got))
	})

	t.Run("cascade drops replies", func(t *testing.T) {
		g, tree, cs := build(domain.DeleteCascade)
		require.NoError(t, tree.DeleteComment(ctx, cs[0].ID, "u1"))

		assert.Equal(t, []string{cs[2].ID}, ids(tree.Comments()))
		assert.Equal(t, 1, tree.Len())
		assert.Equal(t, ids(reloaded(t, g, "p1", domain.DeleteCascade)), ids(tree.Comments()))
	})

	t.Run("someone else's comment", func(t *testing.T) {
		_, tree, cs := build(domain.DeleteOrphan)
		err := tree.DeleteComment(ctx, cs[2].ID, "u1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, 4, tree.Len())
	})
}
