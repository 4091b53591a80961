// Package comments assembles a project's two-level discussion thread and
// keeps it in step with the store as comments are added, edited and removed.
package comments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
)

type Gateway interface {
	ListTopLevel(ctx context.Context, projectID string) ([]domain.Comment, error)
	ListReplies(ctx context.Context, projectID string) ([]domain.Comment, error)
	Insert(ctx context.Context, nc domain.NewComment) (domain.Comment, error)
	Update(ctx context.Context, id, authorID, content string) (time.Time, error)
	Delete(ctx context.Context, id, authorID string, policy domain.DeletePolicy) error
}

type Tree struct {
	gateway Gateway
	policy  domain.DeletePolicy

	mu        sync.Mutex
	projectID string
	topLevel  []domain.Comment
}

func NewTree(gateway Gateway, policy domain.DeletePolicy) *Tree {
	if policy == "" {
		policy = domain.DeleteOrphan
	}
	return &Tree{gateway: gateway, policy: policy}
}

// Load replaces the tree with the project's thread: top-level comments newest
// first, each with its replies oldest first.
func (t *Tree) Load(ctx context.Context, projectID string) error {
	top, err := t.gateway.ListTopLevel(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	replies, err := t.gateway.ListReplies(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load replies: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.projectID = projectID
	t.topLevel = assemble(top, replies)
	return nil
}

func assemble(top, replies []domain.Comment) []domain.Comment {
	byParent := make(map[string][]domain.Comment, len(top))
	for _, r := range replies {
		if r.ParentID == nil {
			continue
		}
		byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
	}

	out := make([]domain.Comment, len(top))
	for i, c := range top {
		c.Replies = byParent[c.ID]
		if c.Replies == nil {
			c.Replies = []domain.Comment{}
		}
		out[i] = c
	}
	return out
}

// Comments returns a copy of the current thread.
func (t *Tree) Comments() []domain.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Comment, len(t.topLevel))
	for i, c := range t.topLevel {
		c.Replies = slices.Clone(c.Replies)
		out[i] = c
	}
	return out
}

func (t *Tree) AddComment(ctx context.Context, projectID, authorID, text string) (domain.Comment, error) {
	if authorID == "" {
		return domain.Comment{}, apperr.ErrRequiresAuthentication
	}
	content, err := domain.NormalizeContent(text)
	if err != nil {
		return domain.Comment{}, err
	}

	c, err := t.gateway.Insert(ctx, domain.NewComment{ProjectID: projectID, AuthorID: authorID, Content: content})
	if err != nil {
		return domain.Comment{}, mutationFailed("add comment", err)
	}
	if c.Replies == nil {
		c.Replies = []domain.Comment{}
	}

	t.mu.Lock()
	if t.projectID == "" || t.projectID == projectID {
		t.projectID = projectID
		t.topLevel = slices.Insert(t.topLevel, 0, c)
	}
	t.mu.Unlock()
	return c, nil
}

// AddReply appends a reply under parentID. Replies to replies are refused
// before anything is sent to the store.
func (t *Tree) AddReply(ctx context.Context, parentID, authorID, text string) (domain.Comment, error) {
	if authorID == "" {
		return domain.Comment{}, apperr.ErrRequiresAuthentication
	}
	content, err := domain.NormalizeContent(text)
	if err != nil {
		return domain.Comment{}, err
	}

	t.mu.Lock()
	nested := t.isReply(parentID)
	t.mu.Unlock()
	if nested {
		return domain.Comment{}, fmt.Errorf("%w: replies can only be added to top-level comments", apperr.ErrInvalidInput)
	}

	parent := parentID
	r, err := t.gateway.Insert(ctx, domain.NewComment{AuthorID: authorID, ParentID: &parent, Content: content})
	if err != nil {
		return domain.Comment{}, mutationFailed("add reply", err)
	}
	r.Replies = nil

	t.mu.Lock()
	if i := t.indexTop(parentID); i >= 0 {
		t.topLevel[i].Replies = append(t.topLevel[i].Replies, r)
	}
	t.mu.Unlock()
	return r, nil
}

func (t *Tree) EditComment(ctx context.Context, commentID, authorID, text string) (domain.Comment, error) {
	if authorID == "" {
		return domain.Comment{}, apperr.ErrRequiresAuthentication
	}
	content, err := domain.NormalizeContent(text)
	if err != nil {
		return domain.Comment{}, err
	}

	updatedAt, err := t.gateway.Update(ctx, commentID, authorID, content)
	if err != nil {
		return domain.Comment{}, mutationFailed("edit comment", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.find(commentID)
	if c == nil {
		return domain.Comment{ID: commentID, AuthorID: authorID, Content: content, UpdatedAt: updatedAt}, nil
	}
	c.Content = content
	c.UpdatedAt = updatedAt
	out := *c
	out.Replies = slices.Clone(c.Replies)
	return out, nil
}

// DeleteComment removes commentID. Removing a top-level comment applies the
// tree's delete policy to its replies.
func (t *Tree) DeleteComment(ctx context.Context, commentID, authorID string) error {
	if authorID == "" {
		return apperr.ErrRequiresAuthentication
	}
	if err := t.gateway.Delete(ctx, commentID, authorID, t.policy); err != nil {
		return mutationFailed("delete comment", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.topLevel {
		if j := slices.IndexFunc(t.topLevel[i].Replies, func(r domain.Comment) bool { return r.ID == commentID }); j >= 0 {
			t.topLevel[i].Replies = slices.Delete(t.topLevel[i].Replies, j, j+1)
			return nil
		}
	}

	i := t.indexTop(commentID)
	if i < 0 {
		return nil
	}
	orphans := t.topLevel[i].Replies
	t.topLevel = slices.Delete(t.topLevel, i, i+1)

	if t.policy == domain.DeleteOrphan && len(orphans) > 0 {
		for _, r := range orphans {
			r.ParentID = nil
			r.Replies = []domain.Comment{}
			t.topLevel = append(t.topLevel, r)
		}
		slices.SortStableFunc(t.topLevel, func(a, b domain.Comment) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return nil
}

// Find returns a copy of the comment with id wherever it sits in the tree.
func (t *Tree) Find(id string) (domain.Comment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.find(id)
	if c == nil {
		return domain.Comment{}, false
	}
	out := *c
	out.Replies = slices.Clone(c.Replies)
	return out, true
}

func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.topLevel)
	for _, c := range t.topLevel {
		n += len(c.Replies)
	}
	return n
}

// find, isReply and indexTop expect t.mu to be held.
func (t *Tree) find(id string) *domain.Comment {
	for i := range t.topLevel {
		if t.topLevel[i].ID == id {
			return &t.topLevel[i]
		}
		for j := range t.topLevel[i].Replies {
			if t.topLevel[i].Replies[j].ID == id {
				return &t.topLevel[i].Replies[j]
			}
		}
	}
	return nil
}

func (t *Tree) isReply(id string) bool {
	for _, c := range t.topLevel {
		if slices.ContainsFunc(c.Replies, func(r domain.Comment) bool { return r.ID == id }) {
			return true
		}
	}
	return false
}

func (t *Tree) indexTop(id string) int {
	return slices.IndexFunc(t.topLevel, func(c domain.Comment) bool { return c.ID == id })
}

// mutationFailed wraps store failures. Caller mistakes (unknown or foreign
// comment, bad input) pass through so they keep their own status.
func mutationFailed(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidInput) ||
		errors.Is(err, apperr.ErrRequiresAuthentication) {
		return err
	}
	log.Warn().Err(err).Str("op", op).Msg("comment mutation failed")
	return fmt.Errorf("%w: %s: %w", apperr.ErrCommentMutationFailed, op, err)
}
