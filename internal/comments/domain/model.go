package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
)

const MaxContentLen = 2000

// Comment is either top level (ParentID nil, Replies non-nil) or a reply to
// a top-level comment. Threads are at most two levels deep.
type Comment struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	AuthorID   string    `json:"user_id"`
	ParentID   *string   `json:"parent_id"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Replies    []Comment `json:"replies"`
}

func (c Comment) IsReply() bool { return c.ParentID != nil }

// MarshalJSON always writes "replies" for top-level comments, as an empty
// array when there are none, and leaves it out for replies.
func (c Comment) MarshalJSON() ([]byte, error) {
	type plain Comment
	if c.IsReply() {
		return json.Marshal(struct {
			plain
			Replies []Comment `json:"replies,omitempty"`
		}{plain: plain(c)})
	}
	replies := c.Replies
	if replies == nil {
		replies = []Comment{}
	}
	return json.Marshal(struct {
		plain
		Replies []Comment `json:"replies"`
	}{plain: plain(c), Replies: replies})
}

type NewComment struct {
	ProjectID string
	AuthorID  string
	ParentID  *string
	Content   string
}

// DeletePolicy decides what happens to replies when their parent goes.
type DeletePolicy string

const (
	// DeleteOrphan keeps replies; they become top-level comments.
	DeleteOrphan DeletePolicy = "orphan"
	// DeleteCascade removes replies along with their parent.
	DeleteCascade DeletePolicy = "cascade"
)

func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch p := DeletePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DeleteOrphan, nil
	case DeleteOrphan, DeleteCascade:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown comment delete policy %q", apperr.ErrInvalidInput, s)
}

// NormalizeContent trims text and enforces the length bounds.
func NormalizeContent(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: comment cannot be empty", apperr.ErrInvalidInput)
	}
	if len([]rune(text)) > MaxContentLen {
		return "", fmt.Errorf("%w: comment must be at most %d characters", apperr.ErrInvalidInput, MaxContentLen)
	}
	return text, nil
}
