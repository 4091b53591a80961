package domain

import "time"

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

// Project is a showcased side project. VoteCount and OwnerName are
// projections computed by the store at read time.
type Project struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	MediaURLs    []string  `json:"media_urls,omitempty"`
	VoteCount    int       `json:"vote_count"`
	OwnerName    string    `json:"owner_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Vote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProjectID string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProject carries the validated fields of an upload.
type NewProject struct {
	OwnerID      string
	Title        string
	Description  string
	URL          string
	ThumbnailURL *string
	MediaURLs    []string
}

type ProjectPatch struct {
	Title       *string
	Description *string
}

// Dashboard groups what a signed-in user sees on their own page.
type Dashboard struct {
	Owned []Project `json:"owned"`
	Voted []Project `json:"voted"`
}
