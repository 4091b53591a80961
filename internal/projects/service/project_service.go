package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/media"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/domain"
)

type Store interface {
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Project, error)
	ListVotedBy(ctx context.Context, userID string) ([]domain.Project, error)
	CreateProject(ctx context.Context, np domain.NewProject) (*domain.Project, error)
	UpdateProject(ctx context.Context, projectID, ownerID string, patch domain.ProjectPatch) (*domain.Project, error)
	SetThumbnail(ctx context.Context, projectID, ownerID, thumbnailURL string) error
	DeleteProject(ctx context.Context, projectID, ownerID string) error
}

// ThumbnailStore persists uploaded images and returns their public URL.
type ThumbnailStore interface {
	PutThumbnail(ctx context.Context, projectID, contentType string, r io.Reader, size int64) (string, error)
}

// ProjectService handles project-related business logic
type ProjectService struct {
	repo   Store
	thumbs ThumbnailStore
}

// NewProjectService creates a new project service. thumbs may be nil when
// no object store is configured.
func NewProjectService(repo Store, thumbs ThumbnailStore) *ProjectService {
	return &ProjectService{repo: repo, thumbs: thumbs}
}

type UploadInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	MediaURLs    []string `json:"media_urls"`
}

// ValidateUpload trims and checks an upload form.
func ValidateUpload(in UploadInput) (domain.NewProject, error) {
	np := domain.NewProject{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		URL:         strings.TrimSpace(in.URL),
	}

	if err := checkTitle(np.Title); err != nil {
		return domain.NewProject{}, err
	}
	if err := checkDescription(np.Description); err != nil {
		return domain.NewProject{}, err
	}
	if !media.IsValidURL(np.URL) {
		return domain.NewProject{}, invalid("Please enter a valid URL")
	}

	if thumb := strings.TrimSpace(in.ThumbnailURL); thumb != "" {
		if !media.IsValidURL(thumb) {
			return domain.NewProject{}, invalid("Thumbnail must be a valid URL")
		}
		np.ThumbnailURL = &thumb
	}

	for _, u := range in.MediaURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !media.IsValidURL(u) {
			return domain.NewProject{}, invalid(fmt.Sprintf("Media URL %q is not valid", u))
		}
		np.MediaURLs = append(np.MediaURLs, u)
	}
	return np, nil
}

// Upload stores a new project for ownerID, whose users row must already
// exist.
func (s *ProjectService) Upload(ctx context.Context, ownerID string, in UploadInput) (*domain.Project, error) {
	if ownerID == "" {
		return nil, apperr.ErrRequiresAuthentication
	}
	np, err := ValidateUpload(in)
	if err != nil {
		return nil, err
	}
	np.OwnerID = ownerID
	return s.repo.CreateProject(ctx, np)
}

func (s *ProjectService) Get(ctx context.Context, projectID string) (*domain.Project, error) {
	return s.repo.GetProject(ctx, projectID)
}

// Dashboard returns the user's own projects newest first and the projects
// they voted for.
func (s *ProjectService) Dashboard(ctx context.Context, userID string) (domain.Dashboard, error) {
	if userID == "" {
		return domain.Dashboard{}, apperr.ErrRequiresAuthentication
	}
	owned, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("list owned projects: %w", err)
	}
	voted, err := s.repo.ListVotedBy(ctx, userID)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("list voted projects: %w", err)
	}
	return domain.Dashboard{Owned: owned, Voted: voted}, nil
}

func (s *ProjectService) Update(ctx context.Context, projectID, ownerID string, patch domain.ProjectPatch) (*domain.Project, error) {
	if ownerID == "" {
		return nil, apperr.ErrRequiresAuthentication
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if err := checkTitle(t); err != nil {
			return nil, err
		}
		patch.Title = &t
	}
	if patch.Description != nil {
		d := strings.TrimSpace(*patch.Description)
		if err := checkDescription(d); err != nil {
			return nil, err
		}
		patch.Description = &d
	}
	if patch.Title == nil && patch.Description == nil {
		return nil, invalid("Nothing to update")
	}
	return s.repo.UpdateProject(ctx, projectID, ownerID, patch)
}

func (s *ProjectService) Delete(ctx context.Context, projectID, ownerID string) error {
	if ownerID == "" {
		return apperr.ErrRequiresAuthentication
	}
	return s.repo.DeleteProject(ctx, projectID, ownerID)
}

// UploadThumbnail stores an image for a project owned by ownerID and
// records its public URL on the project.
func (s *ProjectService) UploadThumbnail(ctx context.Context, projectID, ownerID, contentType string, r io.Reader, size int64) (string, error) {
	if ownerID == "" {
		return "", apperr.ErrRequiresAuthentication
	}
	if s.thumbs == nil {
		return "", invalid("Thumbnail uploads are not enabled")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", invalid("Thumbnail must be an image")
	}

	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if p.OwnerID != ownerID {
		return "", apperr.ErrNotFound
	}

	url, err := s.thumbs.PutThumbnail(ctx, projectID, contentType, r, size)
	if err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}
	if err := s.repo.SetThumbnail(ctx, projectID, ownerID, url); err != nil {
		return "", err
	}
	return url, nil
}

func checkTitle(t string) error {
	if t == "" {
		return invalid("Title is required")
	}
	if utf8.RuneCountInString(t) > domain.MaxTitleLen {
		return invalid(fmt.Sprintf("Title must be at most %d characters", domain.MaxTitleLen))
	}
	return nil
}

func checkDescription(d string) error {
	if utf8.RuneCountInString(d) > domain.MaxDescriptionLen {
		return invalid(fmt.Sprintf("Description must be at most %d characters", domain.MaxDescriptionLen))
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, msg)
}
