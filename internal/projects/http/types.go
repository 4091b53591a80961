package http

import (
	"time"

	"github.com/ShipLog-Showcase/showcase-backend/internal/comments"
	cdomain "github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
	"github.com/ShipLog-Showcase/showcase-backend/internal/events"
	"github.com/ShipLog-Showcase/showcase-backend/internal/media"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/domain"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/service"
	"github.com/ShipLog-Showcase/showcase-backend/internal/ranking"
)

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc      *service.ProjectService
	views    *ranking.Views
	events   *events.Publisher
	comments comments.Gateway
	policy   cdomain.DeletePolicy
	now      func() time.Time
}

func New(svc *service.ProjectService, views *ranking.Views, ev *events.Publisher, cg comments.Gateway, policy cdomain.DeletePolicy) *Handler {
	return &Handler{
		svc:      svc,
		views:    views,
		events:   ev,
		comments: cg,
		policy:   policy,
		now:      time.Now,
	}
}

type projectView struct {
	domain.Project
	Voted               bool        `json:"voted"`
	ThumbnailDisplayURL string      `json:"thumbnail_display_url,omitempty"`
	Media               []mediaView `json:"media,omitempty"`
}

type mediaView struct {
	URL        string     `json:"url"`
	Kind       media.Kind `json:"kind"`
	DisplayURL string     `json:"display_url"`
	EmbedURL   string     `json:"embed_url,omitempty"`
}

func toView(p domain.Project, voted bool) projectView {
	v := projectView{Project: p, Voted: voted}
	if p.ThumbnailURL != nil && *p.ThumbnailURL != "" {
		v.ThumbnailDisplayURL = media.DisplayURL(*p.ThumbnailURL)
	}
	for _, u := range p.MediaURLs {
		mv := mediaView{URL: u, Kind: media.Classify(u), DisplayURL: media.DisplayURL(u)}
		if id, ok := media.YouTubeID(u); ok {
			mv.EmbedURL = media.YouTubeEmbedURL(id)
		}
		v.Media = append(v.Media, mv)
	}
	return v
}

func toViews(ps []domain.Project, voted func(string) bool) []projectView {
	out := make([]projectView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toView(p, voted(p.ID)))
	}
	return out
}

type updateReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}
