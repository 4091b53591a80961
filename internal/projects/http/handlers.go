package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	"github.com/ShipLog-Showcase/showcase-backend/internal/comments"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/domain"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/service"
	"github.com/ShipLog-Showcase/showcase-backend/internal/ranking"
	"github.com/ShipLog-Showcase/showcase-backend/internal/storage/objectstore"
)

func respondErr(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"ok": false, "error": apperr.Message(err)})
}

// list serves the gallery: the viewer's engine is reloaded, then filtered by
// ?q= and ?window=.
func (h *Handler) list(c *gin.Context) {
	window, err := ranking.ParseTimeWindow(c.Query("window"))
	if err != nil {
		respondErr(c, err)
		return
	}

	id, _ := auth.CurrentIdentity(c)
	eng, err := h.views.Refresh(c.Request.Context(), id)
	if err != nil && !eng.Loaded() {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "Failed to load projects. Please try again."})
		return
	}

	// The engine is shared by every request of this viewer, so the filter
	// stays request-local.
	items := []projectView{}
	for _, p := range eng.View(h.now(), c.Query("q"), window) {
		items = append(items, toView(p, eng.Voted(p.ID)))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items, "stale": err != nil})
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}

	voted := false
	if id, ok := auth.CurrentIdentity(c); ok {
		if eng, err := h.views.Acquire(ctx, id); err == nil || eng.Loaded() {
			voted = eng.Voted(p.ID)
		}
	}

	tree := comments.NewTree(h.comments, h.policy)
	if err := tree.Load(ctx, p.ID); err != nil {
		log.Warn().Err(err).Str("project_id", p.ID).Msg("load comments")
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "project": toView(*p, voted), "comments": tree.Comments()})
}

func (h *Handler) create(c *gin.Context) {
	var req service.UploadInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.Upload(c.Request.Context(), auth.UserDBID(c), req)
	if err != nil {
		if !errors.Is(err, apperr.ErrInvalidInput) {
			log.Warn().Err(err).Str("user_id", auth.UserDBID(c)).Msg("project upload failed")
		}
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": toView(*p, false)})
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), auth.UserDBID(c), domain.ProjectPatch{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": toView(*p, false)})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), auth.UserDBID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"owned": toViews(d.Owned, func(string) bool { return false }),
		"voted": toViews(d.Voted, func(string) bool { return true }),
	})
}

func (h *Handler) uploadThumbnail(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, objectstore.MaxThumbnailSize+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "file is required"})
		return
	}
	if fh.Size > objectstore.MaxThumbnailSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "Thumbnail must be 5 MB or smaller"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unreadable file"})
		return
	}
	defer f.Close()

	contentType := strings.TrimSpace(fh.Header.Get("Content-Type"))
	url, err := h.svc.UploadThumbnail(c.Request.Context(), c.Param("id"), auth.UserDBID(c), contentType, f, fh.Size)
	if err != nil {
		if !errors.Is(err, apperr.ErrInvalidInput) && !errors.Is(err, apperr.ErrNotFound) {
			log.Error().Err(err).Str("project_id", c.Param("id")).Msg("thumbnail upload failed")
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "thumbnail_url": url})
}
