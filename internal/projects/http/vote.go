package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	"github.com/ShipLog-Showcase/showcase-backend/internal/events"
	"github.com/ShipLog-Showcase/showcase-backend/internal/ranking"
	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
)

func (h *Handler) toggleVote(c *gin.Context) {
	h.vote(c, false)
}

// removeVote is the dashboard's "remove vote": it only ever takes a vote
// away, so repeating it is harmless.
func (h *Handler) removeVote(c *gin.Context) {
	h.vote(c, true)
}

func (h *Handler) vote(c *gin.Context, removeOnly bool) {
	ctx := c.Request.Context()
	projectID := c.Param("id")

	id, ok := auth.CurrentIdentity(c)
	if !ok {
		respondErr(c, apperr.ErrRequiresAuthentication)
		return
	}

	eng, err := h.engineWith(ctx, id, projectID)
	if err != nil {
		respondErr(c, err)
		return
	}

	if removeOnly && !eng.Voted(projectID) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "vote": eng.State(projectID)})
		return
	}

	st, err := eng.ToggleVote(ctx, projectID, id.UserID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"ok": false, "error": apperr.Message(err), "vote": st})
		return
	}

	if err := h.events.PublishVote(ctx, events.VoteEvent{ProjectID: st.ProjectID, VoteCount: st.VoteCount}); err != nil {
		log.Warn().Err(err).Str("project_id", projectID).Msg("publish vote event")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "vote": st})
}

// engineWith returns the viewer's engine, reloading it once when projectID
// was created after the engine last loaded.
func (h *Handler) engineWith(ctx context.Context, id *session.Identity, projectID string) (*ranking.Engine, error) {
	eng, err := h.views.Acquire(ctx, id)
	if err != nil && !eng.Loaded() {
		return nil, err
	}
	if _, found := eng.Project(projectID); found {
		return eng, nil
	}

	eng, err = h.views.Refresh(ctx, id)
	if err != nil && !eng.Loaded() {
		return nil, err
	}
	if _, found := eng.Project(projectID); !found {
		return nil, apperr.ErrNotFound
	}
	return eng, nil
}
