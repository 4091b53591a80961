package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	"github.com/ShipLog-Showcase/showcase-backend/internal/comments"
)

func respondErr(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"ok": false, "error": apperr.Message(err)})
}

func (h *Handler) list(c *gin.Context) {
	tree := comments.NewTree(h.store, h.policy)
	if err := tree.Load(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "comments": tree.Comments()})
}

func (h *Handler) add(c *gin.Context) {
	var req contentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	projectID := c.Param("id")
	tree := comments.NewTree(h.store, h.policy)
	if err := tree.Load(c.Request.Context(), projectID); err != nil {
		respondErr(c, err)
		return
	}

	added, err := tree.AddComment(c.Request.Context(), projectID, auth.UserDBID(c), req.Content)
	if err != nil {
		respondErr(c, foreignKeyAsNotFound(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "comment": added, "comments": tree.Comments()})
}

func (h *Handler) reply(c *gin.Context) {
	var req contentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	tree, ok := h.treeFor(c)
	if !ok {
		return
	}
	added, err := tree.AddReply(c.Request.Context(), c.Param("id"), auth.UserDBID(c), req.Content)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "comment": added, "comments": tree.Comments()})
}

func (h *Handler) edit(c *gin.Context) {
	var req contentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	tree, ok := h.treeFor(c)
	if !ok {
		return
	}
	edited, err := tree.EditComment(c.Request.Context(), c.Param("id"), auth.UserDBID(c), req.Content)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "comment": edited, "comments": tree.Comments()})
}

func (h *Handler) delete(c *gin.Context) {
	tree, ok := h.treeFor(c)
	if !ok {
		return
	}
	if err := tree.DeleteComment(c.Request.Context(), c.Param("id"), auth.UserDBID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "comments": tree.Comments()})
}

// treeFor loads the thread that holds the comment named in the path.
func (h *Handler) treeFor(c *gin.Context) (*comments.Tree, bool) {
	target, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	tree := comments.NewTree(h.store, h.policy)
	if err := tree.Load(c.Request.Context(), target.ProjectID); err != nil {
		respondErr(c, err)
		return nil, false
	}
	return tree, true
}

// A comment on a project that does not exist fails the foreign key.
func foreignKeyAsNotFound(err error) error {
	if errors.Is(err, apperr.ErrForeignKeyViolation) {
		return apperr.ErrNotFound
	}
	return err
}
