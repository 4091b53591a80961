package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxUserDBID    = "user_db_id"
	CtxIdentity    = "identity"
)

// UserFirebaseUID extracts the provider uid set by WithUser.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

func UserDBID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserDBID))
}

// CurrentIdentity returns the identity resolved for this request, if any.
func CurrentIdentity(c *gin.Context) (*session.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*session.Identity)
	return id, ok && id != nil
}
