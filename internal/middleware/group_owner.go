package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/aulago/aula-api/internal/models"
	appErrors "github.com/aulago/aula-api/pkg/errors"
	"github.com/aulago/aula-api/pkg/response"
)

// GroupFinder looks up a group for ownership checks.
type GroupFinder interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

// GroupOwner rejects group-scoped requests from teachers who do not own the
// group. The group id is read from the route param, falling back to the
// group_id query parameter for report routes.
func GroupOwner(groups GroupFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")
		if groupID == "" {
			groupID = c.Query("group_id")
		}
		if groupID == "" {
			c.Next()
			return
		}

		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		group, err := groups.FindByID(c.Request.Context(), groupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "group not found"))
			} else {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group"))
			}
			c.Abort()
			return
		}
		if group.TeacherID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "group belongs to another teacher"))
			c.Abort()
			return
		}
		c.Next()
	}
}
