package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/service"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/response"
)

// InstitutionAccess verifies the authenticated user owns the institution
// named by the :institutionID path parameter. Unowned and unknown
// institutions are indistinguishable to the caller.
func InstitutionAccess(institutions *service.InstitutionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := institutions.Authorize(c.Request.Context(), claims.UserID, c.Param("institutionID")); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
