package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
)

// ReauthGate guards destructive and financial mutations: beyond a valid
// staff identity it demands an unexpired step-up freshness grant. The
// grant is not consumed; several gated actions may ride one window.
func ReauthGate(reauth service.ReauthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := Staff(c)
		if !ok {
			unauthorized(c)
			return
		}

		err := reauth.Check(c.Request.Context(), sess.Token)
		if err == nil {
			c.Next()
			return
		}

		switch {
		case errors.Is(err, entity.ErrReauthRequired):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   err.Error(),
				"code":    "REAUTH_REQUIRED",
			})
		case errors.Is(err, entity.ErrReauthExpired):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   err.Error(),
				"code":    "REAUTH_EXPIRED",
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "internal server error",
			})
		}
	}
}
