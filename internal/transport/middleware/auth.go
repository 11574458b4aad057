package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
)

const (
	StaffSessionKey = "staffSession"
	KioskLaneKey    = "kioskLane"

	kioskHeader = "X-Kiosk-Token"
)

// KioskToken derives the per-lane kiosk credential from the master secret.
// Each kiosk is provisioned with the token for its own lane only, so a
// leaked token opens one lane, not the fleet.
func KioskToken(secret, lane string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(lane))
	return hex.EncodeToString(mac.Sum(nil))
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "authentication required",
	})
}

// StaffAuth resolves the bearer token against the session store the
// external auth system writes to. The resolved identity is stashed in the
// request context for handlers and the re-auth gate.
func StaffAuth(sessions service.StaffSessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c)
			return
		}

		sess, err := sessions.StaffSession(c.Request.Context(), token)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(StaffSessionKey, sess)
		c.Next()
	}
}

// KioskOrStaffAuth admits either a staff credential or the lane-derived
// kiosk token. The kiosk token is checked against the lane in the request
// path: it can acknowledge and read its own lane, nothing more.
func KioskOrStaffAuth(sessions service.StaffSessionReader, kioskSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader(kioskHeader); token != "" && kioskSecret != "" {
			lane := c.Param("laneId")
			expected := KioskToken(kioskSecret, lane)
			if lane != "" && hmac.Equal([]byte(token), []byte(expected)) {
				c.Set(KioskLaneKey, lane)
				c.Next()
				return
			}
			unauthorized(c)
			return
		}

		token := bearerToken(c)
		if token == "" {
			unauthorized(c)
			return
		}

		sess, err := sessions.StaffSession(c.Request.Context(), token)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(StaffSessionKey, sess)
		c.Next()
	}
}

// Staff returns the authenticated staff session placed by StaffAuth.
func Staff(c *gin.Context) (*entity.StaffSession, bool) {
	v, ok := c.Get(StaffSessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*entity.StaffSession)
	return sess, ok
}
