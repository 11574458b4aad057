package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/transport/middleware"
)

type Handlers struct {
	Session  *SessionHandler
	Waitlist *WaitlistHandler
	Resource *ResourceHandler
	Admin    *AdminHandler
	WS       *WSHandler
}

func InitRoutes(h Handlers, sessions service.StaffSessionReader, reauth service.ReauthService, kioskSecret string) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	staff := middleware.StaffAuth(sessions)
	kioskOrStaff := middleware.KioskOrStaffAuth(sessions, kioskSecret)
	gate := middleware.ReauthGate(reauth)

	// API routes
	api := router.Group("/api/v1")
	{
		// Lane session routes
		lane := api.Group("/lane")
		{
			lane.POST("/:laneId/start", staff, h.Session.Start)
			lane.POST("/:laneId/advance", staff, h.Session.Advance)
			lane.POST("/:laneId/highlight-option", staff, h.Session.Highlight)
			lane.POST("/:laneId/kiosk-ack", kioskOrStaff, h.Session.KioskAck)
			lane.POST("/:laneId/reset", staff, h.Session.Reset)
			lane.POST("/:laneId/cancel", staff, h.Session.Cancel)
			lane.GET("/:laneId/session", kioskOrStaff, h.Session.Current)
		}

		// Resource routes
		rooms := api.Group("/rooms")
		{
			rooms.GET("", staff, h.Resource.List)
			rooms.GET("/offerable", staff, h.Waitlist.Offerable)
			rooms.POST("/:id/status", staff, h.Resource.SetStatus)
			rooms.POST("/:id/assign", staff, h.Resource.AssignOccupant)
			rooms.POST("/:id/release", staff, h.Resource.ReleaseOccupant)
		}

		// Waitlist routes
		waitlist := api.Group("/waitlist")
		{
			waitlist.POST("", staff, h.Waitlist.Create)
			waitlist.GET("", staff, h.Waitlist.List)
			waitlist.POST("/:id/offer", staff, h.Waitlist.Offer)
			waitlist.POST("/:id/cancel", staff, h.Waitlist.Cancel)
			waitlist.POST("/:id/complete", staff, h.Waitlist.Complete)
		}

		// Step-up re-authentication
		auth := api.Group("/auth")
		{
			auth.POST("/step-up/challenge", staff, h.Admin.StepUpChallenge)
			auth.POST("/step-up/verify", staff, h.Admin.StepUpVerify)
		}

		// Admin routes behind the re-auth gate
		admin := api.Group("/admin")
		{
			admin.GET("/customers/:id", staff, h.Admin.GetCustomer)
			admin.PATCH("/customers/:id", staff, gate, h.Admin.UpdateCustomer)
		}
	}

	// Real-time channel
	router.GET("/ws", h.WS.Handle)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	return router
}
