package transport

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/transport/middleware"
)

type WaitlistHandler struct {
	waitlistService service.WaitlistService
}

func NewWaitlistHandler(waitlistService service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlistService: waitlistService}
}

func actorName(c *gin.Context) string {
	if sess, ok := middleware.Staff(c); ok {
		return sess.Name
	}
	return "kiosk"
}

func (h *WaitlistHandler) Create(c *gin.Context) {
	var req service.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	entry, err := h.waitlistService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *WaitlistHandler) List(c *gin.Context) {
	var statuses []entity.WaitlistStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, entity.WaitlistStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}

	entries, err := h.waitlistService.List(c.Request.Context(), statuses)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// Offer returns 200 with the bound resource number, or 409 when another
// non-terminal entry already holds the resource.
func (h *WaitlistHandler) Offer(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	var req service.OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	req.EntryID = entryID
	req.Actor = actorName(c)

	result, err := h.waitlistService.Offer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *WaitlistHandler) Offerable(c *gin.Context) {
	tier := entity.ResourceTier(strings.ToUpper(c.Query("tier")))

	resources, err := h.waitlistService.Offerable(c.Request.Context(), tier)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resources)
}

func (h *WaitlistHandler) Cancel(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	entry, err := h.waitlistService.Cancel(c.Request.Context(), entryID, actorName(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *WaitlistHandler) Complete(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	entry, err := h.waitlistService.Complete(c.Request.Context(), entryID, actorName(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}
