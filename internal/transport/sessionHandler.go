package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/transport/middleware"
)

type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) Start(c *gin.Context) {
	sess, ok := middleware.Staff(c)
	if !ok {
		respondError(c, entity.ErrUnauthenticated)
		return
	}

	var req service.StartSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}
	}
	req.Lane = c.Param("laneId")
	req.StaffID = sess.StaffID
	req.StaffName = sess.Name

	view, err := h.sessionService.Start(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *SessionHandler) Current(c *gin.Context) {
	view, err := h.sessionService.Current(c.Request.Context(), c.Param("laneId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) Advance(c *gin.Context) {
	var req service.AdvanceSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	req.Lane = c.Param("laneId")

	view, err := h.sessionService.Advance(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) Highlight(c *gin.Context) {
	var req service.HighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	req.Lane = c.Param("laneId")

	if err := h.sessionService.Highlight(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "option highlighted"})
}

func (h *SessionHandler) KioskAck(c *gin.Context) {
	view, err := h.sessionService.KioskAck(c.Request.Context(), c.Param("laneId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) Reset(c *gin.Context) {
	view, err := h.sessionService.Reset(c.Request.Context(), c.Param("laneId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) Cancel(c *gin.Context) {
	view, err := h.sessionService.Cancel(c.Request.Context(), c.Param("laneId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
