package transport

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
)

type ResourceHandler struct {
	resourceService service.ResourceService
}

func NewResourceHandler(resourceService service.ResourceService) *ResourceHandler {
	return &ResourceHandler{resourceService: resourceService}
}

type SetStatusRequest struct {
	Status entity.ResourceStatus `json:"status" binding:"required"`
}

type AssignOccupantRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required"`
}

func (h *ResourceHandler) List(c *gin.Context) {
	var tier *entity.ResourceTier
	var status *entity.ResourceStatus

	if raw := c.Query("tier"); raw != "" {
		t := entity.ResourceTier(strings.ToUpper(raw))
		tier = &t
	}
	if raw := c.Query("status"); raw != "" {
		s := entity.ResourceStatus(strings.ToUpper(raw))
		status = &s
	}

	resources, err := h.resourceService.List(c.Request.Context(), tier, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resources)
}

func (h *ResourceHandler) SetStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	resource, err := h.resourceService.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resource)
}

func (h *ResourceHandler) AssignOccupant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	var req AssignOccupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	resource, err := h.resourceService.AssignOccupant(c.Request.Context(), id, req.CustomerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resource)
}

func (h *ResourceHandler) ReleaseOccupant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	resource, err := h.resourceService.ReleaseOccupant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resource)
}
