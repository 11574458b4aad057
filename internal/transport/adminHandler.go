package transport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/service"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/transport/middleware"
)

type AdminHandler struct {
	customerService service.CustomerService
	reauthService   service.ReauthService
}

func NewAdminHandler(customerService service.CustomerService, reauthService service.ReauthService) *AdminHandler {
	return &AdminHandler{
		customerService: customerService,
		reauthService:   reauthService,
	}
}

type VerifyStepUpRequest struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
	Pin         string `json:"pin" binding:"required,min=4,max=16"`
}

func (h *AdminHandler) StepUpChallenge(c *gin.Context) {
	sess, ok := middleware.Staff(c)
	if !ok {
		respondError(c, entity.ErrUnauthenticated)
		return
	}

	result, err := h.reauthService.Challenge(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AdminHandler) StepUpVerify(c *gin.Context) {
	sess, ok := middleware.Staff(c)
	if !ok {
		respondError(c, entity.ErrUnauthenticated)
		return
	}

	var req VerifyStepUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	until, err := h.reauthService.Verify(c.Request.Context(), sess, req.ChallengeID, req.Pin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reauth_ok_until": until})
}

func (h *AdminHandler) GetCustomer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	customer, err := h.customerService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

func (h *AdminHandler) UpdateCustomer(c *gin.Context) {
	sess, ok := middleware.Staff(c)
	if !ok {
		respondError(c, entity.ErrUnauthenticated)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondValidation(c, err)
		return
	}

	var req service.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	customer, err := h.customerService.Update(c.Request.Context(), id, &req, sess.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}
