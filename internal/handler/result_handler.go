package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-uks-api/internal/service"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
	"github.com/noah-isme/sma-uks-api/pkg/response"
)

// ResultHandler handles procedure result and follow-up endpoints.
type ResultHandler struct {
	service *service.ResultService
}

// NewResultHandler constructs a result handler.
func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// Record godoc
// @Summary Record the outcome of performing the campaign procedure
// @Description Requires an active campaign, approved consent when the campaign demands it, and no prior result for the student.
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.RecordResultRequest true "Result payload"
// @Success 201 {object} response.Envelope
// @Router /campaigns/{id}/students/{studentId}/result [post]
func (h *ResultHandler) Record(c *gin.Context) {
	var req service.RecordResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.RecordResult(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get the result for one student in one campaign
// @Tags Results
// @Produce json
// @Param id path string true "Campaign ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/students/{studentId}/result [get]
func (h *ResultHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListByCampaign godoc
// @Summary List results recorded for a campaign
// @Tags Results
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/results [get]
func (h *ResultHandler) ListByCampaign(c *gin.Context) {
	results, err := h.service.ListByCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// ListByStudent godoc
// @Summary A student's results across campaigns
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results [get]
func (h *ResultHandler) ListByStudent(c *gin.Context) {
	results, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// ListOpenFollowUps godoc
// @Summary Unresolved follow-ups for a campaign
// @Tags Results
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/follow-ups [get]
func (h *ResultHandler) ListOpenFollowUps(c *gin.Context) {
	results, err := h.service.ListOpenFollowUps(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// UpdateFollowUp godoc
// @Summary Progress the follow-up of a result
// @Description Notes are appended and actions accumulated; COMPLETED closes the follow-up permanently.
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Result ID"
// @Param payload body service.UpdateFollowUpRequest true "Follow-up payload"
// @Success 200 {object} response.Envelope
// @Router /results/{id}/follow-up [put]
func (h *ResultHandler) UpdateFollowUp(c *gin.Context) {
	var req service.UpdateFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.UpdateFollowUp(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
