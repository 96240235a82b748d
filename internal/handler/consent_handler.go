package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-uks-api/internal/service"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
	"github.com/noah-isme/sma-uks-api/pkg/response"
)

// ConsentHandler handles guardian consent endpoints.
type ConsentHandler struct {
	service *service.ConsentService
}

// NewConsentHandler constructs a consent handler.
func NewConsentHandler(svc *service.ConsentService) *ConsentHandler {
	return &ConsentHandler{service: svc}
}

// Record godoc
// @Summary Submit or change a consent decision
// @Description The caller must hold an approved guardian link to the student.
// @Tags Consents
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.RecordConsentRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/students/{studentId}/consent [post]
func (h *ConsentHandler) Record(c *gin.Context) {
	var req service.RecordConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	consent, err := h.service.RecordConsent(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, consent, nil)
}

// Status godoc
// @Summary Consent state for one student in one campaign
// @Description Students without a stored row are reported as implicit pending.
// @Tags Consents
// @Produce json
// @Param id path string true "Campaign ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/students/{studentId}/consent [get]
func (h *ConsentHandler) Status(c *gin.Context) {
	view, err := h.service.GetConsentStatus(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ListMine godoc
// @Summary Consent state for every student linked to the caller
// @Tags Consents
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/my-consents [get]
func (h *ConsentHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	consents, err := h.service.ListGuardianConsents(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, consents, nil)
}

// ListByStudent godoc
// @Summary A student's consent records across campaigns
// @Tags Consents
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/consents [get]
func (h *ConsentHandler) ListByStudent(c *gin.Context) {
	views, err := h.service.ListStudentConsents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}
