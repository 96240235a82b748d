package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-uks-api/internal/models"
	"github.com/noah-isme/sma-uks-api/internal/service"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
	"github.com/noah-isme/sma-uks-api/pkg/response"
)

// MedicineRequestHandler handles guardian medicine request endpoints.
type MedicineRequestHandler struct {
	service *service.MedicineRequestService
}

// NewMedicineRequestHandler constructs a medicine request handler.
func NewMedicineRequestHandler(svc *service.MedicineRequestService) *MedicineRequestHandler {
	return &MedicineRequestHandler{service: svc}
}

// Create godoc
// @Summary File a medicine administration request
// @Tags Medicine
// @Accept json
// @Produce json
// @Param payload body service.CreateMedicineRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /medicine-requests [post]
func (h *MedicineRequestHandler) Create(c *gin.Context) {
	var req service.CreateMedicineRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Get godoc
// @Summary Get one medicine request
// @Tags Medicine
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /medicine-requests/{id} [get]
func (h *MedicineRequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List medicine requests
// @Tags Medicine
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /medicine-requests [get]
func (h *MedicineRequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter models.MedicineRequestFilter
	filter.StudentID = c.Query("student_id")
	filter.Status = models.MedicineRequestStatus(c.Query("status"))
	if claims.Role == models.RoleParent {
		filter.RequestedBy = claims.UserID
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	requests, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Review godoc
// @Summary Review a medicine request
// @Tags Medicine
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewMedicineRequestRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /medicine-requests/{id}/review [post]
func (h *MedicineRequestHandler) Review(c *gin.Context) {
	var req service.ReviewMedicineRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Review(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
