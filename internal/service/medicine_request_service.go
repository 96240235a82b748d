package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
)

type medicineRequestRepository interface {
	Create(ctx context.Context, req *models.MedicineRequest) error
	FindByID(ctx context.Context, id string) (*models.MedicineRequest, error)
	List(ctx context.Context, filter models.MedicineRequestFilter) ([]models.MedicineRequest, int, error)
	UpdateReview(ctx context.Context, id string, status models.MedicineRequestStatus, reviewedBy, notes string) error
}

// CreateMedicineRequestRequest holds a guardian's medicine request payload.
type CreateMedicineRequestRequest struct {
	StudentID    string    `json:"student_id" validate:"required,uuid"`
	MedicineName string    `json:"medicine_name" validate:"required,min=2,max=120"`
	Dosage       string    `json:"dosage" validate:"required,max=80"`
	Frequency    string    `json:"frequency" validate:"required,max=80"`
	Instructions string    `json:"instructions" validate:"max=500"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
}

// ReviewMedicineRequestRequest holds a staff review decision.
type ReviewMedicineRequestRequest struct {
	Status models.MedicineRequestStatus `json:"status" validate:"required"`
	Notes  string                       `json:"notes" validate:"max=500"`
}

// MedicineRequestService lets guardians request medicine administration
// for linked students and lets medical staff review the requests.
type MedicineRequestService struct {
	requests  medicineRequestRepository
	guardians guardianLinkRepository
	students  consentStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMedicineRequestService constructs the medicine request service.
func NewMedicineRequestService(
	requests medicineRequestRepository,
	guardians guardianLinkRepository,
	students consentStudentReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *MedicineRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicineRequestService{
		requests:  requests,
		guardians: guardians,
		students:  students,
		validator: validate,
		logger:    logger,
	}
}

// Create files a new medicine request. The same guardian link gate used
// for consent applies here.
func (s *MedicineRequestService) Create(ctx context.Context, guardianID string, req CreateMedicineRequestRequest) (*models.MedicineRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid medicine request payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	authorized, err := s.guardians.IsAuthorized(ctx, guardianID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify guardian link")
	}
	if !authorized {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "guardian is not linked to this student")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	request := &models.MedicineRequest{
		StudentID:    req.StudentID,
		RequestedBy:  guardianID,
		MedicineName: req.MedicineName,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Instructions: req.Instructions,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Status:       models.MedicineRequestPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create medicine request")
	}

	s.logger.Info("medicine request created",
		zap.String("request_id", request.ID),
		zap.String("student_id", request.StudentID),
		zap.String("guardian_id", guardianID))
	return request, nil
}

// Review records a staff decision on a pending request. Only pending
// requests can be approved or rejected; approved requests can be marked
// completed once administered.
func (s *MedicineRequestService) Review(ctx context.Context, staffID, requestID string, req ReviewMedicineRequestRequest) (*models.MedicineRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "medicine request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load medicine request")
	}

	if !reviewAllowed(request.Status, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("medicine request cannot move from %s to %s", request.Status, req.Status))
	}

	if err := s.requests.UpdateReview(ctx, requestID, req.Status, staffID, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review medicine request")
	}

	now := time.Now().UTC()
	request.Status = req.Status
	request.ReviewedBy = &staffID
	request.ReviewedAt = &now
	request.ReviewNotes = req.Notes
	request.UpdatedAt = now
	s.logger.Info("medicine request reviewed",
		zap.String("request_id", requestID),
		zap.String("status", string(req.Status)),
		zap.String("staff_id", staffID))
	return request, nil
}

func reviewAllowed(from, to models.MedicineRequestStatus) bool {
	switch from {
	case models.MedicineRequestPending:
		return to == models.MedicineRequestApproved || to == models.MedicineRequestRejected
	case models.MedicineRequestApproved:
		return to == models.MedicineRequestCompleted
	default:
		return false
	}
}

// Get loads one medicine request. Guardians may only see their own
// requests; staff can see all.
func (s *MedicineRequestService) Get(ctx context.Context, requesterID string, requesterRole models.UserRole, requestID string) (*models.MedicineRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "medicine request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load medicine request")
	}
	if requesterRole == models.RoleParent && request.RequestedBy != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another guardian")
	}
	return request, nil
}

// List returns medicine requests matching the filter.
func (s *MedicineRequestService) List(ctx context.Context, filter models.MedicineRequestFilter) ([]models.MedicineRequest, int, error) {
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list medicine requests")
	}
	return requests, total, nil
}
