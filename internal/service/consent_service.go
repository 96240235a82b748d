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

type consentRepository interface {
	Find(ctx context.Context, campaignID, studentID string) (*models.Consent, error)
	RecordDecision(ctx context.Context, campaignID, studentID string, status models.ConsentStatus, answeredBy, notes string) (*models.Consent, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Consent, error)
}

type guardianLinkRepository interface {
	IsAuthorized(ctx context.Context, guardianID, studentID string) (bool, error)
	ListStudentIDs(ctx context.Context, guardianID string) ([]string, error)
}

type consentCampaignReader interface {
	FindByID(ctx context.Context, id string) (*models.Campaign, error)
}

type consentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// RecordConsentRequest holds a guardian's decision payload.
type RecordConsentRequest struct {
	Decision models.ConsentDecision `json:"decision" validate:"required"`
	Notes    string                 `json:"notes"`
}

// ConsentService owns the consent ledger: guardians holding an approved
// link submit (and may flip) decisions while the campaign stays open.
type ConsentService struct {
	consents  consentRepository
	campaigns consentCampaignReader
	guardians guardianLinkRepository
	students  consentStudentReader
	cache     *CacheService
	notifier  campaignNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewConsentService constructs the consent service.
func NewConsentService(
	consents consentRepository,
	campaigns consentCampaignReader,
	guardians guardianLinkRepository,
	students consentStudentReader,
	cache *CacheService,
	notifier campaignNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *ConsentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsentService{
		consents:  consents,
		campaigns: campaigns,
		guardians: guardians,
		students:  students,
		cache:     cache,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConsentService) loadCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := s.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load campaign")
	}
	return campaign, nil
}

// RecordConsent stores a guardian decision for one student in one
// campaign. The campaign status is re-read here, at write time, so a
// concurrently cancelled or completed campaign rejects the mutation.
func (s *ConsentService) RecordConsent(ctx context.Context, guardianID, campaignID, studentID string, req RecordConsentRequest) (*models.Consent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consent payload")
	}
	if !req.Decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown consent decision %q", req.Decision))
	}

	authorized, err := s.guardians.IsAuthorized(ctx, guardianID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify guardian link")
	}
	if !authorized {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "guardian is not linked to this student")
	}

	campaign, err := s.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.Open() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("campaign is %s; consent can no longer be changed", campaign.Status))
	}
	if campaign.DeadlinePassed(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "")
	}

	consent, err := s.consents.RecordDecision(ctx, campaignID, studentID, req.Decision.Status(), guardianID, req.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no consent request exists for this student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record consent")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, summaryCacheKey(campaignID)); err != nil {
			s.logger.Warn("failed to invalidate summary cache", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			Type:       models.NotificationConsentRecorded,
			CampaignID: campaignID,
			StudentIDs: []string{studentID},
			Message:    fmt.Sprintf("consent %s recorded", consent.Status),
		})
	}
	s.logger.Info("consent recorded",
		zap.String("campaign_id", campaignID),
		zap.String("student_id", studentID),
		zap.String("status", string(consent.Status)))
	return consent, nil
}

// GetConsentStatus returns the consent view for a (campaign, student)
// pair. Absence of a stored row is reported as an explicit implicit
// pending marker, never as an error, so students added to the target list
// after activation are distinguishable from explicitly pending ones.
func (s *ConsentService) GetConsentStatus(ctx context.Context, campaignID, studentID string) (*models.ConsentView, error) {
	if _, err := s.loadCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	consent, err := s.consents.Find(ctx, campaignID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			view := models.ImplicitPending(campaignID, studentID)
			return &view, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consent")
	}
	view := models.StoredConsent(consent)
	return &view, nil
}

// ListGuardianConsents returns, for every student linked to the guardian,
// the student's consent state in the given campaign.
func (s *ConsentService) ListGuardianConsents(ctx context.Context, guardianID, campaignID string) ([]models.StudentConsent, error) {
	if _, err := s.loadCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	studentIDs, err := s.guardians.ListStudentIDs(ctx, guardianID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list linked students")
	}

	out := make([]models.StudentConsent, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		view, err := s.GetConsentStatus(ctx, campaignID, studentID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.StudentConsent{
			StudentID:   student.ID,
			StudentName: student.FullName,
			ClassName:   student.ClassName,
			Consent:     *view,
		})
	}
	return out, nil
}

// ListStudentConsents returns a student's own consent records across
// campaigns, for the student-facing projection.
func (s *ConsentService) ListStudentConsents(ctx context.Context, studentID string) ([]models.ConsentView, error) {
	consents, err := s.consents.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list consents")
	}
	views := make([]models.ConsentView, 0, len(consents))
	for i := range consents {
		views = append(views, models.StoredConsent(&consents[i]))
	}
	return views, nil
}
