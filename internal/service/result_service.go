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

type resultRepository interface {
	Create(ctx context.Context, result *models.Result) error
	Find(ctx context.Context, campaignID, studentID string) (*models.Result, error)
	FindByID(ctx context.Context, id string) (*models.Result, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]models.Result, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Result, error)
	ListOpenFollowUps(ctx context.Context, campaignID string) ([]models.Result, error)
	UpdateFollowUp(ctx context.Context, resultID string, followUp models.FollowUp) error
}

type resultConsentReader interface {
	Find(ctx context.Context, campaignID, studentID string) (*models.Consent, error)
}

// RecordResultRequest holds the procedure outcome payload.
type RecordResultRequest struct {
	Detail models.ResultDetail `json:"detail"`
	Notes  string              `json:"notes"`
}

// UpdateFollowUpRequest holds a follow-up progression payload.
type UpdateFollowUpRequest struct {
	Status            models.FollowUpStatus `json:"status" validate:"required"`
	Notes             string                `json:"notes"`
	AdditionalActions []string              `json:"additional_actions"`
}

// ResultService records procedure outcomes under the consent gate and
// tracks post-procedure follow-up to closure.
type ResultService struct {
	results   resultRepository
	consents  resultConsentReader
	campaigns consentCampaignReader
	notifier  campaignNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewResultService constructs the result service.
func NewResultService(
	results resultRepository,
	consents resultConsentReader,
	campaigns consentCampaignReader,
	notifier campaignNotifier,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		results:   results,
		consents:  consents,
		campaigns: campaigns,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordResult persists the outcome of performing the campaign procedure
// on a student. Preconditions are checked in order: campaign active,
// approved consent when required, no prior result. The campaign status is
// re-read at write time rather than trusted from an earlier read.
func (s *ResultService) RecordResult(ctx context.Context, staffID, campaignID, studentID string, req RecordResultRequest) (*models.Result, error) {
	campaign, err := s.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load campaign")
	}

	if campaign.Status != models.CampaignStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("results can only be recorded for active campaigns; campaign is %s", campaign.Status))
	}

	if campaign.RequiresConsent {
		consent, err := s.consents.Find(ctx, campaignID, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConsentRequired,
					fmt.Sprintf("no consent recorded for student %s", studentID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consent")
		}
		if consent.Status != models.ConsentStatusApproved {
			return nil, appErrors.Clone(appErrors.ErrConsentRequired,
				fmt.Sprintf("consent for student %s is %s", studentID, consent.Status))
		}
	}

	if err := s.validateDetail(campaign, req.Detail); err != nil {
		return nil, err
	}

	followUpNeeded := req.Detail.FollowUpNeeded()
	followUp := models.FollowUp{
		Required: followUpNeeded,
		Status:   models.FollowUpStatusNotRequired,
	}
	if followUpNeeded {
		followUp.Status = models.FollowUpStatusNormal
	}

	result := &models.Result{
		CampaignID:  campaignID,
		StudentID:   studentID,
		RecordedBy:  staffID,
		Notes:       req.Notes,
		Vaccination: req.Detail.Vaccination,
		Screening:   req.Detail.Screening,
		FollowUp:    followUp,
	}
	if err := s.results.Create(ctx, result); err != nil {
		// The compound unique key turns double-submission into
		// ErrDuplicateResult with the first record left intact.
		if appErrors.IsCode(err, appErrors.ErrDuplicateResult.Code) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateResult,
				fmt.Sprintf("a result already exists for student %s; use the follow-up update instead", studentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record result")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, summaryCacheKey(campaignID)); err != nil {
			s.logger.Warn("failed to invalidate summary cache", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			Type:       models.NotificationResultRecorded,
			CampaignID: campaignID,
			StudentIDs: []string{studentID},
			Message:    fmt.Sprintf("result recorded for campaign %q", campaign.Title),
		})
	}
	s.logger.Info("result recorded",
		zap.String("campaign_id", campaignID),
		zap.String("student_id", studentID),
		zap.Bool("follow_up_required", followUpNeeded))
	return result, nil
}

func (s *ResultService) validateDetail(campaign *models.Campaign, detail models.ResultDetail) error {
	if detail.Vaccination == nil && detail.Screening == nil {
		return appErrors.Clone(appErrors.ErrValidation, "result detail is required")
	}
	if !detail.Matches(campaign.CampaignType) {
		return appErrors.Clone(appErrors.ErrDetailTypeMismatch,
			fmt.Sprintf("campaign %q expects %s detail", campaign.Title, campaign.CampaignType))
	}
	switch {
	case detail.Vaccination != nil:
		if err := s.validator.Struct(detail.Vaccination); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vaccination detail")
		}
	case detail.Screening != nil:
		if err := s.validator.Struct(detail.Screening); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid screening detail")
		}
		if !detail.Screening.Status.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown screening status %q", detail.Screening.Status))
		}
	}
	return nil
}

// UpdateFollowUp progresses the follow-up sub-state of a result. Notes
// are appended to preserve history, actions are unioned, and COMPLETED is
// terminal: further updates fail with ErrFollowUpClosed.
func (s *ResultService) UpdateFollowUp(ctx context.Context, staffID, resultID string, req UpdateFollowUpRequest) (*models.Result, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid follow-up payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown follow-up status %q", req.Status))
	}

	result, err := s.results.FindByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	if !result.FollowUp.Required {
		return nil, appErrors.Clone(appErrors.ErrFollowUpNotNeeded, "")
	}
	if result.FollowUp.Resolved() {
		return nil, appErrors.Clone(appErrors.ErrFollowUpClosed, "")
	}
	if !result.FollowUp.Status.Updatable(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot move follow-up from %s to %s", result.FollowUp.Status, req.Status))
	}

	now := s.now()
	updated := result.FollowUp
	updated.Status = req.Status
	updated.LastUpdateAt = &now
	if req.Notes != "" {
		entry := fmt.Sprintf("[%s] %s", now.Format(time.RFC3339), req.Notes)
		if updated.Notes == "" {
			updated.Notes = entry
		} else {
			updated.Notes = updated.Notes + "\n" + entry
		}
	}
	updated.AdditionalActions = unionActions(updated.AdditionalActions, req.AdditionalActions)

	if err := s.results.UpdateFollowUp(ctx, resultID, updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update follow-up")
	}

	result.FollowUp = updated
	result.UpdatedAt = now
	s.logger.Info("follow-up updated",
		zap.String("result_id", resultID),
		zap.String("status", string(req.Status)),
		zap.String("staff_id", staffID))
	return result, nil
}

func unionActions(existing []string, extra []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, action := range existing {
		if _, ok := seen[action]; ok {
			continue
		}
		seen[action] = struct{}{}
		out = append(out, action)
	}
	for _, action := range extra {
		if _, ok := seen[action]; ok {
			continue
		}
		seen[action] = struct{}{}
		out = append(out, action)
	}
	return out
}

// Get returns the result for a (campaign, student) pair.
func (s *ResultService) Get(ctx context.Context, campaignID, studentID string) (*models.Result, error) {
	result, err := s.results.Find(ctx, campaignID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	return result, nil
}

// ListByCampaign returns all results recorded for a campaign.
func (s *ResultService) ListByCampaign(ctx context.Context, campaignID string) ([]models.Result, error) {
	results, err := s.results.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// ListByStudent returns a student's own results, for the student-facing
// projection.
func (s *ResultService) ListByStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	results, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// ListOpenFollowUps returns unresolved follow-ups for the staff
// monitoring view. Resolution means status COMPLETED, nothing else.
func (s *ResultService) ListOpenFollowUps(ctx context.Context, campaignID string) ([]models.Result, error) {
	results, err := s.results.ListOpenFollowUps(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list follow-ups")
	}
	return results, nil
}
