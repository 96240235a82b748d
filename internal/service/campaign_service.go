package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
	"github.com/noah-isme/sma-uks-api/pkg/export"
)

type campaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, int, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error)
}

type eligibilityStudentRepository interface {
	ListActive(ctx context.Context) ([]models.Student, error)
	ListActiveByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

type campaignConsentRepository interface {
	FanOut(ctx context.Context, campaignID string, studentIDs []string) (int, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]models.Consent, error)
	CountByStatus(ctx context.Context, campaignID string) (map[models.ConsentStatus]int, error)
}

type campaignResultRepository interface {
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
}

type campaignNotifier interface {
	Notify(n models.Notification)
}

// CreateCampaignRequest holds payload for creating campaigns.
type CreateCampaignRequest struct {
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	CampaignType    string     `json:"campaign_type" validate:"required"`
	TargetClasses   []string   `json:"target_classes"`
	TargetStudents  []string   `json:"target_students"`
	RequiresConsent bool       `json:"requires_consent"`
	ConsentDeadline *time.Time `json:"consent_deadline"`
	StartDate       time.Time  `json:"start_date" validate:"required"`
	EndDate         time.Time  `json:"end_date" validate:"required"`
}

// UpdateCampaignRequest holds payload for updating draft campaigns.
type UpdateCampaignRequest struct {
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	TargetClasses   []string   `json:"target_classes"`
	TargetStudents  []string   `json:"target_students"`
	RequiresConsent bool       `json:"requires_consent"`
	ConsentDeadline *time.Time `json:"consent_deadline"`
	StartDate       time.Time  `json:"start_date" validate:"required"`
	EndDate         time.Time  `json:"end_date" validate:"required"`
}

// CampaignService owns the campaign lifecycle: status transitions,
// eligibility resolution and the consent fan-out triggered by activation.
type CampaignService struct {
	repo      campaignRepository
	students  eligibilityStudentRepository
	consents  campaignConsentRepository
	results   campaignResultRepository
	notifier  campaignNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCampaignService constructs the campaign service.
func NewCampaignService(
	repo campaignRepository,
	students eligibilityStudentRepository,
	consents campaignConsentRepository,
	results campaignResultRepository,
	notifier campaignNotifier,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CampaignService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		repo:      repo,
		students:  students,
		consents:  consents,
		results:   results,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

func summaryCacheKey(campaignID string) string {
	return fmt.Sprintf("campaigns:summary:%s", campaignID)
}

// Create registers a new campaign in draft status. A campaign must declare
// at least one targeting rule up front; there is no implicit school-wide
// default.
func (s *CampaignService) Create(ctx context.Context, staffID string, req CreateCampaignRequest) (*models.Campaign, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload")
	}
	campaignType := models.CampaignType(req.CampaignType)
	if !campaignType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown campaign type %q", req.CampaignType))
	}
	if len(req.TargetClasses) == 0 && len(req.TargetStudents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "campaign must declare target classes or target students")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	campaign := &models.Campaign{
		Title:           req.Title,
		Description:     req.Description,
		CampaignType:    campaignType,
		Status:          models.CampaignStatusDraft,
		TargetClasses:   req.TargetClasses,
		TargetStudents:  req.TargetStudents,
		RequiresConsent: req.RequiresConsent,
		ConsentDeadline: req.ConsentDeadline,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CreatedBy:       staffID,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create campaign")
	}
	return campaign, nil
}

// List returns campaigns and pagination metadata.
func (s *CampaignService) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, *models.Pagination, error) {
	campaigns, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list campaigns")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return campaigns, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a campaign by ID.
func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load campaign")
	}
	return campaign, nil
}

// Update modifies a draft campaign. Targeting, deadline and dates are
// frozen once the campaign leaves draft.
func (s *CampaignService) Update(ctx context.Context, id string, req UpdateCampaignRequest) (*models.Campaign, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload")
	}
	if len(req.TargetClasses) == 0 && len(req.TargetStudents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "campaign must declare target classes or target students")
	}
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("campaign is %s; only draft campaigns can be edited", campaign.Status))
	}

	campaign.Title = req.Title
	campaign.Description = req.Description
	campaign.TargetClasses = req.TargetClasses
	campaign.TargetStudents = req.TargetStudents
	campaign.RequiresConsent = req.RequiresConsent
	campaign.ConsentDeadline = req.ConsentDeadline
	campaign.StartDate = req.StartDate
	campaign.EndDate = req.EndDate

	if err := s.repo.Update(ctx, campaign); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "campaign left draft while editing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update campaign")
	}
	return campaign, nil
}

// ResolveEligibleStudents computes the deterministic set of students a
// campaign targets. An explicit target_students list is authoritative and
// bypasses class targeting entirely; otherwise class tokens are evaluated
// and unioned. Only active students are eligible.
func (s *CampaignService) ResolveEligibleStudents(ctx context.Context, campaign *models.Campaign) ([]models.Student, error) {
	if len(campaign.TargetStudents) > 0 {
		students, err := s.students.ListActiveByIDs(ctx, campaign.TargetStudents)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve target students")
		}
		return students, nil
	}
	if len(campaign.TargetClasses) == 0 {
		return nil, nil
	}

	all, err := s.students.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active students")
	}

	seen := make(map[string]struct{}, len(all))
	eligible := make([]models.Student, 0, len(all))
	for _, token := range campaign.TargetClasses {
		for _, student := range all {
			if !matchClassToken(token, student.ClassName) {
				continue
			}
			if _, ok := seen[student.ID]; ok {
				continue
			}
			seen[student.ID] = struct{}{}
			eligible = append(eligible, student)
		}
	}
	return eligible, nil
}

// matchClassToken evaluates one targeting token against a class name.
// "all_grades" matches everything, "grade_<N>" matches class names whose
// leading numeral is N, anything else is a literal class name.
func matchClassToken(token, className string) bool {
	if token == models.TargetAllGrades {
		return true
	}
	if grade, ok := strings.CutPrefix(token, "grade_"); ok && isDigits(grade) {
		return leadingDigits(className) == grade
	}
	return token == className
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func leadingDigits(s string) string {
	for i, r := range s {
		if !unicode.IsDigit(r) {
			return s[:i]
		}
	}
	return s
}

// Transition moves a campaign to the requested status. Activating a draft
// resolves eligibility, flips the status and fans out pending consents for
// every eligible student; activation of an already-active campaign re-runs
// the fan-out idempotently so an interrupted activation can be retried.
func (s *CampaignService) Transition(ctx context.Context, staffID, campaignID string, to models.CampaignStatus) (*models.Campaign, error) {
	if !to.Valid() || to == models.CampaignStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target status %q", to))
	}
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if to == models.CampaignStatusActive {
		return s.activate(ctx, campaign)
	}

	if !campaign.Status.CanTransition(to) {
		return nil, invalidTransition(campaign.Status, to)
	}
	swapped, err := s.repo.UpdateStatus(ctx, campaign.ID, campaign.Status, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition campaign")
	}
	if !swapped {
		// Lost a race with a concurrent transition; report against the
		// current persisted state.
		return nil, s.staleTransition(ctx, campaign.ID, to)
	}
	campaign.Status = to
	s.invalidateSummary(ctx, campaign.ID)
	s.logger.Info("campaign transitioned",
		zap.String("campaign_id", campaign.ID),
		zap.String("status", string(to)),
		zap.String("staff_id", staffID))
	return campaign, nil
}

func (s *CampaignService) activate(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusActive {
		return nil, invalidTransition(campaign.Status, models.CampaignStatusActive)
	}
	if !campaign.HasDeclaredTarget() {
		return nil, appErrors.Clone(appErrors.ErrEligibilityEmpty, "campaign declares no targeting rules")
	}

	eligible, err := s.ResolveEligibleStudents(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEligibilityEmpty, "no active students match the campaign target")
	}

	if campaign.Status == models.CampaignStatusDraft {
		swapped, err := s.repo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusDraft, models.CampaignStatusActive)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate campaign")
		}
		if !swapped {
			current, getErr := s.Get(ctx, campaign.ID)
			if getErr != nil {
				return nil, getErr
			}
			// A concurrent activation already won; fall through and
			// fan out idempotently unless the campaign is closed.
			if current.Status != models.CampaignStatusActive {
				return nil, invalidTransition(current.Status, models.CampaignStatusActive)
			}
		}
		campaign.Status = models.CampaignStatusActive
	}

	studentIDs := make([]string, 0, len(eligible))
	for _, student := range eligible {
		studentIDs = append(studentIDs, student.ID)
	}
	created, err := s.consents.FanOut(ctx, campaign.ID, studentIDs)
	if err != nil {
		// The campaign is already active; a retried activation resumes
		// the fan-out where it stopped.
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "consent fan-out failed; retry activation")
	}

	s.invalidateSummary(ctx, campaign.ID)
	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			Type:       models.NotificationCampaignActivated,
			CampaignID: campaign.ID,
			StudentIDs: studentIDs,
			Message:    fmt.Sprintf("campaign %q is active", campaign.Title),
		})
		if campaign.RequiresConsent && created > 0 {
			s.notifier.Notify(models.Notification{
				Type:       models.NotificationConsentRequested,
				CampaignID: campaign.ID,
				StudentIDs: studentIDs,
				Message:    fmt.Sprintf("consent requested for campaign %q", campaign.Title),
			})
		}
	}
	s.logger.Info("campaign activated",
		zap.String("campaign_id", campaign.ID),
		zap.Int("eligible", len(eligible)),
		zap.Int("consents_created", created))
	return campaign, nil
}

func (s *CampaignService) staleTransition(ctx context.Context, campaignID string, to models.CampaignStatus) error {
	current, err := s.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	return invalidTransition(current.Status, to)
}

func invalidTransition(from, to models.CampaignStatus) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("cannot transition campaign from %s to %s", from, to))
}

func (s *CampaignService) invalidateSummary(ctx context.Context, campaignID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, summaryCacheKey(campaignID)); err != nil {
		s.logger.Warn("failed to invalidate summary cache", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}

// Summary aggregates consent decisions and recorded results for a
// campaign. Students in the eligibility set without a stored consent row
// are reported as implicit pending, never silently merged.
func (s *CampaignService) Summary(ctx context.Context, campaignID string) (*models.ConsentSummary, bool, error) {
	if s.cache != nil {
		var cached models.ConsentSummary
		if hit, err := s.cache.Get(ctx, summaryCacheKey(campaignID), &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, false, err
	}
	eligible, err := s.ResolveEligibleStudents(ctx, campaign)
	if err != nil {
		return nil, false, err
	}
	counts, err := s.consents.CountByStatus(ctx, campaignID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count consents")
	}

	stored := counts[models.ConsentStatusPending] + counts[models.ConsentStatusApproved] + counts[models.ConsentStatusDeclined]
	implicit := len(eligible) - stored
	if implicit < 0 {
		implicit = 0
	}
	summary := &models.ConsentSummary{
		CampaignID:      campaignID,
		Eligible:        len(eligible),
		Approved:        counts[models.ConsentStatusApproved],
		Declined:        counts[models.ConsentStatusDeclined],
		Pending:         counts[models.ConsentStatusPending],
		ImplicitPending: implicit,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryCacheKey(campaignID), summary, 0); err != nil {
			s.logger.Warn("failed to cache summary", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}
	return summary, false, nil
}

// ExportFormat selects the consent roster export encoding.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportConsentRoster renders the per-student consent state of a campaign
// for staff distribution.
func (s *CampaignService) ExportConsentRoster(ctx context.Context, campaignID string, format ExportFormat) ([]byte, string, error) {
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, "", err
	}
	eligible, err := s.ResolveEligibleStudents(ctx, campaign)
	if err != nil {
		return nil, "", err
	}
	consents, err := s.consents.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list consents")
	}

	byStudent := make(map[string]models.Consent, len(consents))
	for _, consent := range consents {
		byStudent[consent.StudentID] = consent
	}

	table := export.Table{
		Title:   fmt.Sprintf("Consent roster - %s", campaign.Title),
		Headers: []string{"NIS", "Student", "Class", "Consent", "Answered At"},
	}
	for _, student := range eligible {
		status := string(models.ConsentStatusPending) + " (implicit)"
		answeredAt := ""
		if consent, ok := byStudent[student.ID]; ok {
			status = string(consent.Status)
			if consent.AnsweredAt != nil {
				answeredAt = consent.AnsweredAt.Format(time.RFC3339)
			}
		}
		table.Rows = append(table.Rows, []string{student.NIS, student.FullName, student.ClassName, status, answeredAt})
	}

	switch format {
	case ExportFormatCSV:
		data, err := export.NewCSVExporter().Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	case ExportFormatPDF:
		data, err := export.NewPDFExporter().Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
