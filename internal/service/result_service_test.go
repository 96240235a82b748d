package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
)

type mockResultRepo struct {
	results map[string]*models.Result
	nextID  int
}

func (m *mockResultRepo) Create(ctx context.Context, result *models.Result) error {
	if m.results == nil {
		m.results = make(map[string]*models.Result)
	}
	for _, r := range m.results {
		if r.CampaignID == result.CampaignID && r.StudentID == result.StudentID {
			return appErrors.Clone(appErrors.ErrDuplicateResult, "")
		}
	}
	m.nextID++
	result.ID = strings.Repeat("r", m.nextID)
	result.CreatedAt = time.Now().UTC()
	result.UpdatedAt = result.CreatedAt
	copy := *result
	m.results[result.ID] = &copy
	return nil
}

func (m *mockResultRepo) Find(ctx context.Context, campaignID, studentID string) (*models.Result, error) {
	for _, r := range m.results {
		if r.CampaignID == campaignID && r.StudentID == studentID {
			copy := *r
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultRepo) FindByID(ctx context.Context, id string) (*models.Result, error) {
	if r, ok := m.results[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultRepo) ListByCampaign(ctx context.Context, campaignID string) ([]models.Result, error) {
	var out []models.Result
	for _, r := range m.results {
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResultRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	var out []models.Result
	for _, r := range m.results {
		if r.StudentID == studentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResultRepo) ListOpenFollowUps(ctx context.Context, campaignID string) ([]models.Result, error) {
	var out []models.Result
	for _, r := range m.results {
		if r.CampaignID == campaignID && r.FollowUp.Required && !r.FollowUp.Resolved() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResultRepo) UpdateFollowUp(ctx context.Context, resultID string, followUp models.FollowUp) error {
	r, ok := m.results[resultID]
	if !ok {
		return sql.ErrNoRows
	}
	r.FollowUp = followUp
	return nil
}

func vaccinationDetail(followUp bool) models.ResultDetail {
	return models.ResultDetail{Vaccination: &models.VaccinationDetail{
		Brand:          "BrandX",
		BatchNumber:    "B-42",
		DoseNumber:     1,
		ExpiryDate:     time.Now().Add(180 * 24 * time.Hour),
		AdministeredBy: "nurse-1",
		AdministeredAt: time.Now(),
		FollowUpNeeded: followUp,
	}}
}

func resultFixture() (*mockResultRepo, *mockConsentRepo, *mockCampaignRepo) {
	results := &mockResultRepo{}
	consents := &mockConsentRepo{rows: map[string]*models.Consent{
		key("c1", "s1"): {CampaignID: "c1", StudentID: "s1", Status: models.ConsentStatusApproved},
		key("c1", "s2"): {CampaignID: "c1", StudentID: "s2", Status: models.ConsentStatusPending},
	}}
	campaigns := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Title: "Flu shots", Status: models.CampaignStatusActive,
			CampaignType: models.CampaignTypeVaccination, TargetClasses: []string{"grade_6"}, RequiresConsent: true},
	}}
	return results, consents, campaigns
}

func newResultService(results *mockResultRepo, consents *mockConsentRepo, campaigns *mockCampaignRepo) *ResultService {
	return NewResultService(results, consents, campaigns, &mockNotifier{}, nil, validator.New(), zap.NewNop())
}

func TestResultServiceRecordResult(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	result, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{
		Detail: vaccinationDetail(false),
		Notes:  "no reaction observed",
	})
	require.NoError(t, err)
	assert.False(t, result.FollowUp.Required)
	assert.Equal(t, models.FollowUpStatusNotRequired, result.FollowUp.Status)
}

func TestResultServiceConsentGateOrderedBeforeDuplicate(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	// Pending consent blocks recording.
	_, err := svc.RecordResult(context.Background(), "staff", "c1", "s2", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConsentRequired.Code))

	// So does a declined one.
	consents.rows[key("c1", "s2")].Status = models.ConsentStatusDeclined
	_, err = svc.RecordResult(context.Background(), "staff", "c1", "s2", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConsentRequired.Code))

	// And a missing row entirely.
	_, err = svc.RecordResult(context.Background(), "staff", "c1", "s9", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConsentRequired.Code))
}

func TestResultServiceDuplicateRejected(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	first, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(false), Notes: "first"})
	require.NoError(t, err)

	_, err = svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(false), Notes: "second"})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrDuplicateResult.Code))

	kept, err := svc.Get(context.Background(), "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, kept.ID)
	assert.Equal(t, "first", kept.Notes)
}

func TestResultServiceInactiveCampaignRejected(t *testing.T) {
	for _, status := range []models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusCompleted, models.CampaignStatusCancelled} {
		results, consents, campaigns := resultFixture()
		campaigns.campaigns["c1"].Status = status
		svc := newResultService(results, consents, campaigns)

		_, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(false)})
		require.Error(t, err, "status %s", status)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))
	}
}

func TestResultServiceDetailTypeMismatch(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	_, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{
		Detail: models.ResultDetail{Screening: &models.ScreeningDetail{Status: models.ScreeningStatusHealthy}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrDetailTypeMismatch.Code))
	assert.Empty(t, results.results)
}

func TestResultServiceConsentNotRequiredSkipsGate(t *testing.T) {
	results, consents, campaigns := resultFixture()
	campaigns.campaigns["c1"].RequiresConsent = false
	svc := newResultService(results, consents, campaigns)

	_, err := svc.RecordResult(context.Background(), "staff", "c1", "s9", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.NoError(t, err)
}

func TestResultServiceFollowUpInitialization(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	result, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(true)})
	require.NoError(t, err)
	assert.True(t, result.FollowUp.Required)
	assert.Equal(t, models.FollowUpStatusNormal, result.FollowUp.Status)

	open, err := svc.ListOpenFollowUps(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestResultServiceFollowUpNotesAppendAndActionsUnion(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	result, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(true)})
	require.NoError(t, err)

	updated, err := svc.UpdateFollowUp(context.Background(), "staff", result.ID, UpdateFollowUpRequest{
		Status:            models.FollowUpStatusMild,
		Notes:             "slight fever",
		AdditionalActions: []string{"paracetamol"},
	})
	require.NoError(t, err)
	assert.Contains(t, updated.FollowUp.Notes, "slight fever")
	require.NotNil(t, updated.FollowUp.LastUpdateAt)

	updated, err = svc.UpdateFollowUp(context.Background(), "staff", result.ID, UpdateFollowUpRequest{
		Status:            models.FollowUpStatusNormal,
		Notes:             "fever resolved",
		AdditionalActions: []string{"paracetamol", "rest"},
	})
	require.NoError(t, err)
	assert.Contains(t, updated.FollowUp.Notes, "slight fever")
	assert.Contains(t, updated.FollowUp.Notes, "fever resolved")
	assert.Equal(t, []string{"paracetamol", "rest"}, []string(updated.FollowUp.AdditionalActions))
}

func TestResultServiceFollowUpCompletedIsTerminal(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	result, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(true)})
	require.NoError(t, err)

	_, err = svc.UpdateFollowUp(context.Background(), "staff", result.ID, UpdateFollowUpRequest{Status: models.FollowUpStatusCompleted})
	require.NoError(t, err)

	_, err = svc.UpdateFollowUp(context.Background(), "staff", result.ID, UpdateFollowUpRequest{Status: models.FollowUpStatusMild})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrFollowUpClosed.Code))

	open, err := svc.ListOpenFollowUps(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestResultServiceFollowUpNotNeeded(t *testing.T) {
	results, consents, campaigns := resultFixture()
	svc := newResultService(results, consents, campaigns)

	result, err := svc.RecordResult(context.Background(), "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.NoError(t, err)

	_, err = svc.UpdateFollowUp(context.Background(), "staff", result.ID, UpdateFollowUpRequest{Status: models.FollowUpStatusCompleted})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrFollowUpNotNeeded.Code))
}

// Exercises the full lifecycle the way the clinic runs a drive: activate,
// collect one consent, vaccinate the approved student, then close.
func TestCampaignLifecycleEndToEnd(t *testing.T) {
	campaigns := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Title: "Grade 6 flu shots", Status: models.CampaignStatusDraft,
			CampaignType: models.CampaignTypeVaccination, TargetClasses: []string{"grade_6"}, RequiresConsent: true},
	}}
	ledger := &mockConsentLedger{}
	students := rosterFixture()
	guardians := &mockGuardianRepo{links: map[string][]string{"g1": {"s1"}}}
	reader := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", NIS: "101", FullName: "Ani", ClassName: "6A", Active: true},
	}}
	results := &mockResultRepo{}

	campaignSvc := newCampaignService(campaigns, students, ledger, &mockNotifier{})
	consentRepo := &mockConsentRepo{rows: ledger.rows}
	ctx := context.Background()

	_, err := campaignSvc.Transition(ctx, "staff", "c1", models.CampaignStatusActive)
	require.NoError(t, err)
	consentRepo.rows = ledger.rows

	consentSvc := NewConsentService(consentRepo, campaigns, guardians, reader, nil, &mockNotifier{}, validator.New(), zap.NewNop())
	resultSvc := newResultService(results, consentRepo, campaigns)

	_, err = consentSvc.RecordConsent(ctx, "g1", "c1", "s1", RecordConsentRequest{Decision: models.ConsentDecisionApproved})
	require.NoError(t, err)

	_, err = resultSvc.RecordResult(ctx, "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.NoError(t, err)

	_, err = resultSvc.RecordResult(ctx, "staff", "c1", "s2", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConsentRequired.Code))

	_, err = campaignSvc.Transition(ctx, "staff", "c1", models.CampaignStatusCompleted)
	require.NoError(t, err)

	_, err = resultSvc.RecordResult(ctx, "staff", "c1", "s1", RecordResultRequest{Detail: vaccinationDetail(false)})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))
}
