package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
)

type mockCampaignRepo struct {
	campaigns    map[string]*models.Campaign
	updateStatus []string
	statusErr    error
	swapped      *bool
}

func (m *mockCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error {
	if m.campaigns == nil {
		m.campaigns = make(map[string]*models.Campaign)
	}
	if campaign.ID == "" {
		campaign.ID = "campaign-1"
	}
	copy := *campaign
	m.campaigns[campaign.ID] = &copy
	return nil
}

func (m *mockCampaignRepo) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	if campaign, ok := m.campaigns[id]; ok {
		copy := *campaign
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCampaignRepo) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, int, error) {
	var out []models.Campaign
	for _, c := range m.campaigns {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error {
	existing, ok := m.campaigns[campaign.ID]
	if !ok || existing.Status != models.CampaignStatusDraft {
		return sql.ErrNoRows
	}
	copy := *campaign
	m.campaigns[campaign.ID] = &copy
	return nil
}

func (m *mockCampaignRepo) UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error) {
	if m.statusErr != nil {
		return false, m.statusErr
	}
	m.updateStatus = append(m.updateStatus, string(from)+"->"+string(to))
	if m.swapped != nil {
		return *m.swapped, nil
	}
	campaign, ok := m.campaigns[id]
	if !ok || campaign.Status != from {
		return false, nil
	}
	campaign.Status = to
	return true, nil
}

type mockStudentDirectory struct {
	active []models.Student
}

func (m *mockStudentDirectory) ListActive(ctx context.Context) ([]models.Student, error) {
	return m.active, nil
}

func (m *mockStudentDirectory) ListActiveByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.Student
	for _, s := range m.active {
		if _, ok := want[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockConsentLedger struct {
	rows      map[string]*models.Consent
	fanOuts   int
	fanOutIDs []string
}

func key(campaignID, studentID string) string { return campaignID + "/" + studentID }

func (m *mockConsentLedger) FanOut(ctx context.Context, campaignID string, studentIDs []string) (int, error) {
	if m.rows == nil {
		m.rows = make(map[string]*models.Consent)
	}
	m.fanOuts++
	m.fanOutIDs = studentIDs
	created := 0
	for _, studentID := range studentIDs {
		k := key(campaignID, studentID)
		if _, ok := m.rows[k]; ok {
			continue
		}
		m.rows[k] = &models.Consent{
			ID:         k,
			CampaignID: campaignID,
			StudentID:  studentID,
			Status:     models.ConsentStatusPending,
		}
		created++
	}
	return created, nil
}

func (m *mockConsentLedger) ListByCampaign(ctx context.Context, campaignID string) ([]models.Consent, error) {
	var out []models.Consent
	for _, c := range m.rows {
		if c.CampaignID == campaignID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockConsentLedger) CountByStatus(ctx context.Context, campaignID string) (map[models.ConsentStatus]int, error) {
	counts := make(map[models.ConsentStatus]int)
	for _, c := range m.rows {
		if c.CampaignID == campaignID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

type mockResultCounter struct{ count int }

func (m *mockResultCounter) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	return m.count, nil
}

type mockNotifier struct {
	notifications []models.Notification
}

func (m *mockNotifier) Notify(n models.Notification) {
	m.notifications = append(m.notifications, n)
}

func newCampaignService(repo *mockCampaignRepo, students *mockStudentDirectory, consents *mockConsentLedger, notifier *mockNotifier) *CampaignService {
	return NewCampaignService(repo, students, consents, &mockResultCounter{}, notifier, nil, validator.New(), zap.NewNop())
}

func rosterFixture() *mockStudentDirectory {
	return &mockStudentDirectory{active: []models.Student{
		{ID: "s1", NIS: "101", FullName: "Ani", ClassName: "6A"},
		{ID: "s2", NIS: "102", FullName: "Budi", ClassName: "6B"},
		{ID: "s3", NIS: "103", FullName: "Citra", ClassName: "10A"},
	}}
}

func TestCampaignServiceCreateRequiresTarget(t *testing.T) {
	svc := newCampaignService(&mockCampaignRepo{}, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	_, err := svc.Create(context.Background(), "staff", CreateCampaignRequest{
		Title:        "Flu shots",
		CampaignType: string(models.CampaignTypeVaccination),
		StartDate:    time.Now(),
		EndDate:      time.Now().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestCampaignServiceCreateStartsAsDraft(t *testing.T) {
	repo := &mockCampaignRepo{}
	svc := newCampaignService(repo, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	campaign, err := svc.Create(context.Background(), "staff", CreateCampaignRequest{
		Title:         "Flu shots",
		CampaignType:  string(models.CampaignTypeVaccination),
		TargetClasses: []string{"grade_6"},
		StartDate:     time.Now(),
		EndDate:       time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
}

func TestResolveEligibleStudentsExplicitListWins(t *testing.T) {
	svc := newCampaignService(&mockCampaignRepo{}, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	campaign := &models.Campaign{
		TargetStudents: []string{"s3"},
		TargetClasses:  []string{models.TargetAllGrades},
	}
	students, err := svc.ResolveEligibleStudents(context.Background(), campaign)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "s3", students[0].ID)
}

func TestResolveEligibleStudentsGradeToken(t *testing.T) {
	svc := newCampaignService(&mockCampaignRepo{}, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	campaign := &models.Campaign{TargetClasses: []string{"grade_6"}}
	students, err := svc.ResolveEligibleStudents(context.Background(), campaign)
	require.NoError(t, err)
	require.Len(t, students, 2)

	// grade_1 must not match 10A: the full leading numeral is compared.
	campaign = &models.Campaign{TargetClasses: []string{"grade_1"}}
	students, err = svc.ResolveEligibleStudents(context.Background(), campaign)
	require.NoError(t, err)
	assert.Empty(t, students)

	campaign = &models.Campaign{TargetClasses: []string{"grade_10"}}
	students, err = svc.ResolveEligibleStudents(context.Background(), campaign)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "s3", students[0].ID)
}

func TestResolveEligibleStudentsOverlappingTokensDeduplicate(t *testing.T) {
	svc := newCampaignService(&mockCampaignRepo{}, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	campaign := &models.Campaign{TargetClasses: []string{"grade_6", "6A", models.TargetAllGrades}}
	students, err := svc.ResolveEligibleStudents(context.Background(), campaign)
	require.NoError(t, err)
	assert.Len(t, students, 3)
}

func TestCampaignServiceActivateFansOutPendingConsents(t *testing.T) {
	repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Title: "Flu shots", CampaignType: models.CampaignTypeVaccination,
			Status: models.CampaignStatusDraft, TargetClasses: []string{"grade_6"}, RequiresConsent: true},
	}}
	ledger := &mockConsentLedger{}
	notifier := &mockNotifier{}
	svc := newCampaignService(repo, rosterFixture(), ledger, notifier)

	campaign, err := svc.Transition(context.Background(), "staff", "c1", models.CampaignStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, campaign.Status)
	assert.Len(t, ledger.rows, 2)
	for _, row := range ledger.rows {
		assert.Equal(t, models.ConsentStatusPending, row.Status)
	}
	require.Len(t, notifier.notifications, 2)
	assert.Equal(t, models.NotificationCampaignActivated, notifier.notifications[0].Type)
	assert.Equal(t, models.NotificationConsentRequested, notifier.notifications[1].Type)
}

func TestCampaignServiceActivateIsIdempotent(t *testing.T) {
	repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Title: "Flu shots", CampaignType: models.CampaignTypeVaccination,
			Status: models.CampaignStatusDraft, TargetClasses: []string{"grade_6"}},
	}}
	ledger := &mockConsentLedger{}
	svc := newCampaignService(repo, rosterFixture(), ledger, &mockNotifier{})

	_, err := svc.Transition(context.Background(), "staff", "c1", models.CampaignStatusActive)
	require.NoError(t, err)

	// A guardian answers, then activation is retried: the answered row
	// must survive untouched and no new rows appear.
	ledger.rows[key("c1", "s1")].Status = models.ConsentStatusApproved
	_, err = svc.Transition(context.Background(), "staff", "c1", models.CampaignStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.fanOuts)
	assert.Len(t, ledger.rows, 2)
	assert.Equal(t, models.ConsentStatusApproved, ledger.rows[key("c1", "s1")].Status)
}

func TestCampaignServiceActivateEmptyEligibilityFails(t *testing.T) {
	repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Status: models.CampaignStatusDraft, CampaignType: models.CampaignTypeVaccination,
			TargetClasses: []string{"grade_12"}},
	}}
	svc := newCampaignService(repo, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	_, err := svc.Transition(context.Background(), "staff", "c1", models.CampaignStatusActive)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrEligibilityEmpty.Code))
	assert.Equal(t, models.CampaignStatusDraft, repo.campaigns["c1"].Status)
}

func TestCampaignServiceTerminalStatesRejectTransitions(t *testing.T) {
	cases := []struct {
		from models.CampaignStatus
		to   models.CampaignStatus
	}{
		{models.CampaignStatusCompleted, models.CampaignStatusActive},
		{models.CampaignStatusCancelled, models.CampaignStatusActive},
		{models.CampaignStatusCompleted, models.CampaignStatusCancelled},
		{models.CampaignStatusDraft, models.CampaignStatusCompleted},
		{models.CampaignStatusDraft, models.CampaignStatusCancelled},
	}
	for _, tc := range cases {
		repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
			"c1": {ID: "c1", Status: tc.from, CampaignType: models.CampaignTypeVaccination,
				TargetClasses: []string{models.TargetAllGrades}},
		}}
		svc := newCampaignService(repo, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
		_, err := svc.Transition(context.Background(), "staff", "c1", tc.to)
		require.Error(t, err, "%s -> %s", tc.from, tc.to)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code), "%s -> %s", tc.from, tc.to)
	}
}

func TestCampaignServiceCompleteActiveCampaign(t *testing.T) {
	repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Status: models.CampaignStatusActive, CampaignType: models.CampaignTypeVaccination,
			TargetClasses: []string{models.TargetAllGrades}},
	}}
	svc := newCampaignService(repo, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	campaign, err := svc.Transition(context.Background(), "staff", "c1", models.CampaignStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
}

func TestCampaignServiceUpdateRejectsNonDraft(t *testing.T) {
	repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Status: models.CampaignStatusActive, CampaignType: models.CampaignTypeVaccination,
			TargetClasses: []string{"grade_6"}},
	}}
	svc := newCampaignService(repo, rosterFixture(), &mockConsentLedger{}, &mockNotifier{})
	_, err := svc.Update(context.Background(), "c1", UpdateCampaignRequest{
		Title:         "Edited",
		TargetClasses: []string{"grade_6"},
		StartDate:     time.Now(),
		EndDate:       time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))
}

func TestCampaignServiceSummaryCountsImplicitPending(t *testing.T) {
	repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Status: models.CampaignStatusActive, CampaignType: models.CampaignTypeVaccination,
			TargetClasses: []string{models.TargetAllGrades}},
	}}
	ledger := &mockConsentLedger{rows: map[string]*models.Consent{
		key("c1", "s1"): {CampaignID: "c1", StudentID: "s1", Status: models.ConsentStatusApproved},
		key("c1", "s2"): {CampaignID: "c1", StudentID: "s2", Status: models.ConsentStatusPending},
	}}
	svc := newCampaignService(repo, rosterFixture(), ledger, &mockNotifier{})

	summary, fromCache, err := svc.Summary(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 3, summary.Eligible)
	assert.Equal(t, 1, summary.Approved)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 0, summary.Declined)
	assert.Equal(t, 1, summary.ImplicitPending)
}

func TestCampaignServiceExportConsentRosterCSV(t *testing.T) {
	repo := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Title: "Flu shots", Status: models.CampaignStatusActive,
			CampaignType: models.CampaignTypeVaccination, TargetClasses: []string{"grade_6"}},
	}}
	ledger := &mockConsentLedger{rows: map[string]*models.Consent{
		key("c1", "s1"): {CampaignID: "c1", StudentID: "s1", Status: models.ConsentStatusApproved},
	}}
	svc := newCampaignService(repo, rosterFixture(), ledger, &mockNotifier{})

	data, contentType, err := svc.ExportConsentRoster(context.Background(), "c1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "Ani")
	assert.Contains(t, string(data), "APPROVED")
	assert.Contains(t, string(data), "PENDING (implicit)")
}
