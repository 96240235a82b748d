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

type mockConsentRepo struct {
	rows map[string]*models.Consent
}

func (m *mockConsentRepo) Find(ctx context.Context, campaignID, studentID string) (*models.Consent, error) {
	if c, ok := m.rows[key(campaignID, studentID)]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConsentRepo) RecordDecision(ctx context.Context, campaignID, studentID string, status models.ConsentStatus, answeredBy, notes string) (*models.Consent, error) {
	c, ok := m.rows[key(campaignID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	now := time.Now().UTC()
	c.Status = status
	c.AnsweredBy = &answeredBy
	c.AnsweredAt = &now
	c.Notes = notes
	c.UpdatedAt = now
	copy := *c
	return &copy, nil
}

func (m *mockConsentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Consent, error) {
	var out []models.Consent
	for _, c := range m.rows {
		if c.StudentID == studentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type mockGuardianRepo struct {
	links map[string][]string
}

func (m *mockGuardianRepo) IsAuthorized(ctx context.Context, guardianID, studentID string) (bool, error) {
	for _, id := range m.links[guardianID] {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockGuardianRepo) ListStudentIDs(ctx context.Context, guardianID string) ([]string, error) {
	return m.links[guardianID], nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func consentFixture() (*mockConsentRepo, *mockCampaignRepo, *mockGuardianRepo, *mockStudentReader) {
	consents := &mockConsentRepo{rows: map[string]*models.Consent{
		key("c1", "s1"): {ID: "cr1", CampaignID: "c1", StudentID: "s1", Status: models.ConsentStatusPending},
	}}
	campaigns := &mockCampaignRepo{campaigns: map[string]*models.Campaign{
		"c1": {ID: "c1", Title: "Flu shots", Status: models.CampaignStatusActive,
			CampaignType: models.CampaignTypeVaccination, TargetClasses: []string{"grade_6"}, RequiresConsent: true},
	}}
	guardians := &mockGuardianRepo{links: map[string][]string{"g1": {"s1"}}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", NIS: "101", FullName: "Ani", ClassName: "6A", Active: true},
	}}
	return consents, campaigns, guardians, students
}

func newConsentService(consents *mockConsentRepo, campaigns *mockCampaignRepo, guardians *mockGuardianRepo, students *mockStudentReader) *ConsentService {
	return NewConsentService(consents, campaigns, guardians, students, nil, &mockNotifier{}, validator.New(), zap.NewNop())
}

func TestConsentServiceRecordDecision(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	svc := newConsentService(consents, campaigns, guardians, students)

	consent, err := svc.RecordConsent(context.Background(), "g1", "c1", "s1", RecordConsentRequest{
		Decision: models.ConsentDecisionApproved,
		Notes:    "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentStatusApproved, consent.Status)
	require.NotNil(t, consent.AnsweredBy)
	assert.Equal(t, "g1", *consent.AnsweredBy)
	assert.NotNil(t, consent.AnsweredAt)
}

func TestConsentServiceReSubmissionFlipsDecision(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	svc := newConsentService(consents, campaigns, guardians, students)

	_, err := svc.RecordConsent(context.Background(), "g1", "c1", "s1", RecordConsentRequest{Decision: models.ConsentDecisionApproved})
	require.NoError(t, err)
	consent, err := svc.RecordConsent(context.Background(), "g1", "c1", "s1", RecordConsentRequest{Decision: models.ConsentDecisionDeclined})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentStatusDeclined, consent.Status)
	assert.Len(t, consents.rows, 1)
}

func TestConsentServiceUnlinkedGuardianRejected(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	svc := newConsentService(consents, campaigns, guardians, students)

	_, err := svc.RecordConsent(context.Background(), "g2", "c1", "s1", RecordConsentRequest{Decision: models.ConsentDecisionApproved})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
	assert.Equal(t, models.ConsentStatusPending, consents.rows[key("c1", "s1")].Status)
}

func TestConsentServiceClosedCampaignRejected(t *testing.T) {
	for _, status := range []models.CampaignStatus{models.CampaignStatusCompleted, models.CampaignStatusCancelled} {
		consents, campaigns, guardians, students := consentFixture()
		campaigns.campaigns["c1"].Status = status
		svc := newConsentService(consents, campaigns, guardians, students)

		_, err := svc.RecordConsent(context.Background(), "g1", "c1", "s1", RecordConsentRequest{Decision: models.ConsentDecisionApproved})
		require.Error(t, err, "status %s", status)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))
	}
}

func TestConsentServiceDeadlineEnforced(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	deadline := time.Now().Add(-time.Hour)
	campaigns.campaigns["c1"].ConsentDeadline = &deadline
	svc := newConsentService(consents, campaigns, guardians, students)

	_, err := svc.RecordConsent(context.Background(), "g1", "c1", "s1", RecordConsentRequest{Decision: models.ConsentDecisionApproved})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrDeadlineExpired.Code))
}

func TestConsentServiceDeadlineBoundaryStillOpen(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaigns.campaigns["c1"].ConsentDeadline = &deadline
	svc := newConsentService(consents, campaigns, guardians, students)
	svc.now = func() time.Time { return deadline }

	_, err := svc.RecordConsent(context.Background(), "g1", "c1", "s1", RecordConsentRequest{Decision: models.ConsentDecisionApproved})
	require.NoError(t, err)
}

func TestConsentServiceNoRequestRowIsNotFound(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	guardians.links["g1"] = append(guardians.links["g1"], "s9")
	svc := newConsentService(consents, campaigns, guardians, students)

	_, err := svc.RecordConsent(context.Background(), "g1", "c1", "s9", RecordConsentRequest{Decision: models.ConsentDecisionApproved})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestConsentServiceImplicitPendingView(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	svc := newConsentService(consents, campaigns, guardians, students)

	view, err := svc.GetConsentStatus(context.Background(), "c1", "s9")
	require.NoError(t, err)
	assert.True(t, view.Implicit)
	assert.Equal(t, models.ConsentStatusPending, view.Status)
	assert.Nil(t, view.Consent)

	view, err = svc.GetConsentStatus(context.Background(), "c1", "s1")
	require.NoError(t, err)
	assert.False(t, view.Implicit)
	require.NotNil(t, view.Consent)
}

func TestConsentServiceListGuardianConsents(t *testing.T) {
	consents, campaigns, guardians, students := consentFixture()
	guardians.links["g1"] = []string{"s1", "s2"}
	students.students["s2"] = &models.Student{ID: "s2", NIS: "102", FullName: "Budi", ClassName: "6B", Active: true}
	svc := newConsentService(consents, campaigns, guardians, students)

	out, err := svc.ListGuardianConsents(context.Background(), "g1", "c1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.False(t, out[0].Consent.Implicit)
	assert.True(t, out[1].Consent.Implicit)
}
