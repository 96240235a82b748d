package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
)

const medicineStudentID = "7f8a1f54-3a1b-4f74-9d5e-2b8f5f3a9c01"

type mockMedicineRepo struct {
	requests map[string]*models.MedicineRequest
}

func (m *mockMedicineRepo) Create(ctx context.Context, req *models.MedicineRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]*models.MedicineRequest)
	}
	if req.ID == "" {
		req.ID = "mr1"
	}
	m.requests[req.ID] = req
	return nil
}

func (m *mockMedicineRepo) FindByID(ctx context.Context, id string) (*models.MedicineRequest, error) {
	if r, ok := m.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMedicineRepo) List(ctx context.Context, filter models.MedicineRequestFilter) ([]models.MedicineRequest, int, error) {
	out := make([]models.MedicineRequest, 0, len(m.requests))
	for _, r := range m.requests {
		if filter.RequestedBy != "" && r.RequestedBy != filter.RequestedBy {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockMedicineRepo) UpdateReview(ctx context.Context, id string, status models.MedicineRequestStatus, reviewedBy, notes string) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	r.ReviewedBy = &reviewedBy
	r.ReviewNotes = notes
	return nil
}

func medicineFixture() (*mockMedicineRepo, *MedicineRequestService) {
	repo := &mockMedicineRepo{}
	guardians := &mockGuardianRepo{links: map[string][]string{"g1": {medicineStudentID}}}
	students := &mockStudentReader{students: map[string]*models.Student{
		medicineStudentID: {ID: medicineStudentID, NIS: "101", FullName: "Ani", ClassName: "6A", Active: true},
	}}
	svc := NewMedicineRequestService(repo, guardians, students, nil, zap.NewNop())
	return repo, svc
}

func validMedicinePayload() CreateMedicineRequestRequest {
	return CreateMedicineRequestRequest{
		StudentID:    medicineStudentID,
		MedicineName: "Paracetamol",
		Dosage:       "250mg",
		Frequency:    "after lunch",
		StartDate:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestMedicineRequestCreate(t *testing.T) {
	repo, svc := medicineFixture()

	request, err := svc.Create(context.Background(), "g1", validMedicinePayload())
	require.NoError(t, err)
	assert.Equal(t, models.MedicineRequestPending, request.Status)
	assert.Equal(t, "g1", request.RequestedBy)
	assert.Len(t, repo.requests, 1)
}

func TestMedicineRequestCreateUnlinkedGuardian(t *testing.T) {
	_, svc := medicineFixture()

	_, err := svc.Create(context.Background(), "stranger", validMedicinePayload())
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
}

func TestMedicineRequestCreateRejectsInvertedDates(t *testing.T) {
	_, svc := medicineFixture()

	payload := validMedicinePayload()
	payload.EndDate = payload.StartDate.AddDate(0, 0, -1)
	_, err := svc.Create(context.Background(), "g1", payload)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestMedicineRequestReviewTransitions(t *testing.T) {
	repo, svc := medicineFixture()
	request, err := svc.Create(context.Background(), "g1", validMedicinePayload())
	require.NoError(t, err)

	reviewed, err := svc.Review(context.Background(), "staff1", request.ID, ReviewMedicineRequestRequest{Status: models.MedicineRequestApproved})
	require.NoError(t, err)
	assert.Equal(t, models.MedicineRequestApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, "staff1", *reviewed.ReviewedBy)

	completed, err := svc.Review(context.Background(), "staff1", request.ID, ReviewMedicineRequestRequest{Status: models.MedicineRequestCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.MedicineRequestCompleted, completed.Status)

	_, err = svc.Review(context.Background(), "staff1", request.ID, ReviewMedicineRequestRequest{Status: models.MedicineRequestApproved})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))
	assert.Equal(t, models.MedicineRequestCompleted, repo.requests[request.ID].Status)
}

func TestMedicineRequestRejectedIsTerminal(t *testing.T) {
	_, svc := medicineFixture()
	request, err := svc.Create(context.Background(), "g1", validMedicinePayload())
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), "staff1", request.ID, ReviewMedicineRequestRequest{Status: models.MedicineRequestRejected})
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), "staff1", request.ID, ReviewMedicineRequestRequest{Status: models.MedicineRequestApproved})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))
}

func TestMedicineRequestGetGuardedForParents(t *testing.T) {
	_, svc := medicineFixture()
	request, err := svc.Create(context.Background(), "g1", validMedicinePayload())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "g2", models.RoleParent, request.ID)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))

	got, err := svc.Get(context.Background(), "staff1", models.RoleMedicalStaff, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, got.ID)
}
