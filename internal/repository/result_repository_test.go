package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
)

func vaccinationResult() *models.Result {
	return &models.Result{
		CampaignID: "c1",
		StudentID:  "s1",
		RecordedBy: "staff",
		Vaccination: &models.VaccinationDetail{
			Brand:          "BrandX",
			BatchNumber:    "B-42",
			DoseNumber:     1,
			ExpiryDate:     time.Now().Add(180 * 24 * time.Hour),
			AdministeredBy: "nurse-1",
			AdministeredAt: time.Now(),
		},
		FollowUp: models.FollowUp{Required: false, Status: models.FollowUpStatusNotRequired},
	}
}

func TestResultCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec("INSERT INTO campaign_results").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := vaccinationResult()
	err := repo.Create(context.Background(), result)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultCreateDuplicateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec("INSERT INTO campaign_results").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "campaign_results_campaign_id_student_id_key"})

	err := repo.Create(context.Background(), vaccinationResult())
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrDuplicateResult.Code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultFindReassemblesVaccinationDetail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "student_id", "recorded_by", "notes", "detail_type",
		"vaccine_brand", "vaccine_batch", "dose_number", "vaccine_expiry", "administered_by", "administered_at", "side_effects",
		"screening_status", "findings", "recommendations", "requires_consultation",
		"follow_up_required", "follow_up_status", "follow_up_notes", "follow_up_updated_at", "follow_up_actions",
		"created_at", "updated_at",
	}).AddRow("r1", "c1", "s1", "staff", "", string(models.CampaignTypeVaccination),
		"BrandX", "B-42", 2, now, "nurse-1", now, pq.StringArray{"fever"},
		nil, nil, nil, nil,
		true, string(models.FollowUpStatusNormal), "", nil, pq.StringArray{},
		now, now)
	mock.ExpectQuery("SELECT (.+) FROM campaign_results WHERE campaign_id = \\$1 AND student_id = \\$2").
		WithArgs("c1", "s1").
		WillReturnRows(rows)

	result, err := repo.Find(context.Background(), "c1", "s1")
	require.NoError(t, err)
	require.NotNil(t, result.Vaccination)
	assert.Nil(t, result.Screening)
	assert.Equal(t, "BrandX", result.Vaccination.Brand)
	assert.Equal(t, 2, result.Vaccination.DoseNumber)
	assert.Equal(t, []string{"fever"}, result.Vaccination.SideEffects)
	assert.True(t, result.FollowUp.Required)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultUpdateFollowUp(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec("UPDATE campaign_results").
		WithArgs("r1", string(models.FollowUpStatusMild), "slight fever", sqlmock.AnyArg(), pq.StringArray{"paracetamol"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	err := repo.UpdateFollowUp(context.Background(), "r1", models.FollowUp{
		Required:          true,
		Status:            models.FollowUpStatusMild,
		Notes:             "slight fever",
		LastUpdateAt:      &now,
		AdditionalActions: pq.StringArray{"paracetamol"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultListOpenFollowUpsExcludesCompleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "student_id", "recorded_by", "notes", "detail_type",
		"vaccine_brand", "vaccine_batch", "dose_number", "vaccine_expiry", "administered_by", "administered_at", "side_effects",
		"screening_status", "findings", "recommendations", "requires_consultation",
		"follow_up_required", "follow_up_status", "follow_up_notes", "follow_up_updated_at", "follow_up_actions",
		"created_at", "updated_at",
	}).AddRow("r1", "c1", "s1", "staff", "", string(models.CampaignTypeVaccination),
		"BrandX", "B-42", 1, now, "nurse-1", now, pq.StringArray{},
		nil, nil, nil, nil,
		true, string(models.FollowUpStatusMild), "", now, pq.StringArray{},
		now, now)
	mock.ExpectQuery("SELECT (.+) FROM campaign_results").
		WithArgs("c1", string(models.FollowUpStatusCompleted)).
		WillReturnRows(rows)

	results, err := repo.ListOpenFollowUps(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.FollowUpStatusMild, results[0].FollowUp.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
