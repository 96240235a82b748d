package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-uks-api/internal/models"
)

func TestConsentFanOutCountsOnlyNewRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	insert := regexp.QuoteMeta("INSERT INTO campaign_consents")
	// s1 is new, s2 already holds a row: ON CONFLICT DO NOTHING reports
	// zero rows affected for it.
	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), "c1", "s1", string(models.ConsentStatusPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), "c1", "s2", string(models.ConsentStatusPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.FanOut(context.Background(), "c1", []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentFanOutEmptyList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	created, err := repo.FanOut(context.Background(), "c1", nil)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentRecordDecisionReturnsUpdatedRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "campaign_id", "student_id", "status", "answered_by", "answered_at", "notes", "created_at", "updated_at"}).
		AddRow("cr1", "c1", "s1", string(models.ConsentStatusApproved), "g1", now, "ok", now, now)
	mock.ExpectQuery("UPDATE campaign_consents").
		WithArgs("c1", "s1", string(models.ConsentStatusApproved), "g1", sqlmock.AnyArg(), "ok").
		WillReturnRows(rows)

	consent, err := repo.RecordDecision(context.Background(), "c1", "s1", models.ConsentStatusApproved, "g1", "ok")
	require.NoError(t, err)
	assert.Equal(t, models.ConsentStatusApproved, consent.Status)
	require.NotNil(t, consent.AnsweredBy)
	assert.Equal(t, "g1", *consent.AnsweredBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentRecordDecisionMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	mock.ExpectQuery("UPDATE campaign_consents").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.RecordDecision(context.Background(), "c1", "s9", models.ConsentStatusApproved, "g1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentCountByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow(string(models.ConsentStatusApproved), 5).
		AddRow(string(models.ConsentStatusPending), 2)
	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS total FROM campaign_consents WHERE campaign_id = \\$1 GROUP BY status").
		WithArgs("c1").
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 5, counts[models.ConsentStatusApproved])
	assert.Equal(t, 2, counts[models.ConsentStatusPending])
	assert.Zero(t, counts[models.ConsentStatusDeclined])
	assert.NoError(t, mock.ExpectationsWereMet())
}
