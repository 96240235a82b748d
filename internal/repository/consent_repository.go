package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-uks-api/internal/models"
)

// ConsentRepository manages the per-(campaign, student) consent ledger.
// The compound unique key on (campaign_id, student_id) is the source of
// the fan-out idempotence guarantee.
type ConsentRepository struct {
	db *sqlx.DB
}

// NewConsentRepository constructs a ConsentRepository.
func NewConsentRepository(db *sqlx.DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

const consentColumns = `id, campaign_id, student_id, status, answered_by, answered_at, notes, created_at, updated_at`

// FanOut inserts a pending consent for every student that does not already
// hold one for the campaign. Re-running after a partial failure is safe:
// existing rows are left untouched. Returns the number of rows created.
func (r *ConsentRepository) FanOut(ctx context.Context, campaignID string, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	const query = `INSERT INTO campaign_consents (id, campaign_id, student_id, status, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, '', $5, $5)
        ON CONFLICT (campaign_id, student_id) DO NOTHING`
	now := time.Now().UTC()
	created := 0
	for _, studentID := range studentIDs {
		res, err := r.db.ExecContext(ctx, query, uuid.NewString(), campaignID, studentID, models.ConsentStatusPending, now)
		if err != nil {
			return created, fmt.Errorf("fan out consent for student %s: %w", studentID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("fan out consent rows: %w", err)
		}
		created += int(affected)
	}
	return created, nil
}

// Find returns the consent for a (campaign, student) pair.
func (r *ConsentRepository) Find(ctx context.Context, campaignID, studentID string) (*models.Consent, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_consents WHERE campaign_id = $1 AND student_id = $2", consentColumns)
	var consent models.Consent
	if err := r.db.GetContext(ctx, &consent, query, campaignID, studentID); err != nil {
		return nil, err
	}
	return &consent, nil
}

// RecordDecision stores a guardian decision on an existing consent row.
// Guardians may flip their decision while the campaign remains open.
func (r *ConsentRepository) RecordDecision(ctx context.Context, campaignID, studentID string, status models.ConsentStatus, answeredBy, notes string) (*models.Consent, error) {
	query := fmt.Sprintf(`UPDATE campaign_consents
        SET status = $3, answered_by = $4, answered_at = $5, notes = $6, updated_at = $5
        WHERE campaign_id = $1 AND student_id = $2
        RETURNING %s`, consentColumns)
	var consent models.Consent
	if err := r.db.GetContext(ctx, &consent, query, campaignID, studentID, status, answeredBy, time.Now().UTC(), notes); err != nil {
		return nil, err
	}
	return &consent, nil
}

// ListByCampaign returns every stored consent for a campaign.
func (r *ConsentRepository) ListByCampaign(ctx context.Context, campaignID string) ([]models.Consent, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_consents WHERE campaign_id = $1 ORDER BY created_at", consentColumns)
	var consents []models.Consent
	if err := r.db.SelectContext(ctx, &consents, query, campaignID); err != nil {
		return nil, fmt.Errorf("list campaign consents: %w", err)
	}
	return consents, nil
}

// ListByStudent returns every stored consent for a student across campaigns.
func (r *ConsentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Consent, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_consents WHERE student_id = $1 ORDER BY created_at DESC", consentColumns)
	var consents []models.Consent
	if err := r.db.SelectContext(ctx, &consents, query, studentID); err != nil {
		return nil, fmt.Errorf("list student consents: %w", err)
	}
	return consents, nil
}

// CountByStatus aggregates stored consent decisions for a campaign.
func (r *ConsentRepository) CountByStatus(ctx context.Context, campaignID string) (map[models.ConsentStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM campaign_consents WHERE campaign_id = $1 GROUP BY status`
	rows := []struct {
		Status models.ConsentStatus `db:"status"`
		Total  int                  `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("count campaign consents: %w", err)
	}
	counts := make(map[models.ConsentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
