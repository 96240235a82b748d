package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations; the compound key on (campaign_id, student_id) surfaces
// concurrent double-submission through it.
const pgUniqueViolation = "23505"

// ResultRepository manages the outcome record of performed procedures.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// resultRow is the flat table shape; the tagged detail variant is
// reassembled from nullable columns keyed by detail_type.
type resultRow struct {
	ID                   string                `db:"id"`
	CampaignID           string                `db:"campaign_id"`
	StudentID            string                `db:"student_id"`
	RecordedBy           string                `db:"recorded_by"`
	Notes                string                `db:"notes"`
	DetailType           models.CampaignType   `db:"detail_type"`
	VaccineBrand         sql.NullString        `db:"vaccine_brand"`
	VaccineBatch         sql.NullString        `db:"vaccine_batch"`
	DoseNumber           sql.NullInt64         `db:"dose_number"`
	VaccineExpiry        sql.NullTime          `db:"vaccine_expiry"`
	AdministeredBy       sql.NullString        `db:"administered_by"`
	AdministeredAt       sql.NullTime          `db:"administered_at"`
	SideEffects          pq.StringArray        `db:"side_effects"`
	ScreeningStatus      sql.NullString        `db:"screening_status"`
	Findings             sql.NullString        `db:"findings"`
	Recommendations      sql.NullString        `db:"recommendations"`
	RequiresConsultation sql.NullBool          `db:"requires_consultation"`
	FollowUpRequired     bool                  `db:"follow_up_required"`
	FollowUpStatus       models.FollowUpStatus `db:"follow_up_status"`
	FollowUpNotes        string                `db:"follow_up_notes"`
	FollowUpUpdatedAt    sql.NullTime          `db:"follow_up_updated_at"`
	FollowUpActions      pq.StringArray        `db:"follow_up_actions"`
	CreatedAt            time.Time             `db:"created_at"`
	UpdatedAt            time.Time             `db:"updated_at"`
}

const resultColumns = `id, campaign_id, student_id, recorded_by, notes, detail_type,
        vaccine_brand, vaccine_batch, dose_number, vaccine_expiry, administered_by, administered_at, side_effects,
        screening_status, findings, recommendations, requires_consultation,
        follow_up_required, follow_up_status, follow_up_notes, follow_up_updated_at, follow_up_actions,
        created_at, updated_at`

func (row *resultRow) toModel() *models.Result {
	result := &models.Result{
		ID:         row.ID,
		CampaignID: row.CampaignID,
		StudentID:  row.StudentID,
		RecordedBy: row.RecordedBy,
		Notes:      row.Notes,
		FollowUp: models.FollowUp{
			Required:          row.FollowUpRequired,
			Status:            row.FollowUpStatus,
			Notes:             row.FollowUpNotes,
			AdditionalActions: row.FollowUpActions,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.FollowUpUpdatedAt.Valid {
		ts := row.FollowUpUpdatedAt.Time
		result.FollowUp.LastUpdateAt = &ts
	}
	switch row.DetailType {
	case models.CampaignTypeVaccination:
		result.Vaccination = &models.VaccinationDetail{
			Brand:          row.VaccineBrand.String,
			BatchNumber:    row.VaccineBatch.String,
			DoseNumber:     int(row.DoseNumber.Int64),
			ExpiryDate:     row.VaccineExpiry.Time,
			AdministeredBy: row.AdministeredBy.String,
			AdministeredAt: row.AdministeredAt.Time,
			SideEffects:    row.SideEffects,
			FollowUpNeeded: row.FollowUpRequired,
		}
	case models.CampaignTypeHealthCheck:
		result.Screening = &models.ScreeningDetail{
			Status:               models.ScreeningStatus(row.ScreeningStatus.String),
			Findings:             row.Findings.String,
			Recommendations:      row.Recommendations.String,
			RequiresConsultation: row.RequiresConsultation.Bool,
			FollowUpNeeded:       row.FollowUpRequired,
		}
	}
	return result
}

// Create persists a new result. A compound unique key violation on
// (campaign_id, student_id) is mapped to ErrDuplicateResult so that
// concurrent double-submission and sequential re-recording surface the
// same taxonomy error without partial effects.
func (r *ResultRepository) Create(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now

	row := resultRow{
		ID:               result.ID,
		CampaignID:       result.CampaignID,
		StudentID:        result.StudentID,
		RecordedBy:       result.RecordedBy,
		Notes:            result.Notes,
		FollowUpRequired: result.FollowUp.Required,
		FollowUpStatus:   result.FollowUp.Status,
		FollowUpNotes:    result.FollowUp.Notes,
		FollowUpActions:  result.FollowUp.AdditionalActions,
		CreatedAt:        result.CreatedAt,
		UpdatedAt:        result.UpdatedAt,
	}
	if row.FollowUpActions == nil {
		row.FollowUpActions = pq.StringArray{}
	}
	switch {
	case result.Vaccination != nil:
		v := result.Vaccination
		row.DetailType = models.CampaignTypeVaccination
		row.VaccineBrand = sql.NullString{String: v.Brand, Valid: true}
		row.VaccineBatch = sql.NullString{String: v.BatchNumber, Valid: true}
		row.DoseNumber = sql.NullInt64{Int64: int64(v.DoseNumber), Valid: true}
		row.VaccineExpiry = sql.NullTime{Time: v.ExpiryDate, Valid: true}
		row.AdministeredBy = sql.NullString{String: v.AdministeredBy, Valid: true}
		row.AdministeredAt = sql.NullTime{Time: v.AdministeredAt, Valid: true}
		row.SideEffects = v.SideEffects
		if row.SideEffects == nil {
			row.SideEffects = pq.StringArray{}
		}
	case result.Screening != nil:
		s := result.Screening
		row.DetailType = models.CampaignTypeHealthCheck
		row.ScreeningStatus = sql.NullString{String: string(s.Status), Valid: true}
		row.Findings = sql.NullString{String: s.Findings, Valid: true}
		row.Recommendations = sql.NullString{String: s.Recommendations, Valid: true}
		row.RequiresConsultation = sql.NullBool{Bool: s.RequiresConsultation, Valid: true}
		row.SideEffects = pq.StringArray{}
	}

	const query = `INSERT INTO campaign_results (id, campaign_id, student_id, recorded_by, notes, detail_type,
        vaccine_brand, vaccine_batch, dose_number, vaccine_expiry, administered_by, administered_at, side_effects,
        screening_status, findings, recommendations, requires_consultation,
        follow_up_required, follow_up_status, follow_up_notes, follow_up_updated_at, follow_up_actions,
        created_at, updated_at)
        VALUES (:id, :campaign_id, :student_id, :recorded_by, :notes, :detail_type,
        :vaccine_brand, :vaccine_batch, :dose_number, :vaccine_expiry, :administered_by, :administered_at, :side_effects,
        :screening_status, :findings, :recommendations, :requires_consultation,
        :follow_up_required, :follow_up_status, :follow_up_notes, :follow_up_updated_at, :follow_up_actions,
        :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, &row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return appErrors.Clone(appErrors.ErrDuplicateResult, "")
		}
		return fmt.Errorf("create result: %w", err)
	}
	return nil
}

// Find returns the result for a (campaign, student) pair.
func (r *ResultRepository) Find(ctx context.Context, campaignID, studentID string) (*models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_results WHERE campaign_id = $1 AND student_id = $2", resultColumns)
	var row resultRow
	if err := r.db.GetContext(ctx, &row, query, campaignID, studentID); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// FindByID fetches a result by its ID.
func (r *ResultRepository) FindByID(ctx context.Context, id string) (*models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_results WHERE id = $1", resultColumns)
	var row resultRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListByCampaign returns every result for a campaign.
func (r *ResultRepository) ListByCampaign(ctx context.Context, campaignID string) ([]models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_results WHERE campaign_id = $1 ORDER BY created_at", resultColumns)
	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("list campaign results: %w", err)
	}
	results := make([]models.Result, 0, len(rows))
	for i := range rows {
		results = append(results, *rows[i].toModel())
	}
	return results, nil
}

// ListByStudent returns a student's results across campaigns.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM campaign_results WHERE student_id = $1 ORDER BY created_at DESC", resultColumns)
	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student results: %w", err)
	}
	results := make([]models.Result, 0, len(rows))
	for i := range rows {
		results = append(results, *rows[i].toModel())
	}
	return results, nil
}

// ListOpenFollowUps returns results whose follow-up is required and not
// yet completed, for the staff monitoring view.
func (r *ResultRepository) ListOpenFollowUps(ctx context.Context, campaignID string) ([]models.Result, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaign_results
        WHERE campaign_id = $1 AND follow_up_required = true AND follow_up_status <> $2
        ORDER BY follow_up_updated_at NULLS FIRST`, resultColumns)
	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, campaignID, models.FollowUpStatusCompleted); err != nil {
		return nil, fmt.Errorf("list open follow-ups: %w", err)
	}
	results := make([]models.Result, 0, len(rows))
	for i := range rows {
		results = append(results, *rows[i].toModel())
	}
	return results, nil
}

// UpdateFollowUp overwrites the follow-up sub-state of a result. Core
// result fields stay untouched.
func (r *ResultRepository) UpdateFollowUp(ctx context.Context, resultID string, followUp models.FollowUp) error {
	const query = `UPDATE campaign_results
        SET follow_up_status = $2, follow_up_notes = $3, follow_up_updated_at = $4, follow_up_actions = $5, updated_at = $4
        WHERE id = $1`
	actions := followUp.AdditionalActions
	if actions == nil {
		actions = pq.StringArray{}
	}
	var updatedAt time.Time
	if followUp.LastUpdateAt != nil {
		updatedAt = *followUp.LastUpdateAt
	} else {
		updatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, query, resultID, followUp.Status, followUp.Notes, updatedAt, actions)
	if err != nil {
		return fmt.Errorf("update follow-up: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update follow-up rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByCampaign returns the number of recorded results for a campaign.
func (r *ResultRepository) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	const query = `SELECT COUNT(*) FROM campaign_results WHERE campaign_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, campaignID); err != nil {
		return 0, fmt.Errorf("count campaign results: %w", err)
	}
	return total, nil
}
