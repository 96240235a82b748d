package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-uks-api/internal/models"
)

// MedicineRequestRepository manages guardian medicine requests.
type MedicineRequestRepository struct {
	db *sqlx.DB
}

// NewMedicineRequestRepository constructs a MedicineRequestRepository.
func NewMedicineRequestRepository(db *sqlx.DB) *MedicineRequestRepository {
	return &MedicineRequestRepository{db: db}
}

const medicineColumns = `id, student_id, requested_by, medicine_name, dosage, frequency, instructions,
        start_date, end_date, status, reviewed_by, reviewed_at, review_notes, created_at, updated_at`

// Create inserts a new pending medicine request.
func (r *MedicineRequestRepository) Create(ctx context.Context, req *models.MedicineRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	const query = `INSERT INTO medicine_requests (id, student_id, requested_by, medicine_name, dosage, frequency, instructions,
        start_date, end_date, status, review_notes, created_at, updated_at)
        VALUES (:id, :student_id, :requested_by, :medicine_name, :dosage, :frequency, :instructions,
        :start_date, :end_date, :status, :review_notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create medicine request: %w", err)
	}
	return nil
}

// FindByID fetches a medicine request by ID.
func (r *MedicineRequestRepository) FindByID(ctx context.Context, id string) (*models.MedicineRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM medicine_requests WHERE id = $1", medicineColumns)
	var req models.MedicineRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns medicine requests matching the filter.
func (r *MedicineRequestRepository) List(ctx context.Context, filter models.MedicineRequestFilter) ([]models.MedicineRequest, int, error) {
	base := "FROM medicine_requests"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.RequestedBy != "" {
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)+1))
		args = append(args, filter.RequestedBy)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", medicineColumns, base, size, offset)
	var requests []models.MedicineRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list medicine requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count medicine requests: %w", err)
	}
	return requests, total, nil
}

// UpdateReview records a staff decision on a pending request.
func (r *MedicineRequestRepository) UpdateReview(ctx context.Context, id string, status models.MedicineRequestStatus, reviewedBy, notes string) error {
	const query = `UPDATE medicine_requests
        SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5, updated_at = $4
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewedBy, time.Now().UTC(), notes); err != nil {
		return fmt.Errorf("review medicine request: %w", err)
	}
	return nil
}
