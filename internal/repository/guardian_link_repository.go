package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-uks-api/internal/models"
)

// GuardianLinkRepository reads guardian-student relationship records.
// The link request flow is owned by the account service; this repository
// only consumes approval state.
type GuardianLinkRepository struct {
	db *sqlx.DB
}

// NewGuardianLinkRepository constructs a GuardianLinkRepository.
func NewGuardianLinkRepository(db *sqlx.DB) *GuardianLinkRepository {
	return &GuardianLinkRepository{db: db}
}

// Find returns the link for a (guardian, student) pair.
func (r *GuardianLinkRepository) Find(ctx context.Context, guardianID, studentID string) (*models.GuardianLink, error) {
	const query = `SELECT id, guardian_id, student_id, relationship, status, is_active, created_at, updated_at
        FROM guardian_links WHERE guardian_id = $1 AND student_id = $2`
	var link models.GuardianLink
	if err := r.db.GetContext(ctx, &link, query, guardianID, studentID); err != nil {
		return nil, err
	}
	return &link, nil
}

// IsAuthorized reports whether an approved and active link exists for the
// pair. Absence of a link is not an error.
func (r *GuardianLinkRepository) IsAuthorized(ctx context.Context, guardianID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM guardian_links
        WHERE guardian_id = $1 AND student_id = $2 AND status = $3 AND is_active = true LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, guardianID, studentID, models.GuardianLinkApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check guardian link: %w", err)
	}
	return true, nil
}

// ListStudentIDs returns the IDs of all students the guardian is
// authorized to act for.
func (r *GuardianLinkRepository) ListStudentIDs(ctx context.Context, guardianID string) ([]string, error) {
	const query = `SELECT student_id FROM guardian_links
        WHERE guardian_id = $1 AND status = $2 AND is_active = true`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, guardianID, models.GuardianLinkApproved); err != nil {
		return nil, fmt.Errorf("list guardian students: %w", err)
	}
	return ids, nil
}
