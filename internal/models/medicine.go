package models

import "time"

// MedicineRequestStatus represents the review state of a medicine request.
type MedicineRequestStatus string

// Possible medicine request statuses.
const (
	MedicineRequestPending   MedicineRequestStatus = "PENDING"
	MedicineRequestApproved  MedicineRequestStatus = "APPROVED"
	MedicineRequestRejected  MedicineRequestStatus = "REJECTED"
	MedicineRequestCompleted MedicineRequestStatus = "COMPLETED"
)

// MedicineRequest is a guardian's request for the health unit to
// administer medicine to a linked student.
type MedicineRequest struct {
	ID           string                `db:"id" json:"id"`
	StudentID    string                `db:"student_id" json:"student_id"`
	RequestedBy  string                `db:"requested_by" json:"requested_by"`
	MedicineName string                `db:"medicine_name" json:"medicine_name"`
	Dosage       string                `db:"dosage" json:"dosage"`
	Frequency    string                `db:"frequency" json:"frequency"`
	Instructions string                `db:"instructions" json:"instructions"`
	StartDate    time.Time             `db:"start_date" json:"start_date"`
	EndDate      time.Time             `db:"end_date" json:"end_date"`
	Status       MedicineRequestStatus `db:"status" json:"status"`
	ReviewedBy   *string               `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time            `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes  string                `db:"review_notes" json:"review_notes"`
	CreatedAt    time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time             `db:"updated_at" json:"updated_at"`
}

// MedicineRequestFilter captures list filters for medicine requests.
type MedicineRequestFilter struct {
	StudentID   string
	RequestedBy string
	Status      MedicineRequestStatus
	Page        int
	PageSize    int
}
