package models

import "time"

// GuardianLinkStatus represents the approval state of a guardian-student
// relationship.
type GuardianLinkStatus string

// Possible link statuses.
const (
	GuardianLinkPending  GuardianLinkStatus = "PENDING"
	GuardianLinkApproved GuardianLinkStatus = "APPROVED"
	GuardianLinkRejected GuardianLinkStatus = "REJECTED"
)

// GuardianLink authorizes a guardian to act on a student's behalf.
// Unique per (guardian_id, student_id). Only approved and active links
// grant any access; the linking request flow itself is owned elsewhere.
type GuardianLink struct {
	ID           string             `db:"id" json:"id"`
	GuardianID   string             `db:"guardian_id" json:"guardian_id"`
	StudentID    string             `db:"student_id" json:"student_id"`
	Relationship string             `db:"relationship" json:"relationship"`
	Status       GuardianLinkStatus `db:"status" json:"status"`
	IsActive     bool               `db:"is_active" json:"is_active"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// Authorizes reports whether the link grants the guardian authority.
func (l *GuardianLink) Authorizes() bool {
	return l.Status == GuardianLinkApproved && l.IsActive
}
