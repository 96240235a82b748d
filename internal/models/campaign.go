package models

import (
	"time"

	"github.com/lib/pq"
)

// CampaignStatus represents the lifecycle state of a health campaign.
type CampaignStatus string

// Possible campaign statuses.
const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
)

// CampaignType distinguishes the procedure a campaign performs.
type CampaignType string

// Supported campaign types.
const (
	CampaignTypeVaccination CampaignType = "VACCINATION"
	CampaignTypeHealthCheck CampaignType = "HEALTH_CHECK"
)

// TargetAllGrades is the targeting token matching every active student.
const TargetAllGrades = "all_grades"

// CanTransition reports whether moving from the current status to the
// requested one is permitted. Completed and cancelled are terminal.
func (s CampaignStatus) CanTransition(to CampaignStatus) bool {
	switch s {
	case CampaignStatusDraft:
		return to == CampaignStatusActive
	case CampaignStatusActive:
		return to == CampaignStatusCompleted || to == CampaignStatusCancelled
	default:
		return false
	}
}

// Open reports whether the campaign still accepts consent submissions.
func (s CampaignStatus) Open() bool {
	return s == CampaignStatusDraft || s == CampaignStatusActive
}

// Valid reports whether the value is a known status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether the value is a known campaign type.
func (t CampaignType) Valid() bool {
	return t == CampaignTypeVaccination || t == CampaignTypeHealthCheck
}

// Campaign represents a time-boxed vaccination drive or health screening
// with a declared target population.
type Campaign struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	CampaignType    CampaignType   `db:"campaign_type" json:"campaign_type"`
	Status          CampaignStatus `db:"status" json:"status"`
	TargetClasses   pq.StringArray `db:"target_classes" json:"target_classes"`
	TargetStudents  pq.StringArray `db:"target_students" json:"target_students"`
	RequiresConsent bool           `db:"requires_consent" json:"requires_consent"`
	ConsentDeadline *time.Time     `db:"consent_deadline" json:"consent_deadline,omitempty"`
	StartDate       time.Time      `db:"start_date" json:"start_date"`
	EndDate         time.Time      `db:"end_date" json:"end_date"`
	CreatedBy       string         `db:"created_by" json:"created_by"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// HasDeclaredTarget reports whether any targeting rule is present.
// Campaigns without one are invalid and must never default to school-wide.
func (c *Campaign) HasDeclaredTarget() bool {
	return len(c.TargetStudents) > 0 || len(c.TargetClasses) > 0
}

// DeadlinePassed reports whether the consent deadline, when set, is behind
// the given instant.
func (c *Campaign) DeadlinePassed(now time.Time) bool {
	return c.ConsentDeadline != nil && now.After(*c.ConsentDeadline)
}

// CampaignFilter captures filtering criteria for listing campaigns.
type CampaignFilter struct {
	Status    CampaignStatus
	Type      CampaignType
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
