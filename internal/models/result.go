package models

import (
	"time"

	"github.com/lib/pq"
)

// ScreeningStatus classifies a health check outcome.
type ScreeningStatus string

// Possible screening statuses.
const (
	ScreeningStatusHealthy        ScreeningStatus = "HEALTHY"
	ScreeningStatusNeedsAttention ScreeningStatus = "NEEDS_ATTENTION"
	ScreeningStatusCritical       ScreeningStatus = "CRITICAL"
)

// Valid reports whether the value is a known screening status.
func (s ScreeningStatus) Valid() bool {
	switch s {
	case ScreeningStatusHealthy, ScreeningStatusNeedsAttention, ScreeningStatusCritical:
		return true
	}
	return false
}

// FollowUpStatus tracks post-procedure monitoring of a result.
type FollowUpStatus string

// Possible follow-up statuses. Completed is terminal.
const (
	FollowUpStatusNotRequired FollowUpStatus = "NOT_REQUIRED"
	FollowUpStatusNormal      FollowUpStatus = "NORMAL"
	FollowUpStatusMild        FollowUpStatus = "MILD_REACTION"
	FollowUpStatusModerate    FollowUpStatus = "MODERATE_REACTION"
	FollowUpStatusSevere      FollowUpStatus = "SEVERE_REACTION"
	FollowUpStatusCompleted   FollowUpStatus = "COMPLETED"
)

// Valid reports whether the value is a known follow-up status.
func (s FollowUpStatus) Valid() bool {
	switch s {
	case FollowUpStatusNotRequired, FollowUpStatusNormal, FollowUpStatusMild,
		FollowUpStatusModerate, FollowUpStatusSevere, FollowUpStatusCompleted:
		return true
	}
	return false
}

// Updatable reports whether a tracked follow-up may move to the given
// status. Severity values move freely among themselves and to completed;
// NOT_REQUIRED is never a valid target for a tracked follow-up.
func (s FollowUpStatus) Updatable(to FollowUpStatus) bool {
	if s == FollowUpStatusCompleted {
		return false
	}
	switch to {
	case FollowUpStatusNormal, FollowUpStatusMild, FollowUpStatusModerate,
		FollowUpStatusSevere, FollowUpStatusCompleted:
		return true
	}
	return false
}

// FollowUp is the post-procedure monitoring sub-state embedded in a result.
// Resolution is defined solely as Status == COMPLETED; it is never derived
// from notes or timestamps.
type FollowUp struct {
	Required          bool           `db:"follow_up_required" json:"required"`
	Status            FollowUpStatus `db:"follow_up_status" json:"status"`
	Notes             string         `db:"follow_up_notes" json:"notes"`
	LastUpdateAt      *time.Time     `db:"follow_up_updated_at" json:"last_update_at,omitempty"`
	AdditionalActions pq.StringArray `db:"follow_up_actions" json:"additional_actions"`
}

// Resolved reports whether the follow-up reached its terminal state.
func (f FollowUp) Resolved() bool {
	return f.Status == FollowUpStatusCompleted
}

// VaccinationDetail holds the procedure record for vaccination campaigns.
type VaccinationDetail struct {
	Brand          string    `json:"brand" validate:"required"`
	BatchNumber    string    `json:"batch_number" validate:"required"`
	DoseNumber     int       `json:"dose_number" validate:"required,min=1"`
	ExpiryDate     time.Time `json:"expiry_date" validate:"required"`
	AdministeredBy string    `json:"administered_by" validate:"required"`
	AdministeredAt time.Time `json:"administered_at" validate:"required"`
	SideEffects    []string  `json:"side_effects"`
	FollowUpNeeded bool      `json:"follow_up_required"`
}

// ScreeningDetail holds the outcome record for health check campaigns.
type ScreeningDetail struct {
	Status               ScreeningStatus `json:"status" validate:"required"`
	Findings             string          `json:"findings"`
	Recommendations      string          `json:"recommendations"`
	RequiresConsultation bool            `json:"requires_consultation"`
	FollowUpNeeded       bool            `json:"follow_up_required"`
}

// ResultDetail is the tagged variant carried by a result: exactly one of
// the two payloads is set, keyed by the campaign's type.
type ResultDetail struct {
	Vaccination *VaccinationDetail `json:"vaccination,omitempty"`
	Screening   *ScreeningDetail   `json:"screening,omitempty"`
}

// FollowUpNeeded extracts the monitoring flag from whichever variant is set.
func (d ResultDetail) FollowUpNeeded() bool {
	switch {
	case d.Vaccination != nil:
		return d.Vaccination.FollowUpNeeded
	case d.Screening != nil:
		return d.Screening.FollowUpNeeded
	}
	return false
}

// Matches reports whether the populated variant agrees with the campaign
// type. Exactly one variant must be set.
func (d ResultDetail) Matches(t CampaignType) bool {
	switch t {
	case CampaignTypeVaccination:
		return d.Vaccination != nil && d.Screening == nil
	case CampaignTypeHealthCheck:
		return d.Screening != nil && d.Vaccination == nil
	}
	return false
}

// Result is the at-most-one outcome record per (campaign, student),
// enforced by a compound unique key. Core fields are immutable after
// creation; only the follow-up sub-state may change until closed.
type Result struct {
	ID          string             `json:"id"`
	CampaignID  string             `json:"campaign_id"`
	StudentID   string             `json:"student_id"`
	RecordedBy  string             `json:"recorded_by"`
	Notes       string             `json:"notes"`
	Vaccination *VaccinationDetail `json:"vaccination,omitempty"`
	Screening   *ScreeningDetail   `json:"screening,omitempty"`
	FollowUp    FollowUp           `json:"follow_up"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Detail returns the tagged variant stored on the result.
func (r *Result) Detail() ResultDetail {
	return ResultDetail{Vaccination: r.Vaccination, Screening: r.Screening}
}
