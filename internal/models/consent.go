package models

import "time"

// ConsentStatus represents the guardian decision state for one student in
// one campaign.
type ConsentStatus string

// Possible consent statuses.
const (
	ConsentStatusPending  ConsentStatus = "PENDING"
	ConsentStatusApproved ConsentStatus = "APPROVED"
	ConsentStatusDeclined ConsentStatus = "DECLINED"
)

// ConsentDecision is the subset of statuses a guardian may submit.
type ConsentDecision string

// Submittable decisions.
const (
	ConsentDecisionApproved ConsentDecision = "APPROVED"
	ConsentDecisionDeclined ConsentDecision = "DECLINED"
)

// Valid reports whether the decision is submittable.
func (d ConsentDecision) Valid() bool {
	return d == ConsentDecisionApproved || d == ConsentDecisionDeclined
}

// Status converts a decision into the stored consent status.
func (d ConsentDecision) Status() ConsentStatus {
	return ConsentStatus(d)
}

// Consent is the per-(campaign, student) decision record. Exactly one row
// exists per pair once the campaign is activated, enforced by a compound
// unique key on (campaign_id, student_id).
type Consent struct {
	ID         string        `db:"id" json:"id"`
	CampaignID string        `db:"campaign_id" json:"campaign_id"`
	StudentID  string        `db:"student_id" json:"student_id"`
	Status     ConsentStatus `db:"status" json:"status"`
	AnsweredBy *string       `db:"answered_by" json:"answered_by,omitempty"`
	AnsweredAt *time.Time    `db:"answered_at" json:"answered_at,omitempty"`
	Notes      string        `db:"notes" json:"notes"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// ConsentView is the union surfaced to callers: either a stored consent or
// an implicit pending marker for students that were never fanned out
// (e.g. added to the target list after activation). Callers can always
// distinguish the two via Implicit.
type ConsentView struct {
	CampaignID string        `json:"campaign_id"`
	StudentID  string        `json:"student_id"`
	Status     ConsentStatus `json:"status"`
	Implicit   bool          `json:"implicit"`
	Consent    *Consent      `json:"consent,omitempty"`
}

// ImplicitPending builds the marker for an absent consent row.
func ImplicitPending(campaignID, studentID string) ConsentView {
	return ConsentView{
		CampaignID: campaignID,
		StudentID:  studentID,
		Status:     ConsentStatusPending,
		Implicit:   true,
	}
}

// StoredConsent wraps an existing consent row into the union view.
func StoredConsent(c *Consent) ConsentView {
	return ConsentView{
		CampaignID: c.CampaignID,
		StudentID:  c.StudentID,
		Status:     c.Status,
		Implicit:   false,
		Consent:    c,
	}
}

// ConsentSummary aggregates decision counts for a campaign. Implicit
// pending counts students in the eligibility set without a stored row.
type ConsentSummary struct {
	CampaignID      string `json:"campaign_id"`
	Eligible        int    `json:"eligible"`
	Approved        int    `json:"approved"`
	Declined        int    `json:"declined"`
	Pending         int    `json:"pending"`
	ImplicitPending int    `json:"implicit_pending"`
}

// StudentConsent pairs a consent view with student identity for
// guardian-facing listings.
type StudentConsent struct {
	StudentID   string      `json:"student_id"`
	StudentName string      `json:"student_name"`
	ClassName   string      `json:"class_name"`
	Consent     ConsentView `json:"consent"`
}
