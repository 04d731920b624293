package model

import "time"

// LeadStatus is the sales lifecycle status of a persisted lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// Lead is the durable lead record keyed by email.
type Lead struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Company        string         `json:"company" db:"company"`
	Email          string         `json:"email" db:"email"`
	Phone          string         `json:"phone,omitempty" db:"phone"`
	Source         string         `json:"source" db:"source"`
	Status         LeadStatus     `json:"status" db:"status"`
	Score          int            `json:"score" db:"score"`
	ScoreBreakdown ScoreBreakdown `json:"scoreBreakdown" db:"score_breakdown"`
	Category       Category       `json:"category" db:"category"`
	Industry       string         `json:"industry,omitempty" db:"industry"`
	Location       string         `json:"location,omitempty" db:"location"`
	Website        string         `json:"website,omitempty" db:"website"`
	CompanySize    string         `json:"companySize,omitempty" db:"company_size"`
	Enrichment     *Enrichment    `json:"enrichmentData,omitempty" db:"enrichment_data"`
	Notes          string         `json:"notes,omitempty" db:"notes"`
	AssignedAgent  string         `json:"assignedAgent,omitempty" db:"assigned_agent"`
	RunID          string         `json:"runId,omitempty" db:"run_id"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}
