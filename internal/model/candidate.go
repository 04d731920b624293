// Package model defines the domain types shared by the prospection pipeline:
// discovered candidates, score breakdowns, enrichment payloads, persisted
// leads, and agent runs.
package model

import "strings"

// Source tags attached to candidates by the search adapters.
const (
	SourceSIEM       = "SIEM"
	SourceDENUE      = "DENUE"
	SourceCANACINTRA = "CANACINTRA"
	SourceGoogleMaps = "Google Maps"
)

// Candidate is a discovered, not-yet-qualified business lead.
type Candidate struct {
	Name        string         `json:"name"`
	Company     string         `json:"company"`
	Email       string         `json:"email,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	Website     string         `json:"website,omitempty"`
	Industry    string         `json:"industry,omitempty"`
	Location    string         `json:"location,omitempty"`
	CompanySize string         `json:"companySize,omitempty"`
	Source      string         `json:"source"`
	SourceURL   string         `json:"sourceUrl,omitempty"`
	Notes       string         `json:"notes,omitempty"` // free text searched for brand and need signals
	RawData     map[string]any `json:"rawData,omitempty"`
}

// HasEmail reports whether the candidate carries a usable contact email.
func (c Candidate) HasEmail() bool {
	return strings.Contains(strings.TrimSpace(c.Email), "@")
}

// DisplayName returns the company name, falling back to the contact name.
func (c Candidate) DisplayName() string {
	if c.Company != "" {
		return c.Company
	}
	return c.Name
}

// Contact is a person associated with a candidate's company.
type Contact struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	EmailStatus string `json:"emailStatus,omitempty"` // verified, guessed, unavailable
	Phone       string `json:"phone,omitempty"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
	Location    string `json:"location,omitempty"`
	Source      string `json:"source"`
}

// Enrichment is the best-effort contact and company detail gathered for a
// qualified candidate.
type Enrichment struct {
	Contacts      []Contact `json:"contacts"`
	CompanyURL    string    `json:"companyUrl,omitempty"`
	LinkedInURL   string    `json:"linkedinUrl,omitempty"`
	Domain        string    `json:"domain,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	CompanySize   string    `json:"companySize,omitempty"`
	GuessedEmails []string  `json:"guessedEmails,omitempty"`
	Phones        []string  `json:"phones,omitempty"`
	Sources       []string  `json:"sources,omitempty"`
}

// Empty reports whether the enrichment carries no contacts and no company data.
func (e Enrichment) Empty() bool {
	return len(e.Contacts) == 0 && e.CompanyURL == "" && e.LinkedInURL == "" &&
		e.Industry == "" && e.CompanySize == "" && len(e.GuessedEmails) == 0 && len(e.Phones) == 0
}

// MergeCompany copies company-level fields from other into e where e is
// still unset. Contacts are not touched.
func (e *Enrichment) MergeCompany(other Enrichment) {
	if e.CompanyURL == "" {
		e.CompanyURL = other.CompanyURL
	}
	if e.LinkedInURL == "" {
		e.LinkedInURL = other.LinkedInURL
	}
	if e.Domain == "" {
		e.Domain = other.Domain
	}
	if e.Industry == "" {
		e.Industry = other.Industry
	}
	if e.CompanySize == "" {
		e.CompanySize = other.CompanySize
	}
}
