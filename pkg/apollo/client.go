// Package apollo is a client for the Apollo.io organization enrichment and
// people search API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/provider"
)

const (
	defaultBaseURL = "https://api.apollo.io/v1"
	providerName   = "apollo"
)

// Client calls the Apollo API. Organization enrichment is available on the
// free plan; people search answers 403 API_INACCESSIBLE without a paid plan.
type Client interface {
	EnrichOrganization(ctx context.Context, domain string) (*Organization, error)
	SearchPeople(ctx context.Context, q PeopleQuery) (*PeopleResponse, error)
}

// Organization is an Apollo company record.
type Organization struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	WebsiteURL            string `json:"website_url"`
	LinkedInURL           string `json:"linkedin_url"`
	PrimaryDomain         string `json:"primary_domain"`
	Industry              string `json:"industry"`
	EstimatedNumEmployees int    `json:"estimated_num_employees"`
	Phone                 string `json:"phone"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	Country               string `json:"country"`
}

// Person is an Apollo contact record.
type Person struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	Name        string        `json:"name"`
	Title       string        `json:"title"`
	Email       string        `json:"email"`
	EmailStatus string        `json:"email_status"`
	LinkedInURL string        `json:"linkedin_url"`
	City        string        `json:"city"`
	State       string        `json:"state"`
	Country     string        `json:"country"`
	Phones      []PhoneNumber `json:"phone_numbers"`
}

// FullName returns Name, or the first and last names joined.
func (p Person) FullName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Phone returns the first sanitized phone number.
func (p Person) Phone() string {
	for _, n := range p.Phones {
		if n.SanitizedNumber != "" {
			return n.SanitizedNumber
		}
		if n.RawNumber != "" {
			return n.RawNumber
		}
	}
	return ""
}

// Location joins the person's city, state, and country.
func (p Person) Location() string {
	var parts []string
	for _, s := range []string{p.City, p.State, p.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// PhoneNumber is a contact phone.
type PhoneNumber struct {
	RawNumber       string `json:"raw_number"`
	SanitizedNumber string `json:"sanitized_number"`
}

// PeopleQuery filters a people search.
type PeopleQuery struct {
	OrganizationName string
	OrganizationIDs  []string
	Titles           []string
	EmailStatus      []string
	PerPage          int
}

// PeopleResponse is the people search result page.
type PeopleResponse struct {
	People        []Person       `json:"people"`
	Organizations []Organization `json:"organizations"`
	Pagination    Pagination     `json:"pagination"`
}

// Pagination describes a result page.
type Pagination struct {
	Page         int `json:"page"`
	PerPage      int `json:"per_page"`
	TotalEntries int `json:"total_entries"`
}

// SizeBand maps an employee count to Apollo's size categories.
func SizeBand(employees int) string {
	switch {
	case employees <= 0:
		return ""
	case employees < 10:
		return "1-10"
	case employees < 50:
		return "11-50"
	case employees < 200:
		return "51-200"
	case employees < 500:
		return "201-500"
	case employees < 1000:
		return "501-1000"
	default:
		return "1000+"
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Apollo client. It returns provider.ErrNotConfigured
// when apiKey is empty.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.Wrap(provider.ErrNotConfigured, "apollo: api key")
	}
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// EnrichOrganization looks up a company by domain. An unknown domain
// returns nil, nil.
func (c *httpClient) EnrichOrganization(ctx context.Context, domain string) (*Organization, error) {
	var out struct {
		Organization *Organization `json:"organization"`
	}
	if err := c.post(ctx, "/organizations/enrich", map[string]any{"domain": domain}, &out); err != nil {
		return nil, err
	}
	return out.Organization, nil
}

// SearchPeople searches contacts at one organization.
func (c *httpClient) SearchPeople(ctx context.Context, q PeopleQuery) (*PeopleResponse, error) {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 10
	}
	status := q.EmailStatus
	if len(status) == 0 {
		status = []string{"verified", "guessed"}
	}

	body := map[string]any{
		"q_organization_name":  q.OrganizationName,
		"per_page":             perPage,
		"contact_email_status": status,
	}
	if len(q.Titles) > 0 {
		body["person_titles"] = q.Titles
	}
	if len(q.OrganizationIDs) > 0 {
		body["organization_ids"] = q.OrganizationIDs
	}

	var out PeopleResponse
	if err := c.post(ctx, "/mixed_people/search", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "apollo: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "apollo: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.Network(providerName, eris.Wrapf(err, "apollo: send %s", path))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "apollo: read response")
	}
	if perr := provider.Classify(providerName, resp.StatusCode, body); perr != nil {
		return perr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "apollo: unmarshal %s", path)
	}
	return nil
}
