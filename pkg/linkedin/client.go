// Package linkedin reads LinkedIn company profiles through an MCP gateway
// that exposes the linkedin-mcp-server tools over streamable HTTP.
package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/provider"
)

const (
	// DefaultTool is the gateway tool that returns a company profile.
	DefaultTool  = "get_company_profile"
	providerName = "linkedin"
	clientName   = "lead-prospector"
	clientVer    = "1.0.0"
)

// Client fetches company profiles.
type Client interface {
	CompanyProfile(ctx context.Context, companyName string, withEmployees bool) (*Company, error)
	Close() error
}

// Company is a LinkedIn company page.
type Company struct {
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Industry     string     `json:"industry,omitempty"`
	Size         string     `json:"size,omitempty"`
	Website      string     `json:"website,omitempty"`
	Description  string     `json:"description,omitempty"`
	Headquarters string     `json:"headquarters,omitempty"`
	Employees    []Employee `json:"employees,omitempty"`
}

// Employee is a profile listed on a company page.
type Employee struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Headline string `json:"headline,omitempty"`
	URL      string `json:"url,omitempty"`
	Location string `json:"location,omitempty"`
}

// Option configures the client.
type Option func(*mcpClient)

// WithTool overrides the profile tool name.
func WithTool(name string) Option {
	return func(c *mcpClient) {
		if name != "" {
			c.tool = name
		}
	}
}

// WithHTTPClient sets the http.Client of the streamable transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *mcpClient) {
		c.http = hc
	}
}

// WithTransport replaces the streamable HTTP transport, e.g. with an
// in-memory transport.
func WithTransport(t mcp.Transport) Option {
	return func(c *mcpClient) {
		c.transport = t
	}
}

type mcpClient struct {
	endpoint  string
	tool      string
	http      *http.Client
	transport mcp.Transport
	client    *mcp.Client

	mu      sync.Mutex
	session *mcp.ClientSession
}

// NewClient creates a gateway client. The session is opened on first use.
// It returns provider.ErrNotConfigured when endpoint is empty and no
// transport is supplied.
func NewClient(endpoint string, opts ...Option) (Client, error) {
	c := &mcpClient{
		endpoint: endpoint,
		tool:     DefaultTool,
		http:     &http.Client{Timeout: 60 * time.Second},
		client:   mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVer}, nil),
	}
	for _, o := range opts {
		o(c)
	}
	if c.endpoint == "" && c.transport == nil {
		return nil, eris.Wrap(provider.ErrNotConfigured, "linkedin: gateway url")
	}
	return c, nil
}

func (c *mcpClient) connect(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	t := c.transport
	if t == nil {
		t = &mcp.StreamableClientTransport{Endpoint: c.endpoint, HTTPClient: c.http}
	}
	s, err := c.client.Connect(ctx, t, nil)
	if err != nil {
		return nil, provider.Network(providerName, eris.Wrap(err, "linkedin: connect gateway"))
	}
	c.session = s
	return s, nil
}

// drop forgets a broken session so the next call reconnects.
func (c *mcpClient) drop(s *mcp.ClientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		_ = c.session.Close()
		c.session = nil
	}
}

// CompanyProfile returns the company page matching companyName. A profile
// the gateway cannot find returns a NotFound provider error.
func (c *mcpClient) CompanyProfile(ctx context.Context, companyName string, withEmployees bool) (*Company, error) {
	s, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.CallTool(ctx, &mcp.CallToolParams{
		Name: c.tool,
		Arguments: map[string]any{
			"company_name":  companyName,
			"get_employees": withEmployees,
		},
	})
	if err != nil {
		if ctx.Err() == nil {
			c.drop(s)
		}
		return nil, provider.Network(providerName, eris.Wrapf(err, "linkedin: call %s", c.tool))
	}

	text := resultText(res)
	if res.IsError {
		return nil, toolError(text)
	}
	return parseCompany(text, companyName)
}

// Close ends the gateway session.
func (c *mcpClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

var authMarkers = []string{"cookie", "login", "log in", "unauthorized", "authwall", "session expired"}

func toolError(text string) error {
	lower := strings.ToLower(text)
	cause := eris.Errorf("linkedin: tool error: %s", text)
	switch {
	case strings.Contains(lower, "not found"), strings.Contains(lower, "no company"):
		return provider.NewError(providerName, provider.KindNotFound, 0, cause)
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many"):
		return provider.NewError(providerName, provider.KindRateLimited, 0, cause)
	}
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return provider.NewError(providerName, provider.KindUnauthorized, 0, cause)
		}
	}
	return provider.NewError(providerName, provider.KindUnknown, 0, cause)
}

// rawCompany accepts both key spellings the gateway versions emit.
type rawCompany struct {
	Name         string        `json:"name"`
	CompanyName  string        `json:"company_name"`
	URL          string        `json:"url"`
	LinkedInURL  string        `json:"linkedin_url"`
	Industry     string        `json:"industry"`
	CompanySize  string        `json:"company_size"`
	Size         string        `json:"size"`
	Website      string        `json:"website"`
	Description  string        `json:"description"`
	Headquarters string        `json:"headquarters"`
	Employees    []rawEmployee `json:"employees"`
}

type rawEmployee struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Headline    string `json:"headline"`
	URL         string `json:"url"`
	LinkedInURL string `json:"linkedin_url"`
	Location    string `json:"location"`
}

func parseCompany(text, companyName string) (*Company, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, nil
	}

	var raw rawCompany
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, eris.Wrap(err, "linkedin: parse company profile")
	}

	out := &Company{
		Name:         firstNonEmpty(raw.Name, raw.CompanyName, companyName),
		URL:          firstNonEmpty(raw.URL, raw.LinkedInURL),
		Industry:     raw.Industry,
		Size:         firstNonEmpty(raw.CompanySize, raw.Size),
		Website:      raw.Website,
		Description:  raw.Description,
		Headquarters: raw.Headquarters,
	}
	for _, e := range raw.Employees {
		if e.Name == "" {
			continue
		}
		out.Employees = append(out.Employees, Employee{
			Name:     e.Name,
			Title:    firstNonEmpty(e.Title, e.Headline),
			Headline: e.Headline,
			URL:      firstNonEmpty(e.URL, e.LinkedInURL),
			Location: e.Location,
		})
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
