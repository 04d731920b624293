// Package denue is a client for INEGI's DENUE business directory API.
package denue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/provider"
)

const (
	defaultBaseURL = "https://www.inegi.org.mx/app/api/denue/v1/consulta"
	providerName   = "denue"
)

// Client searches the DENUE directory.
type Client interface {
	Search(ctx context.Context, req SearchRequest) ([]Establishment, error)
}

// SearchRequest finds establishments matching Keyword within RadiusM meters
// of a point.
type SearchRequest struct {
	Keyword string
	Lat     float64
	Lng     float64
	RadiusM int
}

// Establishment is one DENUE record. Field names follow the API.
type Establishment struct {
	ID            string `json:"Id"`
	CLEE          string `json:"CLEE"`
	Name          string `json:"Nombre"`
	LegalName     string `json:"Razon_social"`
	ActivityClass string `json:"Clase_actividad"`
	Stratum       string `json:"Estrato"`
	Street        string `json:"Calle"`
	ExteriorNum   string `json:"Num_Exterior"`
	Neighborhood  string `json:"Colonia"`
	PostalCode    string `json:"CP"`
	Locality      string `json:"Ubicacion"`
	Phone         string `json:"Telefono"`
	Email         string `json:"Correo_e"`
	Website       string `json:"Sitio_internet"`
	Lat           string `json:"Latitud"`
	Lng           string `json:"Longitud"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a DENUE client. It returns provider.ErrNotConfigured
// when token is empty.
func NewClient(token string, opts ...Option) (Client, error) {
	if token == "" {
		return nil, eris.Wrap(provider.ErrNotConfigured, "denue: token")
	}
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *httpClient) Search(ctx context.Context, in SearchRequest) ([]Establishment, error) {
	endpoint := fmt.Sprintf("%s/Buscar/%s/%f,%f/%d/%s",
		c.baseURL, url.PathEscape(in.Keyword), in.Lat, in.Lng, in.RadiusM, url.PathEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "denue: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, provider.Network(providerName, eris.Wrap(err, "denue: send request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "denue: read response")
	}
	if perr := provider.Classify(providerName, resp.StatusCode, body); perr != nil {
		return nil, perr
	}

	var out []Establishment
	if err := json.Unmarshal(body, &out); err != nil {
		// An empty search answers with a bare message array.
		var msgs []string
		if json.Unmarshal(body, &msgs) == nil {
			return nil, nil
		}
		return nil, eris.Wrap(err, "denue: unmarshal response")
	}
	return out, nil
}
