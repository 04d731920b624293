package apollo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-prospector/internal/provider"
)

func TestEnrichOrganization_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/organizations/enrich", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "grupolala.com", body["domain"])

		_, _ = w.Write([]byte(`{"organization": {
			"id": "org-1",
			"name": "Grupo LALA",
			"website_url": "http://www.grupolala.com",
			"linkedin_url": "http://www.linkedin.com/company/grupo-lala",
			"primary_domain": "grupolala.com",
			"industry": "dairy",
			"estimated_num_employees": 38000
		}}`))
	}))
	defer srv.Close()

	c, err := NewClient("key-123", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	org, err := c.EnrichOrganization(context.Background(), "grupolala.com")
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, "org-1", org.ID)
	assert.Equal(t, "Grupo LALA", org.Name)
	assert.Equal(t, 38000, org.EstimatedNumEmployees)
	assert.Equal(t, "1000+", SizeBand(org.EstimatedNumEmployees))
}

func TestEnrichOrganization_Unknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient("key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	org, err := c.EnrichOrganization(context.Background(), "nope.mx")
	require.NoError(t, err)
	assert.Nil(t, org)
}

func TestSearchPeople_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mixed_people/search", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Grupo LALA", body["q_organization_name"])
		assert.Equal(t, float64(5), body["per_page"])
		assert.Equal(t, []any{"Gerente de Mantenimiento"}, body["person_titles"])
		assert.Equal(t, []any{"org-1"}, body["organization_ids"])
		assert.Equal(t, []any{"verified", "guessed"}, body["contact_email_status"])

		_, _ = w.Write([]byte(`{
			"people": [{
				"id": "p-1",
				"first_name": "Ana",
				"last_name": "Ruiz",
				"title": "Gerente de Mantenimiento",
				"email": "ana.ruiz@grupolala.com",
				"email_status": "verified",
				"linkedin_url": "http://www.linkedin.com/in/anaruiz",
				"city": "Torreón",
				"country": "Mexico",
				"phone_numbers": [{"raw_number": "871 729 6600", "sanitized_number": "+528717296600"}]
			}],
			"pagination": {"page": 1, "per_page": 5, "total_entries": 17}
		}`))
	}))
	defer srv.Close()

	c, err := NewClient("key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.SearchPeople(context.Background(), PeopleQuery{
		OrganizationName: "Grupo LALA",
		OrganizationIDs:  []string{"org-1"},
		Titles:           []string{"Gerente de Mantenimiento"},
		PerPage:          5,
	})
	require.NoError(t, err)
	require.Len(t, resp.People, 1)
	p := resp.People[0]
	assert.Equal(t, "Ana Ruiz", p.FullName())
	assert.Equal(t, "+528717296600", p.Phone())
	assert.Equal(t, "Torreón, Mexico", p.Location())
	assert.Equal(t, 17, resp.Pagination.TotalEntries)
}

func TestSearchPeople_PlanLimitation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "api/v1/mixed_people/search is not accessible with this api_key on a free plan.", "error_code": "API_INACCESSIBLE"}`))
	}))
	defer srv.Close()

	c, err := NewClient("key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.SearchPeople(context.Background(), PeopleQuery{OrganizationName: "x"})
	require.Error(t, err)
	assert.Equal(t, provider.KindPlanLimitation, provider.KindOf(err))
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   provider.Kind
	}{
		{http.StatusUnauthorized, provider.KindUnauthorized},
		{http.StatusForbidden, provider.KindUnauthorized},
		{http.StatusTooManyRequests, provider.KindRateLimited},
		{http.StatusBadGateway, provider.KindTransient},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error": "nope"}`))
		}))

		c, err := NewClient("key", WithBaseURL(srv.URL))
		require.NoError(t, err)
		_, err = c.EnrichOrganization(context.Background(), "x.com")
		assert.Equal(t, tt.want, provider.KindOf(err), tt.status)
		srv.Close()
	}
}

func TestNewClient_KeyRequired(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}

func TestSizeBand(t *testing.T) {
	assert.Equal(t, "", SizeBand(0))
	assert.Equal(t, "1-10", SizeBand(9))
	assert.Equal(t, "11-50", SizeBand(10))
	assert.Equal(t, "51-200", SizeBand(150))
	assert.Equal(t, "201-500", SizeBand(200))
	assert.Equal(t, "501-1000", SizeBand(999))
	assert.Equal(t, "1000+", SizeBand(1000))
}
