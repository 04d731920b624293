package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/pkg/apollo"
	"github.com/sells-group/lead-prospector/pkg/apollo/mocks"
)

func apolloErr(kind provider.Kind, status int) error {
	return provider.NewError("apollo", kind, status, errors.New("apollo error"))
}

var lalaOrg = &apollo.Organization{
	ID:                    "org-1",
	Name:                  "Grupo LALA",
	WebsiteURL:            "http://www.lala.com.mx",
	LinkedInURL:           "http://www.linkedin.com/company/grupo-lala",
	PrimaryDomain:         "lala.com.mx",
	Industry:              "dairy",
	EstimatedNumEmployees: 35000,
	Phone:                 "+52 871 729 9000",
}

func TestApolloProvider_OrganizationAndPeople(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient(t)
	client.On("EnrichOrganization", mock.Anything, "grupolala.com").Return(lalaOrg, nil).Once()
	client.On("SearchPeople", mock.Anything, apollo.PeopleQuery{
		OrganizationName: "Grupo LALA",
		OrganizationIDs:  []string{"org-1"},
		Titles:           catalog.TargetTitles,
		PerPage:          10,
	}).Return(&apollo.PeopleResponse{People: []apollo.Person{
		{FirstName: "Ana", LastName: "Ruiz", Title: "Gerente de Mantenimiento", Email: "ana.ruiz@lala.com.mx", EmailStatus: "verified", City: "Torreón", Country: "Mexico"},
		{Name: "Luis Soto", Title: "Jefe de Compras", Email: "email_not_unlocked@domain.com", EmailStatus: "locked"},
		{Title: "Sin nombre"},
	}}, nil).Once()

	p := NewApolloProvider(client, provider.Options{})
	got, err := p.Enrich(context.Background(), lala)
	require.NoError(t, err)

	assert.Equal(t, "http://www.lala.com.mx", got.CompanyURL)
	assert.Equal(t, "lala.com.mx", got.Domain)
	assert.Equal(t, "1000+", got.CompanySize)
	assert.Equal(t, []string{"+52 871 729 9000"}, got.Phones)
	require.Len(t, got.Contacts, 2)
	assert.Equal(t, model.Contact{
		Name:        "Ana Ruiz",
		Title:       "Gerente de Mantenimiento",
		Email:       "ana.ruiz@lala.com.mx",
		EmailStatus: "verified",
		Location:    got.Contacts[0].Location,
		Source:      "apollo",
	}, got.Contacts[0])
	assert.Empty(t, got.Contacts[1].Email)
	assert.Equal(t, "unavailable", got.Contacts[1].EmailStatus)
}

func TestApolloProvider_PlanLimitationDisablesPeopleSearch(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient(t)
	client.On("EnrichOrganization", mock.Anything, "grupolala.com").Return(lalaOrg, nil).Once()
	client.On("EnrichOrganization", mock.Anything, "alpura.com").Return(&apollo.Organization{Name: "Alpura"}, nil).Once()
	client.On("SearchPeople", mock.Anything, mock.Anything).Return(nil, apolloErr(provider.KindPlanLimitation, 403)).Once()

	p := NewApolloProvider(client, provider.Options{})
	require.True(t, p.PeopleSearchEnabled())

	got, err := p.Enrich(context.Background(), lala)
	require.NoError(t, err)
	assert.Empty(t, got.Contacts)
	assert.Equal(t, "dairy", got.Industry)
	assert.False(t, p.PeopleSearchEnabled())

	got, err = p.Enrich(context.Background(), model.Candidate{Company: "Alpura"})
	require.NoError(t, err)
	assert.Empty(t, got.Contacts)
	client.AssertNumberOfCalls(t, "SearchPeople", 1)
}

func TestApolloProvider_TriesGuessedDomainsInOrder(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient(t)
	client.On("EnrichOrganization", mock.Anything, "grupolala.com").Return(nil, apolloErr(provider.KindNotFound, 404)).Once()
	client.On("EnrichOrganization", mock.Anything, "lala.com.mx").Return(&apollo.Organization{}, nil).Once()
	client.On("EnrichOrganization", mock.Anything, "grupolala.com.mx").Return(&apollo.Organization{Name: "LALA"}, nil).Once()
	client.On("SearchPeople", mock.Anything, mock.Anything).Return(&apollo.PeopleResponse{}, nil).Once()

	got, err := NewApolloProvider(client, provider.Options{}).Enrich(context.Background(), lala)
	require.NoError(t, err)
	assert.Equal(t, "grupolala.com.mx", got.Domain)
}

func TestApolloProvider_WebsiteDomainFirst(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient(t)
	client.On("EnrichOrganization", mock.Anything, "quesosdonjose.mx").Return(&apollo.Organization{Name: "Quesería Don José"}, nil).Once()
	client.On("SearchPeople", mock.Anything, mock.Anything).Return(nil, apolloErr(provider.KindRateLimited, 429)).Once()

	c := model.Candidate{Company: "Quesería Don José", Website: "https://www.quesosdonjose.mx/"}
	got, err := NewApolloProvider(client, provider.Options{}).Enrich(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "quesosdonjose.mx", got.Domain)
	assert.Empty(t, got.Contacts)
}

func TestApolloProvider_UnauthorizedStops(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient(t)
	client.On("EnrichOrganization", mock.Anything, "grupolala.com").Return(nil, apolloErr(provider.KindUnauthorized, 401)).Once()

	p := NewApolloProvider(client, provider.Options{})
	_, err := p.Enrich(context.Background(), lala)
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindUnauthorized))

	_, err = p.Enrich(context.Background(), lala)
	assert.True(t, provider.IsKind(err, provider.KindUnauthorized))
	client.AssertNumberOfCalls(t, "EnrichOrganization", 1)
}

func TestApolloProvider_NoOrganization(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockClient(t)
	client.On("EnrichOrganization", mock.Anything, mock.Anything).Return(nil, apolloErr(provider.KindNotFound, 404))

	got, err := NewApolloProvider(client, provider.Options{}).Enrich(context.Background(), lala)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	client.AssertNumberOfCalls(t, "EnrichOrganization", 4)
}

func TestCandidateDomains(t *testing.T) {
	t.Parallel()

	c := model.Candidate{Company: "Grupo LALA", Email: "compras@lala.com.mx", Website: "grupolala.com"}
	assert.Equal(t, []string{"grupolala.com", "lala.com.mx", "grupolala.com.mx"}, candidateDomains(c, 3))

	c = model.Candidate{Company: "Alpura", Email: "alpura@gmail.com"}
	assert.Equal(t, []string{"alpura.com", "alpura.com.mx"}, candidateDomains(c, 2))
}
