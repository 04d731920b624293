package enrich

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/pkg/apollo"
)

const (
	apolloName       = "apollo"
	apolloMaxGuesses = 4
	apolloPerPage    = 10
)

// freeMailDomains are never treated as a company domain.
var freeMailDomains = []string{"gmail.com", "hotmail.com", "outlook.com", "yahoo.com", "yahoo.com.mx", "live.com.mx", "prodigy.net.mx"}

// ApolloProvider resolves the candidate's organization by domain, then
// searches it for decision-makers. People search is switched off for the
// rest of the process once the plan rejects it.
type ApolloProvider struct {
	client    apollo.Client
	calls     *provider.Client[any]
	peopleOff atomic.Bool
	log       *zap.Logger
}

// NewApolloProvider wraps client. Organization and people lookups share the
// rate budget configured by opts.
func NewApolloProvider(client apollo.Client, opts provider.Options) *ApolloProvider {
	if opts.Name == "" {
		opts.Name = apolloName
	}
	return &ApolloProvider{
		client: client,
		calls:  provider.NewClient[any](opts),
		log:    zap.L().With(zap.String("component", "enrich.apollo")),
	}
}

// Name implements Provider.
func (a *ApolloProvider) Name() string { return apolloName }

// PeopleSearchEnabled reports whether people search is still attempted.
func (a *ApolloProvider) PeopleSearchEnabled() bool { return !a.peopleOff.Load() }

// Enrich implements Provider.
func (a *ApolloProvider) Enrich(ctx context.Context, c model.Candidate) (model.Enrichment, error) {
	org, domain, err := a.findOrganization(ctx, c)
	if err != nil {
		return model.Enrichment{}, err
	}
	if org == nil {
		return model.Enrichment{}, nil
	}

	out := model.Enrichment{
		CompanyURL:  org.WebsiteURL,
		LinkedInURL: org.LinkedInURL,
		Domain:      firstNonEmpty(org.PrimaryDomain, domain),
		Industry:    org.Industry,
		CompanySize: apollo.SizeBand(org.EstimatedNumEmployees),
	}
	if org.Phone != "" {
		out.Phones = []string{org.Phone}
	}
	if a.peopleOff.Load() {
		return out, nil
	}

	q := apollo.PeopleQuery{
		OrganizationName: firstNonEmpty(org.Name, c.DisplayName()),
		Titles:           catalog.TargetTitles,
		PerPage:          apolloPerPage,
	}
	if org.ID != "" {
		q.OrganizationIDs = []string{org.ID}
	}
	resp, err := lookup(ctx, a.calls, "people "+firstNonEmpty(org.ID, q.OrganizationName), func(ctx context.Context) (*apollo.PeopleResponse, error) {
		return a.client.SearchPeople(ctx, q)
	})
	switch {
	case provider.IsKind(err, provider.KindPlanLimitation):
		if !a.peopleOff.Swap(true) {
			a.log.Info("enrich: apollo people search unavailable on plan, continuing with organization data only")
		}
		return out, nil
	case err != nil:
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		a.log.Info("enrich: apollo people search failed", zap.String("company", c.DisplayName()), zap.Error(err))
		return out, nil
	case resp == nil:
		return out, nil
	}

	for _, p := range resp.People {
		name := p.FullName()
		if name == "" {
			continue
		}
		email := p.Email
		status := p.EmailStatus
		if strings.HasPrefix(email, "email_not_unlocked") {
			email, status = "", "unavailable"
		}
		out.Contacts = append(out.Contacts, model.Contact{
			Name:        name,
			Title:       p.Title,
			Email:       email,
			EmailStatus: status,
			Phone:       p.Phone(),
			LinkedInURL: p.LinkedInURL,
			Location:    p.Location(),
			Source:      apolloName,
		})
	}
	return out, nil
}

// findOrganization tries the candidate's own domain first and then up to
// apolloMaxGuesses guessed domains. Credential failures stop the search.
func (a *ApolloProvider) findOrganization(ctx context.Context, c model.Candidate) (*apollo.Organization, string, error) {
	var lastErr error
	for _, d := range candidateDomains(c, apolloMaxGuesses) {
		org, err := lookup(ctx, a.calls, "org "+d, func(ctx context.Context) (*apollo.Organization, error) {
			return a.client.EnrichOrganization(ctx, d)
		})
		if err != nil {
			if ctx.Err() != nil || provider.IsKind(err, provider.KindUnauthorized) {
				return nil, "", err
			}
			lastErr = err
			continue
		}
		if org != nil && org.Name != "" {
			return org, d, nil
		}
	}
	return nil, "", lastErr
}

// candidateDomains returns the website domain, the email domain, and up to
// maxGuesses guessed domains, without duplicates.
func candidateDomains(c model.Candidate, maxGuesses int) []string {
	var out []string
	out = appendUnique(out, DomainFromURL(c.Website))
	if at := strings.LastIndex(c.Email, "@"); at >= 0 {
		d := strings.ToLower(strings.TrimSpace(c.Email[at+1:]))
		if !slices.Contains(freeMailDomains, d) {
			out = appendUnique(out, d)
		}
	}
	guesses := GuessDomains(c.DisplayName())
	return appendUnique(out, guesses[:min(maxGuesses, len(guesses))]...)
}

// lookup runs a typed request through a provider client shared across
// response types.
func lookup[T any](ctx context.Context, calls *provider.Client[any], key string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := calls.Lookup(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	t, _ := v.(T)
	return t, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
