package enrich

import (
	"context"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/internal/textnorm"
	"github.com/sells-group/lead-prospector/pkg/linkedin"
)

const (
	linkedInName        = "linkedin"
	linkedInMaxContacts = 5
)

// LinkedInProvider reads the candidate's LinkedIn company page and keeps the
// employees whose title marks a maintenance, purchasing, or plant role.
type LinkedInProvider struct {
	client linkedin.Client
	calls  *provider.Client[*linkedin.Company]
}

// NewLinkedInProvider wraps client with the rate limit and cache in opts.
func NewLinkedInProvider(client linkedin.Client, opts provider.Options) *LinkedInProvider {
	if opts.Name == "" {
		opts.Name = linkedInName
	}
	return &LinkedInProvider{
		client: client,
		calls:  provider.NewClient[*linkedin.Company](opts),
	}
}

// Name implements Provider.
func (l *LinkedInProvider) Name() string { return linkedInName }

// Enrich implements Provider.
func (l *LinkedInProvider) Enrich(ctx context.Context, c model.Candidate) (model.Enrichment, error) {
	name := c.DisplayName()
	if name == "" {
		return model.Enrichment{}, nil
	}
	co, err := l.calls.Lookup(ctx, name, func(ctx context.Context) (*linkedin.Company, error) {
		return l.client.CompanyProfile(ctx, name, true)
	})
	if err != nil || co == nil {
		return model.Enrichment{}, err
	}

	out := model.Enrichment{
		CompanyURL:  co.Website,
		LinkedInURL: co.URL,
		Domain:      DomainFromURL(co.Website),
		Industry:    co.Industry,
		CompanySize: co.Size,
	}
	for _, e := range co.Employees {
		if len(out.Contacts) == linkedInMaxContacts {
			break
		}
		title := firstNonEmpty(e.Title, e.Headline)
		if !textnorm.ContainsAny(title, catalog.ContactTitleKeywords) {
			continue
		}
		out.Contacts = append(out.Contacts, model.Contact{
			Name:        e.Name,
			Title:       title,
			LinkedInURL: e.URL,
			Location:    e.Location,
			Source:      linkedInName,
		})
	}
	return out, nil
}
