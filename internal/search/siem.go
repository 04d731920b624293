package search

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/internal/textnorm"
	"github.com/sells-group/lead-prospector/pkg/denue"
)

const (
	denueMapURL        = "https://www.inegi.org.mx/app/mapa/denue/"
	denueCitiesPerTerm = 3
	denueMaxQueries    = 9
)

// DENUESearcher is the live provider of the SIEM source: INEGI's national
// business directory, queried by industry keyword around industrial cities.
type DENUESearcher struct {
	client  denue.Client
	calls   *provider.Client[[]denue.Establishment]
	radiusM int
}

// NewDENUESearcher wraps client. calls carries the provider's rate limit and
// cache.
func NewDENUESearcher(client denue.Client, calls *provider.Client[[]denue.Establishment], radiusM int) *DENUESearcher {
	if radiusM <= 0 {
		radiusM = 10000
	}
	return &DENUESearcher{client: client, calls: calls, radiusM: radiusM}
}

type denueQuery struct {
	industry string
	keyword  string
}

func denueQueries(industries []string) []denueQuery {
	if len(industries) == 0 {
		industries = catalog.IndustryIDs()
	}
	var out []denueQuery
	for _, id := range industries {
		ind, ok := catalog.IndustryByID(id)
		if !ok || len(ind.Keywords) == 0 {
			continue
		}
		out = append(out, denueQuery{industry: id, keyword: textnorm.Fold(ind.Keywords[0])})
	}
	return out
}

// Search queries DENUE. The directory only covers Mexico, so criteria
// excluding the mexico region yield nothing.
func (s *DENUESearcher) Search(ctx context.Context, c Criteria) ([]model.Candidate, error) {
	if len(c.Regions) > 0 && !slices.Contains(c.Regions, "mexico") {
		return nil, nil
	}

	cities := catalog.CitiesFor([]string{"mexico"}, denueCitiesPerTerm)
	limit := c.limit()

	var (
		out     []model.Candidate
		lastErr error
		queries int
	)
	for _, q := range denueQueries(c.Industries) {
		for _, city := range cities {
			if len(out) >= limit || queries >= denueMaxQueries {
				return out, nil
			}
			queries++

			req := denue.SearchRequest{Keyword: q.keyword, Lat: city.Lat, Lng: city.Lng, RadiusM: s.radiusM}
			key := fmt.Sprintf("%s|%.4f,%.4f|%d", req.Keyword, req.Lat, req.Lng, req.RadiusM)
			ests, err := s.calls.Lookup(ctx, key, func(ctx context.Context) ([]denue.Establishment, error) {
				return s.client.Search(ctx, req)
			})
			if err != nil {
				if provider.IsKind(err, provider.KindUnauthorized) || ctx.Err() != nil {
					return out, err
				}
				zap.L().Debug("search: denue query failed",
					zap.String("keyword", q.keyword),
					zap.String("city", city.Name),
					zap.Error(err),
				)
				lastErr = err
				continue
			}
			for _, e := range ests {
				out = append(out, fromEstablishment(e, q.industry))
			}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func fromEstablishment(e denue.Establishment, industry string) model.Candidate {
	name := e.LegalName
	if name == "" {
		name = e.Name
	}
	company := e.Name
	if company == "" {
		company = e.LegalName
	}
	phone := ""
	if e.Phone != "" {
		phone = NormalizePhone(e.Phone)
	}

	return model.Candidate{
		Name:        name,
		Company:     CompanyName(company),
		Email:       e.Email,
		Phone:       phone,
		Website:     e.Website,
		Industry:    industry,
		Location:    joinNonEmpty(", ", textnorm.Join(e.Street, e.ExteriorNum), e.Neighborhood, e.Locality, "México"),
		CompanySize: SizeFromStratum(e.Stratum),
		Source:      model.SourceDENUE,
		SourceURL:   denueMapURL,
		RawData: map[string]any{
			"id":    e.ID,
			"clee":  e.CLEE,
			"scian": e.ActivityClass,
			"lat":   e.Lat,
			"lng":   e.Lng,
		},
	}
}
