package search

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/pkg/google"
)

const (
	placesTermsPerIndustry = 2
	placesCitiesPerRegion  = 3
	placesMaxQueries       = 10
)

// PlacesSearcher is the live provider of the Google Maps source.
type PlacesSearcher struct {
	client google.Client
	calls  *provider.Client[*google.TextSearchResponse]
}

// NewPlacesSearcher wraps client. calls carries the provider's rate limit
// and cache.
func NewPlacesSearcher(client google.Client, calls *provider.Client[*google.TextSearchResponse]) *PlacesSearcher {
	return &PlacesSearcher{client: client, calls: calls}
}

type placesQuery struct {
	industry string
	term     string
}

func placesQueries(industries []string) []placesQuery {
	if len(industries) == 0 {
		industries = catalog.IndustryIDs()
	}
	var out []placesQuery
	for _, id := range industries {
		ind, ok := catalog.IndustryByID(id)
		if !ok {
			continue
		}
		for _, term := range ind.SearchTerms[:min(placesTermsPerIndustry, len(ind.SearchTerms))] {
			out = append(out, placesQuery{industry: id, term: term})
		}
	}
	return out
}

// Search runs location-biased text searches, at most placesMaxQueries per
// call, and skips places already seen.
func (s *PlacesSearcher) Search(ctx context.Context, c Criteria) ([]model.Candidate, error) {
	regions := c.Regions
	if len(regions) == 0 {
		regions = []string{"mexico"}
	}
	cities := catalog.CitiesFor(regions, placesCitiesPerRegion)
	if len(cities) == 0 {
		cities = catalog.CitiesFor([]string{"mexico"}, 1)
	}
	limit := c.limit()

	var (
		out     []model.Candidate
		lastErr error
		queries int
	)
	seen := map[string]struct{}{}
	for _, q := range placesQueries(c.Industries) {
		for _, city := range cities {
			if len(out) >= limit || queries >= placesMaxQueries {
				return out, nil
			}
			queries++

			req := google.TextSearchRequest{
				TextQuery:    q.term,
				LanguageCode: "es",
				LocationBias: &google.LocationBias{Circle: google.Circle{
					Center: google.LatLng{Latitude: city.Lat, Longitude: city.Lng},
					Radius: float64(city.RadiusM),
				}},
			}
			key := fmt.Sprintf("%s|%s", q.term, city.Name)
			resp, err := s.calls.Lookup(ctx, key, func(ctx context.Context) (*google.TextSearchResponse, error) {
				return s.client.TextSearch(ctx, req)
			})
			if err != nil {
				if provider.IsKind(err, provider.KindUnauthorized) || ctx.Err() != nil {
					return out, err
				}
				zap.L().Debug("search: places query failed",
					zap.String("term", q.term),
					zap.String("city", city.Name),
					zap.Error(err),
				)
				lastErr = err
				continue
			}
			if resp == nil {
				continue
			}
			for _, p := range resp.Places {
				if len(out) >= limit {
					break
				}
				if _, dup := seen[p.ID]; dup {
					continue
				}
				seen[p.ID] = struct{}{}
				out = append(out, fromPlace(p, q.industry))
			}
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func fromPlace(p google.Place, industry string) model.Candidate {
	sourceURL := p.GoogleMapsURI
	if sourceURL == "" {
		sourceURL = "https://www.google.com/maps/place/?q=place_id:" + url.QueryEscape(p.ID)
	}
	return model.Candidate{
		Name:        p.DisplayName.Text,
		Company:     CompanyName(p.DisplayName.Text),
		Phone:       p.Phone(),
		Website:     p.WebsiteURI,
		Industry:    industry,
		Location:    p.FormattedAddress,
		CompanySize: SizeFromPlaceTypes(p.Types),
		Source:      model.SourceGoogleMaps,
		SourceURL:   sourceURL,
		RawData: map[string]any{
			"place_id": p.ID,
			"types":    p.Types,
			"rating":   p.Rating,
		},
	}
}
