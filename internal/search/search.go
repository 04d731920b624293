// Package search discovers candidate companies. Each source tries its live
// provider first and falls back to a curated dataset slice when the
// provider is unconfigured, empty, or failing.
package search

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/internal/textnorm"
)

// Paths report which branch produced a source's candidates.
const (
	PathLive    = "live"
	PathCurated = "curated"
)

// DefaultLimit applies when Criteria.Limit is not positive.
const DefaultLimit = 20

// Criteria filters a search.
type Criteria struct {
	Industries []string
	Regions    []string
	Limit      int
}

func (c Criteria) limit() int {
	if c.Limit <= 0 {
		return DefaultLimit
	}
	return c.Limit
}

// Result is the output of one adapter call.
type Result struct {
	Candidates []model.Candidate
	Path       string
}

// Adapter discovers candidates from one named source.
type Adapter interface {
	Name() string
	Search(ctx context.Context, c Criteria) (Result, error)
}

// LiveSearcher queries an external provider.
type LiveSearcher interface {
	Search(ctx context.Context, c Criteria) ([]model.Candidate, error)
}

// FallbackAdapter runs a live searcher and falls back to curated data.
type FallbackAdapter struct {
	name    string
	live    LiveSearcher
	curated *Dataset
	source  string
	log     *zap.Logger
}

// NewFallbackAdapter builds an adapter named name. live may be nil when the
// provider is unconfigured; curated records are restricted to source.
func NewFallbackAdapter(name string, live LiveSearcher, curated *Dataset, source string) *FallbackAdapter {
	return &FallbackAdapter{
		name:    name,
		live:    live,
		curated: curated,
		source:  source,
		log:     zap.L().With(zap.String("source", name)),
	}
}

// Name returns the source name.
func (a *FallbackAdapter) Name() string { return a.name }

// Search returns at most c.Limit candidates with distinct normalized company
// names. It only fails when ctx ends.
func (a *FallbackAdapter) Search(ctx context.Context, c Criteria) (Result, error) {
	var attempts []provider.Attempt[Criteria, []model.Candidate]
	if a.live != nil {
		attempts = append(attempts, provider.Attempt[Criteria, []model.Candidate]{
			Name:   PathLive,
			Run:    a.live.Search,
			Accept: func(cs []model.Candidate) bool { return len(cs) > 0 },
		})
	}
	attempts = append(attempts, provider.Attempt[Criteria, []model.Candidate]{
		Name: PathCurated,
		Run: func(_ context.Context, c Criteria) ([]model.Candidate, error) {
			return a.curated.Filter(a.source, c.Industries, c.Regions), nil
		},
	})

	out, err := provider.FirstSuccess(ctx, attempts, c)
	if err != nil {
		return Result{}, eris.Wrapf(err, "search: %s", a.name)
	}

	if out.Name == PathCurated && a.live != nil {
		fields := []zap.Field{zap.Int("live_errors", len(out.Errors))}
		if len(out.Errors) > 0 {
			fields = append(fields, zap.Error(out.Errors[0]))
		}
		a.log.Info("search: live provider unavailable or empty, using curated dataset", fields...)
	}

	cands := Dedup(out.Value)
	if n := c.limit(); len(cands) > n {
		cands = cands[:n]
	}

	a.log.Info("search: source searched",
		zap.String("path", out.Name),
		zap.Int("candidates", len(cands)),
	)
	return Result{Candidates: cands, Path: out.Name}, nil
}

// Dedup keeps the first candidate of each normalized company name, in
// input order. Candidates without a usable name are dropped.
func Dedup(cands []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		key := textnorm.Key(c.DisplayName())
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
