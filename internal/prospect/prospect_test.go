package prospect

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-prospector/internal/metrics"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/qualify"
	"github.com/sells-group/lead-prospector/internal/scorer"
	"github.com/sells-group/lead-prospector/internal/search"
	"github.com/sells-group/lead-prospector/internal/store"
)

type fakeAdapter struct {
	name   string
	cands  []model.Candidate
	err    error
	panics bool
	onCall func()

	mu       sync.Mutex
	criteria []search.Criteria
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Search(_ context.Context, c search.Criteria) (search.Result, error) {
	a.mu.Lock()
	a.criteria = append(a.criteria, c)
	a.mu.Unlock()
	if a.onCall != nil {
		a.onCall()
	}
	if a.panics {
		panic("adapter exploded")
	}
	if a.err != nil {
		return search.Result{}, a.err
	}
	return search.Result{Candidates: a.cands, Path: search.PathLive}, nil
}

func (a *fakeAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.criteria)
}

// fakeQualifier scores candidates from a fixed table keyed by company.
type fakeQualifier struct {
	scores    map[string]int
	fallbacks int
	panics    bool
	usage     model.TokenUsage
}

func (q *fakeQualifier) QualifyBatch(_ context.Context, items []qualify.Item) qualify.BatchResult {
	if q.panics {
		panic("model client exploded")
	}
	out := qualify.BatchResult{Fallbacks: q.fallbacks}
	for _, it := range items {
		score := q.scores[it.Candidate.Company]
		out.Results = append(out.Results, qualify.Result{
			Result: scorer.Result{
				Score:     score,
				Category:  model.CategoryFor(score),
				Breakdown: model.NewScoreBreakdown(model.Demographic{Industry: 15}, model.Intent{}, model.Engagement{}),
			},
			Method: qualify.MethodLLM,
		})
	}
	q.usage.Calls++
	q.usage.InputTokens += 1200
	q.usage.OutputTokens += 300
	return out
}

func (q *fakeQualifier) Usage() model.TokenUsage { return q.usage }

type fakeEnricher struct {
	byCompany map[string]model.Enrichment
	onCall    func(model.Candidate)
	calls     int
}

func (e *fakeEnricher) Enrich(_ context.Context, c model.Candidate) model.Enrichment {
	e.calls++
	if e.onCall != nil {
		e.onCall(c)
	}
	if enr, ok := e.byCompany[c.Company]; ok {
		return enr
	}
	return model.Enrichment{Contacts: []model.Contact{}}
}

// spyRepo wraps a real store and injects failures.
type spyRepo struct {
	Repository
	createErr error
	failEmail string
	upserts   int
	companies []string
}

func (r *spyRepo) CreateRun(ctx context.Context, agentType string, cfg model.RunConfig) (*model.Run, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.Repository.CreateRun(ctx, agentType, cfg)
}

func (r *spyRepo) Upsert(ctx context.Context, in store.UpsertInput) (store.UpsertResult, error) {
	r.upserts++
	r.companies = append(r.companies, in.Candidate.Company)
	if ctx.Err() != nil {
		return store.UpsertResult{}, ctx.Err()
	}
	if r.failEmail != "" && in.Candidate.Email == r.failEmail {
		return store.UpsertResult{}, &store.PersistenceError{Op: "insert", Email: in.Candidate.Email, Err: errors.New("disk full")}
	}
	return r.Repository.Upsert(ctx, in)
}

func newRepo(t *testing.T) *spyRepo {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "prospect.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return &spyRepo{Repository: s}
}

func siemAdapter() *fakeAdapter {
	return &fakeAdapter{name: search.SourceSIEM, cands: []model.Candidate{
		{Company: "Lácteos del Norte", Email: "compras@lacteosnorte.mx", Industry: "dairy", Location: "Monterrey, Nuevo León", Source: model.SourceSIEM},
		{Company: "Taller Pequeño", Industry: "otros", Location: "Madrid", Source: model.SourceSIEM},
	}}
}

func mapsAdapter() *fakeAdapter {
	return &fakeAdapter{name: search.SourceGoogleMaps, cands: []model.Candidate{
		{Company: "Frigorífico del Sur", Industry: "cold_storage", Location: "Mérida, Yucatán", Source: model.SourceGoogleMaps},
	}}
}

func defaultScores() *fakeQualifier {
	return &fakeQualifier{scores: map[string]int{
		"Lácteos del Norte":   85,
		"Taller Pequeño":      20,
		"Frigorífico del Sur": 65,
	}}
}

func runConfig(sources ...string) model.RunConfig {
	return model.RunConfig{
		Industries: []string{"dairy", "cold_storage"},
		Regions:    []string{"mexico"},
		MaxLeads:   10,
		Sources:    sources,
		MinScore:   40,
	}
}

func TestRun_PersistsQualifiedLeads(t *testing.T) {
	repo := newRepo(t)
	enricher := &fakeEnricher{byCompany: map[string]model.Enrichment{
		"Frigorífico del Sur": {
			Contacts:      []model.Contact{},
			Domain:        "frisur.mx",
			GuessedEmails: []string{"ventas@frisur.mx", "info@frisur.mx"},
			Phones:        []string{"+52 999 123 4567"},
		},
	}}
	rec := metrics.New()
	o := New(search.NewRegistry(siemAdapter(), mapsAdapter()), defaultScores(), enricher, repo,
		WithMetrics(rec), WithAgentID("agent-7"))

	run, err := o.Run(context.Background(), runConfig(model.SourceAll))
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.Results.LeadsProcessed)
	assert.Equal(t, 2, run.Results.LeadsCreated)
	assert.Equal(t, 0, run.Results.LeadsUpdated)
	assert.Equal(t, 1, run.Results.LeadsByCategory[model.CategoryHot])
	assert.Equal(t, 1, run.Results.LeadsByCategory[model.CategoryWarm])
	assert.Equal(t, 1, run.Results.LeadsByCategory[model.CategoryDiscard])
	assert.Equal(t, 2, run.LeadsFound)
	assert.Equal(t, 2, run.LeadsQualified)
	assert.Empty(t, run.Results.Errors)
	assert.Equal(t, 2, enricher.calls)

	require.Len(t, run.Results.Sources, 2)
	assert.Equal(t, model.SourceCount{Name: search.SourceSIEM, LeadsFound: 2, Path: search.PathLive}, run.Results.Sources[0])
	assert.Equal(t, search.SourceGoogleMaps, run.Results.Sources[1].Name)

	require.Len(t, run.Results.HotLeads, 1)
	assert.Equal(t, "Lácteos del Norte", run.Results.HotLeads[0].Company)

	require.NotNil(t, run.Results.TokenUsage)
	assert.Equal(t, 2, run.Results.TokenUsage.Calls)

	lead, err := repo.GetLeadByEmail(context.Background(), "ventas@frisur.mx")
	require.NoError(t, err)
	assert.Equal(t, "Frigorífico del Sur", lead.Company)
	assert.Equal(t, "+52 999 123 4567", lead.Phone)
	assert.Equal(t, "https://frisur.mx", lead.Website)
	assert.Equal(t, store.LeadSourcePrefix+model.SourceGoogleMaps, lead.Source)
	assert.Equal(t, "agent-7", lead.AssignedAgent)
	assert.Equal(t, run.ID, lead.RunID)

	stored, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.LeadsFound)
	assert.Equal(t, 2, stored.LeadsQualified)
	assert.NotNil(t, stored.CompletedAt)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	repo := newRepo(t)
	o := New(search.NewRegistry(siemAdapter()), defaultScores(), nil, repo)

	first, err := o.Run(context.Background(), runConfig(search.SourceSIEM))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Results.LeadsCreated)

	second, err := o.Run(context.Background(), runConfig(search.SourceSIEM))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Results.LeadsCreated)
	assert.Equal(t, 0, second.Results.LeadsUpdated)

	higher := defaultScores()
	higher.scores["Lácteos del Norte"] = 92
	third, err := New(search.NewRegistry(siemAdapter()), higher, nil, repo).Run(context.Background(), runConfig(search.SourceSIEM))
	require.NoError(t, err)
	assert.Equal(t, 1, third.Results.LeadsUpdated)

	lead, err := repo.GetLeadByEmail(context.Background(), "compras@lacteosnorte.mx")
	require.NoError(t, err)
	assert.Equal(t, 92, lead.Score)
}

func TestRun_DryRunNeverPersists(t *testing.T) {
	repo := newRepo(t)
	o := New(search.NewRegistry(siemAdapter(), mapsAdapter()), defaultScores(), &fakeEnricher{}, repo)

	cfg := runConfig(model.SourceAll)
	cfg.DryRun = true
	run, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Zero(t, repo.upserts)
	assert.Zero(t, run.Results.LeadsCreated)
	assert.Zero(t, run.Results.LeadsUpdated)
	assert.True(t, run.Results.DryRun)
	assert.Equal(t, 2, run.Results.Qualified())
	assert.Equal(t, 0, run.LeadsFound)
}

func TestRun_SearchErrorSkipsOnlyThatSource(t *testing.T) {
	repo := newRepo(t)
	broken := &fakeAdapter{name: search.SourceSIEM, err: errors.New("denue: 503")}
	rec := metrics.New()
	o := New(search.NewRegistry(broken, mapsAdapter()), defaultScores(), nil, repo, WithMetrics(rec))

	run, err := o.Run(context.Background(), runConfig(model.SourceAll))
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.Len(t, run.Results.Errors, 1)
	assert.Equal(t, "Search error: siem: denue: 503", run.Results.Errors[0])
	assert.Equal(t, 1, run.Results.LeadsCreated)
	require.Len(t, run.Results.Sources, 1)
	assert.Equal(t, search.SourceGoogleMaps, run.Results.Sources[0].Name)
}

func TestRun_UnknownSourceIsRecorded(t *testing.T) {
	repo := newRepo(t)
	o := New(search.NewRegistry(siemAdapter()), defaultScores(), nil, repo)

	run, err := o.Run(context.Background(), runConfig("linkedin_ads", search.SourceSIEM))
	require.NoError(t, err)

	require.Len(t, run.Results.Errors, 1)
	assert.True(t, strings.HasPrefix(run.Results.Errors[0], "Search error: linkedin_ads:"))
	assert.Equal(t, 1, run.Results.LeadsCreated)
}

func TestRun_PerSourceLimit(t *testing.T) {
	repo := newRepo(t)
	a, b := siemAdapter(), mapsAdapter()
	o := New(search.NewRegistry(a, b), defaultScores(), nil, repo)

	cfg := runConfig(model.SourceAll)
	cfg.MaxLeads = 5
	_, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Equal(t, 1, a.calls())
	assert.Equal(t, 3, a.criteria[0].Limit)
	assert.Equal(t, []string{"dairy", "cold_storage"}, a.criteria[0].Industries)
	assert.Equal(t, 3, b.criteria[0].Limit)
}

func TestRun_CreateRunFailure(t *testing.T) {
	repo := newRepo(t)
	repo.createErr = errors.New("connection refused")
	o := New(search.NewRegistry(siemAdapter()), defaultScores(), nil, repo)

	run, err := o.Run(context.Background(), runConfig(search.SourceSIEM))
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_PersistenceErrorIsPerCandidate(t *testing.T) {
	repo := newRepo(t)
	repo.failEmail = "compras@lacteosnorte.mx"
	o := New(search.NewRegistry(siemAdapter(), mapsAdapter()), defaultScores(), nil, repo)

	run, err := o.Run(context.Background(), runConfig(model.SourceAll))
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Results.LeadsCreated)
	require.Len(t, run.Results.Errors, 1)
	assert.Contains(t, run.Results.Errors[0], "Lácteos del Norte")
	assert.Contains(t, run.Results.Errors[0], "disk full")
}

func TestRun_QualifierPanicIsPerSource(t *testing.T) {
	repo := newRepo(t)
	q := defaultScores()
	q.panics = true
	o := New(search.NewRegistry(siemAdapter()), q, nil, repo)

	run, err := o.Run(context.Background(), runConfig(search.SourceSIEM))
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Results.LeadsProcessed)
	assert.Equal(t, []string{"Qualify error: Lácteos del Norte", "Qualify error: Taller Pequeño"}, run.Results.Errors)
}

func TestRun_CancellationFinishesInFlightCandidate(t *testing.T) {
	repo := newRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	siem := &fakeAdapter{name: search.SourceSIEM, cands: []model.Candidate{
		{Company: "Lácteos del Norte", Email: "compras@lacteosnorte.mx", Source: model.SourceSIEM},
		{Company: "Frigorífico del Sur", Email: "ventas@frisur.mx", Source: model.SourceSIEM},
	}}
	maps := mapsAdapter()
	enricher := &fakeEnricher{onCall: func(model.Candidate) { cancel() }}
	o := New(search.NewRegistry(siem, maps), defaultScores(), enricher, repo)

	run, err := o.Run(ctx, runConfig(model.SourceAll))
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.True(t, run.Results.Cancelled)
	assert.Equal(t, 1, run.Results.LeadsCreated)
	assert.Equal(t, 1, run.Results.LeadsProcessed)
	assert.Zero(t, maps.calls())
	require.NotEmpty(t, run.Results.Errors)
	assert.Contains(t, run.Results.Errors[len(run.Results.Errors)-1], "Run cancelled")

	stored, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	assert.True(t, stored.Results.Cancelled)
}

func TestRun_PanicMarksRunFailed(t *testing.T) {
	repo := newRepo(t)
	o := New(search.NewRegistry(&fakeAdapter{name: search.SourceSIEM, panics: true}), defaultScores(), nil, repo)

	run, err := o.Run(context.Background(), runConfig(search.SourceSIEM))
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "adapter exploded")

	stored, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "adapter exploded")
}

func TestRun_DeterministicScenarioDiscardsBelowMinScore(t *testing.T) {
	repo := newRepo(t)
	adapter := &fakeAdapter{name: search.SourceSIEM, cands: []model.Candidate{{
		Company:     "Lácteos X",
		Industry:    "dairy",
		Location:    "Monterrey, México",
		CompanySize: "100-250",
		Source:      model.SourceSIEM,
	}}}
	q := qualify.New(nil, qualify.Config{Mode: qualify.ModeDeterministic})
	o := New(search.NewRegistry(adapter), q, nil, repo)

	run, err := o.Run(context.Background(), runConfig(search.SourceSIEM))
	require.NoError(t, err)

	assert.Equal(t, 1, run.Results.LeadsByCategory[model.CategoryDiscard])
	assert.Zero(t, run.Results.LeadsCreated)
	assert.Zero(t, repo.upserts)
	assert.Nil(t, run.Results.TokenUsage)
}

func TestRun_PersistsHighestScoreFirst(t *testing.T) {
	repo := newRepo(t)
	adapter := &fakeAdapter{name: search.SourceSIEM, cands: []model.Candidate{
		{Company: "Taller Pequeño", Email: "taller@x.mx", Source: model.SourceSIEM},
		{Company: "Frigorífico del Sur", Email: "ventas@frisur.mx", Source: model.SourceSIEM},
		{Company: "Lácteos del Norte", Email: "compras@lacteosnorte.mx", Source: model.SourceSIEM},
	}}
	enricher := &fakeEnricher{}
	o := New(search.NewRegistry(adapter), defaultScores(), enricher, repo)

	run, err := o.Run(context.Background(), runConfig(search.SourceSIEM))
	require.NoError(t, err)

	assert.Equal(t, []string{"Lácteos del Norte", "Frigorífico del Sur"}, repo.companies)
	assert.Equal(t, 2, enricher.calls)
	assert.Equal(t, 3, run.Results.LeadsProcessed)
	assert.Equal(t, 1, run.Results.LeadsByCategory[model.CategoryDiscard])
	assert.Equal(t, 2, run.Results.LeadsCreated)
}

func TestApplyEnrichment(t *testing.T) {
	t.Parallel()

	c := model.Candidate{Company: "Hielo Azul"}
	e := model.Enrichment{
		Contacts: []model.Contact{
			{Name: "Ana", Email: "ana@hieloazul.mx", EmailStatus: "guessed"},
			{Name: "Luis", Email: "luis@hieloazul.mx", EmailStatus: "verified"},
		},
		CompanyURL:    "https://hieloazul.mx",
		GuessedEmails: []string{"info@hieloazul.mx"},
	}
	got := applyEnrichment(c, e)
	assert.Equal(t, "luis@hieloazul.mx", got.Email)
	assert.Equal(t, "https://hieloazul.mx", got.Website)

	c.Email = "director@hieloazul.mx"
	assert.Equal(t, "director@hieloazul.mx", applyEnrichment(c, e).Email)

	e.Contacts = nil
	assert.Equal(t, "info@hieloazul.mx", applyEnrichment(model.Candidate{}, e).Email)
}
