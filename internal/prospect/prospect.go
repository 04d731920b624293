// Package prospect runs one prospection: search every configured source,
// qualify the candidates, enrich and persist the ones that clear the run's
// minimum score, and record the outcome as an agent run.
package prospect

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/metrics"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/qualify"
	"github.com/sells-group/lead-prospector/internal/scorer"
	"github.com/sells-group/lead-prospector/internal/search"
	"github.com/sells-group/lead-prospector/internal/store"
)

// DefaultAgentID is recorded on leads when no agent id is configured.
const DefaultAgentID = "prospector-agent"

// SourceResolver maps configured source names to adapters.
type SourceResolver interface {
	Resolve(names []string) ([]search.Adapter, error)
}

// Qualifier scores candidates in batches.
type Qualifier interface {
	QualifyBatch(ctx context.Context, items []qualify.Item) qualify.BatchResult
	Usage() model.TokenUsage
}

// Enricher gathers contacts for a qualified candidate. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, c model.Candidate) model.Enrichment
}

// Repository is the persistence the orchestrator needs.
type Repository interface {
	store.LeadRepository
	store.RunStore
}

// Orchestrator wires the pipeline stages together. A single Orchestrator
// may serve concurrent runs; per-run state lives in Run.
type Orchestrator struct {
	sources   SourceResolver
	qualifier Qualifier
	enricher  Enricher
	repo      Repository
	metrics   *metrics.Recorder
	agentID   string
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records run metrics on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = rec }
}

// WithAgentID sets the agent id stamped on created leads.
func WithAgentID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.agentID = id
		}
	}
}

// New creates an Orchestrator. enricher may be nil, in which case qualified
// candidates are persisted without enrichment.
func New(sources SourceResolver, qualifier Qualifier, enricher Enricher, repo Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sources:   sources,
		qualifier: qualifier,
		enricher:  enricher,
		repo:      repo,
		agentID:   DefaultAgentID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runState accumulates the counters of one run. Sources and candidates are
// processed one at a time, so it needs no locking.
type runState struct {
	run     *model.Run
	cfg     model.RunConfig
	results model.RunResults
	log     *zap.Logger
}

func (s *runState) addError(format string, args ...any) {
	s.results.Errors = append(s.results.Errors, fmt.Sprintf(format, args...))
}

// Run executes one prospection with cfg. The returned run is nil only when
// the run record could not be created. A run whose loop panics is marked
// failed and returned together with the error.
func (o *Orchestrator) Run(ctx context.Context, cfg model.RunConfig) (run *model.Run, err error) {
	cfg = cfg.Normalize()
	start := o.now()

	run, err = o.repo.CreateRun(ctx, model.AgentTypeProspector, cfg)
	if err != nil {
		o.metrics.RunFinished(model.RunStatusFailed, o.now().Sub(start))
		return nil, eris.Wrap(err, "prospect: create run")
	}

	st := &runState{
		run:     run,
		cfg:     cfg,
		results: model.NewRunResults(),
		log:     zap.L().With(zap.String("run_id", run.ID)),
	}
	st.results.DryRun = cfg.DryRun
	usageBefore := o.qualifier.Usage()

	st.log.Info("prospect: run started",
		zap.Strings("industries", cfg.Industries),
		zap.Strings("regions", cfg.Regions),
		zap.Strings("sources", cfg.Sources),
		zap.Int("max_leads", cfg.MaxLeads),
		zap.Int("min_score", cfg.MinScore),
		zap.Bool("dry_run", cfg.DryRun),
	)

	defer func() {
		if r := recover(); r != nil {
			st.log.Error("prospect: run panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = o.finish(ctx, st, usageBefore, start, eris.Errorf("prospect: run panicked: %v", r))
		}
	}()

	o.searchSources(ctx, st)

	if ctx.Err() != nil {
		st.results.Cancelled = true
		st.addError("Run cancelled: %v", context.Cause(ctx))
		st.log.Warn("prospect: run cancelled, remaining sources skipped")
	}

	return run, o.finish(ctx, st, usageBefore, start, nil)
}

// finish records the terminal state of the run. A non-nil loopErr marks it
// failed. The run record is written even when ctx is already cancelled.
func (o *Orchestrator) finish(ctx context.Context, st *runState, usageBefore model.TokenUsage, start time.Time, loopErr error) error {
	ctx = context.WithoutCancel(ctx)

	if u := usageDelta(usageBefore, o.qualifier.Usage()); u.Calls > 0 {
		st.results.TokenUsage = &u
		o.metrics.Tokens(u.InputTokens, u.OutputTokens)
	}
	o.metrics.QualificationFallbacks(st.results.QualificationFallbacks)

	run := st.run
	run.Results = st.results
	run.LeadsFound = st.results.LeadsCreated
	run.LeadsQualified = st.results.Qualified()
	completed := o.now()
	run.CompletedAt = &completed

	var storeErr error
	if loopErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = loopErr.Error()
		storeErr = o.repo.FailRun(ctx, run.ID, st.results, run.Error)
	} else {
		run.Status = model.RunStatusCompleted
		storeErr = o.repo.CompleteRun(ctx, run.ID, st.results)
	}
	o.metrics.RunFinished(run.Status, completed.Sub(start))

	st.log.Info("prospect: run finished",
		zap.String("status", string(run.Status)),
		zap.Int("processed", st.results.LeadsProcessed),
		zap.Int("created", st.results.LeadsCreated),
		zap.Int("updated", st.results.LeadsUpdated),
		zap.Int("hot", st.results.LeadsByCategory[model.CategoryHot]),
		zap.Int("warm", st.results.LeadsByCategory[model.CategoryWarm]),
		zap.Int("errors", len(st.results.Errors)),
		zap.Duration("elapsed", completed.Sub(start)),
	)

	if storeErr != nil {
		st.log.Error("prospect: failed to record run outcome", zap.Error(storeErr))
		if loopErr != nil {
			return loopErr
		}
		return eris.Wrap(storeErr, "prospect: record run outcome")
	}
	return loopErr
}

// resolveSources resolves each configured name on its own so that one
// unknown name does not discard the others.
func (o *Orchestrator) resolveSources(st *runState) []search.Adapter {
	var out []search.Adapter
	for _, name := range st.cfg.Sources {
		adapters, err := o.sources.Resolve([]string{name})
		if err != nil {
			st.addError("Search error: %s: %v", name, err)
			st.log.Warn("prospect: source not resolved", zap.String("source", name), zap.Error(err))
			continue
		}
		for _, a := range adapters {
			if !slices.ContainsFunc(out, func(b search.Adapter) bool { return b.Name() == a.Name() }) {
				out = append(out, a)
			}
		}
	}
	return out
}

func (o *Orchestrator) searchSources(ctx context.Context, st *runState) {
	adapters := o.resolveSources(st)
	limit := st.cfg.PerSourceLimit(len(adapters))

	for _, a := range adapters {
		if ctx.Err() != nil {
			return
		}
		log := st.log.With(zap.String("source", a.Name()))

		res, err := a.Search(ctx, search.Criteria{
			Industries: st.cfg.Industries,
			Regions:    st.cfg.Regions,
			Limit:      limit,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("prospect: source search failed", zap.Error(err))
			st.addError("Search error: %s: %v", a.Name(), err)
			o.metrics.SearchFailed(a.Name())
			continue
		}

		st.results.Sources = append(st.results.Sources, model.SourceCount{
			Name:       a.Name(),
			LeadsFound: len(res.Candidates),
			Path:       res.Path,
		})
		o.metrics.CandidatesFound(a.Name(), len(res.Candidates))
		log.Info("prospect: candidates found", zap.Int("count", len(res.Candidates)), zap.String("path", res.Path))

		o.processSource(ctx, st, res.Candidates)
	}
}

func (o *Orchestrator) processSource(ctx context.Context, st *runState, cands []model.Candidate) {
	if len(cands) == 0 {
		return
	}

	scored, err := o.qualifyBatch(ctx, cands)
	if err != nil {
		st.log.Error("prospect: qualification failed", zap.Error(err))
		for _, c := range cands {
			st.results.LeadsProcessed++
			st.addError("Qualify error: %s", c.DisplayName())
		}
		return
	}
	st.results.QualificationFallbacks += scored.Fallbacks

	entries := make([]scorer.Scored, len(cands))
	for i, c := range cands {
		entries[i] = scorer.Scored{Index: i, Candidate: c, Result: scored.Results[i].Result}
	}
	// Enrichment budget goes to the strongest leads first.
	ranked := scorer.Prioritize(entries, st.cfg.MinScore)
	discarded := len(cands) - len(ranked)
	st.results.LeadsProcessed += discarded
	st.results.LeadsByCategory[model.CategoryDiscard] += discarded

	for _, e := range ranked {
		if ctx.Err() != nil {
			return
		}
		st.results.LeadsProcessed++
		c := e.Candidate
		if err := o.processCandidate(ctx, st, c, scored.Results[e.Index]); err != nil {
			st.log.Error("prospect: candidate failed", zap.String("company", c.DisplayName()), zap.Error(err))
			st.addError("Process error: %s: %v", c.DisplayName(), err)
		}
	}
}

// qualifyBatch shields the run from a panicking or misbehaving qualifier.
func (o *Orchestrator) qualifyBatch(ctx context.Context, cands []model.Candidate) (out qualify.BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("prospect: qualifier panicked: %v", r)
		}
	}()

	items := make([]qualify.Item, len(cands))
	for i, c := range cands {
		items[i] = qualify.Item{Candidate: c}
	}
	out = o.qualifier.QualifyBatch(ctx, items)
	if len(out.Results) != len(cands) {
		return out, eris.Errorf("prospect: qualifier returned %d results for %d candidates", len(out.Results), len(cands))
	}
	return out, nil
}

// processCandidate enriches and persists one qualified candidate. Errors
// and panics stay scoped to the candidate.
func (o *Orchestrator) processCandidate(ctx context.Context, st *runState, c model.Candidate, q qualify.Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic: %v", r)
		}
	}()

	log := st.log.With(zap.String("company", c.DisplayName()), zap.String("source", c.Source))
	log.Debug("prospect: candidate qualified",
		zap.Int("score", q.Score),
		zap.String("category", string(q.Category)),
		zap.String("method", string(q.Method)),
	)

	st.results.LeadsByCategory[q.Category]++
	o.metrics.LeadQualified(q.Category)

	var enr *model.Enrichment
	if o.enricher != nil {
		e := o.enricher.Enrich(ctx, c)
		enr = &e
		c = applyEnrichment(c, e)
	}

	if q.Category == model.CategoryHot {
		st.results.HotLeads = append(st.results.HotLeads, model.LeadSummary{
			Company:  c.DisplayName(),
			Score:    q.Score,
			Location: c.Location,
			Source:   c.Source,
			Email:    c.Email,
		})
	}

	if st.cfg.DryRun {
		o.metrics.LeadPersisted(metrics.PersistSkipped)
		return nil
	}

	// A qualified candidate is persisted even when the run is being cancelled.
	res, err := o.repo.Upsert(context.WithoutCancel(ctx), store.UpsertInput{
		Candidate:  c,
		Score:      q.Score,
		Breakdown:  q.Breakdown,
		Category:   q.Category,
		Enrichment: enr,
		RunID:      st.run.ID,
		AgentID:    o.agentID,
	})
	if err != nil {
		o.metrics.LeadPersisted(metrics.PersistFailed)
		return err
	}

	switch {
	case res.IsNew:
		st.results.LeadsCreated++
		o.metrics.LeadPersisted(metrics.PersistCreated)
	case res.Updated:
		st.results.LeadsUpdated++
		o.metrics.LeadPersisted(metrics.PersistUpdated)
	default:
		o.metrics.LeadPersisted(metrics.PersistUnchanged)
	}
	log.Info("prospect: lead saved",
		zap.String("lead_id", res.ID),
		zap.Bool("new", res.IsNew),
		zap.Bool("updated", res.Updated),
		zap.Int("score", q.Score),
	)
	return nil
}

// applyEnrichment fills the candidate's missing email, phone, and website
// from enrichment data. Verified contact emails win over guessed mailboxes.
func applyEnrichment(c model.Candidate, e model.Enrichment) model.Candidate {
	if !c.HasEmail() {
		c.Email = bestEmail(e)
	}
	if c.Phone == "" && len(e.Phones) > 0 {
		c.Phone = e.Phones[0]
	}
	if c.Website == "" {
		c.Website = e.CompanyURL
	}
	if c.Website == "" && e.Domain != "" {
		c.Website = "https://" + e.Domain
	}
	return c
}

func bestEmail(e model.Enrichment) string {
	for _, ct := range e.Contacts {
		if ct.EmailStatus == "verified" && strings.Contains(ct.Email, "@") {
			return ct.Email
		}
	}
	if len(e.GuessedEmails) > 0 {
		return e.GuessedEmails[0]
	}
	return ""
}

func usageDelta(before, after model.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:  after.InputTokens - before.InputTokens,
		OutputTokens: after.OutputTokens - before.OutputTokens,
		Calls:        after.Calls - before.Calls,
		CostUSD:      after.CostUSD - before.CostUSD,
	}
}
