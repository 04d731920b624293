package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/db"
	"github.com/sells-group/lead-prospector/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// NewPostgres connects to connString.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: utcNow}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS agent_runs (
	id              TEXT PRIMARY KEY,
	agent_type      TEXT NOT NULL,
	config          JSONB NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	leads_found     INTEGER NOT NULL DEFAULT 0,
	leads_qualified INTEGER NOT NULL DEFAULT 0,
	results         JSONB,
	error           TEXT,
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_agent_runs_status ON agent_runs(status);
CREATE INDEX IF NOT EXISTS idx_agent_runs_created_at ON agent_runs(created_at DESC);

CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	company         TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL UNIQUE,
	phone           TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'new',
	score           INTEGER NOT NULL DEFAULT 0,
	score_breakdown JSONB NOT NULL,
	category        TEXT NOT NULL,
	industry        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	company_size    TEXT NOT NULL DEFAULT '',
	enrichment_data JSONB,
	notes           TEXT NOT NULL DEFAULT '',
	assigned_agent  TEXT NOT NULL DEFAULT '',
	run_id          TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);
`

// Migrate creates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Upsert implements LeadRepository.
func (s *PostgresStore) Upsert(ctx context.Context, in UpsertInput) (UpsertResult, error) {
	now := s.now()
	email, matchable := leadEmail(in.Candidate, now)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return UpsertResult{}, &PersistenceError{Op: "begin", Email: email, Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if matchable {
		var id string
		var stored int
		err := tx.QueryRow(ctx, `SELECT id, score FROM leads WHERE email = $1 FOR UPDATE`, email).Scan(&id, &stored)
		switch {
		case err == nil:
			if in.Score <= stored {
				return UpsertResult{ID: id}, nil
			}
			if err := s.updateScore(ctx, tx, id, in, now); err != nil {
				return UpsertResult{}, &PersistenceError{Op: "update lead", Email: email, Err: err}
			}
			if err := tx.Commit(ctx); err != nil {
				return UpsertResult{}, &PersistenceError{Op: "commit", Email: email, Err: err}
			}
			return UpsertResult{ID: id, Updated: true}, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return UpsertResult{}, &PersistenceError{Op: "find lead", Email: email, Err: err}
		}
	}

	lead := newLead(in, email, now)
	if err := s.insertLead(ctx, tx, lead); err != nil {
		return UpsertResult{}, &PersistenceError{Op: "insert lead", Email: email, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, &PersistenceError{Op: "commit", Email: email, Err: err}
	}
	return UpsertResult{ID: lead.ID, IsNew: true}, nil
}

func (s *PostgresStore) updateScore(ctx context.Context, tx pgx.Tx, id string, in UpsertInput, now time.Time) error {
	breakdown, enrichment, err := marshalScore(in)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE leads SET score = $1, score_breakdown = $2, category = $3, industry = $4, location = $5, website = $6,
			company_size = $7, enrichment_data = $8, assigned_agent = $9, run_id = $10, updated_at = $11 WHERE id = $12`,
		in.Score, breakdown, string(in.Category), in.Candidate.Industry, in.Candidate.Location, in.Candidate.Website,
		in.Candidate.CompanySize, enrichment, in.AgentID, nullIfEmpty(in.RunID), now, id,
	)
	return err
}

func (s *PostgresStore) insertLead(ctx context.Context, tx pgx.Tx, l model.Lead) error {
	breakdown, enrichment, err := marshalScore(UpsertInput{Breakdown: l.ScoreBreakdown, Enrichment: l.Enrichment})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO leads (id, name, company, email, phone, source, status, score, score_breakdown, category,
			industry, location, website, company_size, enrichment_data, notes, assigned_agent, run_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		l.ID, l.Name, l.Company, l.Email, l.Phone, l.Source, string(l.Status), l.Score, breakdown, string(l.Category),
		l.Industry, l.Location, l.Website, l.CompanySize, enrichment, l.Notes, l.AssignedAgent, nullIfEmpty(l.RunID), l.CreatedAt, l.UpdatedAt,
	)
	return err
}

// UpsertBatch implements LeadRepository.
func (s *PostgresStore) UpsertBatch(ctx context.Context, items []UpsertInput) BatchResult {
	return upsertBatch(ctx, items, s.Upsert)
}

const leadColumns = `id, name, company, email, phone, source, status, score, score_breakdown, category,
	industry, location, website, company_size, enrichment_data, notes, assigned_agent, COALESCE(run_id, ''), created_at, updated_at`

// GetLeadByEmail implements LeadRepository.
func (s *PostgresStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = $1`, email)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: lead %s", email)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", email)
	}
	return l, nil
}

// ListLeads implements LeadRepository. Leads are ordered by score,
// highest first.
func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE score >= $1`
	args := []any{filter.MinScore}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	args = append(args, limitOr(filter.Limit, 100))
	query += fmt.Sprintf(` ORDER BY score DESC, created_at ASC LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads rows")
}

// CreateRun implements RunStore. The run starts in the running state.
func (s *PostgresStore) CreateRun(ctx context.Context, agentType string, cfg model.RunConfig) (*model.Run, error) {
	r := newRun(agentType, cfg, s.now())
	cfgJSON, err := json.Marshal(r.Config)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run config")
	}
	resultsJSON, err := json.Marshal(r.Results)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run results")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_runs (id, agent_type, config, status, results, started_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.AgentType, cfgJSON, string(r.Status), resultsJSON, r.StartedAt, r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return r, nil
}

// CompleteRun implements RunStore.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, results model.RunResults) error {
	return s.finishRun(ctx, runID, model.RunStatusCompleted, results, "")
}

// FailRun implements RunStore.
func (s *PostgresStore) FailRun(ctx context.Context, runID string, results model.RunResults, errText string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, results, errText)
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, results model.RunResults, errText string) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run results")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_runs SET status = $1, leads_found = $2, leads_qualified = $3, results = $4, error = $5, completed_at = $6 WHERE id = $7`,
		string(status), results.LeadsCreated, results.Qualified(), resultsJSON, nullIfEmpty(errText), s.now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

const runColumns = `id, agent_type, config, status, leads_found, leads_qualified, results, COALESCE(error, ''), started_at, completed_at, created_at`

// GetRun implements RunStore.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

// ListRuns implements RunStore. Runs are ordered newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM agent_runs`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	args = append(args, limitOr(filter.Limit, 20))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs rows")
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
