package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-prospector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// runs and the repository test suite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: utcNow}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS agent_runs (
	id              TEXT PRIMARY KEY,
	agent_type      TEXT NOT NULL,
	config          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	leads_found     INTEGER NOT NULL DEFAULT 0,
	leads_qualified INTEGER NOT NULL DEFAULT 0,
	results         TEXT,
	error           TEXT,
	started_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at    DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_agent_runs_status ON agent_runs(status);

CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	company         TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL UNIQUE,
	phone           TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'new',
	score           INTEGER NOT NULL DEFAULT 0,
	score_breakdown TEXT NOT NULL,
	category        TEXT NOT NULL,
	industry        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	company_size    TEXT NOT NULL DEFAULT '',
	enrichment_data TEXT,
	notes           TEXT NOT NULL DEFAULT '',
	assigned_agent  TEXT NOT NULL DEFAULT '',
	run_id          TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score);
`

// Migrate creates the tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert implements LeadRepository.
func (s *SQLiteStore) Upsert(ctx context.Context, in UpsertInput) (UpsertResult, error) {
	now := s.now()
	email, matchable := leadEmail(in.Candidate, now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, &PersistenceError{Op: "begin", Email: email, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	if matchable {
		var id string
		var stored int
		err := tx.QueryRowContext(ctx, `SELECT id, score FROM leads WHERE email = ?`, email).Scan(&id, &stored)
		switch {
		case err == nil:
			if in.Score <= stored {
				return UpsertResult{ID: id}, nil
			}
			breakdown, enrichment, err := marshalScore(in)
			if err != nil {
				return UpsertResult{}, &PersistenceError{Op: "update lead", Email: email, Err: err}
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE leads SET score = ?, score_breakdown = ?, category = ?, industry = ?, location = ?, website = ?,
					company_size = ?, enrichment_data = ?, assigned_agent = ?, run_id = ?, updated_at = ? WHERE id = ?`,
				in.Score, string(breakdown), string(in.Category), in.Candidate.Industry, in.Candidate.Location, in.Candidate.Website,
				in.Candidate.CompanySize, textOrNil(enrichment), in.AgentID, nullIfEmpty(in.RunID), now, id,
			)
			if err != nil {
				return UpsertResult{}, &PersistenceError{Op: "update lead", Email: email, Err: err}
			}
			if err := tx.Commit(); err != nil {
				return UpsertResult{}, &PersistenceError{Op: "commit", Email: email, Err: err}
			}
			return UpsertResult{ID: id, Updated: true}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return UpsertResult{}, &PersistenceError{Op: "find lead", Email: email, Err: err}
		}
	}

	l := newLead(in, email, now)
	breakdown, enrichment, err := marshalScore(in)
	if err != nil {
		return UpsertResult{}, &PersistenceError{Op: "insert lead", Email: email, Err: err}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO leads (id, name, company, email, phone, source, status, score, score_breakdown, category,
			industry, location, website, company_size, enrichment_data, notes, assigned_agent, run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Company, l.Email, l.Phone, l.Source, string(l.Status), l.Score, string(breakdown), string(l.Category),
		l.Industry, l.Location, l.Website, l.CompanySize, textOrNil(enrichment), l.Notes, l.AssignedAgent, nullIfEmpty(l.RunID), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return UpsertResult{}, &PersistenceError{Op: "insert lead", Email: email, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, &PersistenceError{Op: "commit", Email: email, Err: err}
	}
	return UpsertResult{ID: l.ID, IsNew: true}, nil
}

// UpsertBatch implements LeadRepository.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, items []UpsertInput) BatchResult {
	return upsertBatch(ctx, items, s.Upsert)
}

// GetLeadByEmail implements LeadRepository.
func (s *SQLiteStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l, err := scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: lead %s", email)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", email)
	}
	return l, nil
}

// ListLeads implements LeadRepository.
func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE score >= ?`
	args := []any{filter.MinScore}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY score DESC, created_at ASC LIMIT ? OFFSET ?`
	args = append(args, limitOr(filter.Limit, 100), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads rows")
}

// CreateRun implements RunStore.
func (s *SQLiteStore) CreateRun(ctx context.Context, agentType string, cfg model.RunConfig) (*model.Run, error) {
	r := newRun(agentType, cfg, s.now())
	cfgJSON, err := json.Marshal(r.Config)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run config")
	}
	resultsJSON, err := json.Marshal(r.Results)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run results")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_runs (id, agent_type, config, status, results, started_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AgentType, string(cfgJSON), string(r.Status), string(resultsJSON), r.StartedAt, r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return r, nil
}

// CompleteRun implements RunStore.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, results model.RunResults) error {
	return s.finishRun(ctx, runID, model.RunStatusCompleted, results, "")
}

// FailRun implements RunStore.
func (s *SQLiteStore) FailRun(ctx context.Context, runID string, results model.RunResults, errText string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, results, errText)
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.RunStatus, results model.RunResults, errText string) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run results")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_runs SET status = ?, leads_found = ?, leads_qualified = ?, results = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), results.LeadsCreated, results.Qualified(), string(resultsJSON), nullIfEmpty(errText), s.now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// GetRun implements RunStore.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

// ListRuns implements RunStore.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM agent_runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOr(filter.Limit, 20))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs rows")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrap(ErrNotFound, fmt.Sprintf("sqlite: %s %s", entity, id))
	}
	return nil
}

func textOrNil(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
