// Package store persists qualified leads and agent run records.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/db"
	"github.com/sells-group/lead-prospector/internal/model"
)

// Drivers accepted by New.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LeadSourcePrefix tags leads created by the prospector.
const LeadSourcePrefix = "ai_prospector:"

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = eris.New("store: not found")

// UpsertInput is one qualified candidate to persist.
type UpsertInput struct {
	Candidate  model.Candidate
	Score      int
	Breakdown  model.ScoreBreakdown
	Category   model.Category
	Enrichment *model.Enrichment
	RunID      string
	AgentID    string
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	ID    string `json:"id"`
	IsNew bool   `json:"isNew"`
	// Updated is true when an existing lead received a strictly higher score.
	Updated bool `json:"updated"`
}

// BatchResult aggregates UpsertBatch outcomes.
type BatchResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Category model.Category `json:"category,omitempty"`
	MinScore int            `json:"minScore,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// LeadRepository persists leads keyed by email. The stored score of a lead
// never decreases.
type LeadRepository interface {
	Upsert(ctx context.Context, in UpsertInput) (UpsertResult, error)
	UpsertBatch(ctx context.Context, items []UpsertInput) BatchResult
	GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
}

// RunStore records orchestration runs.
type RunStore interface {
	CreateRun(ctx context.Context, agentType string, cfg model.RunConfig) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, results model.RunResults) error
	FailRun(ctx context.Context, runID string, results model.RunResults, errText string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
}

// Store is the full persistence interface.
type Store interface {
	LeadRepository
	RunStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// PersistenceError is a failed repository write.
type PersistenceError struct {
	Op    string
	Email string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Email != "" {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Email, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Config selects and configures the backing database.
type Config struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// New opens the store selected by cfg.Driver. Postgres is the default.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverPostgres, "postgresql", "pgx":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: database_url is required for postgres")
		}
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	case DriverSQLite:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "prospector.db"
		}
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// upsertBatch runs upsert over items sequentially. Failures are recorded
// and do not stop the batch.
func upsertBatch(ctx context.Context, items []UpsertInput, upsert func(context.Context, UpsertInput) (UpsertResult, error)) BatchResult {
	out := BatchResult{Errors: []string{}}
	for _, in := range items {
		res, err := upsert(ctx, in)
		switch {
		case err != nil:
			out.Failed++
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", in.Candidate.DisplayName(), err))
		case res.IsNew:
			out.Created++
		case res.Updated:
			out.Updated++
		}
	}
	return out
}

// leadEmail returns the candidate email, or a unique placeholder when it
// has none. The second value reports whether the email can match an
// existing lead.
func leadEmail(c model.Candidate, now time.Time) (string, bool) {
	if c.HasEmail() {
		return strings.ToLower(strings.TrimSpace(c.Email)), true
	}
	return fmt.Sprintf("no-email-%d-%s@unknown.com", now.UnixNano(), uuid.NewString()[:8]), false
}

// newLead builds the record inserted for a candidate seen for the first time.
func newLead(in UpsertInput, email string, now time.Time) model.Lead {
	c := in.Candidate
	return model.Lead{
		ID:             uuid.NewString(),
		Name:           c.Name,
		Company:        c.Company,
		Email:          email,
		Phone:          c.Phone,
		Source:         LeadSourcePrefix + c.Source,
		Status:         model.LeadStatusNew,
		Score:          in.Score,
		ScoreBreakdown: in.Breakdown,
		Category:       in.Category,
		Industry:       c.Industry,
		Location:       c.Location,
		Website:        c.Website,
		CompanySize:    c.CompanySize,
		Enrichment:     in.Enrichment,
		Notes:          fmt.Sprintf("Prospected by %s. Score: %d/%s", in.AgentID, in.Score, in.Category),
		AssignedAgent:  in.AgentID,
		RunID:          in.RunID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// newRun builds a run record in the running state.
func newRun(agentType string, cfg model.RunConfig, now time.Time) *model.Run {
	return &model.Run{
		ID:        uuid.NewString(),
		AgentType: agentType,
		Config:    cfg,
		Status:    model.RunStatusRunning,
		Results:   model.NewRunResults(),
		StartedAt: now,
		CreatedAt: now,
	}
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
