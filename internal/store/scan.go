package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// scanLead reads a row selected with leadColumns. Scan errors are returned
// unwrapped so callers can match sql.ErrNoRows and pgx.ErrNoRows.
func scanLead(row scannable) (*model.Lead, error) {
	var (
		l                     model.Lead
		status, category      string
		breakdown, enrichment []byte
	)
	err := row.Scan(&l.ID, &l.Name, &l.Company, &l.Email, &l.Phone, &l.Source, &status, &l.Score, &breakdown, &category,
		&l.Industry, &l.Location, &l.Website, &l.CompanySize, &enrichment, &l.Notes, &l.AssignedAgent, &l.RunID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	l.Category = model.Category(category)

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &l.ScoreBreakdown); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal score breakdown")
		}
	}
	if len(enrichment) > 0 && string(enrichment) != "null" {
		l.Enrichment = &model.Enrichment{}
		if err := json.Unmarshal(enrichment, l.Enrichment); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal enrichment")
		}
	}
	return &l, nil
}

// scanRun reads a row selected with runColumns.
func scanRun(row scannable) (*model.Run, error) {
	var (
		r                   model.Run
		status              string
		cfgJSON, resultJSON []byte
		completedAt         *time.Time
	)
	err := row.Scan(&r.ID, &r.AgentType, &cfgJSON, &status, &r.LeadsFound, &r.LeadsQualified, &resultJSON, &r.Error,
		&r.StartedAt, &completedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	r.CompletedAt = completedAt

	if err := json.Unmarshal(cfgJSON, &r.Config); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run config")
	}
	r.Results = model.NewRunResults()
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &r.Results); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run results")
		}
	}
	return &r, nil
}

// marshalScore encodes the JSON columns written on insert and on a score
// improvement. A nil enrichment encodes as nil.
func marshalScore(in UpsertInput) (breakdown, enrichment []byte, err error) {
	breakdown, err = json.Marshal(in.Breakdown)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal score breakdown")
	}
	if in.Enrichment != nil {
		enrichment, err = json.Marshal(in.Enrichment)
		if err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal enrichment")
		}
	}
	return breakdown, enrichment, nil
}
