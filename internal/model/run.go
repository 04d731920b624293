package model

import (
	"math"
	"slices"
	"strings"
	"time"
)

// AgentTypeProspector identifies runs created by the prospection orchestrator.
const AgentTypeProspector = "prospector"

// RunStatus represents the lifecycle state of an agent run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// SourceAll expands to every registered discovery source.
const SourceAll = "all"

// RunConfig is the configuration snapshot of one orchestration run.
type RunConfig struct {
	Industries []string `json:"industries"`
	Regions    []string `json:"regions"`
	MaxLeads   int      `json:"maxLeads"`
	Sources    []string `json:"sources"`
	MinScore   int      `json:"minScore"`
	DryRun     bool     `json:"dryRun"`
}

// DefaultRunConfig returns the configuration used when a trigger omits fields.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Industries: []string{"food_processing", "dairy", "meat", "beverages", "cold_storage"},
		Regions:    []string{"mexico"},
		MaxLeads:   20,
		Sources:    []string{SourceAll},
		MinScore:   40,
	}
}

// ScheduledRunConfig returns the fixed configuration of the scheduled trigger.
func ScheduledRunConfig() RunConfig {
	return RunConfig{
		Industries: []string{"food_processing", "dairy", "meat", "beverages", "cold_storage", "pharmaceuticals"},
		Regions:    []string{"mexico", "south_america"},
		MaxLeads:   50,
		Sources:    []string{SourceAll},
		MinScore:   40,
	}
}

// Normalize fills unset fields from DefaultRunConfig and lowercases names.
// A zero MinScore counts as unset.
func (c RunConfig) Normalize() RunConfig {
	def := DefaultRunConfig()
	if len(c.Industries) == 0 {
		c.Industries = def.Industries
	}
	if len(c.Regions) == 0 {
		c.Regions = def.Regions
	}
	if c.MaxLeads <= 0 {
		c.MaxLeads = def.MaxLeads
	}
	if len(c.Sources) == 0 {
		c.Sources = def.Sources
	}
	if c.MinScore <= 0 {
		c.MinScore = def.MinScore
	}
	c.Sources = lowerAll(c.Sources)
	c.Regions = lowerAll(c.Regions)
	c.Industries = lowerAll(c.Industries)
	return c
}

// PerSourceLimit splits MaxLeads evenly across the configured sources,
// rounding up.
func (c RunConfig) PerSourceLimit(sources int) int {
	if sources <= 0 {
		return c.MaxLeads
	}
	return int(math.Ceil(float64(c.MaxLeads) / float64(sources)))
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// SourceCount records how many candidates one source produced and which
// path (live or curated) served them.
type SourceCount struct {
	Name       string `json:"name"`
	LeadsFound int    `json:"leadsFound"`
	Path       string `json:"path,omitempty"`
}

// TokenUsage is the language-model consumption attributed to a run.
type TokenUsage struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	Calls        int     `json:"calls"`
	CostUSD      float64 `json:"estimatedCostUsd"`
}

// LeadSummary is a short description of a HOT lead reported with a run.
type LeadSummary struct {
	Company  string `json:"company"`
	Score    int    `json:"score"`
	Location string `json:"location,omitempty"`
	Source   string `json:"source"`
	Email    string `json:"email,omitempty"`
}

// RunResults are the aggregate counters of a run.
type RunResults struct {
	LeadsProcessed         int              `json:"leadsProcessed"`
	LeadsCreated           int              `json:"leadsCreated"`
	LeadsUpdated           int              `json:"leadsUpdated"`
	LeadsByCategory        map[Category]int `json:"leadsByCategory"`
	Sources                []SourceCount    `json:"sources"`
	Errors                 []string         `json:"errors"`
	QualificationFallbacks int              `json:"qualificationFallbacks"`
	HotLeads               []LeadSummary    `json:"hotLeads,omitempty"`
	TokenUsage             *TokenUsage      `json:"tokenUsage,omitempty"`
	DryRun                 bool             `json:"dryRun,omitempty"`
	Cancelled              bool             `json:"cancelled,omitempty"`
}

// NewRunResults returns results with every category counter present.
func NewRunResults() RunResults {
	byCat := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		byCat[c] = 0
	}
	return RunResults{
		LeadsByCategory: byCat,
		Sources:         []SourceCount{},
		Errors:          []string{},
	}
}

// Qualified is the number of HOT plus WARM leads.
func (r RunResults) Qualified() int {
	return r.LeadsByCategory[CategoryHot] + r.LeadsByCategory[CategoryWarm]
}

// Run is the persisted record of one orchestration invocation.
type Run struct {
	ID             string     `json:"id" db:"id"`
	AgentType      string     `json:"agentType" db:"agent_type"`
	Config         RunConfig  `json:"config" db:"config"`
	Status         RunStatus  `json:"status" db:"status"`
	LeadsFound     int        `json:"leadsFound" db:"leads_found"`
	LeadsQualified int        `json:"leadsQualified" db:"leads_qualified"`
	Results        RunResults `json:"results" db:"results"`
	Error          string     `json:"error,omitempty" db:"error"`
	StartedAt      time.Time  `json:"startedAt" db:"started_at"`
	CompletedAt    *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
}
