// Package qualify refines the deterministic rubric with an optional
// language-model pass. The model path can never produce an unscored lead:
// every failure degrades to the deterministic result.
package qualify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/internal/scorer"
	"github.com/sells-group/lead-prospector/pkg/anthropic"
)

// Mode selects the qualification strategy.
type Mode string

const (
	// ModeDeterministic never calls the model.
	ModeDeterministic Mode = "deterministic"
	// ModeHybrid calls the model when configured and falls back quietly.
	ModeHybrid Mode = "hybrid"
	// ModeLLM calls the model when configured and warns on every fallback.
	ModeLLM Mode = "llm"
)

// ParseMode parses a configured mode. Empty selects hybrid.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeHybrid, nil
	case ModeDeterministic, ModeHybrid, ModeLLM:
		return m, nil
	default:
		return "", eris.Errorf("qualify: unknown mode %q", s)
	}
}

// Method records which path produced a result.
type Method string

const (
	MethodDeterministic Method = "deterministic"
	MethodLLM           Method = "llm"
)

// Result is a qualification outcome.
type Result struct {
	scorer.Result
	Reasoning       string   `json:"reasoning,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Method          Method   `json:"method"`
}

// Config configures a Qualifier.
type Config struct {
	Mode        Mode
	Model       string
	MaxTokens   int64
	Temperature float64
	MinInterval time.Duration
	BatchSize   int
	Pricing     anthropic.Pricing
	// OnCall observes model call outcomes.
	OnCall func(provider, outcome string)
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeHybrid
	}
	if c.Model == "" {
		c.Model = anthropic.DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 500 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Pricing == (anthropic.Pricing{}) {
		c.Pricing = anthropic.DefaultPricing
	}
}

// Qualifier scores candidates, optionally refined by a language model.
// It is safe for concurrent use.
type Qualifier struct {
	cfg    Config
	client anthropic.Client
	calls  *provider.Client[*anthropic.MessageResponse]
	log    *zap.Logger

	mu       sync.Mutex
	usage    anthropic.TokenUsage
	numCalls int
}

// New creates a Qualifier. A nil client means the model is unconfigured and
// every candidate is scored deterministically.
func New(client anthropic.Client, cfg Config) *Qualifier {
	cfg.applyDefaults()
	return &Qualifier{
		cfg:    cfg,
		client: client,
		calls: provider.NewClient[*anthropic.MessageResponse](provider.Options{
			Name:        "anthropic",
			MinInterval: cfg.MinInterval,
			OnCall:      cfg.OnCall,
		}),
		log: zap.L().With(zap.String("component", "qualify")),
	}
}

// LLMEnabled reports whether the model path is active.
func (q *Qualifier) LLMEnabled() bool {
	return q.client != nil && q.cfg.Mode != ModeDeterministic && !q.calls.Disabled()
}

// Mode returns the configured mode.
func (q *Qualifier) Mode() Mode { return q.cfg.Mode }

// Qualify scores one candidate. It never fails.
func (q *Qualifier) Qualify(ctx context.Context, c model.Candidate, contacts []model.Contact) Result {
	base := scorer.Score(c, contacts)
	if !q.LLMEnabled() {
		q.warnUnconfigured()
		return deterministic(base)
	}

	resp, err := q.complete(ctx, systemPrompt, singlePrompt(c, contacts))
	if err != nil {
		q.fallback("model call failed", c, err)
		return deterministic(base)
	}
	parsed, err := parseSingle(resp.Text())
	if err != nil {
		q.fallback("model answer rejected", c, err)
		return deterministic(base)
	}
	return parsed.result(base)
}

// Usage returns the accumulated model consumption.
func (q *Qualifier) Usage() model.TokenUsage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return model.TokenUsage{
		InputTokens:  q.usage.InputTokens + q.usage.CacheCreationInputTokens + q.usage.CacheReadInputTokens,
		OutputTokens: q.usage.OutputTokens,
		Calls:        q.numCalls,
		CostUSD:      q.usage.EstimateCost(q.cfg.Pricing),
	}
}

// LogUsage writes the accumulated cost attribution.
func (q *Qualifier) LogUsage() {
	q.mu.Lock()
	u := q.usage
	q.mu.Unlock()
	u.LogCost(q.cfg.Model, "qualify", q.cfg.Pricing)
}

func (q *Qualifier) complete(ctx context.Context, system, prompt string) (*anthropic.MessageResponse, error) {
	temp := q.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       q.cfg.Model,
		MaxTokens:   q.cfg.MaxTokens,
		System:      anthropic.CachedSystem(system),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	resp, err := q.calls.Call(ctx, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := q.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, classify(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "qualify: create message")
	}
	if resp == nil {
		return nil, eris.New("qualify: empty model response")
	}

	q.mu.Lock()
	q.usage.Add(resp.Usage)
	q.numCalls++
	q.mu.Unlock()
	return resp, nil
}

func classify(err error) error {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return err
	}
	status := anthropic.StatusCode(err)
	if status == 0 {
		return provider.Network("anthropic", err)
	}
	pe = provider.Classify("anthropic", status, nil)
	pe.Err = err
	return pe
}

func (q *Qualifier) fallback(reason string, c model.Candidate, err error) {
	fields := []zap.Field{zap.String("company", c.DisplayName()), zap.Error(err)}
	if q.cfg.Mode == ModeLLM {
		q.log.Warn("qualify: "+reason+", using deterministic score", fields...)
		return
	}
	q.log.Info("qualify: "+reason+", using deterministic score", fields...)
}

func (q *Qualifier) warnUnconfigured() {
	if q.cfg.Mode == ModeLLM && q.client == nil {
		q.log.Warn("qualify: llm mode requested but model is not configured")
	}
}

func deterministic(r scorer.Result) Result {
	return Result{Result: r, Method: MethodDeterministic}
}
