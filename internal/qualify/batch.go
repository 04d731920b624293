package qualify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/scorer"
)

// Item is one candidate to qualify in a batch.
type Item struct {
	Candidate model.Candidate
	Contacts  []model.Contact
}

// BatchResult holds one result per input item, in input order.
type BatchResult struct {
	Results []Result
	// Fallbacks counts items scored deterministically although the model
	// path was active.
	Fallbacks int
}

// QualifyBatch scores items in groups of Config.BatchSize per model call.
// Items the model omits, duplicates, or mis-indexes fall back to the
// deterministic rubric individually.
func (q *Qualifier) QualifyBatch(ctx context.Context, items []Item) BatchResult {
	out := BatchResult{Results: make([]Result, len(items))}
	bases := make([]scorer.Result, len(items))
	for i, it := range items {
		bases[i] = scorer.Score(it.Candidate, it.Contacts)
		out.Results[i] = deterministic(bases[i])
	}
	if len(items) == 0 || !q.LLMEnabled() {
		q.warnUnconfigured()
		return out
	}

	for start := 0; start < len(items); start += q.cfg.BatchSize {
		end := min(start+q.cfg.BatchSize, len(items))
		out.Fallbacks += q.qualifyChunk(ctx, items[start:end], bases[start:end], out.Results[start:end])
	}

	if out.Fallbacks > 0 {
		q.log.Warn("qualify: batch items scored deterministically",
			zap.Int("fallbacks", out.Fallbacks),
			zap.Int("items", len(items)),
		)
	}
	return out
}

// qualifyChunk overwrites results with model answers and returns how many
// items kept their deterministic result.
func (q *Qualifier) qualifyChunk(ctx context.Context, items []Item, bases []scorer.Result, results []Result) int {
	if ctx.Err() != nil {
		return len(items)
	}

	resp, err := q.complete(ctx, batchSystemPrompt, batchPrompt(items))
	if err != nil {
		q.log.Info("qualify: batch model call failed", zap.Int("items", len(items)), zap.Error(err))
		return len(items)
	}
	answers, err := parseBatch(resp.Text())
	if err != nil {
		q.log.Info("qualify: batch answer rejected", zap.Int("items", len(items)), zap.Error(err))
		return len(items)
	}

	seen := make([]int, len(items))
	for _, a := range answers {
		if a.LeadIndex >= 0 && a.LeadIndex < len(items) {
			seen[a.LeadIndex]++
		}
	}

	fallbacks := 0
	for _, a := range answers {
		if a.LeadIndex < 0 || a.LeadIndex >= len(items) || seen[a.LeadIndex] != 1 {
			continue
		}
		results[a.LeadIndex] = a.result(bases[a.LeadIndex])
	}
	for i, n := range seen {
		if n != 1 {
			fallbacks++
			q.log.Debug("qualify: no usable batch answer for item",
				zap.String("company", items[i].Candidate.DisplayName()),
				zap.Int("answers", n),
			)
		}
	}
	return fallbacks
}
