package qualify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/internal/scorer"
	"github.com/sells-group/lead-prospector/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 200},
	}
}

func testConfig(mode Mode) Config {
	return Config{Mode: mode, MinInterval: time.Millisecond, BatchSize: 10}
}

func dairyCandidate() model.Candidate {
	return model.Candidate{
		Company:     "Lácteos X",
		Industry:    "dairy",
		Location:    "Monterrey, México",
		CompanySize: "100-250",
		Source:      model.SourceSIEM,
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, m)

	m, err = ParseMode(" LLM ")
	require.NoError(t, err)
	assert.Equal(t, ModeLLM, m)

	_, err = ParseMode("magic")
	assert.Error(t, err)
}

func TestQualify_NoClientIsDeterministic(t *testing.T) {
	q := New(nil, testConfig(ModeHybrid))
	c := dairyCandidate()

	got := q.Qualify(context.Background(), c, nil)
	assert.Equal(t, MethodDeterministic, got.Method)
	assert.Equal(t, scorer.Score(c, nil), got.Result)
	assert.False(t, q.LLMEnabled())
}

func TestQualify_DeterministicModeSkipsModel(t *testing.T) {
	m := new(mockClient)
	q := New(m, testConfig(ModeDeterministic))

	got := q.Qualify(context.Background(), dairyCandidate(), nil)
	assert.Equal(t, MethodDeterministic, got.Method)
	assert.Equal(t, 35, got.Score)
	m.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestQualify_ModelAnswerUsed(t *testing.T) {
	m := new(mockClient)
	m.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == anthropic.DefaultModel &&
			len(req.System) == 1 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == "user"
	})).Return(textResponse("```json\n"+`{
		"score": 82,
		"category": "HOT",
		"reasoning": "Planta láctea mediana en Monterrey",
		"scoreBreakdown": {"intent": {"equipmentBrands": 15, "refaccionesNeed": 40}},
		"recommendations": ["Llamar al gerente de mantenimiento"]
	}`+"\n```"), nil).Once()

	q := New(m, testConfig(ModeHybrid))
	got := q.Qualify(context.Background(), dairyCandidate(), nil)

	assert.Equal(t, MethodLLM, got.Method)
	assert.Equal(t, 82, got.Score)
	assert.Equal(t, model.CategoryHot, got.Category)
	assert.Equal(t, "Planta láctea mediana en Monterrey", got.Reasoning)
	assert.Equal(t, []string{"Planta láctea mediana en Monterrey"}, got.Reasons)
	assert.Equal(t, []string{"Llamar al gerente de mantenimiento"}, got.Recommendations)

	// Omitted factors keep the deterministic values; supplied ones are bounded.
	assert.Equal(t, 15, got.Breakdown.Demographic.Industry)
	assert.Equal(t, 10, got.Breakdown.Demographic.Location)
	assert.Equal(t, 15, got.Breakdown.Intent.EquipmentBrands)
	assert.Equal(t, model.MaxRefaccionesNeed, got.Breakdown.Intent.RefaccionesNeed)
	assert.Equal(t, got.Breakdown.Sum(), got.Breakdown.Total)
	m.AssertExpectations(t)
}

func TestQualify_ScoreClampedAndCategoryRecomputed(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		score    int
		category model.Category
	}{
		{"above range", `{"score": 150, "category": "HOT"}`, 100, model.CategoryHot},
		{"below range", `{"score": -4, "category": "nope"}`, 0, model.CategoryDiscard},
		{"invalid category", `{"score": 65, "category": "TIBIO"}`, 65, model.CategoryWarm},
		{"lowercase category", `{"score": 45, "category": "cold"}`, 45, model.CategoryCold},
		{"fractional score", `{"score": 79.6}`, 80, model.CategoryHot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockClient)
			m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(tt.answer), nil)

			got := New(m, testConfig(ModeHybrid)).Qualify(context.Background(), dairyCandidate(), nil)
			assert.Equal(t, MethodLLM, got.Method)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestQualify_FallsBackOnBadAnswers(t *testing.T) {
	answers := map[string]string{
		"prose":         "Este lead parece prometedor.",
		"missing score": `{"category": "HOT"}`,
		"string score":  `{"score": "alto"}`,
		"broken json":   `{"score": 90,`,
	}
	for name, answer := range answers {
		t.Run(name, func(t *testing.T) {
			m := new(mockClient)
			m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(answer), nil)

			c := dairyCandidate()
			got := New(m, testConfig(ModeLLM)).Qualify(context.Background(), c, nil)
			assert.Equal(t, MethodDeterministic, got.Method)
			assert.Equal(t, scorer.Score(c, nil), got.Result)
		})
	}
}

func TestQualify_FallsBackOnModelError(t *testing.T) {
	m := new(mockClient)
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	got := New(m, testConfig(ModeHybrid)).Qualify(context.Background(), dairyCandidate(), nil)
	assert.Equal(t, MethodDeterministic, got.Method)
	assert.Equal(t, 35, got.Score)
	m.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestQualify_UnauthorizedDisablesModel(t *testing.T) {
	m := new(mockClient)
	m.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, provider.NewError("anthropic", provider.KindUnauthorized, 401, nil)).Once()

	q := New(m, testConfig(ModeHybrid))
	first := q.Qualify(context.Background(), dairyCandidate(), nil)
	second := q.Qualify(context.Background(), dairyCandidate(), nil)

	assert.Equal(t, MethodDeterministic, first.Method)
	assert.Equal(t, MethodDeterministic, second.Method)
	assert.False(t, q.LLMEnabled())
	m.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestQualify_UsageAccumulates(t *testing.T) {
	m := new(mockClient)
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"score": 50}`), nil).Twice()

	q := New(m, testConfig(ModeHybrid))
	q.Qualify(context.Background(), dairyCandidate(), nil)
	q.Qualify(context.Background(), dairyCandidate(), nil)

	u := q.Usage()
	assert.Equal(t, int64(2000), u.InputTokens)
	assert.Equal(t, int64(400), u.OutputTokens)
	assert.Equal(t, 2, u.Calls)
	assert.InDelta(t, 0.006+0.006, u.CostUSD, 1e-9)
}

func batchItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		c := dairyCandidate()
		c.Company = c.Company + " " + string(rune('A'+i))
		items[i] = Item{Candidate: c}
	}
	return items
}

func TestQualifyBatch_PerItemFallback(t *testing.T) {
	m := new(mockClient)
	// First chunk: index 3 omitted, index 5 duplicated, index 42 out of range.
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`[
		{"leadIndex": 0, "score": 90, "category": "HOT", "reasoning": "a"},
		{"leadIndex": 1, "score": 70, "category": "WARM"},
		{"leadIndex": 2, "score": 61},
		{"leadIndex": 4, "score": 20, "category": "DISCARD"},
		{"leadIndex": 5, "score": 88},
		{"leadIndex": 5, "score": 10},
		{"leadIndex": 6, "score": 50},
		{"leadIndex": 7, "score": 50},
		{"leadIndex": 8, "score": 50},
		{"leadIndex": 9, "score": 50},
		{"leadIndex": 42, "score": 99}
	]`), nil).Once()
	// Second chunk fails entirely.
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	q := New(m, testConfig(ModeHybrid))
	items := batchItems(12)
	got := q.QualifyBatch(context.Background(), items)

	require.Len(t, got.Results, 12)
	assert.Equal(t, 4, got.Fallbacks)

	assert.Equal(t, MethodLLM, got.Results[0].Method)
	assert.Equal(t, 90, got.Results[0].Score)
	assert.Equal(t, model.CategoryWarm, got.Results[2].Category)
	assert.Equal(t, model.CategoryDiscard, got.Results[4].Category)

	for _, i := range []int{3, 5, 10, 11} {
		assert.Equal(t, MethodDeterministic, got.Results[i].Method, "item %d", i)
		assert.Equal(t, scorer.Score(items[i].Candidate, nil), got.Results[i].Result, "item %d", i)
	}
	m.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestQualifyBatch_Unconfigured(t *testing.T) {
	got := New(nil, testConfig(ModeLLM)).QualifyBatch(context.Background(), batchItems(3))
	require.Len(t, got.Results, 3)
	assert.Zero(t, got.Fallbacks)
	for _, r := range got.Results {
		assert.Equal(t, MethodDeterministic, r.Method)
	}
}

func TestQualifyBatch_Empty(t *testing.T) {
	m := new(mockClient)
	got := New(m, testConfig(ModeHybrid)).QualifyBatch(context.Background(), nil)
	assert.Empty(t, got.Results)
	m.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```", '{', '}'))
	assert.Equal(t, `{"a":{"b":2}}`, extractJSON(`Claro: {"a":{"b":2}} listo`, '{', '}'))
	assert.Equal(t, `[1,2]`, extractJSON("```\n[1,2]\n```", '[', ']'))
	assert.Empty(t, extractJSON("sin json", '{', '}'))
}

func TestParseError(t *testing.T) {
	_, err := parseSingle(`{"score": "x"}`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "unusable model answer")
	assert.Equal(t, `{"score": "x"}`, pe.Raw)
}
