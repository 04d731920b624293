package qualify

import (
	_ "embed"
	"encoding/json"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/scorer"
)

var (
	//go:embed schema/single.json
	singleSchemaJSON string
	//go:embed schema/batch.json
	batchSchemaJSON string

	singleSchema = mustSchema(singleSchemaJSON)
	batchSchema  = mustSchema(batchSchemaJSON)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(eris.Wrap(err, "qualify: compile answer schema"))
	}
	return schema
}

// ParseError reports a model answer that does not honor the JSON contract.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "qualify: unusable model answer: " + e.Reason
}

// factor is an optional sub-score; nil means the model omitted it.
type factor = *float64

type llmBreakdown struct {
	Demographic struct {
		Industry    factor `json:"industry"`
		CompanySize factor `json:"companySize"`
		Location    factor `json:"location"`
		JobTitle    factor `json:"jobTitle"`
	} `json:"demographic"`
	Intent struct {
		EquipmentBrands factor `json:"equipmentBrands"`
		RefaccionesNeed factor `json:"refaccionesNeed"`
	} `json:"intent"`
	Engagement struct {
		PurchaseHistory      factor `json:"purchaseHistory"`
		PreviousInteractions factor `json:"previousInteractions"`
	} `json:"engagement"`
}

type llmAnswer struct {
	LeadIndex       int           `json:"leadIndex"`
	Score           float64       `json:"score"`
	Category        string        `json:"category"`
	Reasoning       string        `json:"reasoning"`
	Breakdown       *llmBreakdown `json:"scoreBreakdown"`
	Recommendations []string      `json:"recommendations"`
}

// result merges the answer onto the deterministic base. Factors the model
// omitted keep their deterministic value; every factor stays within its
// maximum.
func (a llmAnswer) result(base scorer.Result) Result {
	score := model.ClampScore(round(a.Score))
	category := model.Category(strings.ToUpper(strings.TrimSpace(a.Category)))
	if !category.Valid() {
		category = model.CategoryFor(score)
	}

	breakdown := base.Breakdown
	if a.Breakdown != nil {
		breakdown = a.Breakdown.merge(base.Breakdown)
	}

	reasons := base.Reasons
	if a.Reasoning != "" {
		reasons = []string{a.Reasoning}
	}

	return Result{
		Result: scorer.Result{
			Score:     score,
			Category:  category,
			Breakdown: breakdown,
			Reasons:   reasons,
		},
		Reasoning:       a.Reasoning,
		Recommendations: a.Recommendations,
		Method:          MethodLLM,
	}
}

func pick(f factor, fallback int) int {
	if f == nil {
		return fallback
	}
	return round(*f)
}

// round converts a model number to an int, saturating outside [0, 100].
func round(f float64) int {
	return int(math.Round(math.Max(0, math.Min(float64(model.MaxTotal), f))))
}

func (b llmBreakdown) merge(base model.ScoreBreakdown) model.ScoreBreakdown {
	return model.NewScoreBreakdown(
		model.Demographic{
			Industry:    pick(b.Demographic.Industry, base.Demographic.Industry),
			CompanySize: pick(b.Demographic.CompanySize, base.Demographic.CompanySize),
			Location:    pick(b.Demographic.Location, base.Demographic.Location),
			JobTitle:    pick(b.Demographic.JobTitle, base.Demographic.JobTitle),
		},
		model.Intent{
			EquipmentBrands: pick(b.Intent.EquipmentBrands, base.Intent.EquipmentBrands),
			RefaccionesNeed: pick(b.Intent.RefaccionesNeed, base.Intent.RefaccionesNeed),
		},
		model.Engagement{
			PurchaseHistory:      pick(b.Engagement.PurchaseHistory, base.Engagement.PurchaseHistory),
			PreviousInteractions: pick(b.Engagement.PreviousInteractions, base.Engagement.PreviousInteractions),
		},
	)
}

func parseSingle(text string) (llmAnswer, error) {
	var a llmAnswer
	err := decode(text, '{', '}', singleSchema, &a)
	return a, err
}

func parseBatch(text string) ([]llmAnswer, error) {
	var out []llmAnswer
	err := decode(text, '[', ']', batchSchema, &out)
	return out, err
}

func decode(text string, open, closing byte, schema *gojsonschema.Schema, v any) error {
	raw := extractJSON(text, open, closing)
	if raw == "" {
		return &ParseError{Reason: "no JSON value found", Raw: text}
	}

	res, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return &ParseError{Reason: "invalid JSON: " + err.Error(), Raw: raw}
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, desc := range res.Errors() {
			msgs = append(msgs, desc.String())
		}
		return &ParseError{Reason: strings.Join(msgs, "; "), Raw: raw}
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &ParseError{Reason: err.Error(), Raw: raw}
	}
	return nil
}

// extractJSON strips markdown fences and returns the outermost value
// delimited by open and closing.
func extractJSON(text string, open, closing byte) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
