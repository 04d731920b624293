// Package scorer implements the deterministic lead qualification rubric.
package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/textnorm"
)

// DefaultMinScore is the qualification threshold for persistence. It is
// independent of the COLD category threshold.
const DefaultMinScore = 40

// Result is the output of the rubric for one candidate.
type Result struct {
	Score     int                  `json:"score"`
	Category  model.Category       `json:"category"`
	Breakdown model.ScoreBreakdown `json:"scoreBreakdown"`
	Reasons   []string             `json:"reasons"`
}

// Qualifies reports whether the result clears minScore.
func (r Result) Qualifies(minScore int) bool {
	return r.Score >= minScore
}

// Score runs the rubric over a candidate and any enriched contacts. It is
// pure and deterministic.
func Score(c model.Candidate, contacts []model.Contact) Result {
	companyText := c.Company
	if companyText == "" {
		companyText = c.Name
	}

	d := model.Demographic{
		Industry:    scoreIndustry(c.Industry, companyText),
		CompanySize: scoreCompanySize(c.CompanySize),
		Location:    scoreLocation(c.Location),
		JobTitle:    scoreJobTitle(c.Name, c.Email),
	}
	i := model.Intent{
		EquipmentBrands: scoreEquipmentBrands(textnorm.Join(c.Company, c.Notes)),
		RefaccionesNeed: scoreRefaccionesNeed(textnorm.Join(c.Notes, rawText(c.RawData))),
	}
	e := model.Engagement{
		PurchaseHistory:      0,
		PreviousInteractions: scoreContacts(contacts),
	}

	b := model.NewScoreBreakdown(d, i, e)
	return Result{
		Score:     b.Total,
		Category:  b.Category(),
		Breakdown: b,
		Reasons:   Reasons(b),
	}
}

// Reasons renders the audit trail of which factors fired.
func Reasons(b model.ScoreBreakdown) []string {
	reasons := []string{}
	if b.Demographic.Industry > 0 {
		reasons = append(reasons, "Industria objetivo")
	}
	switch {
	case b.Demographic.Location >= 10:
		reasons = append(reasons, "Ubicado en México")
	case b.Demographic.Location >= 5:
		reasons = append(reasons, "Ubicado en LATAM")
	}
	if b.Demographic.CompanySize >= 10 {
		reasons = append(reasons, "Tamaño de empresa ideal")
	}
	if b.Intent.EquipmentBrands > 0 {
		reasons = append(reasons, "Posible usuario de Frick/Danfoss")
	}
	if b.Intent.RefaccionesNeed > 0 {
		reasons = append(reasons, "Necesidad de refacciones detectada")
	}
	if b.Demographic.JobTitle > 0 {
		reasons = append(reasons, "Contacto con título relevante")
	}
	if b.Engagement.PreviousInteractions > 0 {
		reasons = append(reasons, "Contactos de LinkedIn identificados")
	}
	if b.Total < DefaultMinScore {
		reasons = append(reasons, "Score bajo, no califica para seguimiento activo")
	}
	return reasons
}

func scoreIndustry(industry, company string) int {
	text := textnorm.Join(industry, company)
	if text == "" {
		return 0
	}
	if catalog.MatchesTargetIndustry(text) {
		return model.MaxIndustry
	}
	return 0
}

var sizeTiers = []struct {
	points int
	bands  []string
}{
	{10, []string{"50-100", "100-250", "150-300", "200-500", "100-200"}},
	{5, []string{"25-50", "20-50", "500-1000"}},
	{3, []string{"10-25", "10-20"}},
}

func scoreCompanySize(size string) int {
	size = strings.ReplaceAll(strings.ToLower(size), " ", "")
	if size == "" {
		return 0
	}
	for _, tier := range sizeTiers {
		for _, band := range tier.bands {
			if strings.Contains(size, band) {
				return tier.points
			}
		}
	}
	return 0
}

var locationTiers = []struct {
	points int
	names  []string
}{
	{10, []string{"méxico", "mexico", "cdmx", "monterrey", "guadalajara", "querétaro", "queretaro", "puebla", "león", "leon", "tijuana"}},
	{8, []string{"colombia", "bogotá", "bogota", "medellín", "medellin", "perú", "peru", "lima", "chile", "santiago", "argentina", "buenos aires"}},
	{5, []string{"ecuador", "guatemala", "costa rica", "panamá", "panama", "república dominicana", "dominican"}},
}

func scoreLocation(location string) int {
	if location == "" {
		return 0
	}
	for _, tier := range locationTiers {
		if textnorm.ContainsAny(location, tier.names) {
			return tier.points
		}
	}
	return 0
}

func scoreJobTitle(name, email string) int {
	if textnorm.ContainsAny(textnorm.Join(name, email), catalog.RoleKeywords) {
		return model.MaxJobTitle
	}
	return 0
}

// scoreEquipmentBrands awards 20 for a Frick or Danfoss mention. The two
// brands share one cap.
func scoreEquipmentBrands(text string) int {
	score := 0
	if textnorm.ContainsAny(text, catalog.BrandByID("frick").Aliases) {
		score += 20
	}
	if textnorm.ContainsAny(text, catalog.BrandByID("danfoss").Aliases) {
		score = min(score+20, model.MaxEquipmentBrands)
	}
	return score
}

func scoreRefaccionesNeed(text string) int {
	if textnorm.ContainsAny(text, catalog.NeedKeywords) {
		return model.MaxRefaccionesNeed
	}
	return 0
}

func scoreContacts(contacts []model.Contact) int {
	if len(contacts) == 0 {
		return 0
	}
	score := 3
	for _, ct := range contacts {
		if textnorm.ContainsAny(ct.Title, catalog.ContactTitleKeywords) {
			score += 5
			break
		}
	}
	return min(score, model.MaxPreviousInteractions)
}

// rawText flattens string values of a provenance payload for signal search.
func rawText(raw map[string]any) string {
	if len(raw) == 0 {
		return ""
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			parts = append(parts, v)
		case []string:
			parts = append(parts, strings.Join(v, " "))
		case fmt.Stringer:
			parts = append(parts, v.String())
		}
	}
	return strings.Join(parts, " ")
}

// Scored pairs a candidate with its rubric result. Index is the entry's
// position in the caller's batch.
type Scored struct {
	Index     int
	Candidate model.Candidate
	Result    Result
}

// Prioritize returns the entries that clear minScore, highest score first.
// Ties keep input order.
func Prioritize(entries []Scored, minScore int) []Scored {
	out := make([]Scored, 0, len(entries))
	for _, e := range entries {
		if e.Result.Qualifies(minScore) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.Score > out[j].Result.Score
	})
	return out
}
