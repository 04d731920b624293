// Package catalog holds the fixed reference tables of the prospection
// domain: target industries, regions, equipment brands, and decision-maker
// titles.
package catalog

import (
	"slices"

	"github.com/sells-group/lead-prospector/internal/textnorm"
)

// Industry is a target vertical with the keywords that identify it.
type Industry struct {
	ID       string
	Label    string
	Keywords []string
	// SearchTerms are the queries sent to live directory and maps providers.
	SearchTerms []string
	// SCIAN is the Mexican industrial classification prefix, when known.
	SCIAN string
}

// Industries lists every target vertical.
var Industries = []Industry{
	{
		ID:          "food_processing",
		Label:       "Procesamiento de alimentos",
		Keywords:    []string{"alimentos", "procesadora", "empacadora", "food", "processing"},
		SearchTerms: []string{"procesadora de alimentos", "empacadora de alimentos"},
		SCIAN:       "311",
	},
	{
		ID:          "cold_storage",
		Label:       "Almacenamiento en frío",
		Keywords:    []string{"frío", "frigorífico", "almacén", "cold", "storage", "cadena de frío"},
		SearchTerms: []string{"almacén frigorífico", "cámaras de refrigeración"},
		SCIAN:       "4931",
	},
	{
		ID:          "dairy",
		Label:       "Lácteos",
		Keywords:    []string{"lácteos", "leche", "quesos", "yogurt", "dairy", "lacteos"},
		SearchTerms: []string{"lácteos", "procesadora de leche"},
		SCIAN:       "3115",
	},
	{
		ID:          "meat",
		Label:       "Cárnicos",
		Keywords:    []string{"cárnicos", "rastro", "carnes", "frigorífico", "meat", "carnicos"},
		SearchTerms: []string{"empacadora de carnes", "rastro TIF"},
		SCIAN:       "3116",
	},
	{
		ID:          "beverages",
		Label:       "Bebidas y cervecerías",
		Keywords:    []string{"cervecería", "bebidas", "refrescos", "jugos", "beverages", "cerveza"},
		SearchTerms: []string{"cervecería", "embotelladora de bebidas"},
		SCIAN:       "3121",
	},
	{
		ID:          "pharmaceuticals",
		Label:       "Farmacéutica",
		Keywords:    []string{"farmacéutico", "laboratorio", "medicamentos", "pharma", "farmaceutico"},
		SearchTerms: []string{"laboratorio farmacéutico", "fabricante de medicamentos"},
		SCIAN:       "3254",
	},
	{
		ID:          "ice_plants",
		Label:       "Plantas de hielo",
		Keywords:    []string{"hielo", "ice", "planta de hielo"},
		SearchTerms: []string{"fábrica de hielo", "planta de hielo"},
		SCIAN:       "312113",
	},
	{
		ID:          "supermarkets",
		Label:       "Supermercados",
		Keywords:    []string{"supermercado", "tienda", "autoservicio", "supermarket"},
		SearchTerms: []string{"supermercado", "centro de distribución autoservicio"},
		SCIAN:       "4611",
	},
}

// IndustryByID returns the industry with the given id.
func IndustryByID(id string) (Industry, bool) {
	i := slices.IndexFunc(Industries, func(ind Industry) bool { return ind.ID == id })
	if i < 0 {
		return Industry{}, false
	}
	return Industries[i], true
}

// IndustryIDs returns every industry id in table order.
func IndustryIDs() []string {
	ids := make([]string, len(Industries))
	for i, ind := range Industries {
		ids[i] = ind.ID
	}
	return ids
}

// MatchesIndustry reports whether text names industry id, either by the id
// itself or by any of its keywords.
func MatchesIndustry(text, id string) bool {
	ind, ok := IndustryByID(id)
	if !ok {
		return textnorm.ContainsAny(text, []string{id})
	}
	return textnorm.ContainsAny(text, append([]string{ind.ID}, ind.Keywords...))
}

// MatchesAnyIndustry reports whether text matches at least one of ids. An
// empty ids list matches everything.
func MatchesAnyIndustry(text string, ids []string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if MatchesIndustry(text, id) {
			return true
		}
	}
	return false
}

// MatchesTargetIndustry reports whether text contains a keyword of any
// target industry.
func MatchesTargetIndustry(text string) bool {
	for _, ind := range Industries {
		if textnorm.ContainsAny(text, ind.Keywords) {
			return true
		}
	}
	return false
}
