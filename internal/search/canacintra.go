package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/sheet"
	"github.com/sells-group/lead-prospector/internal/textnorm"
)

const canacintraURL = "https://www.canacintra.org.mx"

// DirectorySearcher is the live provider of the CANACINTRA source: the
// chamber's member directory, exported as an XLSX workbook.
type DirectorySearcher struct {
	path string
	opts sheet.Options
}

// NewDirectorySearcher reads the workbook at path on every search.
func NewDirectorySearcher(path, sheetName string) *DirectorySearcher {
	return &DirectorySearcher{path: path, opts: sheet.Options{SheetName: sheetName}}
}

// Search returns the members matching the criteria, in workbook order.
func (s *DirectorySearcher) Search(ctx context.Context, c Criteria) ([]model.Candidate, error) {
	recs, err := sheet.ReadRecords(s.path, s.opts)
	if err != nil {
		return nil, eris.Wrap(err, "search: read canacintra directory")
	}

	var out []model.Candidate
	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cand, ok := fromMember(r)
		if !ok {
			continue
		}
		if !catalog.MatchesAnyIndustry(textnorm.Join(cand.Industry, cand.Notes), c.Industries) {
			continue
		}
		if !catalog.InRegions(cand.Location, c.Regions) {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

func fromMember(r sheet.Record) (model.Candidate, bool) {
	legal := r.Get("Razón social", "Razon social")
	company := r.Get("Empresa", "Nombre comercial", "Nombre")
	if company == "" {
		company = legal
	}
	if company == "" {
		return model.Candidate{}, false
	}
	if legal == "" {
		legal = company
	}

	activity := r.Get("Giro", "Actividad", "Sector", "Rama")
	location := joinNonEmpty(", ", r.Get("Ciudad", "Municipio"), r.Get("Estado"))
	if location == "" {
		location = r.Get("Ubicación", "Dirección", "Domicilio")
	}
	if _, ok := catalog.CountryOf(location); !ok {
		location = joinNonEmpty(", ", location, "México")
	}

	phone := r.Get("Teléfono", "Telefono", "Tel")
	if phone != "" {
		phone = NormalizePhone(phone)
	}

	return model.Candidate{
		Name:        legal,
		Company:     CompanyName(company),
		Email:       r.Get("Correo electrónico", "Correo", "Email", "E-mail"),
		Phone:       phone,
		Website:     r.Get("Sitio web", "Página web", "Web"),
		Industry:    industryFor(activity),
		Location:    location,
		CompanySize: memberSize(r.Get("Número de empleados", "Empleados", "Tamaño")),
		Source:      model.SourceCANACINTRA,
		SourceURL:   canacintraURL,
		Notes:       activity,
	}, true
}

// industryFor returns the catalog id whose keywords appear in activity, or
// activity itself when none does.
func industryFor(activity string) string {
	for _, ind := range catalog.Industries {
		if catalog.MatchesIndustry(activity, ind.ID) {
			return ind.ID
		}
	}
	return activity
}

func memberSize(v string) string {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return SizeFromEmployees(n)
	}
	return v
}
