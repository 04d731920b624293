package search

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-prospector/internal/catalog"
	"github.com/sells-group/lead-prospector/internal/model"
)

//go:embed curated.yaml
var curatedYAML []byte

type curatedRecord struct {
	Name        string `yaml:"name"`
	Company     string `yaml:"company"`
	Email       string `yaml:"email"`
	Phone       string `yaml:"phone"`
	Website     string `yaml:"website"`
	Industry    string `yaml:"industry"`
	Location    string `yaml:"location"`
	CompanySize string `yaml:"company_size"`
	Source      string `yaml:"source"`
	Notes       string `yaml:"notes"`
}

// Dataset is the bundled list of known industrial companies.
type Dataset struct {
	records []model.Candidate
}

// LoadDataset parses a YAML list of companies.
func LoadDataset(data []byte) (*Dataset, error) {
	var recs []curatedRecord
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, eris.Wrap(err, "search: parse curated dataset")
	}
	ds := &Dataset{records: make([]model.Candidate, 0, len(recs))}
	for _, r := range recs {
		ds.records = append(ds.records, model.Candidate{
			Name:        r.Name,
			Company:     r.Company,
			Email:       r.Email,
			Phone:       r.Phone,
			Website:     r.Website,
			Industry:    r.Industry,
			Location:    r.Location,
			CompanySize: r.CompanySize,
			Source:      r.Source,
			Notes:       r.Notes,
		})
	}
	return ds, nil
}

// DefaultDataset returns the embedded curated dataset.
func DefaultDataset() *Dataset {
	ds, err := LoadDataset(curatedYAML)
	if err != nil {
		panic(err)
	}
	return ds
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Filter returns the records tagged source (any source when empty) whose
// industry matches one of industries and whose location lies in one of
// regions. Empty filters match everything.
func (d *Dataset) Filter(source string, industries, regions []string) []model.Candidate {
	if d == nil {
		return nil
	}
	var out []model.Candidate
	for _, r := range d.records {
		if source != "" && r.Source != source {
			continue
		}
		industryText := r.Industry
		if industryText == "" {
			industryText = r.Company
		}
		if !catalog.MatchesAnyIndustry(industryText, industries) {
			continue
		}
		if !catalog.InRegions(r.Location, regions) {
			continue
		}
		r.SourceURL = curatedSourceURL(r.Source)
		out = append(out, r)
	}
	return out
}

func curatedSourceURL(source string) string {
	switch source {
	case model.SourceSIEM:
		return "https://siem.economia.gob.mx"
	case model.SourceCANACINTRA:
		return "https://www.canacintra.org.mx"
	default:
		return ""
	}
}
