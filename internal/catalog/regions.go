package catalog

import (
	"slices"

	"github.com/sells-group/lead-prospector/internal/textnorm"
)

// City is a search anchor for location-biased provider queries.
type City struct {
	Name    string
	Lat     float64
	Lng     float64
	RadiusM int
}

// Region groups target countries.
type Region struct {
	ID        string
	Label     string
	Countries []string
	// Cities are ordered by commercial priority.
	Cities []City
}

// Regions lists every target region.
var Regions = []Region{
	{ID: "mexico", Label: "México", Countries: []string{"MX"}, Cities: []City{
		{"Ciudad de México", 19.4326, -99.1332, 50000},
		{"Monterrey", 25.6866, -100.3161, 50000},
		{"Guadalajara", 20.6597, -103.3496, 50000},
		{"Querétaro", 20.5881, -100.3899, 30000},
		{"León", 21.1250, -101.6859, 30000},
		{"Puebla", 19.0414, -98.2063, 30000},
		{"Tijuana", 32.5149, -117.0382, 30000},
		{"Mérida", 20.9674, -89.5926, 30000},
	}},
	{ID: "central_america", Label: "Centroamérica", Countries: []string{"GT", "SV", "HN", "NI", "CR", "PA"}, Cities: []City{
		{"Ciudad de Guatemala", 14.6349, -90.5069, 40000},
		{"San Salvador", 13.6929, -89.2182, 30000},
		{"San José", 9.9281, -84.0907, 30000},
		{"Ciudad de Panamá", 8.9824, -79.5199, 30000},
	}},
	{ID: "south_america", Label: "Sudamérica", Countries: []string{"CO", "PE", "EC", "CL", "AR", "VE", "BO", "PY", "UY"}, Cities: []City{
		{"Bogotá", 4.7110, -74.0721, 50000},
		{"Lima", -12.0464, -77.0428, 50000},
		{"Santiago", -33.4489, -70.6693, 50000},
		{"Buenos Aires", -34.6037, -58.3816, 50000},
	}},
	{ID: "caribbean", Label: "Caribe", Countries: []string{"DO", "PR", "CU"}, Cities: []City{
		{"Santo Domingo", 18.4861, -69.9312, 30000},
		{"San Juan", 18.4655, -66.1057, 30000},
	}},
}

// countryLocalities maps ISO country codes to locality names used for
// substring matching of free-form location strings.
var countryLocalities = map[string][]string{
	"MX": {"méxico", "mexico", "cdmx", "monterrey", "guadalajara", "querétaro", "queretaro", "puebla", "león", "tijuana",
		"nuevo león", "jalisco", "sinaloa", "mazatlán", "veracruz", "mérida", "yucatán", "chihuahua", "sonora", "hermosillo",
		"toluca", "aguascalientes", "san luis potosí", "saltillo", "coahuila", "guanajuato", "celaya", "irapuato", "culiacán"},
	"GT": {"guatemala"},
	"SV": {"el salvador", "san salvador"},
	"HN": {"honduras", "tegucigalpa", "san pedro sula"},
	"NI": {"nicaragua", "managua"},
	"CR": {"costa rica", "san josé"},
	"PA": {"panamá", "panama"},
	"CO": {"colombia", "bogotá", "bogota", "medellín", "medellin", "cali", "barranquilla"},
	"PE": {"perú", "peru", "lima", "arequipa"},
	"EC": {"ecuador", "quito", "guayaquil"},
	"CL": {"chile", "santiago"},
	"AR": {"argentina", "buenos aires", "córdoba", "rosario"},
	"VE": {"venezuela", "caracas"},
	"BO": {"bolivia", "la paz", "santa cruz"},
	"PY": {"paraguay", "asunción"},
	"UY": {"uruguay", "montevideo"},
	"DO": {"república dominicana", "dominican", "santo domingo"},
	"PR": {"puerto rico"},
	"CU": {"cuba", "la habana"},
}

// RegionByID returns the region with the given id.
func RegionByID(id string) (Region, bool) {
	i := slices.IndexFunc(Regions, func(r Region) bool { return r.ID == id })
	if i < 0 {
		return Region{}, false
	}
	return Regions[i], true
}

// CountriesFor returns the union of country codes of the given regions.
func CountriesFor(regionIDs []string) []string {
	var out []string
	for _, id := range regionIDs {
		r, ok := RegionByID(id)
		if !ok {
			continue
		}
		for _, c := range r.Countries {
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// CitiesFor returns up to perRegion cities of each region, in region order.
// Unknown region ids are skipped.
func CitiesFor(regionIDs []string, perRegion int) []City {
	var out []City
	for _, id := range regionIDs {
		r, ok := RegionByID(id)
		if !ok {
			continue
		}
		out = append(out, r.Cities[:min(perRegion, len(r.Cities))]...)
	}
	return out
}

// CountryOf guesses the ISO country code of a free-form location.
func CountryOf(location string) (string, bool) {
	// Mexico first: "Santiago de Querétaro" is MX, not CL.
	order := append([]string{"MX"}, nonMexicoCountries()...)
	for _, code := range order {
		if textnorm.ContainsAny(location, countryLocalities[code]) {
			return code, true
		}
	}
	return "", false
}

// InRegions reports whether location lies in any of the region ids. An empty
// region list matches everything.
func InRegions(location string, regionIDs []string) bool {
	if len(regionIDs) == 0 {
		return true
	}
	code, ok := CountryOf(location)
	if !ok {
		return false
	}
	return slices.Contains(CountriesFor(regionIDs), code)
}

func nonMexicoCountries() []string {
	var codes []string
	for _, r := range Regions {
		for _, c := range r.Countries {
			if c != "MX" {
				codes = append(codes, c)
			}
		}
	}
	return codes
}
