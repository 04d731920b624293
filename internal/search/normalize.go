package search

import (
	"regexp"
	"strings"
)

var legalSuffix = regexp.MustCompile(`(?i)[\s,]+(S\.?\s*A\.?\s*B?\.?\s*de\s*C\.?\s*V\.?|S\.?\s*A\.?\s*P\.?\s*I\.?\s*de\s*C\.?\s*V\.?|S\.?\s*de\s*R\.?\s*L\.?(\s*de\s*C\.?\s*V\.?)?|S\.?\s*A\.?\s*C\.?|S\.?\s*A\.?\s*S\.?|S\.?\s*A\.?|S\.?\s*R\.?\s*L\.?|LLC|Inc\.?)$`)

// CompanyName strips a trailing legal-entity suffix such as "S.A. de C.V.".
func CompanyName(name string) string {
	return strings.TrimSpace(legalSuffix.ReplaceAllString(strings.TrimSpace(name), ""))
}

// NormalizePhone formats 10-digit Mexican numbers as "+52 XXXXXXXXXX".
// Other inputs are returned unchanged.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+52 " + d
	case len(d) == 12 && strings.HasPrefix(d, "52"):
		return "+" + d
	default:
		return strings.TrimSpace(phone)
	}
}

// SizeFromStratum maps a DENUE employment stratum ("51 a 100 personas")
// onto the rubric's size bands.
func SizeFromStratum(stratum string) string {
	s := strings.ToLower(stratum)
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "251") || strings.Contains(s, "más") || strings.Contains(s, "mas"):
		return "250-500"
	case strings.Contains(s, "101"):
		return "100-250"
	case strings.Contains(s, "51"):
		return "50-100"
	case strings.Contains(s, "31"), strings.Contains(s, "11"):
		return "25-50"
	default:
		return "1-10"
	}
}

// SizeFromEmployees maps a headcount onto the rubric's size bands.
func SizeFromEmployees(n int) string {
	switch {
	case n <= 0:
		return ""
	case n < 10:
		return "1-10"
	case n < 25:
		return "10-25"
	case n < 50:
		return "25-50"
	case n <= 100:
		return "50-100"
	case n <= 250:
		return "100-250"
	case n <= 500:
		return "200-500"
	case n <= 1000:
		return "500-1000"
	default:
		return "1000+"
	}
}

// SizeFromPlaceTypes estimates company size from a maps place's type tags.
func SizeFromPlaceTypes(types []string) string {
	var poi, est bool
	for _, t := range types {
		switch t {
		case "point_of_interest":
			poi = true
		case "establishment":
			est = true
		}
	}
	if !poi || !est {
		return ""
	}
	switch {
	case len(types) > 5:
		return "100-500"
	case len(types) > 3:
		return "50-100"
	default:
		return "10-50"
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
