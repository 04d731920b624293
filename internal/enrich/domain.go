package enrich

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/sells-group/lead-prospector/internal/textnorm"
)

// knownDomains maps the leading word of well-known Mexican groups to their
// corporate domain.
var knownDomains = map[string]string{
	"lala":    "grupolala.com",
	"sigma":   "sigma-alimentos.com",
	"bimbo":   "grupobimbo.com",
	"modelo":  "gmodelo.com.mx",
	"femsa":   "femsa.com",
	"alpura":  "alpura.com",
	"bachoco": "bachoco.com.mx",
	"sukarne": "sukarne.com",
	"gruma":   "gruma.com",
	"herdez":  "grupoherdez.com.mx",
}

var skipWords = []string{"sa", "sab", "sapi", "de", "cv", "srl", "grupo", "industrias", "alimentos", "inc", "corp", "llc"}

var nonWord = regexp.MustCompile(`[^a-z0-9\s]+`)

// DomainFromURL returns the host of a website URL without a leading "www.".
// Inputs without a dot are not treated as URLs.
func DomainFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, ".") {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// GuessDomains proposes candidate domains for a company name, known
// mappings first, then .com.mx and .com patterns.
func GuessDomains(company string) []string {
	normalized := nonWord.ReplaceAllString(textnorm.Fold(company), "")
	var words []string
	for _, w := range strings.Fields(normalized) {
		if len(w) > 2 && !slices.Contains(skipWords, w) {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil
	}

	base := words[0]
	full := strings.Join(words, "")
	var out []string
	if d, ok := knownDomains[base]; ok {
		out = append(out, d)
	}
	for _, tld := range []string{".com.mx", ".com"} {
		for _, name := range []string{base, full, "grupo" + base} {
			if d := name + tld; !slices.Contains(out, d) {
				out = append(out, d)
			}
		}
	}
	return out
}

// CompanySlug renders a company name as a LinkedIn company path segment.
func CompanySlug(company string) string {
	var b strings.Builder
	dash := false
	for _, r := range textnorm.Fold(company) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
