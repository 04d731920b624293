package enrich

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
)

const (
	websiteName     = "website"
	websiteMaxBody  = 2 << 20
	websiteTimeout  = 15 * time.Second
	websiteAgent    = "Mozilla/5.0 (compatible; LeadProspector/1.0)"
	linkedInCompany = "https://www.linkedin.com/company/"
)

// roleMailboxes are the generic mailboxes guessed at a company domain.
var roleMailboxes = []string{"info", "ventas", "compras", "contacto", "mantenimiento"}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	contactWords = []string{"contacto", "contact", "contactanos", "contáctanos"}
)

// WebsiteScraper reads the candidate's home and contact pages for mailboxes,
// phone numbers, and the LinkedIn company link, and guesses role mailboxes
// at the company domain.
type WebsiteScraper struct {
	hc    *http.Client
	calls *provider.Client[model.Enrichment]
	log   *zap.Logger
}

// NewWebsiteScraper creates a scraper. A nil hc uses a client with a
// 15 second timeout.
func NewWebsiteScraper(hc *http.Client, opts provider.Options) *WebsiteScraper {
	if hc == nil {
		hc = &http.Client{Timeout: websiteTimeout}
	}
	if opts.Name == "" {
		opts.Name = websiteName
	}
	return &WebsiteScraper{
		hc:    hc,
		calls: provider.NewClient[model.Enrichment](opts),
		log:   zap.L().With(zap.String("component", "enrich.website")),
	}
}

// Name implements Provider.
func (w *WebsiteScraper) Name() string { return websiteName }

// Enrich implements Provider. Fetch failures are logged and the domain
// guesses are still returned.
func (w *WebsiteScraper) Enrich(ctx context.Context, c model.Candidate) (model.Enrichment, error) {
	site := siteURL(c)
	domain := DomainFromURL(site)
	if domain == "" {
		out := model.Enrichment{}
		if slug := CompanySlug(c.DisplayName()); slug != "" {
			out.LinkedInURL = linkedInCompany + slug
		}
		return out, nil
	}

	return w.calls.Lookup(ctx, domain, func(ctx context.Context) (model.Enrichment, error) {
		out := model.Enrichment{CompanyURL: site, Domain: domain}
		if err := w.scrape(ctx, site, &out); err != nil {
			if ctx.Err() != nil {
				return model.Enrichment{}, ctx.Err()
			}
			w.log.Debug("enrich: website fetch failed", zap.String("url", site), zap.Error(err))
		}
		for _, box := range roleMailboxes {
			out.GuessedEmails = appendUnique(out.GuessedEmails, box+"@"+domain)
		}
		if out.LinkedInURL == "" {
			if slug := CompanySlug(c.DisplayName()); slug != "" {
				out.LinkedInURL = linkedInCompany + slug
			}
		}
		return out, nil
	})
}

// scrape reads the home page and at most one same-host contact page.
func (w *WebsiteScraper) scrape(ctx context.Context, site string, out *model.Enrichment) error {
	doc, base, err := w.fetch(ctx, site)
	if err != nil {
		return err
	}
	extract(doc, out)

	contact := contactLink(doc, base)
	if contact == "" {
		return nil
	}
	doc, _, err = w.fetch(ctx, contact)
	if err != nil {
		return eris.Wrapf(err, "enrich: contact page %s", contact)
	}
	extract(doc, out)
	return nil
}

func (w *WebsiteScraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "enrich: build website request")
	}
	req.Header.Set("User-Agent", websiteAgent)
	req.Header.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.5")

	resp, err := w.hc.Do(req)
	if err != nil {
		return nil, nil, provider.Network(websiteName, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, nil, provider.Classify(websiteName, resp.StatusCode, body)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, websiteMaxBody))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "enrich: parse %s", rawURL)
	}
	return doc, resp.Request.URL, nil
}

// extract collects mailto addresses, tel numbers, addresses in the visible
// text, and the LinkedIn company link.
func extract(doc *goquery.Document, out *model.Enrichment) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr, _, _ := strings.Cut(href[len("mailto:"):], "?")
			if addr = strings.ToLower(strings.TrimSpace(addr)); strings.Contains(addr, "@") {
				out.GuessedEmails = appendUnique(out.GuessedEmails, addr)
			}
		case strings.HasPrefix(lower, "tel:"):
			out.Phones = appendUnique(out.Phones, strings.TrimSpace(href[len("tel:"):]))
		case out.LinkedInURL == "" && strings.Contains(lower, "linkedin.com/company/"):
			out.LinkedInURL = strings.TrimSuffix(href, "/")
		}
	})
	for _, addr := range emailPattern.FindAllString(doc.Find("body").Text(), -1) {
		addr = strings.ToLower(addr)
		if !strings.HasSuffix(addr, ".png") && !strings.HasSuffix(addr, ".jpg") {
			out.GuessedEmails = appendUnique(out.GuessedEmails, addr)
		}
	}
}

// contactLink returns the first same-host link whose text or path names a
// contact page.
func contactLink(doc *goquery.Document, base *url.URL) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.Scheme == "mailto" || u.Scheme == "tel" {
			return true
		}
		abs := base.ResolveReference(u)
		if abs.Host != base.Host || abs.Path == base.Path {
			return true
		}
		text := strings.ToLower(s.Text() + " " + abs.Path)
		for _, w := range contactWords {
			if strings.Contains(text, w) {
				abs.Fragment = ""
				found = abs.String()
				return false
			}
		}
		return true
	})
	return found
}

// siteURL returns the candidate's website as an absolute URL, or the site
// implied by a company email address.
func siteURL(c model.Candidate) string {
	if w := strings.TrimSpace(c.Website); w != "" && DomainFromURL(w) != "" {
		if !strings.Contains(w, "://") {
			w = "https://" + w
		}
		return w
	}
	if at := strings.LastIndex(c.Email, "@"); at >= 0 {
		d := strings.ToLower(strings.TrimSpace(c.Email[at+1:]))
		if d != "" && strings.Contains(d, ".") && !slices.Contains(freeMailDomains, d) {
			return "https://" + d
		}
	}
	return ""
}
