// Package enrich gathers contacts and company details for qualified
// candidates from an ordered pair of providers.
package enrich

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
)

// Provider enriches one candidate.
type Provider interface {
	Name() string
	Enrich(ctx context.Context, c model.Candidate) (model.Enrichment, error)
}

// Mode selects which providers the chain consults.
type Mode string

const (
	ModePrimaryOnly          Mode = "primary"
	ModeSecondaryOnly        Mode = "secondary"
	ModePrimaryThenSecondary Mode = "primary_then_secondary"
)

// ParseMode parses a configured mode. Empty selects
// ModePrimaryThenSecondary.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModePrimaryThenSecondary, nil
	case ModePrimaryOnly, ModeSecondaryOnly, ModePrimaryThenSecondary:
		return m, nil
	default:
		return "", eris.Errorf("enrich: unknown mode %q", s)
	}
}

// Config wires a Chain. Nil providers are skipped.
type Config struct {
	Mode      Mode
	Primary   Provider
	Secondary Provider
	// Website, when set, runs after the providers and adds guessed
	// mailboxes and contact details found on the candidate's site.
	Website Provider
}

// Chain runs providers in order and never fails.
type Chain struct {
	mode      Mode
	providers []Provider
	website   Provider
	log       *zap.Logger
}

// NewChain builds a chain from cfg.
func NewChain(cfg Config) *Chain {
	if cfg.Mode == "" {
		cfg.Mode = ModePrimaryThenSecondary
	}
	var ps []Provider
	switch cfg.Mode {
	case ModePrimaryOnly:
		ps = []Provider{cfg.Primary}
	case ModeSecondaryOnly:
		ps = []Provider{cfg.Secondary}
	default:
		ps = []Provider{cfg.Primary, cfg.Secondary}
	}
	ps = slices.DeleteFunc(ps, func(p Provider) bool { return p == nil })

	return &Chain{
		mode:      cfg.Mode,
		providers: ps,
		website:   cfg.Website,
		log:       zap.L().With(zap.String("component", "enrich")),
	}
}

// Mode returns the configured mode.
func (ch *Chain) Mode() Mode { return ch.mode }

// Providers returns the names of the consulted providers in order.
func (ch *Chain) Providers() []string {
	names := make([]string, len(ch.providers))
	for i, p := range ch.providers {
		names[i] = p.Name()
	}
	return names
}

type response struct {
	name string
	enr  model.Enrichment
}

// Enrich returns the contacts of the first provider that yields any, and
// company fields from the first provider that responded at all. Provider
// failures degrade to an empty enrichment.
func (ch *Chain) Enrich(ctx context.Context, c model.Candidate) (out model.Enrichment) {
	out = model.Enrichment{Contacts: []model.Contact{}}
	log := ch.log.With(zap.String("company", c.DisplayName()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("enrich: provider panicked", zap.Any("panic", r))
			out = model.Enrichment{Contacts: []model.Contact{}}
		}
	}()

	var responses []response
	attempts := make([]provider.Attempt[model.Candidate, model.Enrichment], 0, len(ch.providers))
	for _, p := range ch.providers {
		attempts = append(attempts, provider.Attempt[model.Candidate, model.Enrichment]{
			Name: p.Name(),
			Run: func(ctx context.Context, c model.Candidate) (model.Enrichment, error) {
				enr, err := p.Enrich(ctx, c)
				if err != nil {
					log.Info("enrich: provider failed",
						zap.String("provider", p.Name()),
						zap.String("kind", provider.KindOf(err).String()),
						zap.Error(err),
					)
					return enr, err
				}
				responses = append(responses, response{name: p.Name(), enr: enr})
				return enr, nil
			},
			Accept: func(e model.Enrichment) bool { return len(e.Contacts) > 0 },
		})
	}

	if len(attempts) > 0 {
		res, err := provider.FirstSuccess(ctx, attempts, c)
		if err == nil {
			out.Contacts = res.Value.Contacts
			if res.Index > 0 {
				log.Info("enrich: primary provider had no contacts, used fallback",
					zap.String("provider", res.Name),
					zap.Int("contacts", len(res.Value.Contacts)),
				)
			}
		}
	}
	for _, r := range responses {
		merge(&out, r.name, r.enr)
	}

	if ch.website != nil && ctx.Err() == nil {
		enr, err := ch.website.Enrich(ctx, c)
		if err != nil {
			log.Debug("enrich: website lookup failed", zap.Error(err))
		} else {
			merge(&out, ch.website.Name(), enr)
		}
	}

	log.Debug("enrich: candidate enriched",
		zap.Int("contacts", len(out.Contacts)),
		zap.Strings("sources", out.Sources),
	)
	return out
}

// merge fills unset company fields of dst from src and appends its guessed
// mailboxes and phones.
func merge(dst *model.Enrichment, name string, src model.Enrichment) {
	if src.Empty() && src.Domain == "" {
		return
	}
	dst.MergeCompany(src)
	dst.GuessedEmails = appendUnique(dst.GuessedEmails, src.GuessedEmails...)
	dst.Phones = appendUnique(dst.Phones, src.Phones...)
	dst.Sources = appendUnique(dst.Sources, name)
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
