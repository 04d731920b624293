package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/config"
	"github.com/sells-group/lead-prospector/internal/db"
	"github.com/sells-group/lead-prospector/internal/enrich"
	"github.com/sells-group/lead-prospector/internal/metrics"
	"github.com/sells-group/lead-prospector/internal/notify"
	"github.com/sells-group/lead-prospector/internal/prospect"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/internal/qualify"
	"github.com/sells-group/lead-prospector/internal/search"
	"github.com/sells-group/lead-prospector/internal/store"
	anthropicpkg "github.com/sells-group/lead-prospector/pkg/anthropic"
	"github.com/sells-group/lead-prospector/pkg/apollo"
	"github.com/sells-group/lead-prospector/pkg/denue"
	"github.com/sells-group/lead-prospector/pkg/google"
	"github.com/sells-group/lead-prospector/pkg/linkedin"
)

// prospectEnv holds the store, the orchestrator, and the collaborators the
// run and serve commands report through.
type prospectEnv struct {
	Store        store.Store
	Orchestrator *prospect.Orchestrator
	Qualifier    *qualify.Qualifier
	Metrics      *metrics.Recorder
	Notifier     notify.Notifier
}

// Close releases resources held by the environment.
func (pe *prospectEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.New(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		Pool: db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	})
}

// initProspector opens and migrates the store, builds every configured
// provider client, and wires the orchestrator. Callers should defer
// env.Close().
func initProspector(ctx context.Context, mode string) (*prospectEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	rec := metrics.New()

	registry, err := initSources(rec)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	qualifier, err := initQualifier(rec)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	chain, err := initEnrichment(rec)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orch := prospect.New(registry, qualifier, chain, st,
		prospect.WithMetrics(rec),
		prospect.WithAgentID(cfg.Prospect.AgentID),
	)

	return &prospectEnv{
		Store:        st,
		Orchestrator: orch,
		Qualifier:    qualifier,
		Metrics:      rec,
		Notifier: notify.New(notify.Config{
			ResendKey:  cfg.Notify.ResendKey,
			From:       cfg.Notify.From,
			Recipients: cfg.Notify.Recipients,
			BaseURL:    cfg.Notify.BaseURL,
		}),
	}, nil
}

// optional reports whether err means the provider has no credentials, in
// which case the capability falls back instead of failing startup.
func optional(name string, err error) bool {
	if errors.Is(err, provider.ErrNotConfigured) {
		zap.L().Info("provider not configured, using fallback", zap.String("provider", name))
		return true
	}
	return false
}

func initSources(rec *metrics.Recorder) (*search.Registry, error) {
	deps := search.Deps{
		DENUERadiusM:   cfg.DENUE.RadiusM,
		DirectoryFile:  cfg.Canacintra.DirectoryFile,
		DirectorySheet: cfg.Canacintra.Sheet,
		MinInterval:    config.Millis(cfg.Search.MinIntervalMs),
		CacheTTL:       config.Minutes(cfg.Search.CacheTTLMins),
		OnCall:         rec.ProviderCall,
	}

	if cfg.Search.DatasetFile != "" {
		data, err := os.ReadFile(cfg.Search.DatasetFile)
		if err != nil {
			return nil, eris.Wrap(err, "read curated dataset")
		}
		if deps.Dataset, err = search.LoadDataset(data); err != nil {
			return nil, err
		}
	}

	denueClient, err := denue.NewClient(cfg.DENUE.Token, denue.WithBaseURL(cfg.DENUE.BaseURL))
	switch {
	case err == nil:
		deps.DENUE = denueClient
	case !optional("denue", err):
		return nil, eris.Wrap(err, "init denue client")
	}

	googleClient, err := google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL))
	switch {
	case err == nil:
		deps.Google = googleClient
	case !optional("google_places", err):
		return nil, eris.Wrap(err, "init google client")
	}

	return search.NewDefaultRegistry(deps), nil
}

func initQualifier(rec *metrics.Recorder) (*qualify.Qualifier, error) {
	mode, err := qualify.ParseMode(cfg.Qualification.Mode)
	if err != nil {
		return nil, err
	}

	var client anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		client = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else if mode != qualify.ModeDeterministic {
		zap.L().Info("anthropic key not set, qualification is deterministic")
	}

	return qualify.New(client, qualify.Config{
		Mode:        mode,
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
		MinInterval: config.Millis(cfg.Anthropic.MinIntervalMs),
		BatchSize:   cfg.Anthropic.BatchSize,
		Pricing: anthropicpkg.Pricing{
			Input:  cfg.Anthropic.Pricing.Input,
			Output: cfg.Anthropic.Pricing.Output,
		},
		OnCall: rec.ProviderCall,
	}), nil
}

func initEnrichment(rec *metrics.Recorder) (*enrich.Chain, error) {
	mode, err := enrich.ParseMode(cfg.Enrichment.Mode)
	if err != nil {
		return nil, err
	}
	chainCfg := enrich.Config{Mode: mode}

	apolloClient, err := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
	switch {
	case err == nil:
		chainCfg.Primary = enrich.NewApolloProvider(apolloClient, provider.Options{
			MinInterval: config.Millis(cfg.Apollo.MinIntervalMs),
			CacheTTL:    config.Minutes(cfg.Apollo.CacheTTLMins),
			OnCall:      rec.ProviderCall,
		})
	case !optional("apollo", err):
		return nil, eris.Wrap(err, "init apollo client")
	}

	linkedinClient, err := linkedin.NewClient(cfg.LinkedIn.GatewayURL, linkedin.WithTool(cfg.LinkedIn.Tool))
	switch {
	case err == nil:
		chainCfg.Secondary = enrich.NewLinkedInProvider(linkedinClient, provider.Options{
			MinInterval: config.Millis(cfg.LinkedIn.MinIntervalMs),
			CacheTTL:    config.Minutes(cfg.LinkedIn.CacheTTLMins),
			OnCall:      rec.ProviderCall,
		})
	case !optional("linkedin", err):
		return nil, eris.Wrap(err, "init linkedin client")
	}

	if cfg.Enrichment.ScrapeWebsites {
		var hc *http.Client
		if cfg.Enrichment.TimeoutSecs > 0 {
			hc = &http.Client{Timeout: time.Duration(cfg.Enrichment.TimeoutSecs) * time.Second}
		}
		chainCfg.Website = enrich.NewWebsiteScraper(hc,
			provider.Options{
				MinInterval: config.Millis(cfg.Search.MinIntervalMs),
				CacheTTL:    config.Minutes(cfg.Search.CacheTTLMins),
				OnCall:      rec.ProviderCall,
			},
		)
	}

	chain := enrich.NewChain(chainCfg)
	zap.L().Info("enrichment chain ready",
		zap.String("mode", string(chain.Mode())),
		zap.Strings("providers", chain.Providers()),
		zap.Bool("website", cfg.Enrichment.ScrapeWebsites),
	)
	return chain, nil
}
