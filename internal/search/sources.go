package search

import (
	"time"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
	"github.com/sells-group/lead-prospector/pkg/denue"
	"github.com/sells-group/lead-prospector/pkg/google"
)

// Deps are the live providers available to the default sources. Nil
// clients leave the matching source on its curated dataset.
type Deps struct {
	Dataset *Dataset

	DENUE        denue.Client
	DENUERadiusM int

	Google google.Client

	DirectoryFile  string
	DirectorySheet string

	MinInterval time.Duration
	CacheTTL    time.Duration
	OnCall      func(provider, outcome string)
}

// NewDefaultRegistry registers the siem, canacintra, and google_maps
// sources.
func NewDefaultRegistry(d Deps) *Registry {
	if d.Dataset == nil {
		d.Dataset = DefaultDataset()
	}

	var siem LiveSearcher
	if d.DENUE != nil {
		calls := provider.NewClient[[]denue.Establishment](provider.Options{
			Name:        "denue",
			MinInterval: d.MinInterval,
			CacheTTL:    d.CacheTTL,
			OnCall:      d.OnCall,
		})
		siem = NewDENUESearcher(d.DENUE, calls, d.DENUERadiusM)
	}

	var directory LiveSearcher
	if d.DirectoryFile != "" {
		directory = NewDirectorySearcher(d.DirectoryFile, d.DirectorySheet)
	}

	var places LiveSearcher
	if d.Google != nil {
		calls := provider.NewClient[*google.TextSearchResponse](provider.Options{
			Name:        "google_places",
			MinInterval: d.MinInterval,
			CacheTTL:    d.CacheTTL,
			OnCall:      d.OnCall,
		})
		places = NewPlacesSearcher(d.Google, calls)
	}

	return NewRegistry(
		NewFallbackAdapter(SourceSIEM, siem, d.Dataset, model.SourceSIEM),
		NewFallbackAdapter(SourceCANACINTRA, directory, d.Dataset, model.SourceCANACINTRA),
		NewFallbackAdapter(SourceGoogleMaps, places, d.Dataset, model.SourceGoogleMaps),
	)
}
