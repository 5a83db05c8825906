package platform

import (
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Registry holds the fetchers of the enabled platforms.
type Registry struct {
	fetchers map[models.Platform]Fetcher
	logger   interfaces.Logger
}

// NewRegistry builds a fetcher for every enabled platform. Platform settings are keyed
// by the platform's configuration name.
func NewRegistry(platforms map[string]config.PlatformConfig, retry RetryPolicy, logger interfaces.Logger) (*Registry, error) {
	r := &Registry{
		fetchers: make(map[models.Platform]Fetcher),
		logger:   logger,
	}
	for _, p := range models.Platforms {
		cfg, ok := platforms[p.Name()]
		if !ok || !cfg.Enabled {
			continue
		}
		if cfg.BaseURL == "" {
			return nil, errors.Configuration("platforms.%s.base_url is required", p.Name())
		}
		fetcher, err := NewFetcher(p, NewFeedClient(p, cfg, retry, logger), logger)
		if err != nil {
			return nil, err
		}
		r.Register(fetcher)
	}
	logger.Info("Platform registry initialized", interfaces.Int("platforms", len(r.fetchers)))
	return r, nil
}

// Register adds or replaces the fetcher of its platform.
func (r *Registry) Register(f Fetcher) {
	r.fetchers[f.Platform()] = f
}

// Get returns the fetcher of a platform.
func (r *Registry) Get(p models.Platform) (Fetcher, error) {
	f, ok := r.fetchers[p]
	if !ok {
		return nil, errors.NotFound("platform " + string(p) + " is not enabled")
	}
	return f, nil
}

// Fetchers returns the registered fetchers in platform order.
func (r *Registry) Fetchers() []Fetcher {
	out := make([]Fetcher, 0, len(r.fetchers))
	for _, p := range models.Platforms {
		if f, ok := r.fetchers[p]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of registered fetchers.
func (r *Registry) Len() int {
	return len(r.fetchers)
}
