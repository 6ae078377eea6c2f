package clouddeploy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/reillywatson/dorastats/internal/cache"
	"github.com/reillywatson/dorastats/internal/observability"
	"github.com/reillywatson/dorastats/internal/snapshot"
)

// finishedTTL is how long a finished release's deployment stays cached
const finishedTTL = 24 * time.Hour

// Source supplies Cloud Deploy releases as deployments. Finished releases are
// cached when a cache is given.
type Source struct {
	api         API
	cache       cache.Cache
	kb          *cache.KeyBuilder
	project     string
	region      string
	environment string
	logger      *slog.Logger
}

// NewSource creates a source. c may be nil.
func NewSource(api API, c cache.Cache, project, region, environment string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		api:         api,
		cache:       c,
		kb:          cache.NewKeyBuilder("deploy"),
		project:     project,
		region:      region,
		environment: environment,
		logger:      logger,
	}
}

// Deployments lists the releases created since and converts each one. A
// release whose rollouts report no end time falls back to its first log
// entry; releases that cannot be resolved are skipped with a warning.
func (s *Source) Deployments(ctx context.Context, since time.Time) ([]snapshot.Deployment, error) {
	releases, err := s.api.ListReleases(ctx, since)
	if err != nil {
		return nil, err
	}

	out := []snapshot.Deployment{}
	for _, release := range releases {
		key := s.kb.RolloutsKey(s.project, s.region, release.GetName())
		if s.cache != nil {
			var cached snapshot.Deployment
			err := s.cache.Get(key, &cached)
			if err == nil {
				observability.CacheLookup("deploy", true)
				out = append(out, cached)
				continue
			}
			observability.CacheLookup("deploy", false)
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.logger.Warn("cache read failed", "key", key, "error", err)
			}
		}

		rollouts, err := s.api.ListRollouts(ctx, release.GetName())
		if err != nil {
			s.logger.Warn("skipping release", "release", release.GetName(), "error", err)
			continue
		}
		dep := DeploymentFromRelease(release, rollouts, s.environment)

		if dep.FinishedAt.IsZero() && !dep.CreatedAt.IsZero() {
			first, err := s.api.FirstLogEntry(ctx, ReleaseID(release.GetName()), dep.CreatedAt.Time)
			if err != nil {
				s.logger.Warn("release has no finish time", "release", release.GetName(), "error", err)
			} else {
				dep.FinishedAt = snapshot.At(first)
				if dep.State == snapshot.StateUnknown {
					dep.State = snapshot.StateSuccess
				}
			}
		}

		if s.cache != nil && !dep.FinishedAt.IsZero() {
			if err := s.cache.Set(key, dep, finishedTTL); err != nil {
				s.logger.Warn("cache write failed", "key", key, "error", err)
			}
		}
		out = append(out, dep)
	}
	return out, nil
}
