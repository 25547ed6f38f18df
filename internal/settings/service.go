package settings

import (
	"context"

	"github.com/richxcame/courier-dispatch/pkg/cache"
)

// Service exposes typed system settings to the rest of the dispatch service.
// Reads go through the cache; writes invalidate it.
type Service struct {
	repo  RepositoryInterface
	cache *cache.Manager
}

// NewService creates a new settings service
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// SetCache sets an optional cache manager for the snapshot path.
func (s *Service) SetCache(cm *cache.Manager) {
	s.cache = cm
}

// Snapshot returns the typed settings snapshot (cached for 15 minutes).
// A failed load never blocks the pipeline: defaults are returned instead.
func (s *Service) Snapshot(ctx context.Context) (SystemSettings, error) {
	if s.cache != nil {
		var cached SystemSettings
		err := s.cache.GetOrSet(ctx, cache.Keys.Settings(), cache.TTL.Medium(), &cached, func() (interface{}, error) {
			return s.load(ctx)
		})
		if err == nil {
			return cached, nil
		}
		// Fall through to DB on cache error
	}
	return s.load(ctx)
}

// Get returns a single raw setting row
func (s *Service) Get(ctx context.Context, key string) (*Setting, error) {
	return s.repo.Get(ctx, key)
}

// Set updates a setting and invalidates the cached snapshot
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, cache.Keys.Settings(), cache.Keys.Setting(key))
	}
	return nil
}

func (s *Service) load(ctx context.Context) (SystemSettings, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return DefaultSystemSettings(), err
	}
	return fromRows(rows), nil
}
