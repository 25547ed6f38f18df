package pricing

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/internal/settings"
	"github.com/richxcame/courier-dispatch/pkg/cache"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

// Service resolves package types and settings, then runs the fee formula.
type Service struct {
	repo     RepositoryInterface
	settings SettingsProvider
	cache    *cache.Manager
}

// NewService creates a new pricing service
func NewService(repo RepositoryInterface, settings SettingsProvider) *Service {
	return &Service{repo: repo, settings: settings}
}

// SetCache sets an optional cache manager for package type lookups.
func (s *Service) SetCache(cm *cache.Manager) {
	s.cache = cm
}

// QuoteDelivery prices a delivery request. The same inputs always produce the
// same breakdown, so the estimate endpoint and creation share this path.
func (s *Service) QuoteDelivery(ctx context.Context, in QuoteInput, packageTypeID uuid.UUID) (*Quote, *PackageType, error) {
	pt, err := s.GetPackageType(ctx, packageTypeID)
	if err != nil {
		return nil, nil, err
	}
	if !pt.IsActive {
		return nil, nil, common.NewValidationError("package type is not available")
	}

	sys, err := s.settings.Snapshot(ctx)
	if err != nil {
		logger.Warn("settings snapshot unavailable, pricing with defaults", zap.Error(err))
		sys = settings.DefaultSystemSettings()
	}

	quote := ComputeQuote(in, pt, sys)
	return &quote, pt, nil
}

// GetPackageType retrieves a package type (cached for 15 minutes).
func (s *Service) GetPackageType(ctx context.Context, id uuid.UUID) (*PackageType, error) {
	if s.cache != nil {
		var cached PackageType
		err := s.cache.GetOrSet(ctx, cache.Keys.PackageType(id.String()), cache.TTL.Medium(), &cached, func() (interface{}, error) {
			return s.repo.GetPackageType(ctx, id)
		})
		if err == nil {
			return &cached, nil
		}
		if _, ok := common.AsAppError(err); ok {
			return nil, err
		}
	}
	return s.repo.GetPackageType(ctx, id)
}

// ListPackageTypes returns the active catalog (cached for 15 minutes).
func (s *Service) ListPackageTypes(ctx context.Context) ([]*PackageType, error) {
	if s.cache != nil {
		var cached []*PackageType
		err := s.cache.GetOrSet(ctx, cache.Keys.PackageTypes(), cache.TTL.Medium(), &cached, func() (interface{}, error) {
			return s.repo.ListActivePackageTypes(ctx)
		})
		if err == nil {
			if cached == nil {
				cached = []*PackageType{}
			}
			return cached, nil
		}
	}
	return s.repo.ListActivePackageTypes(ctx)
}
