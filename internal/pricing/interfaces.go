package pricing

import (
	"context"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/internal/settings"
)

// RepositoryInterface defines the interface for package type lookups
type RepositoryInterface interface {
	GetPackageType(ctx context.Context, id uuid.UUID) (*PackageType, error)
	ListActivePackageTypes(ctx context.Context) ([]*PackageType, error)
}

// SettingsProvider supplies the pricing multipliers and tax rate.
type SettingsProvider interface {
	Snapshot(ctx context.Context) (settings.SystemSettings, error)
}
