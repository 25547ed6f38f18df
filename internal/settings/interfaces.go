package settings

import "context"

// RepositoryInterface defines the interface for system settings storage
type RepositoryInterface interface {
	GetAll(ctx context.Context) ([]*Setting, error)
	Get(ctx context.Context, key string) (*Setting, error)
	Set(ctx context.Context, key, value string) error
}
