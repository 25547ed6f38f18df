package jwtkeys

import (
	"context"
	"time"

	"github.com/richxcame/courier-dispatch/pkg/config"
)

// NewManagerFromConfig builds a Manager using the shared JWT configuration.
func NewManagerFromConfig(ctx context.Context, cfg config.JWTConfig, readOnly bool) (*Manager, error) {
	return NewManager(ctx, Config{
		KeyFilePath:      cfg.KeyFilePath,
		RotationInterval: time.Duration(cfg.RotationDays) * 24 * time.Hour,
		GracePeriod:      time.Duration(cfg.GraceDays) * 24 * time.Hour,
		LegacySecret:     cfg.Secret,
		ReadOnly:         readOnly,
	})
}
