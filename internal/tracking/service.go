package tracking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

// Service issues and validates opaque tracking tokens. Link rows are written
// by the delivery creation transaction; this service only generates and reads
// them.
type Service struct {
	repo RepositoryInterface
}

// NewService creates a new tracking service
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// NewLinkPair generates the recipient and sender links for a new delivery.
// The rows are not persisted here; the caller commits them atomically with
// the delivery.
func (s *Service) NewLinkPair(deliveryID uuid.UUID) (recipient, sender *TrackingLink, err error) {
	recipient, err = newLink(deliveryID, true)
	if err != nil {
		return nil, nil, err
	}
	sender, err = newLink(deliveryID, false)
	if err != nil {
		return nil, nil, err
	}
	return recipient, sender, nil
}

// Validate resolves a token to its delivery binding. Expired tokens are
// rejected; successful lookups bump the access counter.
func (s *Service) Validate(ctx context.Context, token string) (*TrackingLink, error) {
	link, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if link.Expired(time.Now()) {
		return nil, common.NewUnauthorizedError("tracking link has expired")
	}

	if err := s.repo.RecordAccess(ctx, link.ID); err != nil {
		logger.Warn("failed to record tracking link access",
			zap.String("link_id", link.ID.String()),
			zap.Error(err),
		)
	}
	return link, nil
}

// ValidateForDelivery resolves a token and checks it against a delivery.
func (s *Service) ValidateForDelivery(ctx context.Context, token string, deliveryID uuid.UUID) (*TrackingLink, error) {
	link, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.DeliveryID != deliveryID {
		return nil, common.NewForbiddenError("tracking link does not match this delivery")
	}
	return link, nil
}

// Revoke deletes a link; revoked tokens are gone for good.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}

// URL renders the public tracking URL for a token.
func URL(baseURL, token string) string {
	return fmt.Sprintf("%s/track/%s", baseURL, token)
}

func newLink(deliveryID uuid.UUID, isRecipient bool) (*TrackingLink, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	return &TrackingLink{
		ID:          uuid.New(),
		DeliveryID:  deliveryID,
		Token:       token,
		IsRecipient: isRecipient,
		ExpiresAt:   time.Now().Add(TokenTTL),
	}, nil
}

// generateToken returns 32 random bytes hex-encoded (64 characters).
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate tracking token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
