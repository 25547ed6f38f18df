package websocket

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/richxcame/courier-dispatch/pkg/jwtkeys"
	"github.com/richxcame/courier-dispatch/pkg/models"
)

// Claims represents JWT claims for WebSocket authentication
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims validates a bearer token and returns its claims. The gateway
// calls this before upgrading a connection.
func ParseClaims(tokenString string, provider jwtkeys.KeyProvider) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return resolveSigningKey(provider, token)
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// HubRole maps an authenticated user role onto the hub's client roles.
func HubRole(role models.UserRole) string {
	switch role {
	case models.RoleCourier:
		return "courier"
	case models.RoleAdmin:
		return "admin"
	default:
		return "sender"
	}
}

// resolveSigningKey resolves the JWT signing key
func resolveSigningKey(provider jwtkeys.KeyProvider, token *jwt.Token) ([]byte, error) {
	if provider == nil {
		return nil, jwt.ErrInvalidKey
	}

	var kid string
	if headerKid, ok := token.Header["kid"]; ok {
		kid, _ = headerKid.(string)
	}

	if kid != "" {
		return provider.ResolveKey(kid)
	}

	legacy := provider.LegacyKey()
	if len(legacy) == 0 {
		return nil, jwtkeys.ErrKeyNotFound
	}
	return legacy, nil
}
