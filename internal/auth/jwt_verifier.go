package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// allowedAlgorithms prevents algorithm confusion attacks.
var allowedAlgorithms = []string{"RS256", "ES256"}

// JWKSVerifier implements JWTVerifier with keys looked up by kid.
type JWKSVerifier struct {
	keyfunc jwt.Keyfunc
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from a JWKS
// endpoint. keyfunc v3 caches the keys and refreshes them in the background.
func NewJWTVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return NewKeyfuncVerifier(jwks.Keyfunc, logger), nil
}

// NewKeyfuncVerifier creates a verifier over any key lookup, e.g. a static
// JWK set.
func NewKeyfuncVerifier(kf jwt.Keyfunc, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{keyfunc: kf, logger: logger}
}

// VerifyToken validates a JWT token and extracts the actor claims.
func (v *JWKSVerifier) VerifyToken(tokenString string) (*models.ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ActorClaims{}, v.keyfunc,
		jwt.WithValidMethods(allowedAlgorithms),
	)
	if err != nil {
		v.logger.Debug("token parse failed", "error", err.Error())
		return nil, domain.ErrUnauthorized
	}
	if !token.Valid {
		v.logger.Debug("token is invalid after parsing")
		return nil, domain.ErrUnauthorized
	}

	if !slices.Contains(allowedAlgorithms, token.Method.Alg()) {
		v.logger.Warn("token uses unexpected algorithm", "algorithm", token.Method.Alg(), "allowed", allowedAlgorithms)
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.ActorClaims)
	if !ok {
		v.logger.Error("failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	// The subject becomes the actor id
	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close is a no-op: keyfunc v3 manages its own refresh goroutine through
// the context it was created with.
func (v *JWKSVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
