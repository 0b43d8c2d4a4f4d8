package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campushub/auth-api/internal/models"
	"github.com/campushub/auth-api/pkg/config"
	appErrors "github.com/campushub/auth-api/pkg/errors"
)

// TokenService issues and decodes the signed, time-bounded tokens carrying
// session claims. Issuance and decoding are pure: no persistent state is
// consulted, only the signing secret and the clock.
type TokenService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
}

// NewTokenService constructs a TokenService from the JWT configuration.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret:        []byte(cfg.Secret),
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		issuer:        cfg.Issuer,
	}
}

// AccessExpiry returns the configured access token lifetime.
func (s *TokenService) AccessExpiry() time.Duration { return s.accessExpiry }

// RefreshExpiry returns the configured refresh token lifetime.
func (s *TokenService) RefreshExpiry() time.Duration { return s.refreshExpiry }

// IssueAccess creates a short-lived access token for the user. The jti is a
// fresh uuid4, unique over the system's lifetime for revocation bookkeeping.
func (s *TokenService) IssueAccess(user *models.User) (string, *models.JWTClaims, error) {
	return s.issue(user.ID, user.Role, models.TokenKindAccess, s.accessExpiry)
}

// IssueRefresh creates a long-lived refresh token. Role is not embedded; a
// refresh token proves nothing beyond the right to rotate.
func (s *TokenService) IssueRefresh(userID string) (string, *models.JWTClaims, error) {
	return s.issue(userID, "", models.TokenKindRefresh, s.refreshExpiry)
}

func (s *TokenService) issue(userID string, role models.UserRole, kind models.TokenKind, expiry time.Duration) (string, *models.JWTClaims, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: userID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Decode verifies signature, expiry and kind, returning the claims. Failure
// reasons stay distinguishable: expired, malformed and wrong-kind map to
// separate error codes.
func (s *TokenService) Decode(tokenString string, kind models.TokenKind) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrTokenExpired.Code, appErrors.ErrTokenExpired.Status, appErrors.ErrTokenExpired.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTokenMalformed.Code, appErrors.ErrTokenMalformed.Status, appErrors.ErrTokenMalformed.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrTokenMalformed, "invalid token claims")
	}

	if claims.Kind != kind {
		return nil, appErrors.Clone(appErrors.ErrWrongTokenKind, fmt.Sprintf("expected %s token", kind))
	}

	return claims, nil
}
