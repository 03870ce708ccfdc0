package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/apperr"
)

// DefaultTokenTTL is the validity of an issued access token.
const DefaultTokenTTL = 48 * time.Hour

// Claims is the JWT payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Token is an issued bearer credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"-"`
}

// TokenConfig configures the token service.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// TokenService issues and verifies HS256 access tokens. Verification is
// stateless unless a revocation store is attached.
type TokenService struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

func NewTokenService(cfg TokenConfig, revoked RevocationStore) (*TokenService, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret:  cfg.Secret,
		issuer:  cfg.Issuer,
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}, nil
}

// Issue signs a token for id.
func (s *TokenService) Issue(id Identity) (*Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: id.Email,
		Role:  id.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
		ExpiresAt:   exp,
	}, nil
}

// Verify parses and validates a token and returns the identity it carries.
func (s *TokenService) Verify(ctx context.Context, raw string) (Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Unauthorized("token expired")
		}
		return Identity{}, apperr.Unauthorized("invalid token")
	}
	if !token.Valid {
		return Identity{}, apperr.Unauthorized("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return Identity{}, apperr.Unauthorized("invalid token")
	}

	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, apperr.Internal(fmt.Errorf("check revocation: %w", err))
		}
		if revoked {
			return Identity{}, apperr.Unauthorized("token revoked")
		}
	}

	return Identity{
		UserID:    userID,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

// Revoke invalidates the token behind id until its natural expiry.
func (s *TokenService) Revoke(ctx context.Context, id Identity) error {
	if s.revoked == nil {
		return errors.New("token revocation is not configured")
	}
	if id.TokenID == "" {
		return apperr.Validation("token has no identifier")
	}
	return s.revoked.Revoke(ctx, id.TokenID, time.Unix(id.ExpiresAt, 0))
}

// TTL returns the configured token validity.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
