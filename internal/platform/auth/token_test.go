package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/apperr"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestTokenService(t *testing.T, store RevocationStore) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{Secret: testSecret, Issuer: "hospital"}, store)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService(TokenConfig{Secret: []byte("short")}, nil); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t, nil)
	id := Identity{UserID: uuid.New(), Email: "a@x.com", Role: RoleAdmin}

	tok, err := svc.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.TokenType != "bearer" {
		t.Errorf("expected bearer, got %s", tok.TokenType)
	}
	if tok.ExpiresIn != int64((48 * time.Hour).Seconds()) {
		t.Errorf("expected 2 day validity, got %ds", tok.ExpiresIn)
	}

	got, err := svc.Verify(context.Background(), tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.UserID != id.UserID || got.Role != RoleAdmin || got.Email != "a@x.com" {
		t.Errorf("unexpected identity: %+v", got)
	}
	if got.TokenID == "" {
		t.Error("expected token id")
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestTokenService(t, nil)
	tok, _ := svc.Issue(Identity{UserID: uuid.New(), Role: RoleDoctor})

	svc.now = func() time.Time { return time.Now().Add(49 * time.Hour) }
	_, err := svc.Verify(context.Background(), tok.AccessToken)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expiry message, got %q", err.Error())
	}
}

func TestVerify_Malformed(t *testing.T) {
	svc := newTestTokenService(t, nil)
	if _, err := svc.Verify(context.Background(), "not-a-token"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	svc := newTestTokenService(t, nil)
	other, _ := NewTokenService(TokenConfig{Secret: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "hospital"}, nil)
	tok, _ := other.Issue(Identity{UserID: uuid.New(), Role: RoleAdmin})

	if _, err := svc.Verify(context.Background(), tok.AccessToken); err == nil {
		t.Error("expected signature failure")
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestTokenService(t, nil)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "hospital",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(context.Background(), raw); err == nil {
		t.Error("expected none algorithm to be rejected")
	}
}

func TestRevoke(t *testing.T) {
	store := NewMemoryRevocationStore(0)
	defer store.Close()
	svc := newTestTokenService(t, store)
	tok, _ := svc.Issue(Identity{UserID: uuid.New(), Role: RolePatient})

	id, err := svc.Verify(context.Background(), tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := svc.Revoke(context.Background(), id); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Verify(context.Background(), tok.AccessToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected revoked token to be rejected, got %v", err)
	}
}

func TestRevoke_NotConfigured(t *testing.T) {
	svc := newTestTokenService(t, nil)
	if err := svc.Revoke(context.Background(), Identity{TokenID: "x"}); err == nil {
		t.Error("expected error without a revocation store")
	}
}
