package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

const msgBadCredentials = "incorrect username or password"

// TokenIssuer issues and revokes access tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (*auth.Token, error)
	Revoke(ctx context.Context, id auth.Identity) error
}

// AuthRecorder observes login outcomes.
type AuthRecorder interface {
	AuthAttempt(outcome string)
}

type Service struct {
	users    UserRepository
	hasher   *auth.PasswordHasher
	tokens   TokenIssuer
	recorder AuthRecorder
}

func NewService(users UserRepository, hasher *auth.PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// WithRecorder attaches a login outcome recorder.
func (s *Service) WithRecorder(r AuthRecorder) *Service {
	s.recorder = r
	return s
}

// NormalizeEmail lower-cases and trims an address. Emails are unique
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. It must run in the same unit of work as the
// creation of the user's role profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Validation("email must be a valid email address")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("unknown role %d", int(in.Role))
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}

	// Advisory: the unique index on lower(email) decides races.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Duplicate("email already registered")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	u := &User{
		UserName:     strings.TrimSpace(in.UserName),
		Role:         in.Role,
		Email:        email,
		PasswordHash: hash,
	}
	if u.UserName == "" {
		u.UserName = email
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks a credential pair. Unknown emails and wrong passwords
// fail identically.
func (s *Service) Authenticate(ctx context.Context, email, password string) (auth.Identity, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return auth.Identity{}, err
		}
		s.hasher.CompareDummy(password)
		s.record("failure")
		return auth.Identity{}, apperr.Unauthorized(msgBadCredentials)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return auth.Identity{}, apperr.Internal(err)
		}
		s.record("failure")
		return auth.Identity{}, apperr.Unauthorized(msgBadCredentials)
	}

	s.record("success")
	return u.Identity(), nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*auth.Token, error) {
	id, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tok, nil
}

// Logout revokes the token the identity was authenticated with.
func (s *Service) Logout(ctx context.Context, id auth.Identity) error {
	return s.tokens.Revoke(ctx, id)
}

// ResolveIdentity implements auth.IdentityResolver.
func (s *Service) ResolveIdentity(ctx context.Context, userID uuid.UUID) (auth.Identity, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return auth.Identity{}, err
	}
	return u.Identity(), nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// LockRegistration holds the bootstrap lock for the rest of the caller's
// transaction.
func (s *Service) LockRegistration(ctx context.Context) error {
	return s.users.LockRegistration(ctx)
}

func (s *Service) CountUsers(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.AuthAttempt(outcome)
	}
}
