// Package auth is the credential service: it verifies passwords, issues
// role-bearing access tokens and authorizes requests against a required
// role. Revoked tokens are tracked in a Redis blacklist.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"library-service/model"
	"library-service/store"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid is returned for missing, malformed, expired or revoked tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrForbidden is returned when the token is valid but the role is not sufficient.
	ErrForbidden = errors.New("access denied")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrInvalidEmail is returned for emails failing the format check.
	ErrInvalidEmail = errors.New("email is not valid")
	// ErrInvalidPhone is returned for phone numbers failing the format check.
	ErrInvalidPhone = errors.New("phone number is not valid")
	// ErrMissingPassword is returned when a password is empty.
	ErrMissingPassword = errors.New("missing password")
	// ErrInvalidRole is returned for roles outside user/librarian.
	ErrInvalidRole = errors.New("invalid role")
	// ErrMissingSecret is returned when the token manager has no signing key.
	ErrMissingSecret = errors.New("missing signing secret")
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// Identity is the authenticated caller extracted from an access token.
type Identity struct {
	UserID int64
	Role   string
}

// RegisterInput is the input for Service.Register. Role defaults to "user".
type RegisterInput struct {
	Email    string
	Password string
	Phone    string
	Role     string
}

// Service wires the store, the token manager and the blacklist together.
type Service struct {
	store     *store.Store
	tokens    *TokenManager
	blacklist *Blacklist
	log       *zap.Logger
}

// NewService builds the credential service. blacklist may be nil, in which
// case logout is a no-op and revocation is not checked.
func NewService(st *store.Store, tokens *TokenManager, blacklist *Blacklist, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, tokens: tokens, blacklist: blacklist, log: log}
}

// Register creates an account after validating email, phone, password and
// role. Email uniqueness is enforced at write time.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	if in.Password == "" {
		return 0, ErrMissingPassword
	}
	if !emailPattern.MatchString(in.Email) {
		return 0, ErrInvalidEmail
	}
	if !phonePattern.MatchString(in.Phone) {
		return 0, ErrInvalidPhone
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if !model.ValidRole(in.Role) {
		return 0, ErrInvalidRole
	}

	if _, err := s.store.UserByEmail(ctx, in.Email); err == nil {
		return 0, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return 0, err
	}

	id, err := s.store.CreateUser(ctx, model.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Phone:        in.Phone,
	})
	if err != nil {
		// The UNIQUE constraint backs the lookup above under races.
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", id), zap.String("role", in.Role))
	return id, nil
}

// Login verifies the password and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (token, role string, err error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return "", "", ErrInvalidCredentials
	}

	token, err = s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return "", "", err
	}
	return token, user.Role, nil
}

// Authorize validates token, checks it against the blacklist and, when
// requiredRole is non-empty, requires an exact role match. It returns the
// caller's identity for request scoping.
func (s *Service) Authorize(ctx context.Context, token, requiredRole string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenInvalid
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsRevoked(ctx, token)
		if err != nil {
			return Identity{}, err
		}
		if revoked {
			return Identity{}, ErrTokenInvalid
		}
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return Identity{}, err
	}

	if requiredRole != "" && claims.Role != requiredRole {
		return Identity{}, ErrForbidden
	}
	return Identity{UserID: userID, Role: claims.Role}, nil
}

// Logout blacklists token for its remaining lifetime. Tokens that fail to
// parse are rejected rather than silently ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	if s.blacklist == nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	return s.blacklist.Revoke(ctx, token, ttl)
}
