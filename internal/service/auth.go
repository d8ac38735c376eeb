// Package service implements caller authentication and credential helpers.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"golang.org/x/crypto/bcrypt"
)

const bearerScheme = "Bearer"

// Identity is the verified caller attached to one operation.
type Identity struct {
	UserIdx int64  `json:"user_idx"`
	UserID  string `json:"user_id"`
	UserNm  string `json:"user_nm"`
	Email   string `json:"email"`
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity. A nil identity is anonymous.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller, or nil for an anonymous caller.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity
}

// RequireIdentity returns the caller or ErrUnauthenticated.
func RequireIdentity(ctx context.Context) (*Identity, error) {
	identity := IdentityFromContext(ctx)
	if identity == nil || identity.UserIdx == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	return identity, nil
}

// AuthService resolves callers and mints credentials.
type AuthService interface {
	ResolveIdentity(ctx context.Context, authorization string) (*Identity, error)
	IssueToken(identity Identity) (string, error)
	NewEmailToken(email string) (string, error)
}

type authService struct {
	jwtService JWTService
	now        func() time.Time
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(jwtService JWTService) AuthService {
	return &authService{
		jwtService: jwtService,
		now:        time.Now,
	}
}

// ResolveIdentity turns a raw Authorization header value into an identity.
// An empty or non-Bearer header is anonymous (nil, nil); a Bearer credential
// that fails verification is an AuthenticationError. The scheme name is
// matched case-insensitively.
func (s *authService) ResolveIdentity(ctx context.Context, authorization string) (*Identity, error) {
	token, ok := bearerCredential(authorization)
	if !ok {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if token == "" {
		return nil, &apperrors.AuthenticationError{Reason: "empty bearer token", Err: apperrors.ErrInvalidToken}
	}

	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, &apperrors.AuthenticationError{Reason: "token verification failed", Err: errors.Join(apperrors.ErrInvalidToken, err)}
	}
	if claims.User.UserIdx == 0 {
		return nil, &apperrors.AuthenticationError{Reason: "token has no user claim", Err: apperrors.ErrInvalidToken}
	}

	identity := claims.User
	return &identity, nil
}

func bearerCredential(authorization string) (string, bool) {
	scheme, credential, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	return strings.TrimSpace(credential), true
}

func (s *authService) IssueToken(identity Identity) (string, error) {
	return s.jwtService.GenerateToken(identity)
}

// NewEmailToken derives a fresh single-use verification token for email.
// The seed is hashed before bcrypt so long addresses stay under bcrypt's
// 72 byte input limit; bcrypt's random salt makes every token unique.
func (s *authService) NewEmailToken(email string) (string, error) {
	seed := sha256.Sum256([]byte(fmt.Sprintf("AjouNICE!|authToken|%s|%d", email, s.now().UnixMilli())))
	salted, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(seed[:])), 10)
	if err != nil {
		return "", fmt.Errorf("failed to salt email token: %w", err)
	}
	digest := sha256.Sum256(salted)
	return hex.EncodeToString(digest[:]), nil
}
