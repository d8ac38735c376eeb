package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT token claims. The identity travels in the "user" claim.
type Claims struct {
	User Identity `json:"user"`
	jwt.RegisteredClaims
}

// JWTService defines JWT token operations.
type JWTService interface {
	GenerateToken(identity Identity) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	GetExpiry() time.Duration
}

type jwtService struct {
	secret []byte
	expiry time.Duration
}

// NewJWTService creates a new JWTService instance. It returns nil for an empty secret.
func NewJWTService(secret string, expiry time.Duration) JWTService {
	if secret == "" {
		return nil
	}
	return &jwtService{
		secret: []byte(secret),
		expiry: expiry,
	}
}

func (s *jwtService) GetExpiry() time.Duration {
	return s.expiry
}

func (s *jwtService) GenerateToken(identity Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		User: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *jwtService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
