package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is written into every token and required on verification
const Issuer = "gophblog"

// ErrInvalidToken is returned for any token that cannot be trusted:
// empty, malformed, wrong signature or algorithm, expired.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the identity carried by a session token
type Claims struct {
	Username string    `json:"username"`
	UserID   uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 session tokens.
// The secret and lifetime are fixed at construction.
type Service struct {
	now    func() time.Time
	secret []byte
	ttl    time.Duration
}

// NewService creates a new JWT service.
// ttl == 0 issues tokens without an exp claim.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("token ttl cannot be negative: %s", ttl)
	}

	return &Service{
		now:    time.Now,
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

// TTL returns the configured token lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given user
func (s *Service) Issue(userID uuid.UUID, username string) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id cannot be empty")
	}

	now := s.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			Issuer:   Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the token signature and time claims and returns its claims.
// Every failure is reported as ErrInvalidToken wrapping the parser error.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	return claims, nil
}
