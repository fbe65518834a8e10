package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tecnm-sys/apiserver/types"
)

// DefaultTokenTTL is the lifetime of every issued token.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrTokenExpired is returned by Decode when the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed is returned by Decode for any signature or structure failure.
	ErrTokenMalformed = errors.New("token malformed")

	errEmptySecret = errors.New("token secret is required")
)

// Claims is the identity embedded in a token.
type Claims struct {
	UserID      int        `json:"userId"`
	Email       string     `json:"email"`
	Role        types.Role `json:"role"`
	Username    string     `json:"username,omitempty"`
	FullName    string     `json:"nombreCompleto,omitempty"`
	Institution *string    `json:"institucion"`
	jwt.RegisteredClaims
}

// ClaimsForUser builds the claim set issued for user.
func ClaimsForUser(user types.User) Claims {
	claims := Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		Username: user.Username,
		FullName: user.FullName,
	}
	if institution := strings.TrimSpace(user.Institution); institution != "" {
		claims.Institution = &institution
	}
	return claims
}

// TokenService signs and verifies HS256 tokens with a process-wide secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTTL overrides DefaultTokenTTL.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService constructs a TokenService. The secret never changes afterwards.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errEmptySecret
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime applied by Issue.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs claims with an expiry of now + TTL.
func (s *TokenService) Issue(claims Claims) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.Itoa(claims.UserID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies tokenString and returns its claims.
// It fails with ErrTokenExpired or ErrTokenMalformed.
func (s *TokenService) Decode(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !token.Valid {
		return Claims{}, ErrTokenMalformed
	}
	if claims.UserID < 1 {
		return Claims{}, fmt.Errorf("%w: missing user id", ErrTokenMalformed)
	}
	if !claims.Role.Valid() {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrTokenMalformed, claims.Role)
	}
	return claims, nil
}
