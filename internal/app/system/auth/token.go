package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrNoSecret     = errors.New("jwt secret is empty")
)

// Claims is the JWT payload issued to students, owners and staff.
type Claims struct {
	AccountID string      `json:"id"`
	Email     string      `json:"email"`
	Role      string      `json:"role"`
	Kind      models.Kind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	secret       []byte
	expiry       time.Duration
	googleExpiry time.Duration
	now          func() time.Time
}

// NewTokenService builds a TokenService. Zero expiries fall back to
// 1h for password sign-ins and 24h for Google sign-ins.
func NewTokenService(secret string, expiry, googleExpiry time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	if googleExpiry <= 0 {
		googleExpiry = 24 * time.Hour
	}
	return &TokenService{
		secret:       []byte(secret),
		expiry:       expiry,
		googleExpiry: googleExpiry,
		now:          time.Now,
	}, nil
}

// Issue signs a token for p with the standard lifetime.
func (s *TokenService) Issue(p Principal) (string, error) {
	return s.sign(p, s.expiry)
}

// IssueGoogle signs a token for p with the Google sign-in lifetime.
func (s *TokenService) IssueGoogle(p Principal) (string, error) {
	return s.sign(p, s.googleExpiry)
}

func (s *TokenService) sign(p Principal, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		AccountID: p.ID.Hex(),
		Email:     p.Email,
		Role:      p.Role,
		Kind:      p.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a signed token and returns its claims.
func (s *TokenService) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || !claims.Kind.Valid() {
		return nil, ErrTokenInvalid
	}
	if _, err := primitive.ObjectIDFromHex(claims.AccountID); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
