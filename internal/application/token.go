package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/room-booking/internal/scheduler"
)

var (
	// ErrEmptyTokenSecret is returned when a JWTIssuer is built without a signing secret.
	ErrEmptyTokenSecret = errors.New("application: token secret cannot be empty")
	// ErrInvalidToken is returned for tokens that fail signature, issuer or expiry checks.
	ErrInvalidToken = errors.New("application: invalid token")
)

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(user User) (token string, expiresAt time.Time, err error)
	Verify(token string) (Principal, error)
}

// TokenClaims is the payload carried by issued tokens.
type TokenClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 tokens.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer constructs a JWTIssuer. A non-positive ttl falls back to seven days.
func NewJWTIssuer(secret, issuer string, ttl time.Duration, now func() time.Time) (*JWTIssuer, error) {
	if secret == "" {
		return nil, ErrEmptyTokenSecret
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &JWTIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue signs a token for user.
func (j *JWTIssuer) Issue(user User) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.ttl)

	claims := &TokenClaims{
		ID:    user.ID,
		Email: user.Email,
		Role:  string(user.Role),
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates a token and returns the principal it names.
func (j *JWTIssuer) Verify(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&TokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return j.secret, nil
		},
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return Principal{}, ErrInvalidToken
	}

	role, err := scheduler.ParseRole(claims.Role)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return Principal{UserID: claims.ID, Role: role, Email: claims.Email, Name: claims.Name}, nil
}
