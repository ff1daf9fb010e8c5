// Package auth signs and verifies the bearer tokens handed out at login.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Issuer mints HS256 tokens whose jti names the stored access token row.
type Issuer struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

type Claims struct {
	jwt.RegisteredClaims
}

// Token is the parsed identity carried by a bearer string.
type Token struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
}

func (i Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// NewTokenID returns a fresh jti.
func NewTokenID() string {
	return uuid.NewString()
}

func (i Issuer) Sign(userID int64, tokenID string) (string, error) {
	if strings.TrimSpace(i.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if tokenID == "" {
		return "", errors.New("token id required")
	}
	now := i.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		ID:       tokenID,
		Issuer:   i.Issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if i.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Secret))
}

// Parse verifies signature, expiry and issuer and returns the identity.
// Every failure wraps ErrInvalidToken.
func (i Issuer) Parse(token string) (Token, error) {
	if strings.TrimSpace(i.Secret) == "" {
		return Token{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.Issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(i.Secret), nil
	})
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Token{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Token{}, fmt.Errorf("%w: subject claim required", ErrInvalidToken)
	}
	if claims.ID == "" {
		return Token{}, fmt.Errorf("%w: jti claim required", ErrInvalidToken)
	}
	out := Token{UserID: userID, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
