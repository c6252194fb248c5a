// Package auth issues and verifies the service's signed tokens and hashes
// passwords. It works on plain values and knows nothing about storage.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds, carried in the "typ" claim so an access token can never be
// replayed as a refresh token even if both secrets were equal.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const issuer = "videotube"

// Identity is the user data embedded in access tokens.
type Identity struct {
	UserID   string
	Username string
	FullName string
	Email    string
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"_id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Type     string `json:"typ"`
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
	Type   string `json:"typ"`
}

func registeredClaims(subject string, validity time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
}

// GenerateAccessToken signs an access token for id valid for validityDuration.
func GenerateAccessToken(id Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: registeredClaims(id.UserID, validityDuration),
		UserID:           id.UserID,
		Username:         id.Username,
		FullName:         id.FullName,
		Email:            id.Email,
		Type:             TokenTypeAccess,
	})
	return token.SignedString(secretKey)
}

// GenerateRefreshToken signs a refresh token for userID valid for validityDuration.
func GenerateRefreshToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: registeredClaims(userID, validityDuration),
		UserID:           userID,
		Type:             TokenTypeRefresh,
	})
	return token.SignedString(secretKey)
}

func parse(tokenString string, claims jwt.Claims, secretKey []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}

// ParseAccessToken verifies signature, expiry and kind of an access token.
// Every failure wraps common.ErrInvalidToken.
func ParseAccessToken(tokenString string, secretKey []byte) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess || claims.UserID == "" {
		return nil, fmt.Errorf("%w: not an access token", common.ErrInvalidToken)
	}
	return claims, nil
}

// ParseRefreshToken verifies signature, expiry and kind of a refresh token.
// Every failure wraps common.ErrInvalidToken.
func ParseRefreshToken(tokenString string, secretKey []byte) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh || claims.UserID == "" {
		return nil, fmt.Errorf("%w: not a refresh token", common.ErrInvalidToken)
	}
	return claims, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
