// Package common contains shared constants and sentinel errors used across
// the videotube account service.
package common

const (
	// AccessTokenCookieName is the cookie carrying the access token.
	AccessTokenCookieName = "accessToken"

	// RefreshTokenCookieName is the cookie carrying the refresh token.
	RefreshTokenCookieName = "refreshToken"
)
