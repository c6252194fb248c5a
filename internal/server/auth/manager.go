package auth

import (
	"time"

	"github.com/dmitrijs2005/videotube/internal/server/config"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenManager issues and verifies both token kinds with their own secrets
// and lifetimes taken from the configuration.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager builds a TokenManager from cfg.
func NewTokenManager(cfg *config.Config) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenValidityDuration,
		refreshTTL:    cfg.RefreshTokenValidityDuration,
	}
}

// IssuePair mints a fresh access/refresh pair for id.
func (m *TokenManager) IssuePair(id Identity) (*TokenPair, error) {
	access, err := GenerateAccessToken(id, m.accessSecret, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateRefreshToken(id.UserID, m.refreshSecret, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) VerifyAccess(token string) (*AccessClaims, error) {
	return ParseAccessToken(token, m.accessSecret)
}

func (m *TokenManager) VerifyRefresh(token string) (*RefreshClaims, error) {
	return ParseRefreshToken(token, m.refreshSecret)
}

// AccessTTL and RefreshTTL expose lifetimes for cookie expiry.
func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }
