// Package refreshtokens declares the server-side repository contract for the
// single active refresh token kept on each user record.
package refreshtokens

import "context"

// Repository stores at most one refresh token per user.
type Repository interface {
	// Set replaces the user's stored token. Returns a not-found error when
	// the user does not exist.
	Set(ctx context.Context, userID, token string) error

	// Get returns the stored token, or "" when none is stored.
	Get(ctx context.Context, userID string) (string, error)

	// Clear removes the stored token. Clearing an absent token is not an error.
	Clear(ctx context.Context, userID string) error

	// Rotate atomically replaces oldToken with newToken. It returns
	// common.ErrStaleToken when the stored value is not oldToken.
	Rotate(ctx context.Context, userID, oldToken, newToken string) error
}
