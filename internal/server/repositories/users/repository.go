// Package users declares the server-side repository contract for account
// records and provides its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/videotube/internal/server/models"
)

// Repository persists user records. Implementations return
// common.ErrorNotFound for missing rows and common.ErrorAlreadyExists when a
// username or email is already taken.
type Repository interface {
	// Create inserts user and fills in its generated ID and timestamps.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindByUsernameOrEmail returns the first user whose username equals
	// username or whose email equals email. Empty arguments never match.
	// The returned record includes the password hash.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)

	// GetByID returns the sanitized user.
	GetByID(ctx context.Context, id string) (*models.User, error)

	GetPasswordHash(ctx context.Context, id string) (string, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateDetails sets full name and email and returns the sanitized user.
	UpdateDetails(ctx context.Context, id, fullName, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error)
}
