// Package memory keeps user records in process memory. It backs the
// service in tests and in the -m development mode; all state is lost on exit.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/server/models"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/users"
	"github.com/google/uuid"
)

var (
	_ users.Repository         = (*UserRepository)(nil)
	_ refreshtokens.Repository = (*RefreshTokenRepository)(nil)
)

// Store is the shared state behind both repositories. Every method takes
// the lock, so each call is atomic on its own.
type Store struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{users: make(map[string]*models.User), now: time.Now}
}

func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }

// taken reports whether username or email belongs to a user other than exceptID.
func (s *Store) taken(username, email, exceptID string) bool {
	for id, u := range s.users {
		if id == exceptID {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (s *Store) get(id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

// UserRepository implements users.Repository.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.taken(user.Username, user.Email, "") {
		return nil, common.ErrorAlreadyExists
	}

	now := r.s.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.WatchHistory == nil {
		user.WatchHistory = models.WatchHistory{}
	}

	stored := *user
	stored.WatchHistory = append(models.WatchHistory{}, user.WatchHistory...)
	r.s.users[user.ID] = &stored
	return user, nil
}

func (r *UserRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *models.User
	for _, u := range r.s.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			if found == nil || u.CreatedAt.Before(found.CreatedAt) {
				found = u
			}
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	c := *found.Sanitized()
	c.PasswordHash = found.PasswordHash
	return &c, nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, err := r.s.get(id)
	if err != nil {
		return nil, err
	}
	return u.Sanitized(), nil
}

func (r *UserRepository) GetPasswordHash(_ context.Context, id string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, err := r.s.get(id)
	if err != nil {
		return "", err
	}
	return u.PasswordHash, nil
}

func (r *UserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	_, err := r.update(id, func(u *models.User) { u.PasswordHash = hash })
	return err
}

func (r *UserRepository) UpdateDetails(_ context.Context, id, fullName, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, err := r.s.get(id); err != nil {
		return nil, err
	}
	if r.s.taken("", email, id) {
		return nil, common.ErrorAlreadyExists
	}
	return r.updateLocked(id, func(u *models.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (r *UserRepository) UpdateAvatar(_ context.Context, id, url string) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.Avatar = url })
}

func (r *UserRepository) UpdateCoverImage(_ context.Context, id, url string) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.CoverImage = url })
}

func (r *UserRepository) update(id string, fn func(u *models.User)) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.updateLocked(id, fn)
}

func (r *UserRepository) updateLocked(id string, fn func(u *models.User)) (*models.User, error) {
	u, err := r.s.get(id)
	if err != nil {
		return nil, err
	}
	fn(u)
	u.UpdatedAt = r.s.now()
	return u.Sanitized(), nil
}

// RefreshTokenRepository implements refreshtokens.Repository.
type RefreshTokenRepository struct {
	s *Store
}

func (r *RefreshTokenRepository) Set(_ context.Context, userID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, err := r.s.get(userID)
	if err != nil {
		return err
	}
	u.RefreshToken = token
	return nil
}

func (r *RefreshTokenRepository) Get(_ context.Context, userID string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, err := r.s.get(userID)
	if err != nil {
		return "", err
	}
	return u.RefreshToken, nil
}

func (r *RefreshTokenRepository) Clear(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u, ok := r.s.users[userID]; ok {
		u.RefreshToken = ""
	}
	return nil
}

func (r *RefreshTokenRepository) Rotate(_ context.Context, userID, oldToken, newToken string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok || oldToken == "" || u.RefreshToken != oldToken {
		return common.ErrStaleToken
	}
	u.RefreshToken = newToken
	return nil
}
