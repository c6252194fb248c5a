package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, username, email string) *models.User {
	t.Helper()
	u, err := s.Users().Create(context.Background(), &models.User{
		Username:     username,
		Email:        email,
		FullName:     "Full " + username,
		Avatar:       "http://m/" + username + ".png",
		PasswordHash: "hash-" + username,
	})
	require.NoError(t, err)
	return u
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	bob := seed(t, s, "bob", "bob@x.io")
	require.NotEmpty(t, bob.ID)

	_, err := s.Users().Create(ctx, &models.User{Username: "bob", Email: "other@x.io"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	_, err = s.Users().Create(ctx, &models.User{Username: "other", Email: "bob@x.io"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	got, err := s.Users().FindByUsernameOrEmail(ctx, "", "bob@x.io")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)
	assert.Equal(t, "hash-bob", got.PasswordHash)

	got, err = s.Users().FindByUsernameOrEmail(ctx, "bob", "nobody@x.io")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	_, err = s.Users().FindByUsernameOrEmail(ctx, "", "")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	byID, err := s.Users().GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, byID.PasswordHash)
	assert.Equal(t, models.WatchHistory{}, byID.WatchHistory)

	_, err = s.Users().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserRepository_Updates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	bob := seed(t, s, "bob", "bob@x.io")
	seed(t, s, "alice", "alice@x.io")

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, bob.ID, "h2"))
	h, err := s.Users().GetPasswordHash(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", h)
	assert.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, "missing", "h"), common.ErrorNotFound)

	_, err = s.Users().UpdateDetails(ctx, bob.ID, "Bobby", "alice@x.io")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	u, err := s.Users().UpdateDetails(ctx, bob.ID, "Bobby", "bob@x.io")
	require.NoError(t, err)
	assert.Equal(t, "Bobby", u.FullName)

	u, err = s.Users().UpdateAvatar(ctx, bob.ID, "http://m/new.png")
	require.NoError(t, err)
	assert.Equal(t, "http://m/new.png", u.Avatar)

	u, err = s.Users().UpdateCoverImage(ctx, bob.ID, "http://m/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "http://m/cover.png", u.CoverImage)

	_, err = s.Users().UpdateAvatar(ctx, "missing", "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRefreshTokenRepository(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	bob := seed(t, s, "bob", "bob@x.io")
	rt := s.RefreshTokens()

	assert.ErrorIs(t, rt.Set(ctx, "missing", "t"), common.ErrorNotFound)
	require.NoError(t, rt.Set(ctx, bob.ID, "t1"))

	got, err := rt.Get(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "t1", got)

	require.NoError(t, rt.Rotate(ctx, bob.ID, "t1", "t2"))
	assert.ErrorIs(t, rt.Rotate(ctx, bob.ID, "t1", "t3"), common.ErrStaleToken)

	require.NoError(t, rt.Clear(ctx, bob.ID))
	require.NoError(t, rt.Clear(ctx, bob.ID))
	require.NoError(t, rt.Clear(ctx, "missing"))
	assert.ErrorIs(t, rt.Rotate(ctx, bob.ID, "", "t4"), common.ErrStaleToken)

	got, err = rt.Get(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRefreshTokenRepository_RotateRace(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	bob := seed(t, s, "bob", "bob@x.io")
	require.NoError(t, s.RefreshTokens().Set(ctx, bob.ID, "old"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.RefreshTokens().Rotate(ctx, bob.ID, "old", "new"); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
