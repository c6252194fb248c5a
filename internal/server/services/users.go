// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, token rotation and profile
// changes for user accounts.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/filex"
	"github.com/dmitrijs2005/videotube/internal/logging"
	"github.com/dmitrijs2005/videotube/internal/server/auth"
	"github.com/dmitrijs2005/videotube/internal/server/config"
	"github.com/dmitrijs2005/videotube/internal/server/media"
	"github.com/dmitrijs2005/videotube/internal/server/models"
	"github.com/dmitrijs2005/videotube/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

// MediaStore uploads local files to the media host and deletes them by URL.
// Upload removes localPath in every case.
type MediaStore interface {
	Upload(ctx context.Context, localPath string) (*media.Asset, error)
	Delete(ctx context.Context, url string) (media.DeleteResult, error)
}

// RegisterInput carries the registration form. AvatarPath and
// CoverImagePath point to temporary files owned by the service from the
// moment Register is called.
type RegisterInput struct {
	FullName       string `validate:"required"`
	Username       string `validate:"required"`
	Email          string `validate:"required,email"`
	Password       string `validate:"required"`
	AvatarPath     string
	CoverImagePath string
}

// LoginInput identifies the user by username or email.
type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned by Login.
type LoginResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type UserDetailsInput struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// UserService provides account operations on top of the repositories,
// the password hasher, the token manager and the media store.
type UserService struct {
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenManager
	hasher      auth.PasswordHasher
	media       MediaStore
	validate    *validator.Validate
	logger      logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(m repomanager.RepositoryManager, store MediaStore, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		repomanager: m,
		tokens:      auth.NewTokenManager(cfg),
		hasher:      auth.NewBcryptHasher(cfg.BcryptCost),
		media:       store,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "users"),
	}
}

// Register creates a new account. Both temp files are removed before it returns.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	defer s.discard(in.AvatarPath)
	defer s.discard(in.CoverImagePath)

	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = normalize(in.Username)
	in.Email = normalize(in.Email)
	in.Password = blankToEmpty(in.Password)

	if err := s.validate.Struct(in); err != nil {
		return nil, s.validationError(err)
	}

	_, err := s.repomanager.Users().FindByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		return nil, common.NewAPIError(common.ErrorAlreadyExists, "user with email or username already exists")
	case !errors.Is(err, common.ErrorNotFound):
		return nil, internal("lookup user", err)
	}

	if in.AvatarPath == "" {
		return nil, common.NewAPIError(common.ErrorValidation, "avatar file is required")
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	avatar, err := s.media.Upload(ctx, in.AvatarPath)
	if err != nil || avatar == nil {
		s.logger.Warn(ctx, "avatar upload failed", "error", err)
		return nil, common.NewAPIError(common.ErrorValidation, "avatar upload failed")
	}

	var coverURL string
	if in.CoverImagePath != "" {
		cover, err := s.media.Upload(ctx, in.CoverImagePath)
		if err != nil || cover == nil {
			s.logger.Warn(ctx, "cover image upload failed", "error", err)
			s.deleteAsset(ctx, avatar.URL)
			return nil, common.NewAPIError(common.ErrorValidation, "cover image upload failed")
		}
		coverURL = cover.URL
	}

	user, err := s.repomanager.Users().Create(ctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Avatar:       avatar.URL,
		CoverImage:   coverURL,
		PasswordHash: hash,
	})
	if err != nil {
		s.deleteAsset(ctx, avatar.URL)
		s.deleteAsset(ctx, coverURL)
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.NewAPIError(common.ErrorAlreadyExists, "user with email or username already exists")
		}
		return nil, internal("create user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user.Sanitized(), nil
}

// Login verifies credentials, issues a fresh token pair and stores the
// refresh token, replacing any previous one.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username, email := normalize(in.Username), normalize(in.Email)
	if username == "" && email == "" {
		return nil, common.NewAPIError(common.ErrorValidation, "username or email is required")
	}
	if in.Password == "" {
		return nil, common.NewAPIError(common.ErrorValidation, "password is required")
	}

	user, err := s.repomanager.Users().FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewAPIError(common.ErrorNotFound, "user does not exist")
		}
		return nil, internal("lookup user", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, common.NewAPIError(common.ErrorUnauthorized, "invalid user credentials")
	}

	pair, err := s.tokens.IssuePair(identity(user))
	if err != nil {
		return nil, internal("issue tokens", err)
	}
	if err := s.repomanager.RefreshTokens().Set(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, internal("store refresh token", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{User: user.Sanitized(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout clears the stored refresh token. Calling it twice is harmless.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.RefreshTokens().Clear(ctx, userID); err != nil {
		return internal("clear refresh token", err)
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// RefreshAccessToken exchanges a valid refresh token for a new pair. The
// presented token must equal the stored one; the swap is atomic so a token
// can be exchanged only once.
func (s *UserService) RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if refreshToken == "" {
		return nil, common.NewAPIError(common.ErrorValidation, "refresh token is required")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if auth.IsExpired(err) {
			return nil, common.NewAPIError(common.ErrInvalidToken, "refresh token is expired or used")
		}
		return nil, common.NewAPIError(common.ErrInvalidToken, "invalid refresh token")
	}

	user, err := s.repomanager.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewAPIError(common.ErrInvalidToken, "invalid refresh token")
		}
		return nil, internal("load user", err)
	}

	pair, err := s.tokens.IssuePair(identity(user))
	if err != nil {
		return nil, internal("issue tokens", err)
	}

	if err := s.repomanager.RefreshTokens().Rotate(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrStaleToken) {
			s.logger.Warn(ctx, "stale refresh token presented", "user_id", user.ID)
			return nil, common.NewAPIError(common.ErrStaleToken, "refresh token is expired or used")
		}
		return nil, internal("rotate refresh token", err)
	}

	return pair, nil
}

// ChangePassword replaces the password hash after verifying the current password.
func (s *UserService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	in.NewPassword = blankToEmpty(in.NewPassword)
	in.ConfirmPassword = blankToEmpty(in.ConfirmPassword)
	if err := s.validate.Struct(in); err != nil {
		return s.validationError(err)
	}

	hash, err := s.repomanager.Users().GetPasswordHash(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewAPIError(common.ErrorNotFound, "user does not exist")
		}
		return internal("load password", err)
	}

	if !s.hasher.Verify(in.CurrentPassword, hash) {
		return common.NewAPIError(common.ErrorUnauthorized, "invalid current password")
	}

	newHash, err := s.hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repomanager.Users().UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return internal("update password", err)
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// CurrentUser returns the sanitized copy of an authenticated user.
func (s *UserService) CurrentUser(_ context.Context, user *models.User) (*models.User, error) {
	if user == nil {
		return nil, common.NewAPIError(common.ErrorUnauthorized, "unauthorized request")
	}
	return user.Sanitized(), nil
}

// ChangeUserDetails updates full name and email. The email may not belong
// to another account.
func (s *UserService) ChangeUserDetails(ctx context.Context, userID string, in UserDetailsInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalize(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, s.validationError(err)
	}

	var updated *models.User
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, tx repomanager.Repositories) error {
		owner, err := tx.Users().FindByUsernameOrEmail(ctx, "", in.Email)
		switch {
		case err == nil && owner.ID != userID:
			return common.NewAPIError(common.ErrorAlreadyExists, "email is already in use")
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return internal("lookup email", err)
		}

		updated, err = tx.Users().UpdateDetails(ctx, userID, in.FullName, in.Email)
		return err
	})
	if err != nil {
		var apiErr *common.APIError
		switch {
		case errors.As(err, &apiErr):
			return nil, err
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, common.NewAPIError(common.ErrorAlreadyExists, "email is already in use")
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.NewAPIError(common.ErrorNotFound, "user does not exist")
		}
		return nil, internal("update details", err)
	}

	return updated, nil
}

// ChangeAvatar uploads a new avatar, stores its URL and then deletes the
// previous asset. Failing to delete the old asset is logged only.
func (s *UserService) ChangeAvatar(ctx context.Context, user *models.User, localPath string) (*models.User, error) {
	return s.replaceImage(ctx, user, localPath, "avatar", user.Avatar, s.repomanager.Users().UpdateAvatar)
}

// ChangeCoverImage is ChangeAvatar for the cover image.
func (s *UserService) ChangeCoverImage(ctx context.Context, user *models.User, localPath string) (*models.User, error) {
	return s.replaceImage(ctx, user, localPath, "cover image", user.CoverImage, s.repomanager.Users().UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, id, url string) (*models.User, error)

func (s *UserService) replaceImage(ctx context.Context, user *models.User, localPath, label, oldURL string, update imageUpdater) (*models.User, error) {
	defer s.discard(localPath)

	if localPath == "" {
		return nil, common.NewAPIError(common.ErrorValidation, label+" file is required")
	}

	asset, err := s.media.Upload(ctx, localPath)
	if err != nil || asset == nil {
		s.logger.Warn(ctx, label+" upload failed", "user_id", user.ID, "error", err)
		return nil, common.NewAPIError(common.ErrorValidation, label+" upload failed")
	}

	updated, err := update(ctx, user.ID, asset.URL)
	if err != nil {
		s.deleteAsset(ctx, asset.URL)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewAPIError(common.ErrorNotFound, "user does not exist")
		}
		return nil, internal("update "+label, err)
	}

	s.deleteAsset(ctx, oldURL)
	return updated, nil
}

// Authenticate resolves an access token to the stored, sanitized user.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, common.NewAPIError(common.ErrorUnauthorized, "unauthorized request")
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, common.NewAPIError(common.ErrInvalidToken, "invalid access token")
	}

	user, err := s.repomanager.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewAPIError(common.ErrInvalidToken, "invalid access token")
		}
		return nil, internal("load user", err)
	}
	return user, nil
}

// --- helpers below ---

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// blankToEmpty keeps passwords intact but treats whitespace-only ones as missing.
func blankToEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	switch {
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "", common.NewAPIError(common.ErrorValidation, "password is too long")
	case err != nil:
		return "", internal("hash password", err)
	}
	return hash, nil
}

func identity(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, FullName: u.FullName, Email: u.Email}
}

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrorInternal, op, err)
}

func (s *UserService) validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return internal("validate", err)
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return common.NewAPIError(common.ErrorValidation, "all fields are required")
		}
	}
	switch verrs[0].Tag() {
	case "email":
		return common.NewAPIError(common.ErrorValidation, "invalid email address")
	case "eqfield":
		return common.NewAPIError(common.ErrorValidation, "new password and confirmation do not match")
	}
	return common.NewAPIError(common.ErrorValidation, "invalid "+verrs[0].Field())
}

func (s *UserService) deleteAsset(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if _, err := s.media.Delete(ctx, url); err != nil {
		s.logger.Warn(ctx, "failed to delete media asset", "url", url, "error", err)
	}
}

func (s *UserService) discard(path string) {
	if err := filex.Remove(path); err != nil {
		s.logger.Warn(context.Background(), "failed to remove temp file", "path", path, "error", err)
	}
}
