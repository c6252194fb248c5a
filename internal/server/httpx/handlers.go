package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/filex"
	"github.com/dmitrijs2005/videotube/internal/logging"
	"github.com/dmitrijs2005/videotube/internal/server/auth"
	"github.com/dmitrijs2005/videotube/internal/server/models"
	"github.com/dmitrijs2005/videotube/internal/server/services"
)

// AccountService is the account API the handlers call into.
// *services.UserService implements it.
type AccountService interface {
	Authenticator
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	ChangePassword(ctx context.Context, userID string, in services.ChangePasswordInput) error
	CurrentUser(ctx context.Context, user *models.User) (*models.User, error)
	ChangeUserDetails(ctx context.Context, userID string, in services.UserDetailsInput) (*models.User, error)
	ChangeAvatar(ctx context.Context, user *models.User, localPath string) (*models.User, error)
	ChangeCoverImage(ctx context.Context, user *models.User, localPath string) (*models.User, error)
}

// HandlerConfig carries the transport settings of Handler.
type HandlerConfig struct {
	CookieSecure  bool
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	UploadDir     string
	MaxUploadSize int64
	// Health reports backend readiness for /healthz. Nil means always ready.
	Health func(ctx context.Context) error
}

type Handler struct {
	svc    AccountService
	cfg    HandlerConfig
	logger logging.Logger
}

func NewHandler(svc AccountService, cfg HandlerConfig, logger logging.Logger) *Handler {
	return &Handler{svc: svc, cfg: cfg, logger: logger.With("module", "http")}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatar, err := saveFormFile(r, "avatar", h.cfg.UploadDir)
	if err != nil {
		h.logger.Warn(r.Context(), "failed to store avatar upload", "error", err)
		writeFailure(w, http.StatusBadRequest, "invalid avatar file")
		return
	}
	cover, err := saveFormFile(r, "coverImage", h.cfg.UploadDir)
	if err != nil {
		_ = filex.Remove(avatar)
		h.logger.Warn(r.Context(), "failed to store cover image upload", "error", err)
		writeFailure(w, http.StatusBadRequest, "invalid cover image file")
		return
	}

	user, err := h.svc.Register(r.Context(), services.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Username:       r.FormValue("username"),
		Email:          r.FormValue("email"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, user, "user registered successfully")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput
	if !h.decode(w, r, &in, false) {
		return
	}

	res, err := h.svc.Login(r.Context(), in)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	h.setTokenCookies(w, res.AccessToken, res.RefreshToken)
	writeData(w, http.StatusOK, res, "user logged in successfully")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if err := h.svc.Logout(r.Context(), user.ID); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	h.clearTokenCookies(w)
	writeData(w, http.StatusOK, nil, "user logged out")
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil && c.Value != "" {
		in.RefreshToken = c.Value
	} else if !h.decode(w, r, &in, true) {
		return
	}

	pair, err := h.svc.RefreshAccessToken(r.Context(), in.RefreshToken)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	h.setTokenCookies(w, pair.AccessToken, pair.RefreshToken)
	writeData(w, http.StatusOK, pair, "access token refreshed")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in services.ChangePasswordInput
	if !h.decode(w, r, &in, false) {
		return
	}

	user, _ := UserFromContext(r.Context())
	if err := h.svc.ChangePassword(r.Context(), user.ID, in); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, nil, "password changed successfully")
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	u, err := h.svc.CurrentUser(r.Context(), user)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, u, "current user fetched successfully")
}

func (h *Handler) changeUserDetails(w http.ResponseWriter, r *http.Request) {
	var in services.UserDetailsInput
	if !h.decode(w, r, &in, false) {
		return
	}

	user, _ := UserFromContext(r.Context())
	u, err := h.svc.ChangeUserDetails(r.Context(), user.ID, in)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, u, "account details updated successfully")
}

func (h *Handler) changeAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", h.svc.ChangeAvatar, "avatar image updated successfully")
}

func (h *Handler) changeCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", h.svc.ChangeCoverImage, "cover image updated successfully")
}

func (h *Handler) replaceImage(w http.ResponseWriter, r *http.Request, field string,
	change func(context.Context, *models.User, string) (*models.User, error), msg string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	path, err := saveFormFile(r, field, h.cfg.UploadDir)
	if err != nil {
		h.logger.Warn(r.Context(), "failed to store upload", "field", field, "error", err)
		writeFailure(w, http.StatusBadRequest, "invalid "+field+" file")
		return
	}

	user, _ := UserFromContext(r.Context())
	u, err := change(r.Context(), user, path)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, u, msg)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Health != nil {
		if err := h.cfg.Health(r.Context()); err != nil {
			h.logger.Error(r.Context(), "health check failed", "error", err)
			writeFailure(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"}, "ok")
}

// decode reads a JSON body into v. With optional set, an empty body is accepted.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeFailure(w, http.StatusBadRequest, "invalid request body")
	return false
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, h.cookie(common.AccessTokenCookieName, access, h.cfg.AccessTTL))
	http.SetCookie(w, h.cookie(common.RefreshTokenCookieName, refresh, h.cfg.RefreshTTL))
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(common.AccessTokenCookieName, "", -1))
	http.SetCookie(w, h.cookie(common.RefreshTokenCookieName, "", -1))
}

// cookie builds a token cookie; a negative ttl deletes it.
func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
