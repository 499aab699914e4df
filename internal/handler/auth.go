package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/utils"
)

// UserStore is the account persistence used by AuthHandler.
type UserStore interface {
	Create(ctx context.Context, email, name, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	Rotate(ctx context.Context, oldHash string, userID uint64, newHash string, exp time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

const minPasswordLen = 6

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register: create a user account and sign it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return badRequest(c, "name is required")
	case !validEmail(req.Email):
		return badRequest(c, "a valid email is required")
	case len(req.Password) < minPasswordLen:
		return badRequest(c, "password must be at least 6 characters")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Name, req.Password, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return fail(c, http.StatusConflict, "email_exists", "email already exists")
		case errors.Is(err, utils.ErrPasswordTooLong):
			return badRequest(c, "password must be at most 72 bytes")
		}
		return fail(c, http.StatusInternalServerError, "internal", "create user failed")
	}
	u := model.User{ID: uid, Email: req.Email, Name: req.Name, Role: model.RoleUser}
	return h.issue(ctx, c, http.StatusCreated, u, "")
}

// Login: verify credentials and return a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		}
		return fail(c, http.StatusInternalServerError, "internal", "query failed")
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	}
	return h.issue(ctx, c, http.StatusOK, u, "")
}

// Refresh: exchange a refresh token for a new pair.  The old token is
// revoked in the same transaction, so it works once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return fail(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh")
	}
	return h.issue(ctx, c, http.StatusOK, u, hash)
}

// issue signs an access token, stores a new refresh token (rotating
// oldHash when set) and writes the response and auth cookie.
func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, u model.User, oldHash string) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal", "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal", "issue refresh failed")
	}
	newHash := utils.HashRefreshRaw(refresh.Raw)
	if oldHash != "" {
		err = h.Tokens.Rotate(ctx, oldHash, u.ID, newHash, refresh.Exp)
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh")
		}
	} else {
		err = h.Tokens.StoreRefresh(ctx, u.ID, newHash, refresh.Exp)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal", "save refresh failed")
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    access.Token,
		Path:     "/",
		Expires:  access.Exp,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(status, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer when the body has none.  The auth cookie is cleared either way.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	switch uid := h.bearerUserID(c); {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return fail(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, http.StatusInternalServerError, "internal", "logout failed")
		}
	case uid != 0:
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return fail(c, http.StatusInternalServerError, "internal", "logout failed")
		}
	default:
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	c.SetCookie(&http.Cookie{Name: middleware.AuthCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	return c.NoContent(http.StatusNoContent)
}

// bearerUserID reads the caller from the access token.  Logout is not
// behind JWTAuth so a client can always drop its refresh token.
func (h *AuthHandler) bearerUserID(c echo.Context) uint64 {
	var raw string
	if a := c.Request().Header.Get("Authorization"); strings.HasPrefix(a, "Bearer ") {
		raw = strings.TrimPrefix(a, "Bearer ")
	} else if ck, err := c.Cookie(middleware.AuthCookie); err == nil {
		raw = ck.Value
	}
	if raw == "" {
		return 0
	}
	cl, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
	if err != nil {
		return 0
	}
	return cl.UserID
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "not_found", "user not found")
		}
		return fail(c, http.StatusInternalServerError, "internal", "load user failed")
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
}
