package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/domain/repository"
	"github.com/yourusername/ecommerce-api/internal/handler/dto"
	"github.com/yourusername/ecommerce-api/internal/middleware"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
	"github.com/yourusername/ecommerce-api/internal/service"
)

const (
	oauthStateCookie = "__oauth_state"
	oauthStateMaxAge = 5 * 60
	oauthCookiePath  = "/api/auth"
)

// GoogleAuthenticator сценарий входа через Google
type GoogleAuthenticator interface {
	Enabled() bool
	Begin() (state string, authURL string, err error)
	Complete(ctx context.Context, code string) (*service.GoogleAuthResult, error)
}

// AuthHandler обрабатывает вход через Google и профиль текущего пользователя
type AuthHandler struct {
	google        GoogleAuthenticator
	users         repository.UserRepository
	frontendURL   string
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandler создает обработчик аутентификации.
// Если frontendURL пуст, callback отвечает JSON вместо редиректа.
func NewAuthHandler(google GoogleAuthenticator, users repository.UserRepository, frontendURL string, secureCookies bool, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		google:        google,
		users:         users,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		secureCookies: secureCookies,
		logger:        logger.Named("auth_handler"),
	}
}

// RegisterRoutes регистрирует маршруты под /api/auth
func (h *AuthHandler) RegisterRoutes(group *gin.RouterGroup, authMiddleware *middleware.AuthMiddleware) {
	group.GET("/google", h.GoogleLogin)
	group.GET("/google/callback", h.GoogleCallback)
	group.GET("/me", authMiddleware.RequireAuth(), h.GetMe)
}

// GoogleLogin сохраняет state в cookie и перенаправляет на страницу согласия Google
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if !h.google.Enabled() {
		h.respondDisabled(c)
		return
	}

	state, authURL, err := h.google.Begin()
	if err != nil {
		h.logger.Error("Failed to start Google OAuth", zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.setStateCookie(c, state, oauthStateMaxAge)
	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback завершает вход: проверяет state, меняет код на профиль и выпускает токен
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if !h.google.Enabled() {
		h.respondDisabled(c)
		return
	}

	expectedState, _ := c.Cookie(oauthStateCookie)
	h.setStateCookie(c, "", -1)

	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Warn("Google OAuth returned an error", zap.String("error", providerErr))
		h.respondFailure(c, "oauth_denied")
		return
	}

	state := c.Query("state")
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		h.logger.Warn("Google OAuth state mismatch", zap.String("client_ip", c.ClientIP()))
		h.respondFailure(c, "state_mismatch")
		return
	}

	res, err := h.google.Complete(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn("Google OAuth failed", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrFeatureDisabled):
			h.respondDisabled(c)
		case errors.Is(err, service.ErrIdentityConflict):
			h.respondFailure(c, "identity_conflict")
		default:
			h.respondFailure(c, "oauth_failed")
		}
		return
	}

	h.logger.Info("Google OAuth login",
		zap.String("user_id", res.User.ID),
		zap.String("outcome", string(res.Outcome)),
	)

	if h.frontendURL != "" {
		c.Redirect(http.StatusFound, h.frontendURL+"/auth/callback?token="+url.QueryEscape(res.Token))
		return
	}
	c.JSON(http.StatusOK, dto.AuthTokenResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      dto.NewUserResponse(res.User),
	})
}

// GetMe возвращает текущего пользователя
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized", "error_type": "token_missing"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.handleRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (h *AuthHandler) setStateCookie(c *gin.Context, value string, maxAge int) {
	// Lax: cookie должна вернуться при редиректе с accounts.google.com
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, value, maxAge, oauthCookiePath, "", h.secureCookies, true)
}

func (h *AuthHandler) respondDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"message":    "Google OAuth is not configured",
		"error_type": "feature_disabled",
	})
}

func (h *AuthHandler) respondFailure(c *gin.Context, errorType string) {
	if h.frontendURL != "" {
		c.Redirect(http.StatusFound, h.frontendURL+"/login?error=oauth_failed")
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{
		"message":    "Google authentication failed",
		"error_type": errorType,
	})
}

func (h *AuthHandler) handleRepoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Database is not available", "error_type": "database_unavailable"})
	default:
		_ = c.Error(err)
	}
}
