package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
	"github.com/yourusername/ecommerce-api/pkg/auth"
)

// Ключи контекста Gin, которые заполняет AuthContext
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
	ContextClaims = "auth_claims"

	contextAuthErr = "auth_error"
)

// TokenVerifier проверяет access-токен
type TokenVerifier interface {
	ParseToken(token string) (*auth.JWTCustomClaims, error)
}

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware создает middleware аутентификации
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger.Named("auth")}
}

// AuthContext инициализирует контекст аутентификации для каждого запроса.
// Запрос без токена проходит дальше анонимным, ошибка проверки сохраняется для RequireAuth.
func (m *AuthMiddleware) AuthContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, err := bearerToken(header)
		if err == nil {
			var claims *auth.JWTCustomClaims
			if claims, err = m.verifier.ParseToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		if err != nil {
			c.Set(contextAuthErr, err)
		}
		c.Next()
	}
}

// RequireAuth пропускает только запросы с действительным токеном
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFromContext(c); ok {
			c.Next()
			return
		}

		err := m.verify(c)
		if err == nil {
			c.Next()
			return
		}

		switch {
		case errors.Is(err, errTokenMissing):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		case errors.Is(err, errTokenFormat):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
		case errors.Is(err, apperrors.ErrExpiredToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has expired", "error_type": "token_expired"})
		default:
			m.logger.Debug("Token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
		}
	}
}

// AdminOnly проверяет роль администратора. Должен применяться после RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if claims.Role != entity.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required"})
			return
		}
		c.Next()
	}
}

// verify проверяет токен, если AuthContext не был подключен или сохранил ошибку
func (m *AuthMiddleware) verify(c *gin.Context) error {
	if v, ok := c.Get(contextAuthErr); ok {
		if err, ok := v.(error); ok {
			return err
		}
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return errTokenMissing
	}
	token, err := bearerToken(header)
	if err != nil {
		return err
	}
	claims, err := m.verifier.ParseToken(token)
	if err != nil {
		return err
	}
	setClaims(c, claims)
	return nil
}

// ClaimsFromContext возвращает claims аутентифицированного запроса
func ClaimsFromContext(c *gin.Context) (*auth.JWTCustomClaims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.JWTCustomClaims)
	return claims, ok && claims != nil
}

var (
	errTokenMissing = errors.New("authorization header is required")
	errTokenFormat  = errors.New("authorization header format must be Bearer {token}")
)

func bearerToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errTokenFormat
	}
	return parts[1], nil
}

func setClaims(c *gin.Context, claims *auth.JWTCustomClaims) {
	c.Set(ContextClaims, claims)
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextEmail, claims.Email)
	c.Set(ContextRole, claims.Role)
}
