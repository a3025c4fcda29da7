package app

import (
	"fmt"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/config"
	"github.com/yourusername/ecommerce-api/internal/handler"
	"github.com/yourusername/ecommerce-api/internal/middleware"
	"github.com/yourusername/ecommerce-api/pkg/metrics"
)

// ResourceRouter группа маршрутов внешнего модуля (товары, заказы, платежи...), монтируется под /api
type ResourceRouter interface {
	Prefix() string
	RegisterRoutes(group *gin.RouterGroup)
}

// RouterDeps зависимости HTTP-слоя
type RouterDeps struct {
	Config         *config.Config
	Logger         *zap.Logger
	AuthHandler    *handler.AuthHandler
	HealthHandler  *handler.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	// RateLimiter nil, если ограничение частоты выключено
	RateLimiter *middleware.RateLimiter
	Resources   []ResourceRouter
}

// NewRouter собирает конвейер обработки запросов и маршруты
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// В production не доверяем X-Forwarded-For, в остальных режимах только localhost
	trusted := []string{"127.0.0.1", "::1"}
	if cfg.App.Env.IsProduction() {
		trusted = nil
	}
	if err := router.SetTrustedProxies(trusted); err != nil {
		logger.Warn("Failed to set trusted proxies", zap.Error(err))
	}

	// gzip оборачивает ErrorHandler: ответ 500 пишется в сжимающий writer до его закрытия
	router.Use(
		gzip.Gzip(gzip.DefaultCompression),
		middleware.ErrorHandler(cfg.App.Env, logger),
		middleware.Metrics(),
		middleware.SecurityHeaders(cfg.App.Env),
		middleware.CORS(middleware.NewCORSPolicy(cfg.App.Env, cfg.Server.FrontendURL)),
		middleware.RequestLogger(logger),
		middleware.BodyLimit(cfg.Server.JSONLimitBytes, cfg.Server.UploadFileLimitBytes),
		deps.AuthMiddleware.AuthContext(),
	)

	api := router.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.LimitByIP(middleware.APIRateLimitConfig(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)))
	}

	deps.HealthHandler.RegisterRoutes(api)

	authGroup := api.Group("/auth")
	if deps.RateLimiter != nil {
		authGroup.Use(deps.RateLimiter.Limit(middleware.AuthRateLimitConfig()))
	}
	deps.AuthHandler.RegisterRoutes(authGroup, deps.AuthMiddleware)

	mounted := make(map[string]struct{}, len(deps.Resources))
	for _, res := range deps.Resources {
		prefix := "/" + strings.Trim(res.Prefix(), "/")
		if prefix == "/" || prefix == "/auth" || prefix == "/health" || prefix == "/debug" {
			return nil, fmt.Errorf("resource router prefix %q is reserved", res.Prefix())
		}
		if _, dup := mounted[prefix]; dup {
			return nil, fmt.Errorf("resource router prefix %q is mounted twice", prefix)
		}
		mounted[prefix] = struct{}{}
		res.RegisterRoutes(api.Group(prefix))
		logger.Info("Resource router mounted", zap.String("prefix", "/api"+prefix))
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.Static("/uploads", cfg.Server.UploadDir)
	router.NoRoute(middleware.NotFound())

	return router, nil
}
