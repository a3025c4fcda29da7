package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/config"
	"github.com/yourusername/ecommerce-api/internal/domain/repository"
	"github.com/yourusername/ecommerce-api/internal/handler"
	"github.com/yourusername/ecommerce-api/internal/middleware"
	mongorepo "github.com/yourusername/ecommerce-api/internal/repository/mongo"
	pgrepo "github.com/yourusername/ecommerce-api/internal/repository/postgres"
	"github.com/yourusername/ecommerce-api/internal/service"
	"github.com/yourusername/ecommerce-api/pkg/auth"
	"github.com/yourusername/ecommerce-api/pkg/auth/google"
	"github.com/yourusername/ecommerce-api/pkg/database"
)

const (
	shutdownTimeout        = 10 * time.Second
	providerDiscoveryLimit = 10 * time.Second
)

// App собранное приложение: HTTP-сервер, менеджер соединения с БД и опциональный Redis
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *database.ConnectionManager
	redis   redis.UniversalClient
	server  *http.Server
}

// New собирает зависимости. Подключение к БД не выполняется: оно начинается в Run
// и не блокирует запуск HTTP-сервера.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, resources ...ResourceRouter) (*App, error) {
	connector, users, err := newUserStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	manager := database.NewConnectionManager(connector, database.ManagerOptions{
		RetryDelay:     cfg.Database.RetryDelay,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger)

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWTService: %w", err)
	}

	resolver, err := service.NewAccountResolver(users, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AccountResolver: %w", err)
	}

	googleService, err := service.NewGoogleOAuthService(newGoogleProvider(ctx, cfg.Google, logger), resolver, jwtService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GoogleOAuthService: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, manager: manager}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = a.newRateLimiter(ctx)
	}

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		logger.Warn("Failed to create upload directory", zap.String("dir", cfg.Server.UploadDir), zap.Error(err))
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtService, logger)
	router, err := NewRouter(RouterDeps{
		Config:         cfg,
		Logger:         logger,
		AuthHandler:    handler.NewAuthHandler(googleService, users, cfg.Server.FrontendURL, cfg.App.Env.IsProduction(), logger),
		HealthHandler:  handler.NewHealthHandler(manager),
		AuthMiddleware: authMiddleware,
		RateLimiter:    limiter,
		Resources:      resources,
	})
	if err != nil {
		return nil, err
	}

	a.server = &http.Server{
		Addr:         net.JoinHostPort("0.0.0.0", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	return a, nil
}

// Run запускает подключение к БД и HTTP-сервер и блокируется до отмены ctx
// или ошибки сервера. После этого выполняется graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connection manager: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		a.logger.Info("Server started",
			zap.String("addr", a.server.Addr),
			zap.String("env", string(a.cfg.App.Env)),
			zap.String("google_callback_url", a.cfg.Google.CallbackURL),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
	case serveErr = <-errCh:
		a.logger.Error("Server stopped unexpectedly", zap.Error(serveErr))
	}

	if err := a.shutdown(); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.manager.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if len(errs) == 0 {
		a.logger.Info("Server exited properly")
	}
	return errors.Join(errs...)
}

// newRateLimiter возвращает nil, если Redis не настроен или недоступен: API работает без лимита
func (a *App) newRateLimiter(ctx context.Context) *middleware.RateLimiter {
	if !a.cfg.Redis.Configured() {
		a.logger.Warn("Rate limiting is enabled but Redis is not configured; continuing without it")
		return nil
	}
	client, err := database.NewUniversalRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		a.logger.Warn("Redis is unavailable; continuing without rate limiting", zap.Error(err))
		return nil
	}
	a.redis = client
	a.logger.Info("Rate limiting enabled",
		zap.Int("max_requests", a.cfg.RateLimit.MaxRequests),
		zap.Duration("window", a.cfg.RateLimit.Window),
	)
	return middleware.NewRateLimiter(client, a.logger)
}

// newUserStore выбирает хранилище пользователей по database.driver
func newUserStore(cfg *config.Config, logger *zap.Logger) (database.Connector, repository.UserRepository, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		connector := database.NewMongoConnector(cfg.Database, logger)
		connector.OnConnect(mongorepo.EnsureUserIndexes)
		return connector, mongorepo.NewUserRepo(connector), nil
	case config.DriverPostgres:
		connector := database.NewPostgresConnector(cfg.Database, cfg.App.Env.IsProduction(), logger)
		return connector, pgrepo.NewUserRepo(connector), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
}

// newGoogleProvider возвращает nil, если вход через Google не настроен или discovery не удался
func newGoogleProvider(ctx context.Context, cfg config.GoogleConfig, logger *zap.Logger) service.OAuthProvider {
	if !cfg.Enabled() {
		logger.Warn("Google OAuth is not configured: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET is missing")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, providerDiscoveryLimit)
	defer cancel()

	provider, err := google.New(ctx, cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL)
	if err != nil {
		logger.Error("Google OAuth disabled: provider initialization failed", zap.Error(err))
		return nil
	}
	logger.Info("Google OAuth enabled", zap.String("callback_url", cfg.CallbackURL))
	return provider
}
