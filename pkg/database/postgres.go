package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yourusername/ecommerce-api/internal/config"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
	applogger "github.com/yourusername/ecommerce-api/pkg/logger"
)

// ErrInsecureSSLMode возвращается, если DSN явно отключает проверку сертификата
var ErrInsecureSSLMode = errors.New("postgres sslmode must be verify-full or verify-ca")

// PostgresConnector подключается к PostgreSQL через GORM и следит за соединением пингами
type PostgresConnector struct {
	cfg        config.DatabaseConfig
	production bool
	logger     *zap.Logger

	mu            sync.RWMutex
	db            *gorm.DB
	handler       func(Event)
	stopHeartbeat context.CancelFunc
	heartbeatDone chan struct{}
}

// NewPostgresConnector создает коннектор PostgreSQL
func NewPostgresConnector(cfg config.DatabaseConfig, production bool, logger *zap.Logger) *PostgresConnector {
	return &PostgresConnector{
		cfg:        cfg,
		production: production,
		logger:     logger.Named("postgres"),
	}
}

// Name возвращает имя бэкенда
func (c *PostgresConnector) Name() string { return config.DriverPostgres }

// SetEventHandler регистрирует обработчик событий соединения
func (c *PostgresConnector) SetEventHandler(handler func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// DB возвращает *gorm.DB или ErrNotConnected
func (c *PostgresConnector) DB() (*gorm.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, apperrors.ErrNotConnected
	}
	return c.db, nil
}

// Connect открывает пул при первом вызове, применяет миграции и запускает heartbeat.
// Повторные вызовы проверяют существующий пул.
func (c *PostgresConnector) Connect(ctx context.Context) error {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	dsn, err := EnforceTLS(c.cfg.DSN, c.cfg.ConnectTimeout)
	if err != nil {
		return err
	}

	db, err = gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: applogger.NewGormLogger(c.logger, c.production),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(int(c.cfg.MaxPoolSize))
	sqlDB.SetMaxIdleConns(int(c.cfg.MinPoolSize))
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}

	if c.cfg.AutoMigrate {
		if err := MigrateDB(db, c.cfg.MigrationsPath, c.logger); err != nil {
			_ = sqlDB.Close()
			return err
		}
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.db = db
	c.stopHeartbeat = cancel
	c.heartbeatDone = done
	c.mu.Unlock()

	go c.heartbeat(hbCtx, done)
	return nil
}

// Close останавливает heartbeat и закрывает пул
func (c *PostgresConnector) Close(ctx context.Context) error {
	c.mu.Lock()
	db := c.db
	stop := c.stopHeartbeat
	done := c.heartbeatDone
	c.db = nil
	c.handler = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *PostgresConnector) heartbeat(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := c.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var hb heartbeatState
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := c.ping(pingCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if ev, ok := hb.observe(err); ok {
			c.emit(ev)
		}
	}
}

func (c *PostgresConnector) ping(ctx context.Context) error {
	db, err := c.DB()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *PostgresConnector) emit(ev Event) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(ev)
	}
}

// heartbeatState превращает результаты пингов в события при смене состояния
type heartbeatState struct {
	down bool
}

func (s *heartbeatState) observe(err error) (Event, bool) {
	switch {
	case err != nil && !s.down:
		s.down = true
		return Event{Type: EventDisconnected, Err: err}, true
	case err == nil && s.down:
		s.down = false
		return Event{Type: EventReconnected}, true
	}
	return Event{}, false
}

// EnforceTLS дополняет DSN параметрами sslmode=verify-full и connect_timeout.
// Поддерживаются URL-форма (postgres://) и форма key=value.
func EnforceTLS(dsn string, connectTimeout time.Duration) (string, error) {
	timeout := ""
	if connectTimeout > 0 {
		secs := int(connectTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		timeout = strconv.Itoa(secs)
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid postgres dsn: %w", err)
		}
		q := u.Query()
		mode, err := checkSSLMode(q.Get("sslmode"))
		if err != nil {
			return "", err
		}
		q.Set("sslmode", mode)
		if timeout != "" && q.Get("connect_timeout") == "" {
			q.Set("connect_timeout", timeout)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	fields := strings.Fields(dsn)
	hasMode, hasTimeout := false, false
	for i, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch key {
		case "sslmode":
			mode, err := checkSSLMode(value)
			if err != nil {
				return "", err
			}
			fields[i] = "sslmode=" + mode
			hasMode = true
		case "connect_timeout":
			hasTimeout = true
		}
	}
	if !hasMode {
		fields = append(fields, "sslmode=verify-full")
	}
	if !hasTimeout && timeout != "" {
		fields = append(fields, "connect_timeout="+timeout)
	}
	return strings.Join(fields, " "), nil
}

func checkSSLMode(mode string) (string, error) {
	switch mode {
	case "":
		return "verify-full", nil
	case "verify-full", "verify-ca":
		return mode, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInsecureSSLMode, mode)
	}
}

// MigrateDB применяет SQL-миграции из migrationsPath (например, "file://migrations")
func MigrateDB(db *gorm.DB, migrationsPath string, logger *zap.Logger) error {
	logger.Info("Запуск применения миграций базы данных...", zap.String("path", migrationsPath))

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("не удалось получить *sql.DB из *gorm.DB: %w", err)
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return fmt.Errorf("не удалось создать драйвер postgres для migrate: %w", err)
	}

	m, err := migrateV4.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrateV4.ErrNoChange):
		logger.Info("Изменений в миграциях не найдено, база данных уже актуальна.")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций 'up': %w", err)
	default:
		logger.Info("Миграции успешно применены.")
	}
	return nil
}
