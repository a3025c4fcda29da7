package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Mode определяет окружение запуска приложения
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
	ModeTest        Mode = "test"
)

// IsProduction сообщает, запущено ли приложение в production
func (m Mode) IsProduction() bool { return m == ModeProduction }

// IsDevelopment сообщает, запущено ли приложение в режиме разработки.
// Только в этом режиме клиенту отдается текст внутренней ошибки.
func (m Mode) IsDevelopment() bool { return m == ModeDevelopment }

// Поддерживаемые драйверы хранилища пользователей
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

const defaultCallbackURL = "http://localhost:5000/api/auth/google/callback"

// Config хранит все настройки приложения
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Google    GoogleConfig    `mapstructure:"google"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// AppConfig содержит общие настройки приложения
type AppConfig struct {
	Env Mode `mapstructure:"env"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port                 string `mapstructure:"port"`
	ReadTimeout          int    `mapstructure:"read_timeout"`
	WriteTimeout         int    `mapstructure:"write_timeout"`
	FrontendURL          string `mapstructure:"frontend_url"`
	UploadDir            string `mapstructure:"upload_dir"`
	JSONLimitBytes       int64  `mapstructure:"json_limit_bytes"`
	UploadFileLimitBytes int64  `mapstructure:"upload_file_limit_bytes"`
}

// DatabaseConfig содержит настройки подключения к хранилищу пользователей
type DatabaseConfig struct {
	// Driver: "mongo" (по умолчанию) или "postgres"
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
	// DSN используется драйвером postgres
	DSN       string `mapstructure:"dsn"`
	TLSCAFile string `mapstructure:"tls_ca_file"`

	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout"`
	SocketTimeout          time.Duration `mapstructure:"socket_timeout"`
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout"`
	MinPoolSize            uint64        `mapstructure:"min_pool_size"`
	MaxPoolSize            uint64        `mapstructure:"max_pool_size"`
	HeartbeatInterval      time.Duration `mapstructure:"heartbeat_interval"`
	RetryDelay             time.Duration `mapstructure:"retry_delay"`

	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// GoogleConfig содержит настройки Google OAuth
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

// Enabled возвращает true, если заданы client id и secret
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expiration_hrs"`
	Issuer        string `mapstructure:"issuer"`
}

// RedisConfig содержит настройки подключения к Redis (нужен только для rate limiting)
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
}

// Configured сообщает, задан ли хотя бы один адрес Redis
func (r RedisConfig) Configured() bool {
	return r.Addr != "" || len(r.Addrs) > 0
}

// RateLimitConfig содержит настройки глобального лимита запросов на /api
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("app.env", string(ModeDevelopment))

	vip.SetDefault("server.port", "5000")
	vip.SetDefault("server.read_timeout", 30)
	vip.SetDefault("server.write_timeout", 30)
	vip.SetDefault("server.upload_dir", "./uploads")
	vip.SetDefault("server.json_limit_bytes", 10<<20)
	vip.SetDefault("server.upload_file_limit_bytes", 5<<20)

	vip.SetDefault("database.driver", DriverMongo)
	vip.SetDefault("database.uri", "mongodb://localhost:27017/ecommerce")
	vip.SetDefault("database.name", "ecommerce")
	vip.SetDefault("database.server_selection_timeout", 30*time.Second)
	vip.SetDefault("database.socket_timeout", 45*time.Second)
	vip.SetDefault("database.connect_timeout", 30*time.Second)
	vip.SetDefault("database.min_pool_size", 2)
	vip.SetDefault("database.max_pool_size", 10)
	vip.SetDefault("database.heartbeat_interval", 10*time.Second)
	vip.SetDefault("database.retry_delay", 5*time.Second)
	vip.SetDefault("database.auto_migrate", true)
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("google.callback_url", defaultCallbackURL)

	vip.SetDefault("jwt.expiration_hrs", 168)
	vip.SetDefault("jwt.issuer", "ecommerce-api")

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("rate_limit.enabled", false)
	vip.SetDefault("rate_limit.max_requests", 100)
	vip.SetDefault("rate_limit.window", 15*time.Minute)

	vip.SetDefault("log.level", "info")
}

func bindEnv(vip *viper.Viper) {
	// Окружение: APP_ENV, для совместимости NODE_ENV
	vip.BindEnv("app.env", "APP_ENV", "NODE_ENV")

	vip.BindEnv("server.port", "PORT")
	vip.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	vip.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	vip.BindEnv("server.frontend_url", "FRONTEND_URL")
	vip.BindEnv("server.upload_dir", "UPLOAD_DIR")

	vip.BindEnv("database.driver", "DATABASE_DRIVER")
	vip.BindEnv("database.uri", "MONGODB_URI")
	vip.BindEnv("database.name", "MONGODB_DATABASE")
	vip.BindEnv("database.dsn", "DATABASE_DSN")
	vip.BindEnv("database.tls_ca_file", "DATABASE_TLS_CA_FILE")
	vip.BindEnv("database.retry_delay", "DATABASE_RETRY_DELAY")
	vip.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	vip.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	vip.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")
	vip.BindEnv("google.callback_url", "GOOGLE_CALLBACK_URL")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expiration_hrs", "JWT_EXPIRATION_HRS")
	vip.BindEnv("jwt.issuer", "JWT_ISSUER")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	vip.BindEnv("rate_limit.max_requests", "RATE_LIMIT_MAX_REQUESTS")
	vip.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")

	vip.BindEnv("log.level", "LOG_LEVEL")
}

// Load загружает конфигурацию: config.env (если есть), затем YAML-файл, затем переменные окружения.
// Переменные окружения процесса имеют приоритет над config.env.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load("config.env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Предупреждение: не удалось прочитать config.env: %v", err)
	}

	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния
	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.App.Env = Mode(strings.ToLower(strings.TrimSpace(string(c.App.Env))))
	if c.App.Env == "" {
		c.App.Env = ModeDevelopment
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Server.FrontendURL = strings.TrimRight(strings.TrimSpace(c.Server.FrontendURL), "/")
	if c.Google.CallbackURL == "" {
		c.Google.CallbackURL = defaultCallbackURL
	}
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.URI == "" {
			return fmt.Errorf("database uri is required for mongo driver (check MONGODB_URI env var)")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres driver (check DATABASE_DSN env var)")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Database.RetryDelay <= 0 {
		return fmt.Errorf("database retry delay must be positive")
	}
	if c.Database.MinPoolSize > c.Database.MaxPoolSize {
		return fmt.Errorf("database min pool size (%d) exceeds max pool size (%d)", c.Database.MinPoolSize, c.Database.MaxPoolSize)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required (check JWT_SECRET env var)")
	}
	if c.App.Env.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 bytes in production")
		}
		if c.Server.FrontendURL == "" {
			return fmt.Errorf("frontend url is required in production (check FRONTEND_URL env var)")
		}
	}

	if c.RateLimit.Enabled && !c.Redis.Configured() {
		log.Println("Warning: rate limiting is enabled but Redis is not configured, limiter will be skipped.")
	}
	return nil
}
