package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/config"
	"github.com/yourusername/ecommerce-api/pkg/database"
	"github.com/yourusername/ecommerce-api/pkg/logger"
)

// Управление схемой PostgreSQL вне сервера:
//
//	migrate -cmd up
//	migrate -cmd down -steps 1
//	migrate -cmd force -version 1   (снять dirty-состояние после неудачной миграции)
//	migrate -cmd version
func main() {
	cmd := flag.String("cmd", "up", "up | down | force | version")
	steps := flag.Int("steps", 1, "number of migrations to roll back with -cmd down")
	version := flag.Int("version", -1, "target version for -cmd force")
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env.IsProduction(), cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatal("Migrations apply only to the postgres driver", zap.String("driver", cfg.Database.Driver))
	}

	dsn, err := database.EnforceTLS(cfg.Database.DSN, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal("Invalid DATABASE_DSN", zap.Error(err))
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("Failed to create migrate driver", zap.Error(err))
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		log.Fatal("Failed to create migrate instance", zap.Error(err))
	}

	if err := run(m, *cmd, *steps, *version, log); err != nil {
		log.Fatal("Migration command failed", zap.String("cmd", *cmd), zap.Error(err))
	}
}

func run(m *migrate.Migrate, cmd string, steps, version int, log *zap.Logger) error {
	var err error
	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		if steps <= 0 {
			return fmt.Errorf("-steps must be positive, got %d", steps)
		}
		err = m.Steps(-steps)
	case "force":
		if version < 0 {
			return errors.New("-version is required for force")
		}
		err = m.Force(version)
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			log.Info("No migrations applied yet")
			return nil
		}
		if verr != nil {
			return verr
		}
		log.Info("Current schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No changes to apply")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("Migration command completed", zap.String("cmd", cmd))
	return nil
}
