package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/docserver"
	docserverPostgres "github.com/frahmantamala/qr-document/internal/docserver/postgres"
	"github.com/frahmantamala/qr-document/internal/transport"
	"github.com/frahmantamala/qr-document/internal/transport/rest"
)

var docServerCmd = &cobra.Command{
	Use:   "docserver",
	Short: "Start the stand-in document API",
	Long:  `Serve the user directory, issue-document and verify-scan endpoints from the local database`,
	Run: func(cmd *cobra.Command, args []string) {
		startDocServer()
	},
}

func startDocServer() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := setupLogger(cfg)

	db, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	service := docserver.NewService(
		docserverPostgres.NewUserRepository(db),
		docserverPostgres.NewDocumentRepository(gormDB),
		lg,
	)
	handler := docserver.NewHandler(transport.NewBaseHandler(lg), service)

	router := chi.NewRouter()
	rest.RegisterDocServerRoutes(router, handler, rest.Options{
		HealthChecks: map[string]rest.Checker{
			"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
		},
	}, lg)

	addr := fmt.Sprintf(":%d", cfg.DocServer.Port)
	lg.Info("Starting document API stand-in", "address", addr)

	serve(&http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, lg, nil)
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares db's connection pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
	})
}
