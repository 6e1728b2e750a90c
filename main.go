package main

import (
	"context"
	"log"

	"goelda/adapters/memory"
	"goelda/adapters/postgres"
	"goelda/internal"
	"goelda/internal/api"
	"goelda/internal/config"
	"goelda/internal/errors"
	"goelda/internal/migration"
	"goelda/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase connects to PostgreSQL and runs migrations
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)
	logger := internal.DefaultLogger

	// Results live in PostgreSQL when configured, otherwise in memory
	var repo ports.AnalysisRepository
	if appConfig.Database.URL != "" {
		db, err := initDatabase(context.Background(), appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		repo = postgres.NewAnalysisRepository(db)
		logger.Info("storing analyses in PostgreSQL")
	} else {
		repo = memory.NewAnalysisRepository()
		logger.Info("DATABASE_URL not set, storing analyses in memory")
	}

	server := api.NewServer(appConfig.Analysis.Options(), repo, logger)
	if err := server.Run(":" + appConfig.Server.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
