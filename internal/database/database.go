// Package database owns the Postgres connection used by the Track
// Registry, Stats Recorder, and the repositories that warm the Local
// Matcher's fingerprint index at startup.
package database

import (
	"fmt"
	"log"
	"time"

	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/telemetry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection. Set once by Initialize; component
// constructors take it as an explicit argument rather than reading this
// global directly, so tests can swap in a sqlite *gorm.DB.
var DB *gorm.DB

// Initialize opens the Postgres connection described by dsn and
// configures the connection pool. An empty dsn is an error; no other
// environment variables are consulted.
func Initialize(dsn string, environment string) error {
	if dsn == "" {
		return fmt.Errorf("database DSN is empty: set DATABASE_URL")
	}

	gormLogger := gormlogger.Default
	if environment == "development" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
		log.Printf("warning: failed to register tracing plugin: %v", err)
	}

	DB = db

	log.Println("database connected")
	return nil
}

// Migrate auto-migrates the monitoring schema (spec.md §6) and creates
// the indexes AutoMigrate doesn't know how to express, in particular
// the case-insensitive uniqueness on Artist/Label names.
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := DB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Printf("warning: could not create uuid-ossp extension: %v", err)
	}

	err := DB.AutoMigrate(
		&models.Station{},
		&models.Artist{},
		&models.Label{},
		&models.Track{},
		&models.Fingerprint{},
		&models.Detection{},
		&models.TrackStats{},
		&models.ArtistStats{},
		&models.LabelStats{},
		&models.StationStats{},
		&models.StationTrackStats{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("database migrations completed")
	return nil
}

func createIndexes() error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON fingerprints (fp_hash)",
		"CREATE INDEX IF NOT EXISTS idx_fingerprints_track ON fingerprints (track_id)",
		"CREATE INDEX IF NOT EXISTS idx_detections_station_started ON detections (station_id, started_at)",
		"CREATE INDEX IF NOT EXISTS idx_detections_station_track ON detections (station_id, track_id)",
	}
	for _, stmt := range statements {
		if err := DB.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity, used by the /healthz endpoint.
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
