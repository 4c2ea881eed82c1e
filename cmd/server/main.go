package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zfogg/sidechain/backend/internal/audio"
	"github.com/zfogg/sidechain/backend/internal/cache"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/database"
	"github.com/zfogg/sidechain/backend/internal/fingerprint"
	"github.com/zfogg/sidechain/backend/internal/httpapi"
	"github.com/zfogg/sidechain/backend/internal/kernel"
	"github.com/zfogg/sidechain/backend/internal/logger"
	"github.com/zfogg/sidechain/backend/internal/queue"
	"github.com/zfogg/sidechain/backend/internal/recognition"
	"github.com/zfogg/sidechain/backend/internal/registry"
	"github.com/zfogg/sidechain/backend/internal/repository"
	"github.com/zfogg/sidechain/backend/internal/scheduler"
	"github.com/zfogg/sidechain/backend/internal/seed"
	"github.com/zfogg/sidechain/backend/internal/stats"
	"github.com/zfogg/sidechain/backend/internal/storage"
	"github.com/zfogg/sidechain/backend/internal/supervisor"
	"github.com/zfogg/sidechain/backend/internal/telemetry"
	"github.com/zfogg/sidechain/backend/internal/websocket"
)

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "monitor.log"
	}

	if err := logger.Initialize(logLevel, logFile); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Log.Info("=== radio monitor starting ===")

	if err := godotenv.Load(); err != nil {
		logger.Log.Warn("no .env file found, using system environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.FatalWithFields("invalid configuration", err)
	}

	if otlpEndpoint := os.Getenv("OTLP_ENDPOINT"); otlpEndpoint != "" {
		tp, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:  "radio-monitor",
			Environment:  cfg.Environment,
			OTLPEndpoint: otlpEndpoint,
			Enabled:      true,
			SamplingRate: 1.0,
		})
		if err != nil {
			logger.Log.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else if tp != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Log.Warn("tracer shutdown error", zap.Error(err))
				}
			}()
		}
	} else {
		logger.Log.Info("tracing disabled (OTLP_ENDPOINT not set)")
	}

	var redisClient *cache.RedisClient
	if cfg.RedisHost != "" {
		var err error
		redisClient, err = cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPass)
		if err != nil {
			logger.Log.Warn("failed to connect to redis, detection dedupe disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	} else {
		logger.Log.Info("redis not configured (REDIS_HOST not set)")
	}

	if err := database.Initialize(cfg.DatabaseURL, cfg.Environment); err != nil {
		logger.FatalWithFields("failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("failed to run migrations", err)
	}

	if cfg.Environment == "development" {
		var stationCount int64
		if err := database.DB.Table("stations").Count(&stationCount).Error; err != nil {
			logger.WarnWithFields("failed to count stations, skipping auto-seed", err)
		} else if stationCount == 0 {
			logger.Log.Info("development mode: database empty, auto-seeding")
			if err := seed.NewSeeder(database.DB).SeedDev(); err != nil {
				logger.WarnWithFields("auto-seed failed (non-fatal), use: go run cmd/seed/main.go dev", err)
			} else {
				logger.Log.Info("development data seeded")
			}
		} else {
			logger.Log.Info("database already populated, skipping auto-seed", zap.Int64("station_count", stationCount))
		}
	}

	stationRepo := repository.NewStationRepository(database.DB)
	trackRepo := repository.NewTrackRepository(database.DB)
	detectionRepo := repository.NewDetectionRepository(database.DB)
	statsRepo := repository.NewStatsRepository(database.DB)

	matcher := fingerprint.NewLocalMatcher(cfg.LocalMinConfidence)
	if err := warmMatcher(trackRepo, matcher); err != nil {
		logger.WarnWithFields("failed to warm local matcher index, starting with an empty index", err)
	}

	trackRegistry := registry.New(trackRepo)
	recognizer := recognition.New(cfg, trackRegistry.IsrcKnown)
	recorder := stats.New(detectionRepo, statsRepo, redisClient, logger.Log)
	segQueue := queue.NewSegmentQueue(audio.NewExtractor(audio.DefaultExtractorConfig()), logger.Log)
	segQueue.Start()
	defer segQueue.Stop()

	hub := websocket.NewHub()
	go hub.Run()
	wsHandler := websocket.NewHandler(hub)

	var archiver storage.SegmentArchiver
	if cfg.S3Bucket != "" {
		uploader, err := storage.NewS3Uploader(cfg.S3Region, cfg.S3Bucket, os.Getenv("S3_BASE_URL"))
		if err != nil {
			logger.Log.Warn("failed to initialize S3 archiver, segment/fingerprint archival disabled", zap.Error(err))
		} else {
			archiver = uploader
		}
	}

	supervisorDeps := supervisor.Deps{
		Config:     cfg,
		Matcher:    matcher,
		Recognizer: recognizer,
		Registry:   trackRegistry,
		Recorder:   recorder,
		Tracks:     trackRepo,
		Stations:   stationRepo,
		Events:     wsHandler,
		Logger:     logger.Log,
	}

	sched := scheduler.New(cfg, stationRepo, supervisorDeps, segQueue, wsHandler, logger.Log)

	appKernel := kernel.New().
		SetDB(database.DB).
		SetLogger(logger.Log).
		SetConfig(cfg).
		SetStationRepository(stationRepo).
		SetTrackRepository(trackRepo).
		SetDetectionRepository(detectionRepo).
		SetStatsRepository(statsRepo).
		SetMatcher(matcher).
		SetRecognizer(recognizer).
		SetRegistry(trackRegistry).
		SetRecorder(recorder).
		SetSegmentQueue(segQueue).
		SetScheduler(sched).
		SetWebSocketHandler(wsHandler)
	if redisClient != nil {
		appKernel.SetCache(redisClient)
	}
	if archiver != nil {
		appKernel.SetArchiver(archiver)
	}

	if err := appKernel.Validate(); err != nil {
		logger.FatalWithFields("kernel validation failed", err)
	}
	logger.Log.Info("dependency container initialized")

	ctx, cancelStart := context.WithCancel(context.Background())
	defer cancelStart()
	if err := sched.Start(ctx); err != nil {
		logger.FatalWithFields("failed to start scheduler", err)
	}

	router := httpapi.New(appKernel)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}

	// WebSocket upgrades bypass Gin entirely: Gin's ResponseWriter wrapper
	// interferes with connection hijacking.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			wsHandler.HandleWebSocketHTTP(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	go func() {
		logger.Log.Info("monitor listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Shutdown(shutdownCtx, recorder); err != nil {
		logger.Log.Error("scheduler shutdown error", zap.Error(err))
	}
	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		logger.WarnWithFields("websocket shutdown warning", err)
	}
	if err := appKernel.Cleanup(shutdownCtx); err != nil {
		logger.Log.Error("cleanup error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithFields("server forced to shutdown", err)
	}

	logger.Log.Info("monitor exited")
}

// warmMatcher loads every stored fingerprint and rebuilds the Local
// Matcher's index from it, the startup half of spec.md §4.4's "warmed
// from persisted fingerprints at startup" requirement.
func warmMatcher(tracks repository.TrackRepository, matcher *fingerprint.LocalMatcher) error {
	records, err := tracks.ListFingerprints(context.Background())
	if err != nil {
		return err
	}

	byTrack := make(map[string][]uint32)
	for _, fp := range records {
		byTrack[fp.TrackID] = append(byTrack[fp.TrackID], fingerprint.DecodeHashes(fp.FpBlob)...)
	}

	indexRecords := make([]fingerprint.IndexRecord, 0, len(byTrack))
	for trackID, hashes := range byTrack {
		indexRecords = append(indexRecords, fingerprint.IndexRecord{
			TrackID: trackID,
			Hashes:  hashes,
		})
	}

	matcher.Warm(indexRecords)
	logger.Log.Info("local matcher warmed", zap.Int("tracks", len(indexRecords)))
	return nil
}
