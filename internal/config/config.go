// Package config loads the monitor's tunables from the environment,
// following the same os.Getenv-with-defaults convention cmd/server used
// inline before this package existed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in the monitoring specification's
// configuration section, plus the ambient infrastructure settings
// (store DSN, Redis, external service credentials).
type Config struct {
	Environment string
	LogLevel    string
	LogFile     string

	// Admission / scheduling
	MaxStations          int
	MaxRestartsPerWindow int
	RestartWindow        time.Duration

	// Segmenter tuning
	SilenceThreshold float64
	SilenceHold      time.Duration
	ChangeThreshold  float64
	MinSegment       time.Duration
	MaxSegment       time.Duration

	// Recognition thresholds
	LocalMinConfidence    float64
	ExternalMinConfidence float64
	RecordMinConfidence   float64

	// Play Tracker tuning
	MinDetectionDuration time.Duration
	MergeGap             time.Duration
	GapTolerance         time.Duration
	PlayingTimeout       time.Duration
	SegmentPeriod        time.Duration

	// External recognition services
	ServiceA ExternalServiceConfig
	ServiceB ExternalServiceConfig

	// Infrastructure
	DatabaseURL string
	RedisHost   string
	RedisPort   string
	RedisPass   string

	S3Bucket string
	S3Region string
}

// ExternalServiceConfig configures one of the two external recognition
// services (fingerprint lookup service A, audio-identification service B).
type ExternalServiceConfig struct {
	BaseURL        string
	APIKey         string
	RateLimitPerS  float64
	RequestTimeout time.Duration
	MaxRetries     int
	MaxBodySize    int64
}

// Load reads Config from the process environment, applying the defaults
// spec.md §6 documents for every tunable it doesn't find set.
func Load() *Config {
	c := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "monitor.log"),

		MaxStations:          getEnvInt("MAX_STATIONS", 200),
		MaxRestartsPerWindow: getEnvInt("MAX_RESTARTS_PER_WINDOW", 5),
		RestartWindow:        getEnvDuration("RESTART_WINDOW", 10*time.Minute),

		SilenceThreshold: getEnvFloat("SILENCE_THRESHOLD", 0.05),
		SilenceHold:      getEnvDuration("SILENCE_HOLD", 2*time.Second),
		ChangeThreshold:  getEnvFloat("CHANGE_THRESHOLD", 2.5),
		MinSegment:       getEnvDuration("MIN_SEGMENT", 3*time.Second),
		MaxSegment:       getEnvDuration("MAX_SEGMENT", 180*time.Second),

		LocalMinConfidence:    getEnvFloat("LOCAL_MIN_CONFIDENCE", 0.80),
		ExternalMinConfidence: getEnvFloat("EXTERNAL_MIN_CONFIDENCE", 0.50),
		RecordMinConfidence:   getEnvFloat("RECORD_MIN_CONFIDENCE", 0.50),

		MinDetectionDuration: getEnvDuration("MIN_DETECTION_DURATION", 5*time.Second),
		MergeGap:             getEnvDuration("MERGE_GAP", 5*time.Second),
		GapTolerance:         getEnvDuration("GAP_TOLERANCE", 10*time.Second),
		SegmentPeriod:        getEnvDuration("SEGMENT_PERIOD", 15*time.Second),

		ServiceA: ExternalServiceConfig{
			BaseURL:        getEnv("SERVICE_A_BASE_URL", ""),
			APIKey:         getEnv("SERVICE_A_API_KEY", ""),
			RateLimitPerS:  getEnvFloat("SERVICE_A_RATE_LIMIT", 3.0),
			RequestTimeout: getEnvDuration("SERVICE_A_TIMEOUT", 8*time.Second),
			MaxRetries:     getEnvInt("SERVICE_A_MAX_RETRIES", 2),
			MaxBodySize:    int64(getEnvInt("SERVICE_A_MAX_BODY_BYTES", 8*1024)),
		},
		ServiceB: ExternalServiceConfig{
			BaseURL:        getEnv("SERVICE_B_BASE_URL", ""),
			APIKey:         getEnv("SERVICE_B_API_KEY", ""),
			RateLimitPerS:  getEnvFloat("SERVICE_B_RATE_LIMIT", 1.0),
			RequestTimeout: getEnvDuration("SERVICE_B_TIMEOUT", 15*time.Second),
			MaxRetries:     getEnvInt("SERVICE_B_MAX_RETRIES", 2),
			MaxBodySize:    int64(getEnvInt("SERVICE_B_MAX_BODY_BYTES", 5*1024*1024)),
		},

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisHost:   getEnv("REDIS_HOST", ""),
		RedisPort:   getEnv("REDIS_PORT", "6379"),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),

		S3Bucket: getEnv("SEGMENT_ARCHIVE_S3_BUCKET", ""),
		S3Region: getEnv("AWS_REGION", "us-east-1"),
	}

	// tick used by Play Tracker's playing_timeout = 2 x segment_period default
	c.PlayingTimeout = getEnvDuration("PLAYING_TIMEOUT", 2*c.SegmentPeriod)

	return c
}

// PlayingTimeoutDefault documents the derivation spec.md §4.7 specifies
// for operators who leave PLAYING_TIMEOUT unset.
func PlayingTimeoutDefault(segmentPeriod time.Duration) time.Duration {
	return 2 * segmentPeriod
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// Validate performs basic sanity checks an operator misconfiguration
// should fail fast on, rather than surfacing as a confusing runtime error
// deep in the pipeline.
func (c *Config) Validate() error {
	if c.MaxStations <= 0 {
		return fmt.Errorf("MAX_STATIONS must be positive, got %d", c.MaxStations)
	}
	if c.MinSegment >= c.MaxSegment {
		return fmt.Errorf("MIN_SEGMENT (%s) must be less than MAX_SEGMENT (%s)", c.MinSegment, c.MaxSegment)
	}
	return nil
}
