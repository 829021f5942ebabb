package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr         string
	CORSOrigin   string
	MaxBodyBytes int64

	// Stats collaborator serving /wordcounts
	StatsBaseURL string
	StatsTimeout time.Duration

	// Chart cache: Redis when RedisURL is set, in-process LRU otherwise
	RedisURL       string
	ChartCacheSize int
	ChartCacheTTL  time.Duration

	// PDF rendering
	ChromePath    string
	PDFJobTimeout time.Duration
	PDFQueueWait  time.Duration
	PDFMinBytes   int

	// Export log, disabled when empty
	DatabaseURL string

	// Export archive, disabled when S3Endpoint is empty
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":5000"),
		CORSOrigin:     getenv("CORS_ORIGIN", "*"),
		MaxBodyBytes:   int64(getenvInt("MAX_BODY_BYTES", 25<<20)),
		StatsBaseURL:   getenv("STATS_BASE_URL", ""),
		StatsTimeout:   time.Duration(getenvInt("STATS_TIMEOUT_SECONDS", 15)) * time.Second,
		RedisURL:       getenv("REDIS_URL", ""),
		ChartCacheSize: getenvInt("CHART_CACHE_SIZE", 256),
		ChartCacheTTL:  time.Duration(getenvInt("CHART_CACHE_TTL_SECONDS", 86400)) * time.Second,
		ChromePath:     getenv("CHROME_PATH", ""),
		PDFJobTimeout:  time.Duration(getenvInt("PDF_JOB_TIMEOUT_SECONDS", 60)) * time.Second,
		PDFQueueWait:   time.Duration(getenvInt("PDF_QUEUE_WAIT_SECONDS", 120)) * time.Second,
		PDFMinBytes:    getenvInt("PDF_MIN_BYTES", 800),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		S3Endpoint:     getenv("S3_ENDPOINT", ""),
		S3AccessKey:    getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getenv("S3_SECRET_KEY", ""),
		S3Bucket:       getenv("S3_BUCKET", "bijbelzoek-exports"),
		S3UseSSL:       getenvBool("S3_USE_SSL", false),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "text"),
	}
}

// fileConfig mirrors Config for TOML files. Durations are whole seconds so
// the file and the environment use the same units.
type fileConfig struct {
	Addr         *string `toml:"addr"`
	CORSOrigin   *string `toml:"cors_origin"`
	MaxBodyBytes *int64  `toml:"max_body_bytes"`

	Stats struct {
		BaseURL        *string `toml:"base_url"`
		TimeoutSeconds *int    `toml:"timeout_seconds"`
	} `toml:"stats"`

	Cache struct {
		RedisURL   *string `toml:"redis_url"`
		Size       *int    `toml:"size"`
		TTLSeconds *int    `toml:"ttl_seconds"`
	} `toml:"cache"`

	PDF struct {
		ChromePath        *string `toml:"chrome_path"`
		JobTimeoutSeconds *int    `toml:"job_timeout_seconds"`
		QueueWaitSeconds  *int    `toml:"queue_wait_seconds"`
		MinBytes          *int    `toml:"min_bytes"`
	} `toml:"pdf"`

	Database struct {
		URL *string `toml:"url"`
	} `toml:"database"`

	Archive struct {
		Endpoint  *string `toml:"endpoint"`
		AccessKey *string `toml:"access_key"`
		SecretKey *string `toml:"secret_key"`
		Bucket    *string `toml:"bucket"`
		UseSSL    *bool   `toml:"use_ssl"`
	} `toml:"archive"`

	Log struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
}

// LoadFile loads the environment configuration and overlays the values set
// in the TOML file at path. Keys absent from the file keep their env value.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}

	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.CORSOrigin, fc.CORSOrigin)
	if fc.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *fc.MaxBodyBytes
	}
	setString(&cfg.StatsBaseURL, fc.Stats.BaseURL)
	setSeconds(&cfg.StatsTimeout, fc.Stats.TimeoutSeconds)
	setString(&cfg.RedisURL, fc.Cache.RedisURL)
	setInt(&cfg.ChartCacheSize, fc.Cache.Size)
	setSeconds(&cfg.ChartCacheTTL, fc.Cache.TTLSeconds)
	setString(&cfg.ChromePath, fc.PDF.ChromePath)
	setSeconds(&cfg.PDFJobTimeout, fc.PDF.JobTimeoutSeconds)
	setSeconds(&cfg.PDFQueueWait, fc.PDF.QueueWaitSeconds)
	setInt(&cfg.PDFMinBytes, fc.PDF.MinBytes)
	setString(&cfg.DatabaseURL, fc.Database.URL)
	setString(&cfg.S3Endpoint, fc.Archive.Endpoint)
	setString(&cfg.S3AccessKey, fc.Archive.AccessKey)
	setString(&cfg.S3SecretKey, fc.Archive.SecretKey)
	setString(&cfg.S3Bucket, fc.Archive.Bucket)
	if fc.Archive.UseSSL != nil {
		cfg.S3UseSSL = *fc.Archive.UseSSL
	}
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)

	return cfg, nil
}

// Warnings lists settings that leave part of the export degraded.
func (c Config) Warnings() []string {
	var out []string
	if strings.TrimSpace(c.StatsBaseURL) == "" {
		out = append(out, "STATS_BASE_URL is not set; server-rendered charts will show missing data")
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setSeconds(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Second
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
