package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Drive    DriveConfig
	Extract  ExtractConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	SQLiteDSN        string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	AllowedOrigins []string
	Debug          bool
}

// DriveConfig holds document source configuration
type DriveConfig struct {
	APIKey       string
	BaseURL      string
	FetchTimeout time.Duration
	MaxBytes     int64
	RatePerSec   float64
	Burst        int
}

// ExtractConfig holds extraction engine configuration
type ExtractConfig struct {
	Engine        string // "poppler" | "mupdf"
	Workers       int
	Pdftotext     string
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	DPI           int
	OCRImagePages bool
}

// PipelineConfig holds orchestrator and queue configuration
type PipelineConfig struct {
	Concurrency  int
	QueueWorkers int
	QueueSize    int
	MaxRetries   int
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present; real env vars win.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			SQLiteDSN:        getEnv("SQLITE_DSN", "file:pipeline?mode=memory&cache=shared&_pragma=foreign_keys(1)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":8081"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
			Debug:          getEnvAsBool("DEBUG", false),
		},
		Drive: DriveConfig{
			APIKey:       getEnv("GOOGLE_API_KEY", ""),
			BaseURL:      getEnv("DRIVE_BASE_URL", "https://www.googleapis.com/drive/v3"),
			FetchTimeout: getEnvAsDuration("DRIVE_FETCH_TIMEOUT", 120*time.Second),
			MaxBytes:     getEnvAsInt64("DRIVE_MAX_BYTES", 100<<20),
			RatePerSec:   getEnvAsFloat64("DRIVE_RATE_PER_SEC", 10),
			Burst:        getEnvAsInt("DRIVE_RATE_BURST", 5),
		},
		Extract: ExtractConfig{
			Engine:        getEnv("EXTRACT_ENGINE", "poppler"),
			Workers:       getEnvAsInt("EXTRACT_WORKERS", 2),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 200),
			OCRImagePages: getEnvAsBool("OCR_IMAGE_PAGES", true),
		},
		Pipeline: PipelineConfig{
			Concurrency:  getEnvAsInt("PIPELINE_CONCURRENCY", 1),
			QueueWorkers: getEnvAsInt("PIPELINE_QUEUE_WORKERS", 2),
			QueueSize:    getEnvAsInt("PIPELINE_QUEUE_SIZE", 64),
			MaxRetries:   getEnvAsInt("PIPELINE_MAX_RETRIES", 2),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration. inmem skips the database DSN
// requirement.
func (c *Config) Validate(inmem bool) error {
	if !inmem && c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Drive.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GOOGLE_API_KEY is required", ErrInvalidInput)
	}
	if c.Drive.FetchTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "DRIVE_FETCH_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Extract.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_WORKERS must be positive", ErrInvalidInput)
	}
	switch c.Extract.Engine {
	case "poppler", "mupdf":
	default:
		return NewAppError("CONFIG_ERROR", "EXTRACT_ENGINE must be poppler or mupdf", ErrInvalidInput)
	}
	if c.Pipeline.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_MAX_RETRIES must be >= 0", ErrInvalidInput)
	}
	return nil
}
