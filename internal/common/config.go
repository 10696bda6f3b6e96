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
	OCR      OCRConfig
	Layout   LayoutConfig
	Worker   WorkerConfig
	Storage  StorageConfig
	Webhook  WebhookConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string // "postgres" or "sqlite"
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract   string
	TessdataDir string
	Lang        string
	OEM         int
	PSM         int
	DPI         int
	CloseKernel int
}

// LayoutConfig selects the page layout and how it is verified
type LayoutConfig struct {
	Name         string
	TemplatePath string
	LayoutFile   string
	Threshold    float64
	MatchSide    int // longest template side correlated; 0 keeps full resolution
	DebugDir     string
}

// WorkerConfig sizes the background extraction pool
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// StorageConfig holds where uploaded documents are kept until processed
type StorageConfig struct {
	TempDir       string
	InboxDir      string // watched for dropped PDFs; empty disables the inbox
	InboxDebounce time.Duration
}

// WebhookConfig holds outbound notification settings
type WebhookConfig struct {
	Timeout time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	dsn := getEnv("DB_URL", "file:nfse.db?_pragma=busy_timeout(5000)")
	return &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", driverFromDSN(dsn)),
			DSN:             dsn,
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr: getEnv("GRPC_ADDR", ":8081"),
		},
		OCR: OCRConfig{
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Lang:        getEnv("OCR_LANG", "por"),
			OEM:         getEnvAsInt("OCR_OEM", 3),
			PSM:         getEnvAsInt("OCR_PSM", 6),
			DPI:         getEnvAsInt("RENDER_DPI", 300),
			CloseKernel: getEnvAsInt("OCR_CLOSE_KERNEL", 1),
		},
		Layout: LayoutConfig{
			Name:         getEnv("LAYOUT_NAME", "fortaleza"),
			TemplatePath: getEnv("LAYOUT_TEMPLATE", "template_fortaleza.png"),
			LayoutFile:   getEnv("LAYOUT_FILE", ""),
			Threshold:    getEnvAsFloat64("LAYOUT_THRESHOLD", 0.6),
			MatchSide:    getEnvAsInt("LAYOUT_MATCH_SIDE", 0),
			DebugDir:     getEnv("DEBUG_DIR", ""),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKERS", 2),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Storage: StorageConfig{
			TempDir:       getEnv("UPLOAD_DIR", "temp"),
			InboxDir:      getEnv("INBOX_DIR", ""),
			InboxDebounce: getEnvAsDuration("INBOX_DEBOUNCE", 500*time.Millisecond),
		},
		Webhook: WebhookConfig{
			Timeout: getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

func driverFromDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "RENDER_DPI must be positive", ErrInvalidInput)
	}
	if c.OCR.CloseKernel < 1 {
		return NewAppError("CONFIG_ERROR", "OCR_CLOSE_KERNEL must be at least 1", ErrInvalidInput)
	}
	if c.Layout.Threshold <= 0 || c.Layout.Threshold > 1 {
		return NewAppError("CONFIG_ERROR", "LAYOUT_THRESHOLD must be in (0, 1]", ErrInvalidInput)
	}
	if c.Layout.MatchSide < 0 {
		return NewAppError("CONFIG_ERROR", "LAYOUT_MATCH_SIDE must not be negative", ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
