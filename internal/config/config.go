package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
//
// Storage:
// - DATA_DIR: directory for JSON stores (default: data)
// - BOOKS_FILE: catalog store file name (default: books.json)
// - USERS_FILE: user store file name (default: users.json)
// - EVENTS_FILE: event store file name (default: events.json)
// - JOBS_DB: sqlite database for conversion job state (default: data/jobs.db)
// - CACHE_TTL: read-through cache TTL in seconds (default: 30)
//
// Files:
// - UPLOAD_DIR: directory watched for uploaded books (default: books)
// - SCRATCH_DIR: root for per-job scratch directories (default: temp)
// - MAX_FILE_SIZE: maximum accepted upload size in bytes (default: 50MiB)
//
// Conversion:
// - CONVERTER_DIR: base directory checked for a portable converter (default: .)
// - CONVERT_TIMEOUT: subprocess timeout in seconds (default: 60)
// - CONVERT_WORKERS: concurrent conversion subprocesses (default: 2)
//
// Security:
// - ADMIN_IDS: comma-separated administrator IDs
// - SECRET_PHRASE: registration phrase (default: bookclub2024)
//
// HTTP:
// - HTTP_ADDR: API listen address (default: :8080)
// - HTTP_UI_ENABLED: serve the static UI (default: false)
// - HTTP_UI_DIR: static UI directory (default: web/dist)
//
// Scheduling:
// - SCAN_CRON: upload-directory rescan schedule (default: "@every 10m")
// - REMINDER_CRON: event reminder schedule (default: "0 9 * * *")
//
// Logging:
// - LOG_LEVEL: debug/info/warn/error (default: info)
// - LOG_FILE: optional log file path

type Config struct {
	Storage  StorageConfig  `json:"storage"`
	Files    FileConfig     `json:"files"`
	Convert  ConvertConfig  `json:"convert"`
	Security SecurityConfig `json:"security"`
	HTTP     HTTPConfig     `json:"http"`
	Schedule ScheduleConfig `json:"schedule"`
	Logging  LoggingConfig  `json:"logging"`
}

// StorageConfig locates the flat-file stores and tunes their cache.
type StorageConfig struct {
	DataDir    string `json:"data_dir"`
	BooksFile  string `json:"books_file"`
	UsersFile  string `json:"users_file"`
	EventsFile string `json:"events_file"`
	JobsDB     string `json:"jobs_db"`
	CacheTTL   int    `json:"cache_ttl"`
}

// BooksPath returns the full path of the catalog store file.
func (c StorageConfig) BooksPath() string {
	return filepath.Join(c.DataDir, c.BooksFile)
}

// UsersPath returns the full path of the user store file.
func (c StorageConfig) UsersPath() string {
	return filepath.Join(c.DataDir, c.UsersFile)
}

// EventsPath returns the full path of the event store file.
func (c StorageConfig) EventsPath() string {
	return filepath.Join(c.DataDir, c.EventsFile)
}

// TTL returns the cache TTL as a duration.
func (c StorageConfig) TTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// FileConfig holds upload and scratch directory settings.
type FileConfig struct {
	UploadDir   string `json:"upload_dir"`
	ScratchDir  string `json:"scratch_dir"`
	MaxFileSize int64  `json:"max_file_size"`
}

// ConvertConfig holds converter discovery and subprocess settings.
type ConvertConfig struct {
	ConverterDir   string `json:"converter_dir"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Workers        int    `json:"workers"`
}

// Timeout returns the subprocess timeout as a duration.
func (c ConvertConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SecurityConfig holds admin identities and the registration phrase.
type SecurityConfig struct {
	AdminIDs     []int64 `json:"admin_ids"`
	SecretPhrase string  `json:"secret_phrase"`
}

// IsAdmin reports whether id belongs to a configured administrator.
func (c SecurityConfig) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIEnabled   bool   `json:"ui_enabled"`
	UIStaticDir string `json:"ui_static_dir"`
}

type ScheduleConfig struct {
	ScanCron     string `json:"scan_cron"`
	ReminderCron string `json:"reminder_cron"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Storage: StorageConfig{
			DataDir:    getEnvString("DATA_DIR", "data"),
			BooksFile:  getEnvString("BOOKS_FILE", "books.json"),
			UsersFile:  getEnvString("USERS_FILE", "users.json"),
			EventsFile: getEnvString("EVENTS_FILE", "events.json"),
			JobsDB:     getEnvString("JOBS_DB", filepath.Join("data", "jobs.db")),
			CacheTTL:   getEnvInt("CACHE_TTL", 30),
		},
		Files: FileConfig{
			UploadDir:   getEnvString("UPLOAD_DIR", "books"),
			ScratchDir:  getEnvString("SCRATCH_DIR", "temp"),
			MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 50*1024*1024),
		},
		Convert: ConvertConfig{
			ConverterDir:   getEnvString("CONVERTER_DIR", "."),
			TimeoutSeconds: getEnvInt("CONVERT_TIMEOUT", 60),
			Workers:        getEnvInt("CONVERT_WORKERS", 2),
		},
		Security: SecurityConfig{
			AdminIDs:     getEnvInt64s("ADMIN_IDS"),
			SecretPhrase: getEnvString("SECRET_PHRASE", "bookclub2024"),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIEnabled:   getEnvBool("HTTP_UI_ENABLED", false),
			UIStaticDir: getEnvString("HTTP_UI_DIR", filepath.Join("web", "dist")),
		},
		Schedule: ScheduleConfig{
			ScanCron:     getEnvString("SCAN_CRON", "@every 10m"),
			ReminderCron: getEnvString("REMINDER_CRON", "0 9 * * *"),
		},
		Logging: LoggingConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// EnsureDirs creates every directory the application writes into.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.Storage.DataDir,
		c.Files.UploadDir,
		c.Files.ScratchDir,
		filepath.Dir(c.Storage.JobsDB),
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Storage.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Convert.TimeoutSeconds <= 0 {
		return fmt.Errorf("CONVERT_TIMEOUT must be positive")
	}
	if c.Convert.Workers <= 0 {
		return fmt.Errorf("CONVERT_WORKERS must be positive")
	}
	if c.Files.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvInt64 gets a 64-bit integer value from environment variables with default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64s parses a comma-separated list of integers; malformed items
// are skipped.
func getEnvInt64s(key string) []int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
