package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// CSV exports, one per location
	FacultyDataPath string
	LibraryDataPath string

	// Database
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID string
	FacultySheetName    string
	LibrarySheetName    string

	// AMQP (optional; empty URL disables report events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Report cache
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	LoadTimeout time.Duration
	LogLevel    string

	// Periodic refresh; zero means load once at startup.
	ReloadInterval time.Duration

	// occupancy-import: where records are read from, and how often.
	ImportSource   string
	ImportInterval time.Duration
}

var (
	validBackends  = []string{"csv", "sqlite", "sheets"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validImports   = []string{"csv", "sheets"}
)

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "csv"),

		FacultyDataPath: getEnv("FACULTY_DATA_PATH", "./data/fit.csv"),
		LibraryDataPath: getEnv("LIBRARY_DATA_PATH", "./data/openlib.csv"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/occupancy.db"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		FacultySheetName:    getEnv("FACULTY_SHEET_NAME", "FIT"),
		LibrarySheetName:    getEnv("LIBRARY_SHEET_NAME", "Open Library"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "occupancy"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_generated"),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 256),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),

		LoadTimeout: getEnvDuration("LOAD_TIMEOUT", 30*time.Second),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),

		ReloadInterval: getEnvDuration("RELOAD_INTERVAL", 0),

		ImportSource:   strings.ToLower(getEnv("IMPORT_SOURCE", "csv")),
		ImportInterval: getEnvDuration("IMPORT_INTERVAL", 0),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "csv":
		if c.FacultyDataPath == "" || c.LibraryDataPath == "" {
			errors = append(errors, "both FACULTY_DATA_PATH and LIBRARY_DATA_PATH are required for csv backend")
		}
	case "sqlite":
		errors = append(errors, c.validateSQLitePath()...)
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.FacultySheetName == "" || c.LibrarySheetName == "" {
			errors = append(errors, "both FACULTY_SHEET_NAME and LIBRARY_SHEET_NAME are required for sheets backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	} else if c.ReportCacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at most 100000", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.ReportCacheTTL))
	}
	if c.LoadTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid load timeout %v: must be at least 1 second", c.LoadTimeout))
	} else if c.LoadTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid load timeout %v: must be at most 10 minutes", c.LoadTimeout))
	}

	if c.ReloadInterval != 0 && c.ReloadInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reload interval %v: must be 0 or at least 1 minute", c.ReloadInterval))
	}
	if c.ImportInterval != 0 && c.ImportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid import interval %v: must be 0 or at least 1 minute", c.ImportInterval))
	}
	if !slices.Contains(validImports, c.ImportSource) {
		errors = append(errors, fmt.Sprintf("invalid import source '%s': must be one of %v", c.ImportSource, validImports))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateSQLitePath() []string {
	if c.SQLiteDBPath == "" {
		return []string{"SQLite database path cannot be empty when using sqlite backend"}
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return []string{fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)}
			}
		}
	}
	return nil
}

// AMQPEnabled reports whether report events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
