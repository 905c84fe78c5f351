package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trackmystacks/internal/log"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	DefaultComparisonWindow = 6
	MaxComparisonWindow     = 120
)

type Config struct {
	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string
	StoreTimeout time.Duration

	// AMQP (optional, empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets (optional, empty spreadsheet disables comparison publishing)
	GoogleSpreadsheetID          string
	GoogleSheetPrefix            string
	GoogleServiceAccountJSON     string
	GoogleServiceAccountFile     string
	GoogleApplicationCredentials string

	// Snapshots and comparison
	BackupDir        string
	ComparisonWindow int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		DataBackend: getEnv("DATA_BACKEND", BackendSQLite),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/trackmystacks.db"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 30*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "trackmystacks"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "snapshot_events"),

		GoogleSpreadsheetID:          getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetPrefix:            getEnv("GOOGLE_SHEET_PREFIX", "Comparison"),
		GoogleServiceAccountJSON:     getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		BackupDir:        getEnv("BACKUP_DIR", "./backups"),
		ComparisonWindow: getEnvInt("COMPARISON_WINDOW", DefaultComparisonWindow),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// AMQPEnabled reports whether snapshot events should be published.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// SheetsEnabled reports whether comparisons should be written to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	validBackends := []string{BackendSQLite, BackendMemory}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.StoreTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be at least 1 second", c.StoreTimeout))
	} else if c.StoreTimeout > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be at most 1 hour", c.StoreTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPEnabled() {
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

	// Validate Google Sheets configuration if a spreadsheet is configured
	if c.SheetsEnabled() {
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile && c.GoogleApplicationCredentials == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.ComparisonWindow < 1 {
		errors = append(errors, fmt.Sprintf("invalid comparison window %d: must be at least 1", c.ComparisonWindow))
	} else if c.ComparisonWindow > MaxComparisonWindow {
		errors = append(errors, fmt.Sprintf("invalid comparison window %d: must be at most %d", c.ComparisonWindow, MaxComparisonWindow))
	}

	if c.BackupDir == "" {
		errors = append(errors, "backup directory cannot be empty")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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
