package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

const (
	defaultArchiveURL        = "https://www.sec.gov/Archives/edgar/daily-index/bulkdata/submissions.zip"
	defaultSubmissionsAPIURL = "https://data.sec.gov/submissions/CIK%s.json"
)

type Config struct {
	DatabaseURL       string
	StoreDriver       string
	SQLitePath        string
	UserAgent         string
	ArchiveURL        string
	SubmissionsAPIURL string
	ArchivePath       string
	CSVPath           string
	LoadMode          string
	DBBatchSize       int
	SkipUnchanged     bool
	APIPort           string
	UploadMaxBytes    int
	GeminiAPIKey      string
	GeminiModel       string
	LogLevel          string
}

// New reads the configuration from the environment. Callers are expected to
// have loaded any .env file beforehand.
func New() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoreDriver:       getEnv("STORE_DRIVER", StoreDriverPostgres),
		SQLitePath:        getEnv("SQLITE_PATH", "submissions.db"),
		UserAgent:         strings.TrimSpace(os.Getenv("SEC_USER_AGENT")),
		ArchiveURL:        getEnv("ARCHIVE_URL", defaultArchiveURL),
		SubmissionsAPIURL: getEnv("SUBMISSIONS_API_URL", defaultSubmissionsAPIURL),
		ArchivePath:       getEnv("ARCHIVE_PATH", "submissions.zip"),
		CSVPath:           getEnv("CSV_PATH", "filtered_s1_filings.csv"),
		LoadMode:          getEnv("LOAD_MODE", "replace"),
		DBBatchSize:       1000,
		APIPort:           getEnv("API_PORT", "8080"),
		UploadMaxBytes:    64 << 20,
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StoreDriverSQLite:
	default:
		return nil, fmt.Errorf("invalid value for STORE_DRIVER: expected %q or %q, got '%s'", StoreDriverPostgres, StoreDriverSQLite, cfg.StoreDriver)
	}

	// The provider rejects anonymous clients.
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("SEC_USER_AGENT environment variable is not set")
	}

	var err error
	cfg.DBBatchSize, err = getEnvAsInt("DB_BATCH_SIZE", cfg.DBBatchSize)
	if err != nil {
		return nil, err
	}
	if cfg.DBBatchSize <= 0 {
		return nil, fmt.Errorf("invalid value for DB_BATCH_SIZE: must be positive, got %d", cfg.DBBatchSize)
	}

	cfg.UploadMaxBytes, err = getEnvAsInt("UPLOAD_MAX_BYTES", cfg.UploadMaxBytes)
	if err != nil {
		return nil, err
	}
	if cfg.UploadMaxBytes <= 0 {
		return nil, fmt.Errorf("invalid value for UPLOAD_MAX_BYTES: must be positive, got %d", cfg.UploadMaxBytes)
	}

	cfg.SkipUnchanged, err = getEnvAsBool("SKIP_UNCHANGED", false)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: expected a boolean, got '%s'", key, valueStr)
	}

	return value, nil
}
