package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	Sheets   SheetsConfig
	Quota    QuotaConfig
	Admin    AdminConfig
	Fanout   FanoutConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LLMConfig holds vision/LLM backend configuration
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float32
	MaxTokens      int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// SheetsConfig holds the remote row-sink configuration
type SheetsConfig struct {
	BaseURL              string
	Token                string
	DefaultSpreadsheetID string
	Worksheet            string
}

// QuotaConfig holds quota accounting configuration
type QuotaConfig struct {
	// Timezone whose midnight resets the daily quota.
	Timezone string
}

// AdminConfig names the platform ids auto-promoted to the admin tier.
type AdminConfig struct {
	IDs []int64
}

// FanoutConfig holds PDF rasterization settings
type FanoutConfig struct {
	Pdftoppm string
	DPI      int
	MaxPages int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_API_URL", "https://llm.chutes.ai/v1"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			Model:          getEnv("LLM_MODEL", "Qwen/Qwen3-VL-235B-A22B-Instruct"),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 2000),
			ConnectTimeout: getEnvAsDuration("LLM_CONNECT_TIMEOUT", 60*time.Second),
			ReadTimeout:    getEnvAsDuration("LLM_READ_TIMEOUT", 120*time.Second),
		},
		Sheets: SheetsConfig{
			BaseURL:              getEnv("SHEETS_API_URL", "https://sheets.googleapis.com/v4"),
			Token:                getEnv("SHEETS_TOKEN", ""),
			DefaultSpreadsheetID: getEnv("DEFAULT_SPREADSHEET_ID", ""),
			Worksheet:            getEnv("SHEETS_WORKSHEET", "Sheet1"),
		},
		Quota: QuotaConfig{
			Timezone: getEnv("QUOTA_TIMEZONE", "Asia/Jakarta"),
		},
		Admin: AdminConfig{
			IDs: getEnvAsInt64List("ADMIN_IDS"),
		},
		Fanout: FanoutConfig{
			Pdftoppm: getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:      getEnvAsInt("PDF_RASTER_DPI", 144),
			MaxPages: getEnvAsInt("PDF_MAX_PAGES", 0),
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

// getEnvAsInt64List parses a comma-separated id list; malformed entries
// are dropped.
func getEnvAsInt64List(key string) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate refuses startup with a broken sink, backend, or store.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required", ErrInvalidInput)
	}
	if c.Sheets.DefaultSpreadsheetID == "" {
		return NewAppError("CONFIG_ERROR", "DEFAULT_SPREADSHEET_ID is required", ErrInvalidInput)
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return NewAppError("CONFIG_ERROR", "QUOTA_TIMEZONE is not a valid IANA timezone", err)
	}
	return nil
}
