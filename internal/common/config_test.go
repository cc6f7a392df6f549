package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/app")
	t.Setenv("LLM_API_KEY", "key")
	t.Setenv("DEFAULT_SPREADSHEET_ID", "sheet-1")
}

func TestLoadConfig_Defaults(t *testing.T) {
	validEnv(t)
	cfg := LoadConfig()

	assert.Equal(t, "https://llm.chutes.ai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "Qwen/Qwen3-VL-235B-A22B-Instruct", cfg.LLM.Model)
	assert.Equal(t, float32(0.1), cfg.LLM.Temperature)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.LLM.ConnectTimeout)
	assert.Equal(t, 120*time.Second, cfg.LLM.ReadTimeout)
	assert.Equal(t, "Asia/Jakarta", cfg.Quota.Timezone)
	assert.Equal(t, "pdftoppm", cfg.Fanout.Pdftoppm)
	assert.Equal(t, 144, cfg.Fanout.DPI)
}

func TestLoadConfig_Overrides(t *testing.T) {
	validEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "512")
	t.Setenv("LLM_READ_TIMEOUT", "90s")
	t.Setenv("QUOTA_TIMEZONE", "UTC")
	t.Setenv("PDF_MAX_PAGES", "10")

	cfg := LoadConfig()
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, 90*time.Second, cfg.LLM.ReadTimeout)
	assert.Equal(t, "UTC", cfg.Quota.Timezone)
	assert.Equal(t, 10, cfg.Fanout.MaxPages)
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	validEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "lots")
	t.Setenv("DB_MAX_CONNS", "-nope")

	cfg := LoadConfig()
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
}

func TestLoadConfig_AdminIDs(t *testing.T) {
	validEnv(t)
	t.Setenv("ADMIN_IDS", "101, 202,bogus,303")
	cfg := LoadConfig()
	assert.Equal(t, []int64{101, 202, 303}, cfg.Admin.IDs)
}

func TestConfigValidate(t *testing.T) {
	validEnv(t)
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	missingDB := *cfg
	missingDB.Database.URL = ""
	assert.Error(t, missingDB.Validate())

	missingKey := *cfg
	missingKey.LLM.APIKey = ""
	assert.Error(t, missingKey.Validate())

	missingSheet := *cfg
	missingSheet.Sheets.DefaultSpreadsheetID = ""
	assert.Error(t, missingSheet.Validate())

	badTZ := *cfg
	badTZ.Quota.Timezone = "Mars/Olympus"
	assert.Error(t, badTZ.Validate())
}
