package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TODO_PLANNER_CONFIG", "DATABASE_URL", "HTTP_ADDR", "TELEGRAM_TOKEN",
		"DIGEST_TIME", "LOG_LEVEL", "GENERATE_INTERVAL", "GENERATE_DAYS",
		"MAX_GENERATE_DAYS", "ADMIN_SUBJECTS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, time.Hour, cfg.GenerateInterval)
	assert.Equal(t, 730, cfg.GenerateDays)
	assert.Equal(t, "08:00", cfg.DigestTime)
	assert.Equal(t, 3650, cfg.MaxGenerateDays)
	assert.Empty(t, cfg.AdminSubjects)
	assert.False(t, cfg.BotEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "data/todos.db")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("GENERATE_INTERVAL", "2")
	t.Setenv("GENERATE_DAYS", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/todos.db", cfg.DatabaseURL)
	assert.True(t, cfg.BotEnabled())
	assert.Equal(t, 2*time.Hour, cfg.GenerateInterval)
	assert.Equal(t, 90, cfg.GenerateDays)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.toml")
	content := `
database_url = "from-file.db"
http_addr = ":9090"
generate_interval = "30m"
generate_days = 365
max_generate_days = 1000
admin_subjects = ["ops"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TODO_PLANNER_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.DatabaseURL)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Minute, cfg.GenerateInterval)
	assert.Equal(t, 365, cfg.GenerateDays)
	assert.Equal(t, 1000, cfg.MaxGenerateDays)
	assert.Equal(t, []string{"ops"}, cfg.AdminSubjects)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GENERATE_DAYS", "0")
	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("GENERATE_DAYS", "many")
	_, err = Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("GENERATE_INTERVAL", "soon")
	_, err = Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("MAX_GENERATE_DAYS", "100")
	_, err = Load()
	assert.Error(t, err, "scheduled horizon above the maximum")

	clearEnv(t)
	t.Setenv("MAX_GENERATE_DAYS", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadMaxDaysAndAdmins(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_GENERATE_DAYS", "1000")
	t.Setenv("ADMIN_SUBJECTS", " ops , ,root")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxGenerateDays)
	assert.Equal(t, []string{"ops", "root"}, cfg.AdminSubjects)
}
