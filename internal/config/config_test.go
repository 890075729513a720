package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setHosts(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COMPLEX_API_URL", "UNIT_API_URL", "PARKING_API_URL", "LAND_API_URL",
		"COMMERCIAL_API_URL", "PROJECT_API_URL", "SETTLEMENT_API_URL",
	} {
		t.Setenv(key, "https://"+key+".example.com")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setHosts(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "ru", cfg.DefaultLang)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 8, cfg.MaxConcurrencyPerHost)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, "https://LAND_API_URL.example.com", cfg.Hosts.LandPlot)
}

func TestLoad_FromEnvFile(t *testing.T) {
	setHosts(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REQUEST_TIMEOUT=3s\nLOG_PRETTY=true\nSSO_PHONE=8 (999) 123-45-67\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("REQUEST_TIMEOUT")
		os.Unsetenv("LOG_PRETTY")
		os.Unsetenv("SSO_PHONE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "8 (999) 123-45-67", cfg.SSO.Phone)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	setHosts(t)
	t.Setenv("PORT", "9090")
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoad_MissingHost(t *testing.T) {
	setHosts(t)
	t.Setenv("UNIT_API_URL", "")
	chdir(t, t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIT_API_URL")
}

func TestValidate_Limits(t *testing.T) {
	setHosts(t)
	t.Setenv("MAX_ATTEMPTS", "0")
	chdir(t, t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_ATTEMPTS")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_INT", "notanumber")
	t.Setenv("CFG_BOOL", "1")
	t.Setenv("CFG_DUR", "250ms")

	assert.Equal(t, 5, getEnvAsInt("CFG_INT", 5))
	assert.True(t, getEnvAsBool("CFG_BOOL", false))
	assert.Equal(t, 250*time.Millisecond, getEnvAsDuration("CFG_DUR", time.Second))
	assert.Equal(t, "fallback", getEnv("CFG_UNSET", "fallback"))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
