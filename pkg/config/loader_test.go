package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	App    AppConfig    `yaml:"app"`
	DB     DBConfig     `yaml:"db"`
	JWT    JWTConfig    `yaml:"jwt"`
	Server ServerConfig `yaml:"server"`
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadMergesLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
app:
  name: base
  env: local
db:
  host: localhost
  port: 5432
  slow_query_threshold: 100ms
server:
  port: ":4000"
`)
	writeFile(t, dir, "production.yaml", `
app:
  env: production
db:
  host: db.internal
`)

	var cfg testConfig
	require.NoError(t, Load("production", dir, &cfg))
	assert.Equal(t, "base", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.DB.SlowQueryThreshold)
	assert.True(t, cfg.App.IsProduction())
}

func TestLoadMissingOverlayIsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "app:\n  name: base\n")

	var cfg testConfig
	require.NoError(t, Load("staging", dir, &cfg))
	assert.Equal(t, "base", cfg.App.Name)
}

func TestLoadMissingBaseFails(t *testing.T) {
	var cfg testConfig
	assert.Error(t, Load("local", t.TempDir(), &cfg))
}

func TestPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
jwt:
  secret: ${TEST_JWT_SECRET}
db:
  password: ${TEST_DB_PASSWORD}
  user: ${TEST_UNKNOWN_VAR}
`)
	writeFile(t, dir, "secrets.env", "# comment\nTEST_JWT_SECRET=from-file\nTEST_DB_PASSWORD=\"quoted\"\n")

	unsetEnv(t, "TEST_JWT_SECRET")
	unsetEnv(t, "TEST_UNKNOWN_VAR")
	t.Setenv("TEST_DB_PASSWORD", "from-env")

	var cfg testConfig
	require.NoError(t, Load("local", dir, &cfg))
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "from-env", cfg.DB.Password)
	assert.Equal(t, "", cfg.DB.User)
}

func TestOverrideServerFromEnv(t *testing.T) {
	unsetEnv(t, "SERVER_PORT")
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGIN", "https://a.example.com, ,https://b.example.com")

	var cfg ServerConfig
	OverrideServerFromEnv(&cfg)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}

func TestOverrideAppFromEnvFallsBackToNodeEnv(t *testing.T) {
	unsetEnv(t, "APP_ENV")
	t.Setenv("NODE_ENV", "production")

	cfg := AppConfig{Env: "local"}
	OverrideAppFromEnv(&cfg)
	assert.Equal(t, "production", cfg.Env)
}
