package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsNeedSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.TTL)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9000"
auth:
  jwt_secret: from-file
rooms:
  ttl: 45m
  card_seconds: 20
  mode: browse
  auto_vote: false
suggest:
  provider: http
  base_url: http://places.local
  timeout: 3s
database:
  host: db
`)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "9100")
	t.Setenv("AUTO_VOTE", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DB_NAME", "rooms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 45*time.Minute, cfg.Rooms.TTL)
	assert.Equal(t, 20, cfg.Rooms.CardSeconds)
	assert.Equal(t, "browse", cfg.Rooms.Mode)
	assert.True(t, cfg.Rooms.AutoVote)
	assert.Equal(t, 3*time.Second, cfg.Suggest.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "rooms", cfg.Database.Database)
	// untouched keys keep their defaults
	assert.Equal(t, time.Minute, cfg.Rooms.SweepInterval)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cases := map[string]string{
		"mode":           "rooms: {mode: shuffle}",
		"card seconds":   "rooms: {card_seconds: 0}",
		"provider":       "suggest: {provider: ai}",
		"http base url":  "suggest: {provider: http}",
		"store backend":  "store: {backend: etcd}",
		"users backend":  "users: {backend: mysql}",
		"malformed yaml": "rooms: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, doc))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("X_INT", "ten")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 7, getEnvAsInt("X_INT", 7))
	assert.True(t, getEnvAsBool("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
}
